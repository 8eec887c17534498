package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/alfredjeanlab/portal/internal/config"
	"github.com/alfredjeanlab/portal/internal/model"
	"github.com/spf13/cobra"
)

var screensCmd = &cobra.Command{
	Use:     "screens",
	Short:   "Show the effective screen configuration",
	GroupID: "system",
	Args:    cobra.NoArgs,
	// Screens are local configuration; no client connection is needed.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		setupLogging()
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadClientConfig()
		if err != nil {
			return err
		}
		visible := make([]*model.Resource, 0, len(screens))
		for _, res := range screens {
			if res.AllowedFor(cfg.Role) {
				visible = append(visible, res)
			}
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), visible)
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "SCREEN\tPATH\tLIMIT\tSORT\tSORT MODE\tRECONCILE\tCOLUMNS")
		for _, res := range visible {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\t%s\n",
				res.Name, res.Path, res.Limit, res.DefaultSort.String(), res.SortMode, res.Reconcile,
				strings.Join(res.Columns, ","))
		}
		if err := w.Flush(); err != nil {
			return err
		}
		if cfg.Screens != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "\noverrides: %s\n", cfg.Screens)
		}
		return nil
	},
}

var screensCheckCmd = &cobra.Command{
	Use:   "check <file>",
	Short: "Validate a screen override file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		overrides, err := config.LoadScreens(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d %s ok\n", args[0], len(overrides), plural(len(overrides), "override"))
		return nil
	},
}

func init() {
	screensCmd.AddCommand(screensCheckCmd)
}
