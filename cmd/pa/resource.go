package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"

	"github.com/alfredjeanlab/portal/internal/client"
	"github.com/alfredjeanlab/portal/internal/listview"
	"github.com/alfredjeanlab/portal/internal/model"
	"github.com/alfredjeanlab/portal/internal/ui"
	"github.com/spf13/cobra"
)

// reportedError is a failure that has already been shown to the user; main
// only sets the exit status.
type reportedError struct{ err error }

func (e *reportedError) Error() string { return e.err.Error() }
func (e *reportedError) Unwrap() error { return e.err }

// bannerError carries the banner text for err in place of its raw message.
type bannerError struct {
	msg string
	err error
}

func (e *bannerError) Error() string { return e.msg }
func (e *bannerError) Unwrap() error { return e.err }

// failure prints any field-level problems carried by err to w and returns
// an error whose message is the banner text.
func failure(w io.Writer, err error) error {
	var (
		ve     *model.ValidationError
		apiErr *client.APIError
	)
	switch {
	case errors.As(err, &ve):
		printFieldErrors(w, ve.ByField())
	case errors.As(err, &apiErr) && len(apiErr.Fields) > 0:
		byField := map[string][]string{}
		for _, fe := range apiErr.Fields {
			byField[fe.Field] = append(byField[fe.Field], fe.Message)
		}
		printFieldErrors(w, byField)
	}
	slog.Debug("command failed", "err", err)
	return &bannerError{msg: client.UserMessage(err), err: err}
}

// newResourceCmd builds the command group for one collection screen. The
// effective screen configuration is resolved when a subcommand runs, after
// overrides are loaded.
func newResourceCmd(res *model.Resource) *cobra.Command {
	name := res.Name
	cmd := &cobra.Command{
		Use:         name,
		Short:       fmt.Sprintf("Manage %s", strings.ToLower(res.Title)),
		GroupID:     "records",
		Annotations: map[string]string{annotationResource: name},
	}
	if alias := path.Base(res.Path); alias != name {
		cmd.Aliases = append(cmd.Aliases, alias)
	}
	if single := strings.TrimSuffix(name, "s"); single != name {
		cmd.Aliases = append(cmd.Aliases, single)
	}

	cmd.AddCommand(
		newListCmd(name),
		newShowCmd(name),
		newCreateCmd(name),
		newUpdateCmd(name),
		newStatusCmd(name),
		newDeleteCmd(name),
		newStatsCmd(name),
		newWatchCmd(name),
		newExportCmd(name),
		newBrowseCmd(name),
	)
	return cmd
}

func addListFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("search", "s", "", "free-text search")
	cmd.Flags().StringArrayP("filter", "f", nil, "field filter as key=value (repeatable)")
	cmd.Flags().Int("page", 1, "page number")
	cmd.Flags().Int("limit", 0, "records per page (default: the screen's limit)")
	cmd.Flags().String("sort", "", "sort key, prefixed with - for descending (default: the screen's sort)")
}

// listCriteria reads the list flags into criteria and a sort.
func listCriteria(cmd *cobra.Command, res *model.Resource) (model.FilterCriteria, model.SortSpec, error) {
	search, _ := cmd.Flags().GetString("search")
	filters, _ := cmd.Flags().GetStringArray("filter")
	page, _ := cmd.Flags().GetInt("page")
	limit, _ := cmd.Flags().GetInt("limit")
	sortBy, _ := cmd.Flags().GetString("sort")

	if limit <= 0 {
		limit = res.Limit
	}
	crit := model.NewFilterCriteria(limit)
	var err error
	if search != "" {
		if crit, err = crit.With(model.KeySearch, search); err != nil {
			return crit, model.SortSpec{}, err
		}
	}
	for _, f := range filters {
		k, v, ok := strings.Cut(f, "=")
		if !ok {
			return crit, model.SortSpec{}, fmt.Errorf("invalid filter %q (expected key=value)", f)
		}
		if crit, err = crit.With(strings.TrimSpace(k), strings.TrimSpace(v)); err != nil {
			return crit, model.SortSpec{}, err
		}
	}
	if page < 1 {
		return crit, model.SortSpec{}, fmt.Errorf("page must be >= 1, got %d", page)
	}
	crit = crit.WithPage(page)

	sort := res.DefaultSort
	if sortBy != "" {
		sort = model.ParseSort(sortBy)
	}
	return crit, sort, nil
}

func newController(res *model.Resource, crit model.FilterCriteria, sort model.SortSpec, confirm listview.Confirmer) *listview.Controller {
	opts := []listview.Option{
		listview.WithCriteria(crit),
		listview.WithSort(sort),
		listview.WithLogger(slog.Default()),
	}
	if confirm != nil {
		opts = append(opts, listview.WithConfirmer(confirm))
	}
	return listview.New(portalClient, res, opts...)
}

func newListCmd(name string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := screen(name)
			if err != nil {
				return err
			}
			crit, sort, err := listCriteria(cmd, res)
			if err != nil {
				return err
			}
			ctx, cancel := commandContext()
			defer cancel()

			ctl := newController(res, crit, sort, nil)
			defer ctl.Close()
			loadErr := ctl.Load(ctx)

			out := cmd.OutOrStdout()
			st := ctl.State()
			if jsonOutput {
				if err := printListJSON(out, st); err != nil {
					return err
				}
			} else {
				printList(out, st)
			}
			if loadErr != nil {
				return &reportedError{err: loadErr}
			}
			return nil
		},
	}
	addListFlags(cmd)
	return cmd
}

func newShowCmd(name string) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := screen(name)
			if err != nil {
				return err
			}
			ctx, cancel := commandContext()
			defer cancel()

			rec, err := portalClient.Get(ctx, res, args[0])
			if err != nil {
				return failure(cmd.ErrOrStderr(), err)
			}
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), rec)
			}
			printDetail(cmd.OutOrStdout(), res, rec, nil)
			return nil
		},
	}
}

func newCreateCmd(name string) *cobra.Command {
	return &cobra.Command{
		Use:   "create <field=value>...",
		Short: "Create a record",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := screen(name)
			if err != nil {
				return err
			}
			fields, err := model.ParseAssignments(res, args)
			if err != nil {
				return err
			}
			ctx, cancel := commandContext()
			defer cancel()

			rec, err := listview.NewDispatcher(portalClient, res).Create(ctx, fields)
			if err != nil {
				return failure(cmd.ErrOrStderr(), err)
			}
			return printMutation(cmd.OutOrStdout(), res, rec, "Created")
		},
	}
}

func newUpdateCmd(name string) *cobra.Command {
	return &cobra.Command{
		Use:   "update <id> <field=value>...",
		Short: "Change fields of a record",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := screen(name)
			if err != nil {
				return err
			}
			fields, err := model.ParseAssignments(res, args[1:])
			if err != nil {
				return err
			}
			ctx, cancel := commandContext()
			defer cancel()

			rec, err := listview.NewDispatcher(portalClient, res).Update(ctx, args[0], fields)
			if err != nil {
				return failure(cmd.ErrOrStderr(), err)
			}
			return printMutation(cmd.OutOrStdout(), res, rec, "Updated")
		},
	}
}

func newStatusCmd(name string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status <id> <status>",
		Short: "Move a record to another status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := screen(name)
			if err != nil {
				return err
			}
			notes, _ := cmd.Flags().GetString("notes")
			ctx, cancel := commandContext()
			defer cancel()

			rec, err := listview.NewDispatcher(portalClient, res).UpdateStatus(ctx, args[0], args[1], notes)
			if err != nil {
				return failure(cmd.ErrOrStderr(), err)
			}
			return printMutation(cmd.OutOrStdout(), res, rec, "Updated")
		},
	}
	cmd.Flags().String("notes", "", "notes recorded with the change")
	return cmd
}

func newDeleteCmd(name string) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>...",
		Short: "Delete one or more records",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := screen(name)
			if err != nil {
				return err
			}
			ctx, cancel := commandContext()
			defer cancel()

			prompter := ui.StdPrompter(assumeYes)
			d := listview.NewDispatcher(portalClient, res)
			for _, id := range args {
				if !prompter.Confirm(fmt.Sprintf("Delete %s %s? This cannot be undone.", res.Name, id)) {
					return fmt.Errorf("delete %s: %w (use --yes to skip the prompt)", id, listview.ErrNotConfirmed)
				}
				if err := d.Delete(ctx, id); err != nil {
					return failure(cmd.ErrOrStderr(), err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", id)
			}
			return nil
		},
	}
}

func newStatsCmd(name string) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show summary counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := screen(name)
			if err != nil {
				return err
			}
			ctx, cancel := commandContext()
			defer cancel()

			st, err := portalClient.Stats(ctx, res)
			if err != nil {
				return failure(cmd.ErrOrStderr(), err)
			}
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), st)
			}
			printStats(cmd.OutOrStdout(), res, st)
			return nil
		},
	}
}

func printMutation(w io.Writer, res *model.Resource, rec model.Record, verb string) error {
	if jsonOutput {
		return printJSON(w, rec)
	}
	fmt.Fprintf(w, "%s %s\n\n", verb, rec.ID(res.IDField))
	printDetail(w, res, rec, nil)
	return nil
}
