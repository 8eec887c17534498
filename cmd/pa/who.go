package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/alfredjeanlab/portal/internal/presence"
	"github.com/alfredjeanlab/portal/internal/ui"
	"github.com/spf13/cobra"
)

var whoCmd = &cobra.Command{
	Use:     "who",
	Short:   "Show who is working in the portal",
	GroupID: "system",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("screen")
		stale, _ := cmd.Flags().GetDuration("stale")
		if name != "" {
			res, err := screen(name)
			if err != nil {
				return err
			}
			name = res.Name
		}

		ctx, cancel := commandContext()
		defer cancel()

		users, err := fetchRoster(ctx, clientCfg.HTTPURL, sessionHeaders(clientCfg), name, stale)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), users)
		}
		printRoster(cmd.OutOrStdout(), users)
		return nil
	},
}

func init() {
	whoCmd.Flags().String("screen", "", "only users on this screen")
	whoCmd.Flags().Duration("stale", 30*time.Minute, "hide users idle for longer (0 shows everyone)")
}

// fetchRoster reads the backend's presence roster.
func fetchRoster(ctx context.Context, baseURL string, header http.Header, resource string, stale time.Duration) ([]presence.Entry, error) {
	q := url.Values{}
	if resource != "" {
		q.Set("resource", resource)
	}
	if stale > 0 {
		q.Set("stale", stale.String())
	}
	u := strings.TrimRight(baseURL, "/") + "/v1/presence"
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header = header.Clone()

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching roster: %w", err)
	}
	defer resp.Body.Close()

	var body struct {
		Error string `json:"error"`
		Data  struct {
			Users []presence.Entry `json:"users"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding roster: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		if body.Error != "" {
			return nil, fmt.Errorf("fetching roster: %s", body.Error)
		}
		return nil, fmt.Errorf("fetching roster: HTTP %d", resp.StatusCode)
	}
	return body.Data.Users, nil
}

func printRoster(w io.Writer, users []presence.Entry) {
	if len(users) == 0 {
		fmt.Fprintln(w, ui.RenderMuted("No active users."))
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "USER\tROLE\tSCREEN\tLAST ACTION\tIDLE\tREQUESTS")
	for _, u := range users {
		idle := (time.Duration(u.IdleSecs) * time.Second).String()
		if u.Away {
			idle += " (away)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\n", u.User, u.Role, u.Resource, u.LastAction, idle, u.RequestCount)
	}
	tw.Flush()
}
