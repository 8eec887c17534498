package main

import (
	"fmt"
	"io"
	"net/url"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/alfredjeanlab/portal/internal/model"
	"github.com/spf13/cobra"
)

var remoteCmd = &cobra.Command{
	Use:   "remote",
	Short: "Manage named portal backends and their sessions",
	Long: `A remote names a portal backend together with the session used against
it: the user and role sent with every request. The active remote supplies
the defaults for --http-url, --server, --token, --user and --role.`,
	GroupID: "system",
	// Remotes are local file operations; skip connecting.
	PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
}

var remoteAddCmd = &cobra.Command{
	Use:   "add <name> <http-url>",
	Short: "Add a remote, or update the settings given for an existing one",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, base := args[0], args[1]
		if err := checkHTTPURL(base); err != nil {
			return err
		}
		return editRemotes(func(cfg *RemotesConfig) error {
			r := cfg.Remotes[name]
			r.HTTPURL = base
			for flag, field := range map[string]*string{
				"grpc":  &r.GRPCAddr,
				"token": &r.Token,
				"nats":  &r.NATSURL,
				"user":  &r.User,
				"role":  (*string)(&r.Role),
			} {
				if cmd.Flags().Changed(flag) {
					*field, _ = cmd.Flags().GetString(flag)
				}
			}
			r.Role = model.Role(strings.ToLower(string(r.Role)))
			if r.Role != "" && !r.Role.IsValid() {
				return fmt.Errorf("unknown role %q (must be admin, client or student)", r.Role)
			}
			cfg.Remotes[name] = r
			fmt.Fprintf(cmd.OutOrStdout(), "remote %q saved (%s, %s)\n", name, base, sessionLabel(r))
			return nil
		})
	},
}

var remoteRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove a named remote",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		return editRemotes(func(cfg *RemotesConfig) error {
			if _, err := cfg.lookup(name); err != nil {
				return err
			}
			delete(cfg.Remotes, name)
			if cfg.Active == name {
				cfg.Active = ""
			}
			fmt.Fprintf(cmd.OutOrStdout(), "remote %q removed\n", name)
			return nil
		})
	},
}

var remoteUseCmd = &cobra.Command{
	Use:   "use <name>",
	Short: "Make a remote and its session the default",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		return editRemotes(func(cfg *RemotesConfig) error {
			r, err := cfg.lookup(name)
			if err != nil {
				return err
			}
			cfg.Active = name
			fmt.Fprintf(cmd.OutOrStdout(), "using %q as %s\n", name, sessionLabel(r))
			return nil
		})
	},
}

var remoteListCmd = &cobra.Command{
	Use:   "list",
	Short: "List remotes; the active one is starred",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadRemotesConfig()
		if err != nil {
			return err
		}
		if len(cfg.Remotes) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no remotes configured")
			return nil
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "  NAME\tHTTP URL\tSESSION\tTOKEN")
		for _, name := range cfg.names() {
			r := cfg.Remotes[name]
			marker := "  "
			if name == cfg.Active {
				marker = "* "
			}
			fmt.Fprintf(w, "%s%s\t%s\t%s\t%s\n", marker, name, r.HTTPURL, sessionLabel(r), maskToken(r.Token, ""))
		}
		return w.Flush()
	},
}

var remoteShowCmd = &cobra.Command{
	Use:   "show [<name>]",
	Short: "Show a remote (defaults to the active one)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadRemotesConfig()
		if err != nil {
			return err
		}
		name := cfg.Active
		if len(args) == 1 {
			name = args[0]
		}
		if name == "" {
			return fmt.Errorf("no active remote; specify a name or run 'pa remote use <name>'")
		}
		r, err := cfg.lookup(name)
		if err != nil {
			return err
		}
		if name == cfg.Active {
			name += " (active)"
		}
		return writeRemote(cmd.OutOrStdout(), name, r)
	},
}

func writeRemote(out io.Writer, name string, r Remote) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "name:\t%s\n", name)
	fmt.Fprintf(w, "http_url:\t%s\n", r.HTTPURL)
	for _, kv := range [][2]string{
		{"grpc_addr", r.GRPCAddr},
		{"nats_url", r.NATSURL},
		{"token", maskToken(r.Token, "*")},
	} {
		if kv[1] != "" {
			fmt.Fprintf(w, "%s:\t%s\n", kv[0], kv[1])
		}
	}
	fmt.Fprintf(w, "session:\t%s\n", sessionLabel(r))
	if r.Role != "" {
		var opens []string
		for _, res := range model.ResourcesFor(r.Role) {
			opens = append(opens, res.Name)
		}
		fmt.Fprintf(w, "opens:\t%s\n", strings.Join(opens, ", "))
	}
	return w.Flush()
}

// sessionLabel renders a remote's session as "user (role)".
func sessionLabel(r Remote) string {
	user, role := r.User, string(r.Role)
	if user == "" {
		user = "$USER"
	}
	if role == "" {
		role = "default role"
	}
	return fmt.Sprintf("%s (%s)", user, role)
}

func checkHTTPURL(s string) error {
	u, err := url.Parse(s)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid HTTP URL %q (expected http://host[:port])", s)
	}
	return nil
}

// editRemotes loads the remotes, applies fn and saves them if fn succeeds.
func editRemotes(fn func(*RemotesConfig) error) error {
	cfg, err := loadRemotesConfig()
	if err != nil {
		return err
	}
	if err := fn(&cfg); err != nil {
		return err
	}
	return saveRemotesConfig(cfg)
}

func (cfg RemotesConfig) lookup(name string) (Remote, error) {
	r, ok := cfg.Remotes[name]
	if !ok {
		return Remote{}, fmt.Errorf("remote %q not found", name)
	}
	return r, nil
}

func (cfg RemotesConfig) names() []string {
	names := make([]string, 0, len(cfg.Remotes))
	for name := range cfg.Remotes {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func init() {
	remoteAddCmd.Flags().String("grpc", "", "gRPC address of the remote")
	remoteAddCmd.Flags().String("token", "", "bearer token for authentication")
	remoteAddCmd.Flags().String("nats", "", "NATS URL for change events")
	remoteAddCmd.Flags().String("user", "", "user name for the session")
	remoteAddCmd.Flags().String("role", "", "session role (admin, client or student)")

	remoteCmd.AddCommand(remoteAddCmd, remoteRemoveCmd, remoteUseCmd, remoteListCmd, remoteShowCmd)
}
