package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/alfredjeanlab/portal/internal/client"
	"github.com/alfredjeanlab/portal/internal/config"
	"github.com/alfredjeanlab/portal/internal/model"
	"github.com/alfredjeanlab/portal/internal/ui"
	"github.com/spf13/cobra"
)

var (
	httpURL    string
	serverAddr string
	transport  string
	token      string
	user       string
	role       string
	jsonOutput bool
	verbose    bool
	assumeYes  bool

	clientCfg    *config.ClientConfig
	portalClient client.CollectionClient
	screens      []*model.Resource
)

func defaultHTTPURL() string {
	if s := os.Getenv("PORTAL_HTTP_URL"); s != "" {
		return s
	}
	if r := activeRemote(); r.HTTPURL != "" {
		return r.HTTPURL
	}
	return "http://localhost:8080"
}

func defaultServer() string {
	if s := os.Getenv("PORTAL_GRPC_ADDR"); s != "" {
		return s
	}
	if r := activeRemote(); r.GRPCAddr != "" {
		return r.GRPCAddr
	}
	return "localhost:9090"
}

func defaultToken() string {
	if s := os.Getenv("PORTAL_TOKEN"); s != "" {
		return s
	}
	return activeRemote().Token
}

func defaultUser() string {
	if s := os.Getenv("PORTAL_USER"); s != "" {
		return s
	}
	if r := activeRemote(); r.User != "" {
		return r.User
	}
	return os.Getenv("USER")
}

func defaultRole() string {
	if s := os.Getenv("PORTAL_ROLE"); s != "" {
		return s
	}
	if r := activeRemote(); r.Role != "" {
		return string(r.Role)
	}
	return string(model.RoleAdmin)
}

func envOr(key, fallback string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return fallback
}

var rootCmd = &cobra.Command{
	Use:           "pa <command>",
	Short:         "Manage the portal's feedback, contacts, documents and support tickets",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		setupLogging()
		cfg, err := loadClientConfig()
		if err != nil {
			return err
		}
		c, err := newCollectionClient(cfg)
		if err != nil {
			return fmt.Errorf("failed to connect to server: %w", err)
		}
		clientCfg, portalClient = cfg, c
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if portalClient != nil {
			portalClient.Close()
		}
	},
}

func setupLogging() {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// loadClientConfig merges the environment with the command-line flags and
// resolves the screen overrides. Flags take precedence.
func loadClientConfig() (*config.ClientConfig, error) {
	cfg, err := config.LoadClient()
	if err != nil {
		return nil, err
	}
	cfg.HTTPURL = httpURL
	cfg.GRPCAddr = serverAddr
	cfg.Transport = transport
	cfg.Token = token
	cfg.User = user
	cfg.Role = model.Role(role)
	if cfg.NATSURL == "" {
		cfg.NATSURL = activeRemote().NATSURL
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	overrides, err := config.LoadScreens(cfg.Screens)
	if err != nil {
		return nil, err
	}
	screens = config.ApplyScreens(overrides)
	return cfg, nil
}

func newCollectionClient(cfg *config.ClientConfig) (client.CollectionClient, error) {
	session := client.Session{Token: cfg.Token, User: cfg.User, Role: cfg.Role}
	switch cfg.Transport {
	case config.TransportGRPC:
		return client.NewGRPCClient(cfg.GRPCAddr, session)
	default:
		return client.NewHTTPClient(cfg.HTTPURL, session), nil
	}
}

// screen returns the effective configuration of the named resource and
// checks that the session's role may open it.
func screen(name string) (*model.Resource, error) {
	for _, res := range screens {
		if res.Name != name {
			continue
		}
		if clientCfg != nil && !res.AllowedFor(clientCfg.Role) {
			return nil, fmt.Errorf("role %q cannot open %s", clientCfg.Role, res.Title)
		}
		return res, nil
	}
	return nil, fmt.Errorf("unknown resource %q", name)
}

// commandContext is cancelled by Ctrl-C.
func commandContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&httpURL, "http-url", defaultHTTPURL(), "HTTP server URL")
	rootCmd.PersistentFlags().StringVar(&serverAddr, "server", defaultServer(), "gRPC server address")
	rootCmd.PersistentFlags().StringVar(&transport, "transport", envOr("PORTAL_TRANSPORT", config.TransportHTTP), "transport protocol (http or grpc)")
	rootCmd.PersistentFlags().StringVar(&token, "token", defaultToken(), "bearer token")
	rootCmd.PersistentFlags().StringVar(&user, "user", defaultUser(), "user name sent with every request")
	rootCmd.PersistentFlags().StringVar(&role, "role", defaultRole(), "session role (admin, client or student)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log debug output to stderr")
	rootCmd.PersistentFlags().BoolVarP(&assumeYes, "yes", "y", false, "answer yes to confirmation prompts")

	rootCmd.AddGroup(
		&cobra.Group{ID: "records", Title: "Collections:"},
		&cobra.Group{ID: "system", Title: "System:"},
	)

	cobra.EnableCommandSorting = false
	rootCmd.SetHelpFunc(helpFunc())

	for _, res := range model.Resources() {
		rootCmd.AddCommand(newResourceCmd(res))
	}

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(screensCmd)
	rootCmd.AddCommand(remoteCmd)
	rootCmd.AddCommand(whoCmd)
}

func main() {
	if !ui.ShouldUseColor() {
		ui.ForceNoColor()
	}
	if err := rootCmd.Execute(); err != nil {
		var reported *reportedError
		if !errors.As(err, &reported) {
			fmt.Fprintln(os.Stderr, ui.RenderError("Error: "+err.Error()))
		}
		os.Exit(1)
	}
}
