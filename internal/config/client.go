package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/alfredjeanlab/portal/internal/model"
)

// Transports understood by the CLI.
const (
	TransportHTTP = "http"
	TransportGRPC = "grpc"
)

// ClientConfig is the CLI's connection and session settings.
type ClientConfig struct {
	HTTPURL   string     // PORTAL_HTTP_URL (default "http://localhost:8080")
	GRPCAddr  string     // PORTAL_GRPC_ADDR (default "localhost:9090")
	Transport string     // PORTAL_TRANSPORT ("http" or "grpc", default "http")
	Token     string     // PORTAL_TOKEN
	User      string     // PORTAL_USER (default $USER)
	Role      model.Role // PORTAL_ROLE (default "admin")
	NATSURL   string     // PORTAL_NATS_URL (optional, enables event-driven watch)
	Screens   string     // PORTAL_SCREENS (default ~/.config/portal/screens.toml)
}

// LoadClient reads the CLI configuration from the environment.
func LoadClient() (*ClientConfig, error) {
	c := &ClientConfig{
		HTTPURL:   envOrDefault("PORTAL_HTTP_URL", "http://localhost:8080"),
		GRPCAddr:  envOrDefault("PORTAL_GRPC_ADDR", "localhost:9090"),
		Transport: envOrDefault("PORTAL_TRANSPORT", TransportHTTP),
		Token:     os.Getenv("PORTAL_TOKEN"),
		User:      envOrDefault("PORTAL_USER", os.Getenv("USER")),
		Role:      model.Role(envOrDefault("PORTAL_ROLE", string(model.RoleAdmin))),
		NATSURL:   os.Getenv("PORTAL_NATS_URL"),
		Screens:   os.Getenv("PORTAL_SCREENS"),
	}
	if c.Screens == "" {
		c.Screens = defaultScreensPath()
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks the transport and role.
func (c *ClientConfig) Validate() error {
	switch c.Transport {
	case TransportHTTP, TransportGRPC:
	default:
		return fmt.Errorf("unknown transport %q (want %q or %q)", c.Transport, TransportHTTP, TransportGRPC)
	}
	if !c.Role.IsValid() {
		return fmt.Errorf("unknown role %q", c.Role)
	}
	return nil
}

func defaultScreensPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "portal", "screens.toml")
}
