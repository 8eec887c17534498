package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alfredjeanlab/portal/internal/model"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	in := RemotesConfig{
		Active: "prod",
		Remotes: map[string]Remote{
			"prod":  {HTTPURL: "https://portal.example.com", GRPCAddr: "portal.example.com:9090", Token: "tok_abc", NATSURL: "nats://prod:4222"},
			"local": {HTTPURL: "http://localhost:8080"},
		},
	}
	if err := saveRemotesConfig(in); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := loadRemotesConfig()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Active != "prod" {
		t.Errorf("Active = %q, want %q", got.Active, "prod")
	}
	if prod := got.Remotes["prod"]; prod != in.Remotes["prod"] {
		t.Errorf("prod remote = %+v, want %+v", prod, in.Remotes["prod"])
	}
	if got.Remotes["local"].GRPCAddr != "" {
		t.Errorf("local remote = %+v", got.Remotes["local"])
	}
}

func TestLoadRemotesConfig_NoFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := loadRemotesConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Active != "" || len(cfg.Remotes) != 0 || cfg.Remotes == nil {
		t.Errorf("expected empty config, got %+v", cfg)
	}
}

func TestSaveRemotesConfig_Permissions(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	if err := saveRemotesConfig(RemotesConfig{Remotes: map[string]Remote{}}); err != nil {
		t.Fatalf("save: %v", err)
	}
	path, _ := remoteConfigPath()
	check := func(p string, want os.FileMode) {
		t.Helper()
		info, err := os.Stat(p)
		if err != nil {
			t.Fatalf("stat %s: %v", p, err)
		}
		if got := info.Mode().Perm(); got != want {
			t.Errorf("%s permissions = %04o, want %04o", p, got, want)
		}
	}
	check(path, 0o600)
	check(filepath.Dir(path), 0o700)
}

func TestRemoteLifecycle(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	var buf bytes.Buffer
	run := func(cmd *cobra.Command, args ...string) string {
		t.Helper()
		buf.Reset()
		cmd.SetOut(&buf)
		if err := cmd.RunE(cmd, args); err != nil {
			t.Fatalf("%s %v: %v", cmd.Name(), args, err)
		}
		return buf.String()
	}

	// add, upsert, use, list, show, remove
	run(remoteAddCmd, "staging", "https://staging.example.com")
	run(remoteAddCmd, "local", "http://localhost:8080")
	run(remoteAddCmd, "local", "http://localhost:8081")
	run(remoteUseCmd, "local")

	cfg, _ := loadRemotesConfig()
	if cfg.Active != "local" || cfg.Remotes["local"].HTTPURL != "http://localhost:8081" {
		t.Fatalf("config = %+v", cfg)
	}

	out := run(remoteListCmd)
	local, staging := strings.Index(out, "* local"), strings.Index(out, "  staging")
	if local < 0 || staging < 0 || local > staging {
		t.Errorf("list should mark local active and sort by name; got:\n%s", out)
	}

	out = run(remoteShowCmd)
	if !strings.Contains(out, "local (active)") || !strings.Contains(out, "http://localhost:8081") {
		t.Errorf("show missing expected content; got:\n%s", out)
	}
	if out = run(remoteShowCmd, "staging"); strings.Contains(out, "(active)") {
		t.Errorf("show by name marked staging active; got:\n%s", out)
	}

	run(remoteRemoveCmd, "local")
	cfg, _ = loadRemotesConfig()
	if cfg.Active != "" {
		t.Errorf("Active = %q after removing the active remote", cfg.Active)
	}
	if _, ok := cfg.Remotes["local"]; ok {
		t.Error("local remote still present after remove")
	}
	if err := remoteUseCmd.RunE(remoteUseCmd, []string{"local"}); err == nil {
		t.Error("use of a removed remote succeeded")
	}
}

func TestMaskToken(t *testing.T) {
	for _, tc := range []struct{ tok, fill, want string }{
		{"short", "", "short"},
		{"tok_abcdefgh123", "", "tok_abcd..."},
		{"tok_abcdefgh123", "*", "tok_abcd*******"},
	} {
		if got := maskToken(tc.tok, tc.fill); got != tc.want {
			t.Errorf("maskToken(%q, %q) = %q, want %q", tc.tok, tc.fill, got, tc.want)
		}
	}
}

// setFlags sets flags on cmd for the duration of the test.
func setFlags(t *testing.T, cmd *cobra.Command, kv ...string) {
	t.Helper()
	for i := 0; i+1 < len(kv); i += 2 {
		if err := cmd.Flags().Set(kv[i], kv[i+1]); err != nil {
			t.Fatal(err)
		}
	}
	t.Cleanup(func() {
		cmd.Flags().VisitAll(func(f *pflag.Flag) {
			_ = f.Value.Set(f.DefValue)
			f.Changed = false
		})
	})
}

func TestRemoteAdd_Session(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	var out bytes.Buffer
	remoteAddCmd.SetOut(&out)

	setFlags(t, remoteAddCmd, "user", "ada", "role", "Student", "token", "tok_abcdefgh123")
	if err := remoteAddCmd.RunE(remoteAddCmd, []string{"campus", "https://campus.example.com"}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "ada (student)") {
		t.Errorf("add output = %q", out.String())
	}

	// Updating the URL alone keeps the session.
	for _, f := range []string{"user", "role", "token"} {
		remoteAddCmd.Flags().Lookup(f).Changed = false
	}
	if err := remoteAddCmd.RunE(remoteAddCmd, []string{"campus", "https://campus2.example.com"}); err != nil {
		t.Fatal(err)
	}
	cfg, _ := loadRemotesConfig()
	want := Remote{HTTPURL: "https://campus2.example.com", Token: "tok_abcdefgh123", User: "ada", Role: model.RoleStudent}
	if got := cfg.Remotes["campus"]; got != want {
		t.Fatalf("remote = %+v, want %+v", got, want)
	}

	out.Reset()
	remoteShowCmd.SetOut(&out)
	if err := remoteShowCmd.RunE(remoteShowCmd, []string{"campus"}); err != nil {
		t.Fatal(err)
	}
	fields := map[string]string{}
	for _, line := range strings.Split(strings.TrimSpace(out.String()), "\n") {
		k, v, _ := strings.Cut(line, ":")
		fields[k] = strings.TrimSpace(v)
	}
	if fields["session"] != "ada (student)" || fields["opens"] != "feedback, documents" || fields["token"] != "tok_abcd*******" {
		t.Errorf("show = %q", fields)
	}
}

func TestRemoteAdd_Rejects(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	remoteAddCmd.SetOut(io.Discard)

	for _, u := range []string{"localhost:8080", "ftp://files.example.com", "http://"} {
		if err := remoteAddCmd.RunE(remoteAddCmd, []string{"bad", u}); err == nil {
			t.Errorf("URL %q accepted", u)
		}
	}

	setFlags(t, remoteAddCmd, "role", "teacher")
	if err := remoteAddCmd.RunE(remoteAddCmd, []string{"bad", "http://localhost:8080"}); err == nil {
		t.Error("unknown role accepted")
	}
	if cfg, _ := loadRemotesConfig(); len(cfg.Remotes) != 0 {
		t.Errorf("rejected remote was saved: %+v", cfg.Remotes)
	}
}
