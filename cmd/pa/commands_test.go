package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/alfredjeanlab/portal/internal/client"
	"github.com/alfredjeanlab/portal/internal/config"
	"github.com/alfredjeanlab/portal/internal/export"
	"github.com/alfredjeanlab/portal/internal/model"
	"github.com/alfredjeanlab/portal/internal/server"
	"github.com/alfredjeanlab/portal/internal/store/memory"
	"github.com/alfredjeanlab/portal/internal/ui"
	"github.com/spf13/cobra"
)

func TestMain(m *testing.M) {
	ui.ForceNoColor()
	os.Exit(m.Run())
}

// startBackend serves a seeded development backend over HTTP and points the
// command globals at it for the duration of the test.
func startBackend(t *testing.T) *httptest.Server {
	t.Helper()
	srv := server.NewPortalServer(memory.New(), nil, model.Resources())
	if err := srv.Seed(context.Background()); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	ts := httptest.NewServer(srv.NewHTTPHandler(""))
	t.Cleanup(ts.Close)

	prevClient, prevScreens, prevCfg := portalClient, screens, clientCfg
	prevJSON, prevYes := jsonOutput, assumeYes
	t.Cleanup(func() {
		portalClient, screens, clientCfg = prevClient, prevScreens, prevCfg
		jsonOutput, assumeYes = prevJSON, prevYes
	})

	session := client.Session{User: "tester", Role: model.RoleAdmin}
	portalClient = client.NewHTTPClient(ts.URL, session)
	screens = config.ApplyScreens(nil)
	clientCfg = &config.ClientConfig{
		HTTPURL:   ts.URL,
		Transport: config.TransportHTTP,
		User:      session.User,
		Role:      session.Role,
	}
	return ts
}

// run executes cmd with flags and args, returning stdout and stderr.
func run(t *testing.T, cmd *cobra.Command, flags map[string]string, args ...string) (string, string, error) {
	t.Helper()
	for k, v := range flags {
		if err := cmd.Flags().Set(k, v); err != nil {
			t.Fatalf("set --%s: %v", k, err)
		}
	}
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	err := cmd.RunE(cmd, args)
	return stdout.String(), stderr.String(), err
}

// idsBy maps the value of field to record id for every record of res.
func idsBy(t *testing.T, res *model.Resource, field string) map[string]string {
	t.Helper()
	resp, err := portalClient.List(context.Background(), res, &client.ListRequest{Criteria: model.NewFilterCriteria(100)})
	if err != nil {
		t.Fatalf("List %s: %v", res.Name, err)
	}
	out := map[string]string{}
	for _, rec := range resp.Items {
		out[rec.String(field)] = rec.ID(res.IDField)
	}
	return out
}

func TestListCmd_FilterAndLocalSort(t *testing.T) {
	startBackend(t)

	out, _, err := run(t, newListCmd("tickets"), map[string]string{"filter": "status=open", "sort": "priority"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, "PRIORITY▲") {
		t.Errorf("missing sort indicator:\n%s", out)
	}
	if strings.Contains(out, "Charged twice") {
		t.Errorf("filtered-out ticket listed:\n%s", out)
	}
	high, medium := strings.Index(out, "Cannot log in"), strings.Index(out, "Video does not play")
	if high < 0 || medium < 0 || high > medium {
		t.Errorf("want high priority before medium:\n%s", out)
	}
	if !strings.Contains(out, "Page 1 of 1 · 2 records") {
		t.Errorf("missing pager line:\n%s", out)
	}
}

func TestListCmd_EmptyState(t *testing.T) {
	startBackend(t)

	out, _, err := run(t, newListCmd("feedback"), map[string]string{"search": "no such words"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if strings.TrimSpace(out) != "No feedback match the current filters." {
		t.Errorf("output = %q", out)
	}
}

func TestListCmd_JSON(t *testing.T) {
	startBackend(t)
	jsonOutput = true

	out, _, err := run(t, newListCmd("documents"), map[string]string{"limit": "3"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var got listJSON
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decoding %q: %v", out, err)
	}
	if got.Resource != "documents" || len(got.Items) != 3 {
		t.Errorf("got %s with %d items", got.Resource, len(got.Items))
	}
	if got.Pagination.TotalRecords != 4 || got.Pagination.TotalPages != 2 {
		t.Errorf("pagination = %+v", got.Pagination)
	}
}

func TestListCmd_ServerUnreachable(t *testing.T) {
	ts := startBackend(t)
	ts.Close()

	out, _, err := run(t, newListCmd("contacts"), nil)
	var reported *reportedError
	if !errors.As(err, &reported) {
		t.Fatalf("err = %v, want a reported error", err)
	}
	if !strings.Contains(out, "! Unable to reach the server") {
		t.Errorf("missing banner:\n%s", out)
	}
}

func TestRecordLifecycle(t *testing.T) {
	startBackend(t)
	assumeYes = true

	out, _, err := run(t, newCreateCmd("contacts"), nil,
		"name=Edsger", "email=edsger@example.com", "subject=Hello", "message=Structured greetings.")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	m := regexp.MustCompile(`Created (\S+)`).FindStringSubmatch(out)
	if m == nil || !strings.HasPrefix(m[1], "ct-") {
		t.Fatalf("create output:\n%s", out)
	}
	id := m[1]

	out, _, err = run(t, newUpdateCmd("contacts"), nil, id, "subject=Hi there")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !strings.Contains(out, "Hi there") {
		t.Errorf("update output:\n%s", out)
	}

	out, _, err = run(t, newStatusCmd("contacts"), nil, id, "replied")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(out, "replied") {
		t.Errorf("status output:\n%s", out)
	}

	out, _, err = run(t, newDeleteCmd("contacts"), nil, id)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if strings.TrimSpace(out) != "Deleted "+id {
		t.Errorf("delete output = %q", out)
	}

	_, _, err = run(t, newShowCmd("contacts"), nil, id)
	if !client.IsNotFound(err) {
		t.Errorf("show after delete: %v", err)
	}
	if err == nil || err.Error() != "contact not found" {
		t.Errorf("banner = %v, want the server's message", err)
	}
}

func TestCreateCmd_ValidationErrors(t *testing.T) {
	startBackend(t)

	_, stderr, err := run(t, newCreateCmd("feedback"), nil, "name=Ada", "email=not-an-email")
	var ve *model.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("err = %v, want a validation error", err)
	}
	if !strings.HasPrefix(err.Error(), "Please correct the highlighted fields") {
		t.Errorf("banner = %q", err.Error())
	}
	for _, field := range []string{"email:", "message:"} {
		if !strings.Contains(stderr, field) {
			t.Errorf("stderr missing %s\n%s", field, stderr)
		}
	}
}

func TestCreateCmd_UnknownField(t *testing.T) {
	startBackend(t)
	if _, _, err := run(t, newCreateCmd("feedback"), nil, "colour=blue"); err == nil {
		t.Fatal("expected an error for an unknown field")
	}
}

func TestStatsCmd(t *testing.T) {
	startBackend(t)

	out, _, err := run(t, newStatsCmd("tickets"), nil)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	for _, want := range []string{"Total", "By status", "By category", "billing"} {
		if !strings.Contains(out, want) {
			t.Errorf("stats output missing %q:\n%s", want, out)
		}
	}
	if !regexp.MustCompile(`(?m)^\s+open\s+2$`).MatchString(out) {
		t.Errorf("want 2 open tickets:\n%s", out)
	}
}

func TestWatchCmd_Once(t *testing.T) {
	startBackend(t)

	out, _, err := run(t, newWatchCmd("tickets"), map[string]string{"once": "true"})
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	if !strings.Contains(out, "4 changes") || !strings.Contains(out, "Charged twice") {
		t.Errorf("watch output:\n%s", out)
	}
}

func TestExportCmd_File(t *testing.T) {
	startBackend(t)
	path := filepath.Join(t.TempDir(), "documents.jsonl")

	_, stderr, err := run(t, newExportCmd("documents"), map[string]string{"output": path, "search": "legal"})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if !strings.Contains(stderr, "Exported 2 records") {
		t.Errorf("stderr = %q", stderr)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	var lines []map[string]any
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var line map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			t.Fatalf("line %q: %v", scanner.Text(), err)
		}
		lines = append(lines, line)
	}
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want header + 2 records", len(lines))
	}
	if lines[0]["type"] != "header" || lines[1]["type"] != "documents" {
		t.Errorf("lines = %v", lines)
	}
	view := lines[0]["view"].(map[string]any)
	if view["criteria"].(map[string]any)["search"] != "legal" {
		t.Errorf("header view = %v", view)
	}
}

func TestScreen_RoleCheck(t *testing.T) {
	startBackend(t)
	clientCfg.Role = model.RoleStudent

	if _, err := screen("documents"); err != nil {
		t.Errorf("student on documents: %v", err)
	}
	if _, err := screen("contacts"); err == nil {
		t.Error("student opened contacts")
	}
	if _, err := screen("courses"); err == nil {
		t.Error("unknown screen opened")
	}
}

func TestListCriteria(t *testing.T) {
	cmd := &cobra.Command{}
	addListFlags(cmd)
	for k, v := range map[string]string{"search": "login", "page": "3", "sort": "-priority"} {
		if err := cmd.Flags().Set(k, v); err != nil {
			t.Fatal(err)
		}
	}
	_ = cmd.Flags().Set("filter", "status=open")
	_ = cmd.Flags().Set("filter", "priority = high")

	crit, sort, err := listCriteria(cmd, &model.Tickets)
	if err != nil {
		t.Fatal(err)
	}
	if crit.Search != "login" || crit.Page != 3 || crit.Limit != model.Tickets.Limit {
		t.Errorf("criteria = %+v", crit)
	}
	if crit.Filters["status"] != "open" || crit.Filters["priority"] != "high" {
		t.Errorf("filters = %v", crit.Filters)
	}
	if sort.Key != "priority" || !sort.Desc() {
		t.Errorf("sort = %+v", sort)
	}

	bad := &cobra.Command{}
	addListFlags(bad)
	_ = bad.Flags().Set("filter", "status")
	if _, _, err := listCriteria(bad, &model.Tickets); err == nil {
		t.Error("filter without = accepted")
	}
}

func TestExportDestination(t *testing.T) {
	ctx := context.Background()
	var stdout bytes.Buffer

	dest, err := exportDestination(ctx, "-", "", "", &stdout)
	if err != nil {
		t.Fatal(err)
	}
	if err := dest.Write(ctx, export.Payload{Data: []byte("line\n")}); err != nil || stdout.String() != "line\n" {
		t.Errorf("stdout destination wrote %q, %v", stdout.String(), err)
	}

	path := filepath.Join(t.TempDir(), "out.jsonl")
	dest, err = exportDestination(ctx, path, "", "", &stdout)
	if err != nil {
		t.Fatal(err)
	}
	if err := dest.Write(ctx, export.Payload{Data: []byte("{}\n")}); err != nil {
		t.Fatal(err)
	}
	if data, err := os.ReadFile(path); err != nil || string(data) != "{}\n" {
		t.Errorf("file destination wrote %q, %v", data, err)
	}

	for _, target := range []string{"s3://", "s3://bucket", "s3://bucket/"} {
		if _, err := exportDestination(ctx, target, "us-east-1", "", &stdout); err == nil {
			t.Errorf("%q accepted", target)
		}
	}
}

func TestWhoCmd(t *testing.T) {
	startBackend(t)

	out, _, err := run(t, whoCmd, nil)
	if err != nil {
		t.Fatalf("who: %v", err)
	}
	if strings.TrimSpace(out) != "No active users." {
		t.Errorf("empty roster = %q", out)
	}

	if _, _, err := run(t, newListCmd("tickets"), nil); err != nil {
		t.Fatal(err)
	}
	out, _, err = run(t, whoCmd, map[string]string{"screen": "tickets"})
	if err != nil {
		t.Fatalf("who: %v", err)
	}
	if !regexp.MustCompile(`(?m)^tester\s+admin\s+tickets\s+list\s`).MatchString(out) {
		t.Errorf("roster:\n%s", out)
	}

	out, _, err = run(t, whoCmd, map[string]string{"screen": "documents"})
	if err != nil {
		t.Fatalf("who: %v", err)
	}
	if strings.Contains(out, "tester") {
		t.Errorf("tester listed on documents:\n%s", out)
	}
}
