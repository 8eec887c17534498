package export

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestFileDestination(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "snapshot.jsonl")
	dest := NewFileDestination(path)

	for _, body := range []string{"first\n", "second\n"} {
		if err := dest.Write(context.Background(), Payload{Data: []byte(body)}); err != nil {
			t.Fatalf("Write: %v", err)
		}
		got, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("ReadFile: %v", err)
		}
		if string(got) != body {
			t.Errorf("file = %q, want %q", got, body)
		}
	}

	// No temp files are left behind.
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("directory has %d entries, want 1", len(entries))
	}
}

func TestFileDestination_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	path := filepath.Join(t.TempDir(), "x.jsonl")
	if err := NewFileDestination(path).Write(ctx, Payload{Data: []byte("x")}); err == nil {
		t.Fatal("expected error for cancelled context")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("file written despite cancellation: %v", err)
	}
}

func TestWriterDestination(t *testing.T) {
	var buf bytes.Buffer
	if err := (WriterDestination{W: &buf}).Write(context.Background(), Payload{Data: []byte("line\n")}); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "line\n" {
		t.Errorf("buf = %q", buf.String())
	}
}

func TestS3Destination_PutObject(t *testing.T) {
	t.Setenv("AWS_ACCESS_KEY_ID", "test")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "test")
	t.Setenv("AWS_EC2_METADATA_DISABLED", "true")
	t.Setenv("AWS_CONFIG_FILE", filepath.Join(t.TempDir(), "config"))
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", filepath.Join(t.TempDir(), "credentials"))

	var (
		mu     sync.Mutex
		method string
		path   string
		header http.Header
		body   []byte
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		method, path, header, body = r.Method, r.URL.Path, r.Header.Clone(), b
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ctx := context.Background()
	dest, err := NewS3Destination(ctx, "backups", "portal/{resource}/{time}.jsonl", "us-east-1", srv.URL)
	if err != nil {
		t.Fatalf("NewS3Destination: %v", err)
	}
	p := Payload{
		Data:   []byte(`{"type":"header"}` + "\n"),
		Taken:  time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC),
		Counts: map[string]int{"tickets": 2, "feedback": 1},
	}
	if err := dest.Write(ctx, p); err != nil {
		t.Fatalf("Write: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if method != http.MethodPut {
		t.Errorf("method = %s, want PUT", method)
	}
	// Path-style addressing against a custom endpoint.
	if path != "/backups/portal/all/20260301T093000Z.jsonl" {
		t.Errorf("path = %s", path)
	}
	if ct := header.Get("Content-Type"); ct != ContentType {
		t.Errorf("content type = %q", ct)
	}
	if got := header.Get("X-Amz-Meta-Portal-Records"); got != "3" {
		t.Errorf("records metadata = %q, want 3", got)
	}
	if got := header.Get("X-Amz-Meta-Portal-Resources"); got != "feedback,tickets" {
		t.Errorf("resources metadata = %q", got)
	}
	if !strings.Contains(string(body), `{"type":"header"}`) {
		t.Errorf("body = %q", body)
	}
}

func TestS3Destination_ObjectKey(t *testing.T) {
	taken := time.Date(2026, 3, 1, 9, 30, 0, 0, time.FixedZone("CET", 3600))
	for _, tc := range []struct {
		key, view, want string
	}{
		{"snapshot.jsonl", "", "snapshot.jsonl"},
		{"exports/{resource}.jsonl", "", "exports/all.jsonl"},
		{"exports/{resource}.jsonl", "tickets", "exports/tickets.jsonl"},
		{"{resource}/{time}.jsonl", "feedback", "feedback/20260301T083000Z.jsonl"},
	} {
		d := &S3Destination{bucket: "b", key: tc.key}
		if got := d.ObjectKey(Payload{Taken: taken, View: tc.view}); got != tc.want {
			t.Errorf("ObjectKey(%q, view %q) = %q, want %q", tc.key, tc.view, got, tc.want)
		}
	}
}

func TestObjectMetadata_View(t *testing.T) {
	meta := objectMetadata(Payload{Counts: map[string]int{"documents": 4}, View: "documents"})
	if meta[metaView] != "documents" || meta[metaRecords] != "4" || meta[metaResources] != "documents" {
		t.Errorf("metadata = %v", meta)
	}
	if _, ok := objectMetadata(Payload{})[metaView]; ok {
		t.Error("full export labelled with a view")
	}
}

func TestNewS3Destination_RequiresBucket(t *testing.T) {
	if _, err := NewS3Destination(context.Background(), "", "key", "us-east-1", ""); err == nil {
		t.Error("expected error without bucket")
	}
}
