package export

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Destination receives encoded snapshots: a file, an S3 bucket or stdout.
type Destination interface {
	Write(ctx context.Context, p Payload) error
}

// FileDestination writes the payload to a local file. The file is replaced
// atomically so readers never see a partial export.
type FileDestination struct {
	path string
}

func NewFileDestination(path string) *FileDestination {
	return &FileDestination{path: path}
}

func (d *FileDestination) Write(ctx context.Context, p Payload) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dir := filepath.Dir(d.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(d.path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(p.Data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", d.path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", d.path, err)
	}
	if err := os.Rename(tmp.Name(), d.path); err != nil {
		return fmt.Errorf("rename %s: %w", d.path, err)
	}
	return nil
}

// WriterDestination copies the payload to an io.Writer such as stdout.
type WriterDestination struct {
	W io.Writer
}

func (d WriterDestination) Write(_ context.Context, p Payload) error {
	_, err := d.W.Write(p.Data)
	return err
}
