package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/alfredjeanlab/portal/internal/export"
	"github.com/spf13/cobra"
)

func newExportCmd(name string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the selected page as JSONL",
		Long: `Write the records of the selected page, with the criteria that produced
them, as JSONL. The output is a file path, an S3 object (s3://bucket/key)
or - for standard output. An S3 key may contain {resource} and {time}, e.g.
s3://backups/portal/{resource}/{time}.jsonl.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := screen(name)
			if err != nil {
				return err
			}
			crit, sort, err := listCriteria(cmd, res)
			if err != nil {
				return err
			}
			output, _ := cmd.Flags().GetString("output")
			region, _ := cmd.Flags().GetString("s3-region")
			endpoint, _ := cmd.Flags().GetString("s3-endpoint")

			ctx, cancel := commandContext()
			defer cancel()

			ctl := newController(res, crit, sort, nil)
			defer ctl.Close()
			if err := ctl.Load(ctx); err != nil {
				return failure(cmd.ErrOrStderr(), err)
			}
			st := ctl.State()

			payload, err := export.Encode(export.FromView(st))
			if err != nil {
				return err
			}
			dest, err := exportDestination(ctx, output, region, endpoint, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			if err := dest.Write(ctx, payload); err != nil {
				return fmt.Errorf("writing export: %w", err)
			}
			if output != "-" {
				fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d %s to %s\n", len(st.Items), plural(len(st.Items), "record"), output)
			}
			return nil
		},
	}
	addListFlags(cmd)
	cmd.Flags().StringP("output", "o", "-", "file path, s3://bucket/key, or - for stdout")
	cmd.Flags().String("s3-region", envOr("PORTAL_EXPORT_S3_REGION", "us-east-1"), "S3 region")
	cmd.Flags().String("s3-endpoint", envOr("PORTAL_EXPORT_S3_ENDPOINT", ""), "custom S3 endpoint (e.g. MinIO)")
	return cmd
}

// exportDestination resolves an --output value.
func exportDestination(ctx context.Context, target, region, endpoint string, stdout io.Writer) (export.Destination, error) {
	switch {
	case target == "" || target == "-":
		return export.WriterDestination{W: stdout}, nil
	case strings.HasPrefix(target, "s3://"):
		bucket, key, _ := strings.Cut(strings.TrimPrefix(target, "s3://"), "/")
		if bucket == "" || key == "" {
			return nil, fmt.Errorf("invalid S3 target %q (expected s3://bucket/key)", target)
		}
		return export.NewS3Destination(ctx, bucket, key, region, endpoint)
	default:
		return export.NewFileDestination(target), nil
	}
}
