package export

import (
	"bytes"
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ContentType is the media type of JSONL exports.
const ContentType = "application/x-ndjson"

// S3 object metadata describing a snapshot.
const (
	metaRecords   = "portal-records"
	metaResources = "portal-resources"
	metaView      = "portal-view"
)

// S3Destination uploads snapshots to an S3-compatible bucket. The key may
// contain {resource}, replaced by the exported screen's collection or "all",
// and {time}, replaced by the snapshot time, so that scheduled exports can
// keep a history instead of overwriting one object.
type S3Destination struct {
	client *s3.Client
	bucket string
	key    string
}

// NewS3Destination creates an S3 destination. A non-empty endpoint selects
// path-style addressing for MinIO and similar servers.
func NewS3Destination(ctx context.Context, bucket, key, region, endpoint string) (*S3Destination, error) {
	if bucket == "" || key == "" {
		return nil, fmt.Errorf("s3 destination needs a bucket and key")
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})
	return &S3Destination{client: client, bucket: bucket, key: key}, nil
}

// ObjectKey returns the key p is stored under.
func (d *S3Destination) ObjectKey(p Payload) string {
	resource := p.View
	if resource == "" {
		resource = "all"
	}
	return strings.NewReplacer(
		"{resource}", resource,
		"{time}", p.Taken.UTC().Format("20060102T150405Z"),
	).Replace(d.key)
}

func (d *S3Destination) Write(ctx context.Context, p Payload) error {
	key := d.ObjectKey(p)
	_, err := d.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(d.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(p.Data),
		ContentType: aws.String(ContentType),
		Metadata:    objectMetadata(p),
	})
	if err != nil {
		return fmt.Errorf("s3 put object %s/%s: %w", d.bucket, key, err)
	}
	return nil
}

func objectMetadata(p Payload) map[string]string {
	total := 0
	names := make([]string, 0, len(p.Counts))
	for name, n := range p.Counts {
		total += n
		names = append(names, name)
	}
	slices.Sort(names)
	meta := map[string]string{
		metaRecords:   strconv.Itoa(total),
		metaResources: strings.Join(names, ","),
	}
	if p.View != "" {
		meta[metaView] = p.View
	}
	return meta
}
