package aws

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ReportArchiver stores JSON documents under a bucket prefix.
type ReportArchiver struct {
	uploader *manager.Uploader
	bucket   string
	prefix   string
}

func NewReportArchiver(cfg sdkaws.Config, bucket, prefix string) *ReportArchiver {
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		// Path-style addressing for custom endpoints such as LocalStack.
		o.UsePathStyle = cfg.BaseEndpoint != nil
	})
	return &ReportArchiver{
		uploader: manager.NewUploader(client),
		bucket:   bucket,
		prefix:   strings.Trim(prefix, "/"),
	}
}

// PutJSON writes body to <prefix>/<key>.
func (a *ReportArchiver) PutJSON(ctx context.Context, key string, body []byte) error {
	objectKey := key
	if a.prefix != "" {
		objectKey = a.prefix + "/" + key
	}

	_, err := a.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      sdkaws.String(a.bucket),
		Key:         sdkaws.String(objectKey),
		Body:        bytes.NewReader(body),
		ContentType: sdkaws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to put s3://%s/%s: %w", a.bucket, objectKey, err)
	}
	return nil
}
