package docstore

import (
	"bytes"
	"context"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dealdesk/internal/config"
	"github.com/sells-group/dealdesk/internal/intake"
	"github.com/sells-group/dealdesk/internal/remote"
)

// PutObjectAPI is the subset of the S3 client used for uploads.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3 stores documents in a bucket under <prefix>/<folder>/<file>.
type S3 struct {
	client PutObjectAPI
	bucket string
	prefix string
}

// NewS3 creates an S3 store around an existing client.
func NewS3(client PutObjectAPI, bucket, prefix string) *S3 {
	return &S3{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

// NewS3FromConfig loads AWS credentials from the default chain. A custom
// endpoint switches to path-style addressing for S3-compatible stores.
func NewS3FromConfig(ctx context.Context, cfg config.DocstoreConfig) (*S3, error) {
	if cfg.Bucket == "" {
		return nil, eris.New("docstore: s3 bucket is required")
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, eris.Wrap(err, "docstore: load aws config")
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewS3(client, cfg.Bucket, cfg.Prefix), nil
}

// Upload puts every non-empty file under one folder prefix. A reused
// folder ref may be given either as a bare folder or as an s3:// URI.
func (s *S3) Upload(ctx context.Context, req intake.UploadRequest) (*intake.UploadResult, error) {
	req.FolderRef = s.folderFromRef(req.FolderRef)
	folder := folderFor(req)

	entries, warnings := prepare(req.Files)
	res := &intake.UploadResult{FolderRef: s.uri(s.key(folder, "")), Warnings: warnings}
	for _, e := range entries {
		key := s.key(folder, e.name)
		input := &s3.PutObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
			Body:   bytes.NewReader(e.file.Data),
		}
		if e.file.MimeType != "" {
			input.ContentType = aws.String(e.file.MimeType)
		}
		if _, err := s.client.PutObject(ctx, input); err != nil {
			return nil, remote.Wrap("s3", "put "+key, err)
		}
		res.Objects = append(res.Objects, intake.StoredObject{
			Name:     e.name,
			Ref:      s.uri(key),
			Category: e.file.Category,
			Size:     len(e.file.Data),
		})
	}

	zap.L().Debug("docstore: uploaded to s3",
		zap.String("bucket", s.bucket),
		zap.String("folder", folder),
		zap.Int("files", len(res.Objects)),
	)
	return res, nil
}

func (s *S3) key(folder, name string) string {
	parts := make([]string, 0, 3)
	if s.prefix != "" {
		parts = append(parts, s.prefix)
	}
	parts = append(parts, folder)
	if name != "" {
		parts = append(parts, name)
	}
	return strings.Join(parts, "/")
}

func (s *S3) uri(key string) string {
	return "s3://" + s.bucket + "/" + key
}

// folderFromRef strips the bucket URI and prefix from a previously
// returned folder ref.
func (s *S3) folderFromRef(ref string) string {
	ref = strings.TrimPrefix(ref, "s3://"+s.bucket+"/")
	if s.prefix != "" {
		ref = strings.TrimPrefix(ref, s.prefix+"/")
	}
	return strings.Trim(ref, "/")
}
