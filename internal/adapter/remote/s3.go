package remote

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	s3manager "github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/semmidev/dailybackup/internal/domain"
)

// S3Dialer opens sessions against an S3 bucket. Directories do not exist in
// S3, so every path is treated as a key prefix and Chdir always succeeds.
type S3Dialer struct{}

func NewS3Dialer() *S3Dialer {
	return &S3Dialer{}
}

func (d *S3Dialer) Dial(ctx context.Context, ep domain.Endpoint) (domain.RemoteSession, error) {
	s := ep.Settings

	opts := []func(*config.LoadOptions) error{config.WithRegion(s.Region)}
	if s.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(s.AccessKey, ep.Credential, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if s.Endpoint != "" {
			o.BaseEndpoint = aws.String(s.Endpoint)
			o.UsePathStyle = true
		}
	})

	probeCtx := ctx
	if ep.Timeout > 0 {
		var cancel context.CancelFunc
		probeCtx, cancel = context.WithTimeout(ctx, ep.Timeout)
		defer cancel()
	}
	if _, err := client.HeadBucket(probeCtx, &s3.HeadBucketInput{Bucket: aws.String(s.Bucket)}); err != nil {
		return nil, fmt.Errorf("failed to reach bucket %s: %w", s.Bucket, err)
	}

	return &s3Session{
		client:   client,
		uploader: s3manager.NewUploader(client),
		bucket:   s.Bucket,
	}, nil
}

type s3Session struct {
	client   *s3.Client
	uploader *s3manager.Uploader
	bucket   string
}

func (s *s3Session) Chdir(ctx context.Context, p string) error {
	return nil
}

func (s *s3Session) Mkdir(ctx context.Context, p string) error {
	return nil
}

func (s *s3Session) Stat(ctx context.Context, p string) (domain.RemoteFile, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: &s.bucket,
		Key:    aws.String(objectKey(p)),
	})
	if err != nil {
		if isS3NotFound(err) {
			return domain.RemoteFile{}, fmt.Errorf("%s: %w", p, fs.ErrNotExist)
		}
		return domain.RemoteFile{}, fmt.Errorf("failed to stat S3 object: %w", err)
	}

	mod := aws.ToTime(out.LastModified)
	return domain.RemoteFile{
		Name:       path.Base(p),
		Size:       aws.ToInt64(out.ContentLength),
		IsRegular:  true,
		ModTime:    mod,
		AccessTime: mod,
	}, nil
}

// ReadDir lists the objects directly below p. Deeper prefixes are reported
// as non-regular entries.
func (s *s3Session) ReadDir(ctx context.Context, p string) ([]domain.RemoteFile, error) {
	prefix := objectKey(p)
	if prefix != "" {
		prefix += "/"
	}

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket:    &s.bucket,
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	})

	var files []domain.RemoteFile
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list S3 objects: %w", err)
		}

		for _, obj := range page.Contents {
			name := strings.TrimPrefix(aws.ToString(obj.Key), prefix)
			if name == "" {
				continue
			}
			mod := aws.ToTime(obj.LastModified)
			files = append(files, domain.RemoteFile{
				Name:       name,
				Size:       aws.ToInt64(obj.Size),
				IsRegular:  true,
				ModTime:    mod,
				AccessTime: mod,
			})
		}
		for _, cp := range page.CommonPrefixes {
			name := strings.TrimSuffix(strings.TrimPrefix(aws.ToString(cp.Prefix), prefix), "/")
			files = append(files, domain.RemoteFile{Name: name})
		}
	}

	return files, nil
}

func (s *s3Session) Put(ctx context.Context, localPath, remotePath string) error {
	file, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	_, err = s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: &s.bucket,
		Key:    aws.String(objectKey(remotePath)),
		Body:   file,
	})
	if err != nil {
		return fmt.Errorf("failed to upload to S3: %w", err)
	}
	return nil
}

func (s *s3Session) Remove(ctx context.Context, p string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: &s.bucket,
		Key:    aws.String(objectKey(p)),
	})
	if err != nil {
		return fmt.Errorf("failed to delete from S3: %w", err)
	}
	return nil
}

func (s *s3Session) Close() error {
	return nil
}

func objectKey(p string) string {
	return strings.TrimPrefix(path.Clean("/"+p), "/")
}

func isS3NotFound(err error) bool {
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}
	return false
}
