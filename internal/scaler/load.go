package scaler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
)

// ObjectGetter is the subset of the S3 API used to fetch parameter files.
type ObjectGetter interface {
	GetObjectWithContext(ctx aws.Context, input *s3.GetObjectInput, opts ...request.Option) (*s3.GetObjectOutput, error)
}

// Loader reads Params from a local path or an s3://bucket/key URI.
type Loader struct {
	// S3 is used for s3:// sources. When nil, a client is created from the
	// default AWS credential chain on first use.
	S3 ObjectGetter

	// Region for the lazily created S3 client.
	Region string
}

// Load fetches and decodes the parameters at source.
func (l *Loader) Load(ctx context.Context, source string) (Params, error) {
	var (
		data []byte
		err  error
	)
	if strings.HasPrefix(source, "s3://") {
		data, err = l.fetchS3(ctx, source)
	} else {
		data, err = os.ReadFile(source)
	}
	if err != nil {
		return Params{}, fmt.Errorf("read scaler params %q: %w", source, err)
	}

	var p Params
	if err := json.Unmarshal(data, &p); err != nil {
		return Params{}, fmt.Errorf("parse scaler params %q: %w", source, err)
	}
	if err := p.Validate(); err != nil {
		return Params{}, fmt.Errorf("scaler params %q: %w", source, err)
	}
	return p, nil
}

func (l *Loader) fetchS3(ctx context.Context, source string) ([]byte, error) {
	bucket, key, err := parseS3URI(source)
	if err != nil {
		return nil, err
	}

	if l.S3 == nil {
		sess, err := session.NewSession(&aws.Config{Region: aws.String(l.Region)})
		if err != nil {
			return nil, fmt.Errorf("create aws session: %w", err)
		}
		l.S3 = s3.New(sess)
	}

	out, err := l.S3.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("get s3 object: %w", err)
	}
	defer out.Body.Close()

	return io.ReadAll(out.Body)
}

func parseS3URI(source string) (bucket, key string, err error) {
	u, err := url.Parse(source)
	if err != nil {
		return "", "", fmt.Errorf("parse s3 uri: %w", err)
	}
	bucket = u.Host
	key = strings.TrimPrefix(u.Path, "/")
	if bucket == "" || key == "" {
		return "", "", fmt.Errorf("s3 uri %q must be s3://bucket/key", source)
	}
	return bucket, key, nil
}
