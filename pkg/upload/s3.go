package upload

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
)

// S3Signer mints presigned PUT URLs against an S3 bucket. It implements
// TargetSigner.
type S3Signer struct {
	s3     *s3.S3
	bucket string
	expiry time.Duration
}

// NewS3Signer builds a signer for the given bucket and region.
func NewS3Signer(bucket, region string) (*S3Signer, error) {
	hc := http.Client{
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   30 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:          20,
			IdleConnTimeout:       90 * time.Second,
			MaxIdleConnsPerHost:   20,
			TLSHandshakeTimeout:   3 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}
	sess, err := session.NewSession(&aws.Config{
		Region:     aws.String(region),
		MaxRetries: aws.Int(1),
		HTTPClient: &hc,
	})
	if err != nil {
		return nil, fmt.Errorf("upload: create aws session: %w", err)
	}
	return &S3Signer{
		s3:     s3.New(sess),
		bucket: bucket,
		expiry: 15 * time.Minute,
	}, nil
}

// SignTarget presigns a PUT of the given key and content type.
func (s *S3Signer) SignTarget(_ context.Context, key, contentType string) (Target, error) {
	req, _ := s.s3.PutObjectRequest(&s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	})
	url, err := req.Presign(s.expiry)
	if err != nil {
		return Target{}, fmt.Errorf("upload: presign put: %w", err)
	}
	return Target{Key: key, URL: url}, nil
}

// HealthCheck verifies the bucket is reachable.
func (s *S3Signer) HealthCheck() error {
	_, err := s.s3.HeadBucket(&s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err != nil {
		return fmt.Errorf("upload: bucket %s unreachable: %w", s.bucket, err)
	}
	return nil
}
