package sink

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/siqueiraa/WhiskFlow/pkg/config"
)

const uploadTimeout = 60 * time.Second

// S3 batches events into newline-delimited JSON objects and uploads one
// object per flush. Events inside one object keep emit order.
type S3 struct {
	cfg      config.S3Config
	uploader *manager.Uploader

	mu      sync.Mutex
	buf     bytes.Buffer
	pending int

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewS3 creates the archive sink and starts its flush loop.
func NewS3(ctx context.Context, cfg config.S3Config) (*S3, error) {
	opts := []func(*awsConfig.LoadOptions) error{
		awsConfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, awsConfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := awsConfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	s := &S3{
		cfg:      cfg,
		uploader: manager.NewUploader(client),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	go s.flushLoop()
	return s, nil
}

// Emit appends one event to the current batch.
func (s *S3) Emit(_ context.Context, event map[string]any) error {
	payload, err := jsonFast.Marshal(event)
	if err != nil {
		return fmt.Errorf("json marshal failed: %w", err)
	}

	s.mu.Lock()
	s.buf.Write(payload)
	s.buf.WriteByte('\n')
	s.pending++
	full := s.pending >= s.cfg.MaxBatch
	s.mu.Unlock()

	if full {
		s.Flush()
	}
	return nil
}

func (s *S3) flushLoop() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.Flush()
		}
	}
}

// Flush uploads the current batch, if any, as one NDJSON object.
func (s *S3) Flush() {
	s.mu.Lock()
	if s.pending == 0 {
		s.mu.Unlock()
		return
	}
	body := make([]byte, s.buf.Len())
	copy(body, s.buf.Bytes())
	count := s.pending
	s.buf.Reset()
	s.pending = 0
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), uploadTimeout)
	defer cancel()

	key := s.objectKey(time.Now())
	res, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(body),
	})
	if err != nil {
		log.Printf("[S3] upload of %d event(s) failed: %v", count, err)
		return
	}
	log.Printf("[S3] uploaded %d event(s) to %s", count, res.Location)
}

// objectKey names one archive object: <prefix>events-<unix-ms>.ndjson
func (s *S3) objectKey(now time.Time) string {
	return fmt.Sprintf("%sevents-%d.ndjson", s.cfg.Prefix, now.UnixMilli())
}

// Close stops the flush loop and uploads whatever is buffered.
func (s *S3) Close() error {
	close(s.stopCh)
	<-s.doneCh
	s.Flush()
	return nil
}
