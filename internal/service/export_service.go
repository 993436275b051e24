package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"

	"github.com/mmalakhov777/tauhid2-sub002/internal/repository"
)

const exportPageSize = 1000

// ExportService snapshots all user balances to S3-compatible storage as JSON
// lines, one object per run, for the reporting collaborator. Reads only; it
// never touches the write path of the ledger.
type ExportService interface {
	ExportBalances(ctx context.Context) (string, error)
}

type exportService struct {
	repo     repository.BalanceRepository
	s3Client *s3.Client
	bucket   string
	clock    Clock
	logger   zerolog.Logger
}

// NewExportService creates an ExportService with a scoped logger.
func NewExportService(repo repository.BalanceRepository, s3Client *s3.Client, bucket string, clock Clock, logger zerolog.Logger) ExportService {
	return &exportService{
		repo:     repo,
		s3Client: s3Client,
		bucket:   bucket,
		clock:    clock,
		logger:   logger.With().Str("service", "ExportService").Logger(),
	}
}

// ExportBalances writes the snapshot and returns the object key.
func (s *exportService) ExportBalances(ctx context.Context) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)

	total := 0
	for offset := 0; ; offset += exportPageSize {
		page, err := s.repo.ListBalances(ctx, exportPageSize, offset)
		if err != nil {
			return "", fmt.Errorf("listing balances for export: %w", err)
		}
		for _, b := range page {
			if err := enc.Encode(b); err != nil {
				return "", fmt.Errorf("encoding balance for user %s: %w", b.UserID, err)
			}
		}
		total += len(page)
		if len(page) < exportPageSize {
			break
		}
	}

	key := fmt.Sprintf("exports/balances/%s.jsonl", s.clock.Now().UTC().Format("2006-01-02T15-04-05"))
	_, err := s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("application/x-ndjson"),
	})
	if err != nil {
		return "", fmt.Errorf("uploading balance export %s: %w", key, err)
	}

	s.logger.Info().Str("key", key).Int("balances", total).Msg("Balance snapshot exported")
	return key, nil
}
