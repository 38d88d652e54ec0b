// Package audit ships the append-only wallet ledger to S3 as daily JSON
// Lines files so the balances can be rebuilt outside the primary store.
package audit

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/ignite/affiliate-ledger/internal/domain"
	"github.com/ignite/affiliate-ledger/internal/pkg/logger"
)

// EntrySource streams ledger entries by creation time.
type EntrySource interface {
	EntriesBetween(ctx context.Context, from, to time.Time, fn func(domain.WalletTransaction) error) error
}

// Uploader is the subset of the S3 client the exporter needs.
type Uploader interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Exporter writes one gzipped JSON Lines object per UTC day.
type Exporter struct {
	source EntrySource
	client Uploader
	bucket string
	prefix string
	now    func() time.Time
}

func NewExporter(source EntrySource, client Uploader, bucket, prefix string) *Exporter {
	return &Exporter{
		source: source,
		client: client,
		bucket: bucket,
		prefix: prefix,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Result describes one export run.
type Result struct {
	Key     string `json:"key"`
	Day     string `json:"day"`
	Entries int    `json:"entries"`
}

// Key is the object key for day, e.g. ledger-exports/2026/05/01/wallet_transactions.jsonl.gz.
func (e *Exporter) Key(day time.Time) string {
	return path.Join(e.prefix, day.Format("2006/01/02"), "wallet_transactions.jsonl.gz")
}

// ExportPreviousDay exports yesterday (UTC).
func (e *Exporter) ExportPreviousDay(ctx context.Context) (*Result, error) {
	return e.ExportDay(ctx, e.now().AddDate(0, 0, -1))
}

// ExportDay uploads every entry created on day's UTC date. Re-running a
// day overwrites the object.
func (e *Exporter) ExportDay(ctx context.Context, day time.Time) (*Result, error) {
	day = day.UTC()
	from := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 1)

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	enc := json.NewEncoder(zw)
	count := 0
	err := e.source.EntriesBetween(ctx, from, to, func(tx domain.WalletTransaction) error {
		count++
		return enc.Encode(tx)
	})
	if err != nil {
		return nil, fmt.Errorf("read ledger for %s: %w", from.Format(time.DateOnly), err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("compress export: %w", err)
	}

	key := e.Key(from)
	_, err = e.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:          aws.String(e.bucket),
		Key:             aws.String(key),
		Body:            bytes.NewReader(buf.Bytes()),
		ContentType:     aws.String("application/x-ndjson"),
		ContentEncoding: aws.String("gzip"),
		Metadata: map[string]string{
			"entries": strconv.Itoa(count),
			"day":     from.Format(time.DateOnly),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("upload %s: %w", key, err)
	}

	logger.Info("[Audit] ledger export uploaded", "bucket", e.bucket, "key", key, "entries", count)
	return &Result{Key: key, Day: from.Format(time.DateOnly), Entries: count}, nil
}
