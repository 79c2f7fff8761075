// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package storage archives pushed drafts to S3-compatible object storage.
// It wraps the AWS SDK v2 and uses path-style access so it also works with
// CEPH and MinIO style endpoints.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"themedesk/internal/metrics"
	"themedesk/internal/models"
	"themedesk/internal/slug"
)

// Config holds the endpoint and credentials of the archive bucket.
type Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
}

// Client writes archive objects to one bucket.
type Client struct {
	s3     *s3.Client
	bucket string
}

// New creates an archive client with path-style addressing. Returns
// (nil, nil) if the endpoint, credentials or bucket are empty, allowing the
// app to start without an archive.
func New(cfg Config) (*Client, error) {
	if cfg.Endpoint == "" || cfg.AccessKey == "" || cfg.SecretKey == "" || cfg.Bucket == "" {
		return nil, nil
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}

	s3Client := s3.New(s3.Options{
		Region:       cfg.Region,
		BaseEndpoint: aws.String(strings.TrimRight(cfg.Endpoint, "/")),
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	})

	return &Client{s3: s3Client, bucket: cfg.Bucket}, nil
}

// Archive stores the pushed copy of t as a text object and logs its key.
func (c *Client) Archive(ctx context.Context, t models.Theme, ref models.CampaignRef) error {
	key, err := ArchiveKey(t)
	if err != nil {
		return err
	}

	start := time.Now()
	err = c.upload(ctx, key, "text/plain; charset=utf-8", []byte(ArchiveBody(t, ref)))
	metrics.ObserveCall("s3", "archive", start, err)
	if err != nil {
		return err
	}

	slog.Info("draft archived", "bucket", c.bucket, "key", key, "campaign_id", ref.ID)
	return nil
}

func (c *Client) upload(ctx context.Context, key, contentType string, body []byte) error {
	_, err := c.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(c.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("s3 upload %s/%s: %w", c.bucket, key, err)
	}
	return nil
}

// ArchiveKey returns archive/<yyyy-mm>/<segment>/<subject>.txt for t.
func ArchiveKey(t models.Theme) (string, error) {
	month, err := models.ParseMonthLabel(t.Month)
	if err != nil {
		return "", fmt.Errorf("archive key: %w", err)
	}
	subject := slug.Generate(t.Subject)
	if subject == "" {
		subject = t.ID
	}
	return fmt.Sprintf("archive/%s/%s/%s.txt", month.Format("2006-01"), t.Segment.Slug(), subject), nil
}

// ArchiveBody renders the archived text: a short header block, a blank
// line, then the draft exactly as pushed.
func ArchiveBody(t models.Theme, ref models.CampaignRef) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Subject: %s\n", t.Subject)
	fmt.Fprintf(&b, "Segment: %s\n", t.Segment)
	fmt.Fprintf(&b, "Month: %s\n", t.Month)
	fmt.Fprintf(&b, "Campaign: %s\n", ref.ID)
	b.WriteString("\n")
	b.WriteString(t.EmailDraft)
	return b.String()
}
