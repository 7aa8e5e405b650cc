// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Media represents an image uploaded to S3-compatible object storage.
// Metadata is stored in PostgreSQL; the file itself lives in the bucket.
type Media struct {
	ID           uuid.UUID `json:"id"`
	Filename     string    `json:"filename"`
	OriginalName string    `json:"originalName"`
	ContentType  string    `json:"contentType"`
	SizeBytes    int64     `json:"sizeBytes"`
	Bucket       string    `json:"-"`
	S3Key        string    `json:"-"`
	ThumbS3Key   *string   `json:"-"`
	UploaderID   uuid.UUID `json:"uploaderId"`
	CreatedAt    time.Time `json:"createdAt"`

	// Resolved by the handler from the storage client.
	URL      string `json:"url"`
	ThumbURL string `json:"thumbUrl,omitempty"`
}

// ObjectKeys lists every bucket object belonging to the image.
func (m *Media) ObjectKeys() []string {
	keys := []string{m.S3Key}
	if m.ThumbS3Key != nil {
		keys = append(keys, *m.ThumbS3Key)
	}
	return keys
}

// HumanSize formats SizeBytes for logs: bytes below 1 KiB, whole KB below
// 1 MiB, one decimal above.
func (m *Media) HumanSize() string {
	switch size := float64(m.SizeBytes); {
	case size >= 1<<20:
		return fmt.Sprintf("%.1f MB", size/(1<<20))
	case size >= 1<<10:
		return fmt.Sprintf("%.0f KB", size/(1<<10))
	}
	return fmt.Sprintf("%d B", m.SizeBytes)
}
