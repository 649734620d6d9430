// Package storage archives synthesized audio clips in Supabase Storage.
package storage

import (
	"bytes"
	"fmt"

	storage_go "github.com/supabase-community/storage-go"
	"github.com/supabase-community/supabase-go"
)

type Config struct {
	URL            string
	ServiceRoleKey string
	Bucket         string
}

type Supabase struct {
	client *supabase.Client
	bucket string
}

func New(config Config) (*Supabase, error) {
	if config.URL == "" || config.ServiceRoleKey == "" {
		return nil, fmt.Errorf("supabase: URL and service role key required")
	}
	client, err := supabase.NewClient(config.URL, config.ServiceRoleKey, &supabase.ClientOptions{})
	if err != nil {
		return nil, fmt.Errorf("supabase: create client: %w", err)
	}
	bucket := config.Bucket
	if bucket == "" {
		bucket = "tts-audio"
	}
	return &Supabase{client: client, bucket: bucket}, nil
}

func (s *Supabase) Upload(key, contentType string, data []byte) error {
	_, err := s.client.Storage.UploadFile(s.bucket, key, bytes.NewReader(data), storage_go.FileOptions{
		ContentType: &contentType,
	})
	if err != nil {
		return fmt.Errorf("supabase: upload %s: %w", key, err)
	}
	return nil
}

// Health verifies the storage API is reachable and returns the number of
// buckets visible to the service role.
func (s *Supabase) Health() (int, error) {
	buckets, err := s.client.Storage.ListBuckets()
	if err != nil {
		return 0, fmt.Errorf("supabase: list buckets: %w", err)
	}
	return len(buckets), nil
}
