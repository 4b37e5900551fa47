// Package storage uploads attachment blobs to the object store and
// turns stored metadata into temporary signed links.
package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	gcs "cloud.google.com/go/storage"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/formflowhq/formflow/internal/apperr"
)

// AttachmentStore is the Cloud Storage-backed attachment coordinator.
type AttachmentStore struct {
	client *gcs.Client
	bucket string
}

func NewAttachmentStore(client *gcs.Client, bucket string) *AttachmentStore {
	return &AttachmentStore{client: client, bucket: bucket}
}

// UploadAttachments uploads every blob concurrently and returns the
// attachment-id to storage-key mapping. The batch is all-or-nothing:
// if any upload fails the whole call fails and the caller must not
// persist a submission referencing any of the keys.
func (s *AttachmentStore) UploadAttachments(ctx context.Context, formID string, blobs map[string][]byte) (map[string]string, error) {
	eg, gctx := errgroup.WithContext(ctx)

	var mu sync.Mutex
	meta := make(map[string]string, len(blobs))

	for attachmentID, blob := range blobs {
		attachmentID, blob := attachmentID, blob
		key := fmt.Sprintf("%s/%s", formID, uuid.NewString())
		eg.Go(func() error {
			if err := s.upload(gctx, key, blob); err != nil {
				return fmt.Errorf("attachment %s: %w", attachmentID, err)
			}
			mu.Lock()
			meta[attachmentID] = key
			mu.Unlock()
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, apperr.Storage(err)
	}
	return meta, nil
}

func (s *AttachmentStore) upload(ctx context.Context, key string, blob []byte) error {
	w := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	if _, err := w.Write(blob); err != nil {
		_ = w.Close()
		return fmt.Errorf("write object %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize object %s: %w", key, err)
	}
	return nil
}

// SignedURLs converts stored attachment metadata into time-limited
// download links. Callers cap expiry to the respondent session's
// remaining lifetime so a link never outlives the session that
// produced it.
func (s *AttachmentStore) SignedURLs(meta map[string]string, expiry time.Duration) (map[string]string, error) {
	urls := make(map[string]string, len(meta))
	for attachmentID, key := range meta {
		u, err := s.client.Bucket(s.bucket).SignedURL(key, &gcs.SignedURLOptions{
			Scheme:  gcs.SigningSchemeV4,
			Method:  "GET",
			Expires: time.Now().Add(expiry),
		})
		if err != nil {
			return nil, apperr.Storage(fmt.Errorf("sign url for %s: %w", key, err))
		}
		urls[attachmentID] = u
	}
	return urls, nil
}
