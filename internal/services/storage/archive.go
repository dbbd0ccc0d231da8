package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/phambaophuc/uploads-im-client/pkg/utils"
)

// Archive copies an original file into the Supabase bucket and returns its
// public URL. It returns "" without error when archiving is disabled.
func (s *StorageService) Archive(ctx context.Context, content io.Reader, filename string) (string, error) {
	if s.sbClient == nil {
		return "", nil
	}

	key := utils.GenerateStorageKey(filename)

	_, err := s.sbClient.UploadFile(s.bucket, key, content)
	if err != nil {
		return "", fmt.Errorf("failed to upload to supabase: %w", err)
	}

	publicURL := s.sbClient.GetPublicUrl(s.bucket, key)
	return publicURL.SignedURL, nil
}
