package queue

import (
	"time"

	"github.com/google/uuid"
	"github.com/phambaophuc/uploads-im-client/pkg/uploadsim"
)

// UploadedEvent is published once per successful upload.
type UploadedEvent struct {
	ID         string                   `json:"id"`
	Source     string                   `json:"source"`
	Image      *uploadsim.UploadedImage `json:"image"`
	ArchiveURL string                   `json:"archive_url,omitempty"`
	Cached     bool                     `json:"cached"`
	UploadedAt time.Time                `json:"uploaded_at"`
}

func NewUploadedEvent(source string, img *uploadsim.UploadedImage) *UploadedEvent {
	return &UploadedEvent{
		ID:         uuid.New().String(),
		Source:     source,
		Image:      img,
		UploadedAt: time.Now().UTC(),
	}
}
