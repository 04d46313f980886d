package connector

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Entity is a file or directory record.
type Entity struct {
	Name string `json:"name"`
	// Dir and DirID both name the parent directory; nodes send one or the other.
	Dir          *uuid.UUID `json:"dir,omitempty"`
	DirID        *uuid.UUID `json:"dir_id,omitempty"`
	Size         uint64     `json:"size"`
	IsDir        bool       `json:"is_dir"`
	Created      time.Time  `json:"created"`
	LastModified time.Time  `json:"last_modified"`
}

// ParentID returns the parent directory id, preferring DirID over Dir.
// It reports false for entities at the bucket root.
func (e Entity) ParentID() (uuid.UUID, bool) {
	switch {
	case e.DirID != nil:
		return *e.DirID, true
	case e.Dir != nil:
		return *e.Dir, true
	default:
		return uuid.Nil, false
	}
}

// EntityList holds entities in the order the node returned them.
type EntityList struct {
	Entities []Entity `json:"entities"`
}

// BucketDto describes a bucket.
type BucketDto struct {
	AppID        uuid.UUID `json:"app_id"`
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Encrypted    bool      `json:"encrypted"`
	AtomicUpload bool      `json:"atomic_upload"`
	Quota        int64     `json:"quota"`
	FileCount    int64     `json:"file_count"`
	SpaceTaken   int64     `json:"space_taken"`
	Created      time.Time `json:"created"`
	LastModified time.Time `json:"last_modified"`
}

// AppDto describes an application.
type AppDto struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Quota        int64     `json:"quota"`
	Created      time.Time `json:"created"`
	LastModified time.Time `json:"last_modified"`
}

// UploadSessionStartResponse is returned when a resumable upload starts.
type UploadSessionStartResponse struct {
	// Code identifies the session in put requests.
	Code string `json:"code"`
	// Validity is the number of seconds the node keeps an inactive session.
	Validity uint32 `json:"validity"`
	// Uploaded is the number of bytes already stored; nonzero only when
	// the node reused an earlier session for the same upload.
	Uploaded uint64 `json:"uploaded"`
}

// SessionID parses Code as a UUID.
func (s *UploadSessionStartResponse) SessionID() (uuid.UUID, error) {
	id, err := uuid.Parse(s.Code)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %w", ErrInvalidSessionCode, err)
	}
	return id, nil
}

// ValidFor converts Validity to a duration.
func (s *UploadSessionStartResponse) ValidFor() time.Duration {
	return time.Duration(s.Validity) * time.Second
}

// UploadSessionResumeResponse carries the offset an interrupted upload
// must continue from.
type UploadSessionResumeResponse struct {
	UploadedSize uint64 `json:"uploaded_size"`
}

// RenameEntityRequest is the body of a rename.
type RenameEntityRequest struct {
	To string `json:"to" validate:"required"`
}

// UploadSessionRequest is the body of a session start.
type UploadSessionRequest struct {
	Size uint64 `json:"size"`
}

// UploadSessionResumeRequest is the body of a session resume.
type UploadSessionResumeRequest struct {
	SessionID uuid.UUID `json:"session_id" validate:"required"`
}

// UploadSessionPutRequest is the metadata part of a session put.
type UploadSessionPutRequest struct {
	SessionID uuid.UUID `json:"session_id" validate:"required"`
}

// DeleteDirectoryRequest is the optional body of a directory delete.
type DeleteDirectoryRequest struct {
	Recursive bool `json:"recursive"`
}
