package entity

import "github.com/google/uuid"

// ExtractionRequestMessage is the inbound message from the keyframe.extraction queue.
type ExtractionRequestMessage struct {
	JobID     uuid.UUID `json:"job_id"`
	MediaID   uuid.UUID `json:"media_id"`
	UserID    string    `json:"user_id"`
	VideoKey  string    `json:"video_key"`
	FileSize  int64     `json:"file_size"`
	UserEmail string    `json:"user_email"`
}

// ExtractionStatusMessage is the outbound message published to the keyframe.status queue.
type ExtractionStatusMessage struct {
	JobID          uuid.UUID `json:"job_id"`
	MediaID        uuid.UUID `json:"media_id"`
	UserID         string    `json:"user_id"`
	Status         JobStatus `json:"status"`
	VideoKey       string    `json:"video_key"`
	ShotBoundaries []int     `json:"shot_boundaries,omitempty"`
	Keyframes      []int     `json:"keyframes,omitempty"`
	FrameCount     int       `json:"frame_count,omitempty"`
	ErrorMessage   string    `json:"error_message,omitempty"`
	Attempt        int       `json:"attempt"`
	MaxAttempts    int       `json:"max_attempts"`
}
