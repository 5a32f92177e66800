package model

import "time"

type ContentID string

// Content is the slice of an uploaded document that the scheduler touches:
// the text recovered by OCR.
type Content struct {
	ID             ContentID  `json:"id" firestore:"id"`
	OCRText        string     `json:"ocr_text,omitempty" firestore:"ocr_text"`
	OCRProcessedAt *time.Time `json:"ocr_processed_at,omitempty" firestore:"ocr_processed_at"`
	UpdatedAt      time.Time  `json:"updated_at" firestore:"updated_at"`
}

// OCRJob lives only in the in-memory queue
type OCRJob struct {
	Path      string
	ContentID ContentID
	UserID    LearnerID
}
