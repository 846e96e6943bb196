package models

import "time"

// FileRecord is a document a user uploaded or wrote in the files page.
type FileRecord struct {
	ID          string       `json:"id"`
	UserID      string       `json:"user_id"`
	Filename    string       `json:"filename"`
	Parsed      bool         `json:"parsed"`
	ParseResult *ParseResult `json:"parse_result,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
}

type ParseResult struct {
	Text string `json:"text"`
}

// ParseDocumentJob is the queue payload for document.parse.
type ParseDocumentJob struct {
	UserID   string `json:"user_id"`
	Filename string `json:"filename"`
}

const JobParseDocument = "document.parse"
