package models

import "time"

// QuestionType defines how an assignment question is delivered.
type QuestionType string

const (
	QuestionTypeText QuestionType = "TEXT"
	QuestionTypePDF  QuestionType = "PDF"
)

// Assignment represents a persisted assignment row.
type Assignment struct {
	ID              string       `db:"id" json:"id"`
	OfferingID      string       `db:"offering_id" json:"offering_id"`
	Title           string       `db:"title" json:"title"`
	QuestionType    QuestionType `db:"question_type" json:"question_type"`
	QuestionText    *string      `db:"question_text" json:"question_text,omitempty"`
	QuestionFileURL *string      `db:"question_file_url" json:"question_file_url,omitempty"`
	DueAt           *time.Time   `db:"due_at" json:"due_at,omitempty"`
	CreatedAt       time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time    `db:"updated_at" json:"updated_at"`
}

// AssignmentFilter captures filtering criteria for listing assignments.
type AssignmentFilter struct {
	OfferingID string
	Page       int
	PageSize   int
}
