package models

import "time"

// SubmissionStatus tracks a submission through its lifecycle.
type SubmissionStatus string

const (
	// SubmissionPending marks a row reopened by a teacher for one more attempt.
	SubmissionPending SubmissionStatus = "PENDING"
	// SubmissionSubmitted marks work awaiting teacher review.
	SubmissionSubmitted SubmissionStatus = "SUBMITTED"
	// SubmissionGraded marks work that received a score.
	SubmissionGraded SubmissionStatus = "GRADED"
	// SubmissionRejectedAI marks work flagged as AI-generated.
	SubmissionRejectedAI SubmissionStatus = "REJECTED_AI"
)

// MaxAttempts is the ceiling on submission attempts per assignment and student.
const MaxAttempts = 3

// Submission represents one student's answer to an assignment.
type Submission struct {
	ID            string           `db:"id" json:"id"`
	AssignmentID  string           `db:"assignment_id" json:"assignment_id"`
	StudentID     string           `db:"student_id" json:"student_id"`
	AttemptNumber int              `db:"attempt_number" json:"attempt_number"`
	TextAnswer    string           `db:"text_answer" json:"text_answer"`
	Score         *float64         `db:"score" json:"score,omitempty"`
	Status        SubmissionStatus `db:"status" json:"status"`
	SubmittedAt   time.Time        `db:"submitted_at" json:"submitted_at"`
	CreatedAt     time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time        `db:"updated_at" json:"updated_at"`
}

// SubmissionStats summarises a student's submission history.
type SubmissionStats struct {
	TotalSubmissions int `db:"total_submissions" json:"total_submissions"`
	RejectedAI       int `db:"rejected_ai" json:"rejected_ai"`
}

// StudentFlagCount is one row of the offering-wide REJECTED_AI aggregate.
type StudentFlagCount struct {
	StudentID   string `db:"student_id" json:"student_id"`
	StudentName string `db:"student_name" json:"student_name"`
	Count       int    `db:"count" json:"count"`
}
