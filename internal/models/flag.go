package models

import "time"

// FlagRecord accumulates AI flags per offering and student. flagged_count is
// only ever incremented; rows are never deleted.
type FlagRecord struct {
	ID            string    `db:"id" json:"id"`
	OfferingID    string    `db:"offering_id" json:"offering_id"`
	StudentID     string    `db:"student_id" json:"student_id"`
	FlaggedCount  int       `db:"flagged_count" json:"flagged_count"`
	LastFlaggedAt time.Time `db:"last_flagged_at" json:"last_flagged_at"`
}
