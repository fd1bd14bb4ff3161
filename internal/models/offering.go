package models

import "time"

// Offering represents a course taught by one or more teachers in a period.
type Offering struct {
	ID          string    `db:"id" json:"id"`
	CourseTitle string    `db:"course_title" json:"course_title"`
	Period      string    `db:"period" json:"period"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// OfferingTeacher is a teacher assigned to an offering, as needed for
// notification fan-out.
type OfferingTeacher struct {
	ID       string `db:"id" json:"id"`
	FullName string `db:"full_name" json:"full_name"`
}
