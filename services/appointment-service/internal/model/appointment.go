package model

import "time"

const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
	StatusCompleted = "completed"
)

// ValidStatus reports whether s is one of the known appointment states.
func ValidStatus(s string) bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted:
		return true
	}
	return false
}

// Appointment denormalizes the patient and doctor names at booking time
// so that listings never fan out to the auth service.
type Appointment struct {
	ID                   string
	PatientID            string
	PatientName          string
	PatientEmail         string
	DoctorID             string
	DoctorName           string
	DoctorSpecialization string
	Date                 string
	Time                 string
	Reason               string
	Status               string
	CreatedAt            time.Time
	UpdatedAt            time.Time
}
