package dispatch

import (
	"encoding/json"
	"fmt"

	"github.com/medibook/medibook/libs/events"
	"github.com/medibook/medibook/services/notification-service/internal/storage"
)

// eventPayload is the superset of fields across all topics; each mapping
// rule reads only the fields its topic defines.
type eventPayload struct {
	AppointmentID string `json:"appointmentId"`
	DoctorID      string `json:"doctorId"`
	PatientID     string `json:"patientId"`
	PatientName   string `json:"patientName"`
	Date          string `json:"date"`
	Time          string `json:"time"`
	Status        string `json:"status"`
	UserID        string `json:"userId"`
	ID            string `json:"id"`
	Name          string `json:"name"`
}

// MapEvent turns a domain event into the notification record for its
// recipient. A malformed or unrecognized event maps to ok=false and is
// dropped by the caller; it never halts processing of later messages.
func MapEvent(topic string, event []byte) (storage.Notification, bool) {
	var p eventPayload
	if err := json.Unmarshal(event, &p); err != nil {
		return storage.Notification{}, false
	}

	switch topic {
	case events.TopicAppointmentCreated:
		if p.DoctorID == "" {
			return storage.Notification{}, false
		}
		return storage.Notification{
			UserID:        p.DoctorID,
			Type:          "appointment_created",
			Title:         "New Appointment Request",
			Message:       fmt.Sprintf("%s requested an appointment on %s at %s", p.PatientName, p.Date, p.Time),
			AppointmentID: p.AppointmentID,
		}, true

	case events.TopicAppointmentUpdated:
		if p.PatientID == "" {
			return storage.Notification{}, false
		}
		n := storage.Notification{
			UserID:        p.PatientID,
			AppointmentID: p.AppointmentID,
		}
		switch p.Status {
		case "confirmed":
			n.Type = "appointment_approved"
			n.Title = "Appointment Approved"
			n.Message = fmt.Sprintf("Your appointment on %s at %s has been approved", p.Date, p.Time)
		case "cancelled":
			n.Type = "appointment_rejected"
			n.Title = "Appointment Rejected"
			n.Message = "Your appointment request has been rejected"
		default:
			n.Type = "appointment_updated"
			n.Title = "Appointment Update"
			n.Message = fmt.Sprintf("Your appointment status changed to %s", p.Status)
		}
		return n, true

	case events.TopicUserRegistered:
		recipient := p.UserID
		if recipient == "" {
			recipient = p.ID
		}
		if recipient == "" {
			return storage.Notification{}, false
		}
		return storage.Notification{
			UserID:  recipient,
			Type:    "welcome",
			Title:   "Welcome",
			Message: fmt.Sprintf("Welcome %s!", p.Name),
		}, true
	}

	return storage.Notification{}, false
}
