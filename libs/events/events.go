package events

// Topics shared by producers and the notification consumer. The payload
// field names below are the wire contract; the frontend and the
// notification mapping both depend on them byte-for-byte.
const (
	TopicAppointmentCreated = "appointment.created"
	TopicAppointmentUpdated = "appointment.updated"
	TopicUserRegistered     = "user.registered"
)

// Topics lists every topic the notification service subscribes to.
func Topics() []string {
	return []string{
		TopicAppointmentCreated,
		TopicAppointmentUpdated,
		TopicUserRegistered,
	}
}

// AppointmentCreated is emitted by the appointment service when a patient
// books a new appointment. The doctor is the notification recipient.
type AppointmentCreated struct {
	AppointmentID string `json:"appointmentId"`
	DoctorID      string `json:"doctorId"`
	PatientID     string `json:"patientId"`
	PatientName   string `json:"patientName"`
	Date          string `json:"date"`
	Time          string `json:"time"`
	Reason        string `json:"reason"`
}

func (e AppointmentCreated) Key() string { return e.AppointmentID }

// AppointmentUpdated is emitted on status transitions. Date and Time are
// only set for confirmations. The patient is the notification recipient.
type AppointmentUpdated struct {
	AppointmentID string `json:"appointmentId"`
	PatientID     string `json:"patientId"`
	PatientName   string `json:"patientName"`
	Date          string `json:"date,omitempty"`
	Time          string `json:"time,omitempty"`
	Status        string `json:"status"`
}

func (e AppointmentUpdated) Key() string { return e.AppointmentID }

// UserRegistered is emitted by the auth service after a successful signup.
type UserRegistered struct {
	ID             string `json:"id"`
	Email          string `json:"email"`
	Role           string `json:"role"`
	Name           string `json:"name"`
	Specialization string `json:"specialization,omitempty"`
}

func (e UserRegistered) Key() string { return e.ID }

// Keyed payloads provide a partitioning key so that events for the same
// aggregate stay ordered within a topic.
type Keyed interface {
	Key() string
}
