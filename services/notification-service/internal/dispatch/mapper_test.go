package dispatch

import (
	"encoding/json"
	"testing"

	"github.com/medibook/medibook/libs/events"
)

func TestMapEvent_AppointmentCreated(t *testing.T) {
	payload := []byte(`{"appointmentId":"a1","doctorId":"d1","patientId":"p1","patientName":"Jane","date":"2024-05-01","time":"10:00","reason":"checkup"}`)

	n, ok := MapEvent(events.TopicAppointmentCreated, payload)
	if !ok {
		t.Fatal("expected event to map")
	}
	if n.UserID != "d1" {
		t.Fatalf("recipient must be the doctor, got %q", n.UserID)
	}
	if n.Type != "appointment_created" {
		t.Fatalf("expected type appointment_created, got %q", n.Type)
	}
	if n.Title != "New Appointment Request" {
		t.Fatalf("unexpected title %q", n.Title)
	}
	if n.Message != "Jane requested an appointment on 2024-05-01 at 10:00" {
		t.Fatalf("unexpected message %q", n.Message)
	}
	if n.AppointmentID != "a1" {
		t.Fatalf("expected appointment id a1, got %q", n.AppointmentID)
	}
}

func TestMapEvent_AppointmentUpdated(t *testing.T) {
	tests := []struct {
		name        string
		payload     string
		wantType    string
		wantTitle   string
		wantMessage string
	}{
		{
			name:        "confirmed",
			payload:     `{"appointmentId":"a1","patientId":"p1","patientName":"Jane","date":"2024-05-01","time":"10:00","status":"confirmed"}`,
			wantType:    "appointment_approved",
			wantTitle:   "Appointment Approved",
			wantMessage: "Your appointment on 2024-05-01 at 10:00 has been approved",
		},
		{
			name:        "cancelled",
			payload:     `{"appointmentId":"a1","patientId":"p1","patientName":"Jane","status":"cancelled"}`,
			wantType:    "appointment_rejected",
			wantTitle:   "Appointment Rejected",
			wantMessage: "Your appointment request has been rejected",
		},
		{
			name:        "other status",
			payload:     `{"appointmentId":"a1","patientId":"p1","patientName":"Jane","status":"completed"}`,
			wantType:    "appointment_updated",
			wantTitle:   "Appointment Update",
			wantMessage: "Your appointment status changed to completed",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			n, ok := MapEvent(events.TopicAppointmentUpdated, []byte(tc.payload))
			if !ok {
				t.Fatal("expected event to map")
			}
			if n.UserID != "p1" {
				t.Fatalf("recipient must be the patient, got %q", n.UserID)
			}
			if n.Type != tc.wantType || n.Title != tc.wantTitle || n.Message != tc.wantMessage {
				t.Fatalf("got %q %q %q", n.Type, n.Title, n.Message)
			}
		})
	}
}

func TestMapEvent_UserRegistered(t *testing.T) {
	n, ok := MapEvent(events.TopicUserRegistered, []byte(`{"id":"u1","email":"jane@x.dev","role":"patient","name":"Jane"}`))
	if !ok {
		t.Fatal("expected event to map")
	}
	if n.UserID != "u1" || n.Type != "welcome" || n.Title != "Welcome" {
		t.Fatalf("got %+v", n)
	}
	if n.Message != "Welcome Jane!" {
		t.Fatalf("unexpected message %q", n.Message)
	}

	// userId takes precedence over id when both are present.
	n, ok = MapEvent(events.TopicUserRegistered, []byte(`{"userId":"u2","id":"u1","name":"Jane"}`))
	if !ok || n.UserID != "u2" {
		t.Fatalf("expected recipient u2, got %+v", n)
	}
}

func TestMapEvent_DropsMalformedAndUnknown(t *testing.T) {
	cases := []struct {
		name    string
		topic   string
		payload string
	}{
		{"created without doctorId", events.TopicAppointmentCreated, `{"appointmentId":"a1","patientName":"Jane"}`},
		{"updated without patientId", events.TopicAppointmentUpdated, `{"appointmentId":"a1","status":"confirmed"}`},
		{"registered without id", events.TopicUserRegistered, `{"name":"Jane"}`},
		{"unknown topic", "appointment.deleted", `{"appointmentId":"a1"}`},
		{"invalid json", events.TopicAppointmentCreated, `{"doctorId":`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, ok := MapEvent(tc.topic, []byte(tc.payload)); ok {
				t.Fatal("expected event to be dropped")
			}
		})
	}
}

func TestMapEvent_AcceptsProducerPayloads(t *testing.T) {
	// The mapping must understand exactly what the producers serialize.
	payload, err := json.Marshal(events.AppointmentCreated{
		AppointmentID: "a1",
		DoctorID:      "d1",
		PatientID:     "p1",
		PatientName:   "Jane",
		Date:          "2024-05-01",
		Time:          "10:00",
		Reason:        "checkup",
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	n, ok := MapEvent(events.TopicAppointmentCreated, payload)
	if !ok || n.UserID != "d1" {
		t.Fatalf("producer payload should map to the doctor, got %+v", n)
	}
}
