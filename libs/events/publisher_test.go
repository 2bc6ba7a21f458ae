package events

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNew_DriverSelection(t *testing.T) {
	if _, err := New(Config{Driver: "kafka", Brokers: "kafka:9092"}, testLogger()); err != nil {
		t.Fatalf("kafka driver should construct: %v", err)
	}
	if _, err := New(Config{Driver: "http", IngressURL: "http://notification:8084"}, testLogger()); err != nil {
		t.Fatalf("http driver should construct: %v", err)
	}
	if _, err := New(Config{Driver: "kafka"}, testLogger()); err == nil {
		t.Fatal("kafka driver without brokers should fail")
	}
	if _, err := New(Config{Driver: "http"}, testLogger()); err == nil {
		t.Fatal("http driver without ingress url should fail")
	}
	if _, err := New(Config{Driver: "carrier-pigeon"}, testLogger()); err == nil {
		t.Fatal("unknown driver should fail")
	}
}

func TestHTTPPublisher_PostsEnvelope(t *testing.T) {
	var got Envelope
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode envelope: %v", err)
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"success":true,"notification":null}`))
	}))
	defer srv.Close()

	pub := newHTTPPublisher(srv.URL)
	payload := AppointmentCreated{
		AppointmentID: "a1",
		DoctorID:      "d1",
		PatientID:     "p1",
		PatientName:   "Jane",
		Date:          "2024-05-01",
		Time:          "10:00",
		Reason:        "checkup",
	}
	if err := pub.Publish(context.Background(), TopicAppointmentCreated, payload); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	if path != "/api/v1/events" {
		t.Fatalf("expected ingress path /api/v1/events, got %s", path)
	}
	if got.Topic != TopicAppointmentCreated {
		t.Fatalf("expected topic %s, got %s", TopicAppointmentCreated, got.Topic)
	}
	var decoded AppointmentCreated
	if err := json.Unmarshal(got.Event, &decoded); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if decoded != payload {
		t.Fatalf("payload mismatch: got %+v", decoded)
	}
}

func TestHTTPPublisher_SurfacesServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	pub := newHTTPPublisher(srv.URL)
	if err := pub.Publish(context.Background(), TopicUserRegistered, UserRegistered{ID: "u1"}); err == nil {
		t.Fatal("expected error for non-2xx ingress response")
	}
}

func TestWireFieldNames(t *testing.T) {
	created, _ := json.Marshal(AppointmentCreated{AppointmentID: "a1", DoctorID: "d1", PatientID: "p1", PatientName: "Jane", Date: "2024-05-01", Time: "10:00", Reason: "checkup"})
	for _, field := range []string{`"appointmentId"`, `"doctorId"`, `"patientId"`, `"patientName"`, `"date"`, `"time"`, `"reason"`} {
		if !strings.Contains(string(created), field) {
			t.Fatalf("appointment.created payload missing %s: %s", field, created)
		}
	}

	updated, _ := json.Marshal(AppointmentUpdated{AppointmentID: "a1", PatientID: "p1", PatientName: "Jane", Status: "cancelled"})
	if strings.Contains(string(updated), `"date"`) || strings.Contains(string(updated), `"time"`) {
		t.Fatalf("cancelled update must omit date/time: %s", updated)
	}

	registered, _ := json.Marshal(UserRegistered{ID: "u1", Email: "u@x.dev", Role: "patient", Name: "U"})
	if strings.Contains(string(registered), `"specialization"`) {
		t.Fatalf("empty specialization must be omitted: %s", registered)
	}
}
