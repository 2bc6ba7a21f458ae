package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/medibook/medibook/libs/auth"
	"github.com/medibook/medibook/libs/events"
	"github.com/medibook/medibook/services/appointment-service/internal/directory"
	"github.com/medibook/medibook/services/appointment-service/internal/model"
	"github.com/medibook/medibook/services/appointment-service/internal/storage"
)

const testSecret = "test-secret"

type memStore struct {
	byID  map[string]model.Appointment
	order []string
	next  int
}

func newMemStore() *memStore {
	return &memStore{byID: make(map[string]model.Appointment)}
}

func (m *memStore) Create(_ context.Context, appt model.Appointment) (model.Appointment, error) {
	m.next++
	appt.ID = "a" + strconv.Itoa(m.next)
	appt.CreatedAt = time.Now()
	appt.UpdatedAt = appt.CreatedAt
	m.byID[appt.ID] = appt
	m.order = append(m.order, appt.ID)
	return appt, nil
}

func (m *memStore) GetByID(_ context.Context, id string) (model.Appointment, error) {
	appt, ok := m.byID[id]
	if !ok {
		return model.Appointment{}, storage.ErrNotFound
	}
	return appt, nil
}

func (m *memStore) ListByPatient(_ context.Context, patientID string) ([]model.Appointment, error) {
	return m.list(func(a model.Appointment) bool { return a.PatientID == patientID }), nil
}

func (m *memStore) ListByDoctor(_ context.Context, doctorID string) ([]model.Appointment, error) {
	return m.list(func(a model.Appointment) bool { return a.DoctorID == doctorID }), nil
}

func (m *memStore) list(match func(model.Appointment) bool) []model.Appointment {
	appts := []model.Appointment{}
	for i := len(m.order) - 1; i >= 0; i-- {
		if appt := m.byID[m.order[i]]; match(appt) {
			appts = append(appts, appt)
		}
	}
	return appts
}

func (m *memStore) UpdateStatus(_ context.Context, id, status string) (model.Appointment, error) {
	appt, ok := m.byID[id]
	if !ok {
		return model.Appointment{}, storage.ErrNotFound
	}
	appt.Status = status
	appt.UpdatedAt = time.Now()
	m.byID[id] = appt
	return appt, nil
}

func (m *memStore) Delete(_ context.Context, id string) error {
	if _, ok := m.byID[id]; !ok {
		return storage.ErrNotFound
	}
	delete(m.byID, id)
	return nil
}

type fakeDirectory struct {
	profiles map[string]directory.Profile
}

func (f *fakeDirectory) GetUser(_ context.Context, id string) (directory.Profile, error) {
	profile, ok := f.profiles[id]
	if !ok {
		return directory.Profile{}, directory.ErrNotFound
	}
	return profile, nil
}

type published struct {
	topic   string
	payload any
}

type recordingPublisher struct {
	events []published
	fail   bool
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, payload any) error {
	if p.fail {
		return errors.New("broker unavailable")
	}
	p.events = append(p.events, published{topic: topic, payload: payload})
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func newTestServer(store storage.Store, dir Directory, publisher *recordingPublisher) *httptest.Server {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := NewAppointmentHandler(store, dir, publisher, logger, testSecret)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/appointments", handler.Create)
	mux.HandleFunc("GET /api/v1/appointments", handler.List)
	mux.HandleFunc("PATCH /api/v1/appointments/{id}/status", handler.UpdateStatus)
	mux.HandleFunc("DELETE /api/v1/appointments/{id}", handler.Delete)
	return httptest.NewServer(mux)
}

func signToken(t *testing.T, sub, role, name, email string) string {
	t.Helper()
	now := time.Now()
	token, err := auth.SignHS256(auth.Claims{
		Sub:   sub,
		Role:  role,
		Name:  name,
		Email: email,
		Exp:   now.Add(time.Hour).Unix(),
		Iat:   now.Unix(),
	}, testSecret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func doRequest(t *testing.T, method, url, token, body string) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.AddCookie(&http.Cookie{Name: auth.CookieName, Value: token})
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func testDoctorDirectory() *fakeDirectory {
	return &fakeDirectory{profiles: map[string]directory.Profile{
		"d1": {ID: "d1", Name: "Dr. Vo", Role: "doctor", Specialization: "Dermatology"},
	}}
}

func seedAppointment(store *memStore, status string) model.Appointment {
	appt, _ := store.Create(context.Background(), model.Appointment{
		PatientID:   "p1",
		PatientName: "Jane Roe",
		DoctorID:    "d1",
		DoctorName:  "Dr. Vo",
		Date:        "2026-09-01",
		Time:        "10:00",
		Reason:      "checkup",
		Status:      status,
	})
	return appt
}

func TestCreate_BooksPendingAndPublishes(t *testing.T) {
	store := newMemStore()
	publisher := &recordingPublisher{}
	srv := newTestServer(store, testDoctorDirectory(), publisher)
	defer srv.Close()

	token := signToken(t, "p1", "patient", "Jane Roe", "jane@example.com")
	resp := doRequest(t, http.MethodPost, srv.URL+"/api/v1/appointments", token,
		`{"doctorId":"d1","date":"2026-09-01","time":"10:00","reason":"checkup"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}

	var view struct {
		ID     string `json:"id"`
		Status string `json:"status"`
		Doctor struct {
			Name           string `json:"name"`
			Specialization string `json:"specialization"`
		} `json:"doctor"`
		Patient struct {
			Name  string `json:"name"`
			Email string `json:"email"`
		} `json:"patient"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&view); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if view.Status != "pending" {
		t.Fatalf("status = %q, want pending", view.Status)
	}
	if view.Doctor.Name != "Dr. Vo" || view.Doctor.Specialization != "Dermatology" {
		t.Fatalf("doctor not denormalized: %+v", view.Doctor)
	}
	if view.Patient.Name != "Jane Roe" || view.Patient.Email != "jane@example.com" {
		t.Fatalf("patient not denormalized: %+v", view.Patient)
	}

	if len(publisher.events) != 1 || publisher.events[0].topic != events.TopicAppointmentCreated {
		t.Fatalf("published = %+v, want one appointment.created", publisher.events)
	}
	event := publisher.events[0].payload.(events.AppointmentCreated)
	if event.AppointmentID != view.ID || event.DoctorID != "d1" || event.PatientName != "Jane Roe" {
		t.Fatalf("unexpected event payload: %+v", event)
	}
}

func TestCreate_Rejections(t *testing.T) {
	srv := newTestServer(newMemStore(), testDoctorDirectory(), &recordingPublisher{})
	defer srv.Close()

	patient := signToken(t, "p1", "patient", "Jane Roe", "jane@example.com")
	doctor := signToken(t, "d1", "doctor", "Dr. Vo", "vo@example.com")

	cases := []struct {
		name  string
		token string
		body  string
		want  int
	}{
		{"anonymous", "", `{"doctorId":"d1","date":"d","time":"t","reason":"r"}`, http.StatusUnauthorized},
		{"doctor booking", doctor, `{"doctorId":"d1","date":"d","time":"t","reason":"r"}`, http.StatusForbidden},
		{"missing fields", patient, `{"doctorId":"d1","date":"d"}`, http.StatusBadRequest},
		{"unknown doctor", patient, `{"doctorId":"ghost","date":"d","time":"t","reason":"r"}`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		resp := doRequest(t, http.MethodPost, srv.URL+"/api/v1/appointments", tc.token, tc.body)
		if resp.StatusCode != tc.want {
			t.Fatalf("%s: status = %d, want %d", tc.name, resp.StatusCode, tc.want)
		}
	}
}

func TestCreate_SucceedsWhenPublishFails(t *testing.T) {
	store := newMemStore()
	srv := newTestServer(store, testDoctorDirectory(), &recordingPublisher{fail: true})
	defer srv.Close()

	token := signToken(t, "p1", "patient", "Jane Roe", "jane@example.com")
	resp := doRequest(t, http.MethodPost, srv.URL+"/api/v1/appointments", token,
		`{"doctorId":"d1","date":"2026-09-01","time":"10:00","reason":"checkup"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201 despite publish failure", resp.StatusCode)
	}
	if len(store.byID) != 1 {
		t.Fatalf("store holds %d records, want 1", len(store.byID))
	}
}

func TestList_ScopedByRole(t *testing.T) {
	store := newMemStore()
	seedAppointment(store, model.StatusPending)
	srv := newTestServer(store, testDoctorDirectory(), &recordingPublisher{})
	defer srv.Close()

	for _, tc := range []struct {
		sub, role string
		want      int
	}{
		{"p1", "patient", 1},
		{"d1", "doctor", 1},
		{"p2", "patient", 0},
	} {
		token := signToken(t, tc.sub, tc.role, "x", "x@example.com")
		resp := doRequest(t, http.MethodGet, srv.URL+"/api/v1/appointments", token, "")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s: status = %d, want 200", tc.sub, resp.StatusCode)
		}
		var list []json.RawMessage
		if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
			t.Fatalf("%s: decode: %v", tc.sub, err)
		}
		if len(list) != tc.want {
			t.Fatalf("%s: len = %d, want %d", tc.sub, len(list), tc.want)
		}
	}
}

func TestUpdateStatus_DoctorConfirmCarriesSlot(t *testing.T) {
	store := newMemStore()
	appt := seedAppointment(store, model.StatusPending)
	publisher := &recordingPublisher{}
	srv := newTestServer(store, testDoctorDirectory(), publisher)
	defer srv.Close()

	token := signToken(t, "d1", "doctor", "Dr. Vo", "vo@example.com")
	resp := doRequest(t, http.MethodPatch, srv.URL+"/api/v1/appointments/"+appt.ID+"/status", token,
		`{"status":"confirmed"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	if len(publisher.events) != 1 || publisher.events[0].topic != events.TopicAppointmentUpdated {
		t.Fatalf("published = %+v, want one appointment.updated", publisher.events)
	}
	event := publisher.events[0].payload.(events.AppointmentUpdated)
	if event.Status != "confirmed" || event.Date != "2026-09-01" || event.Time != "10:00" {
		t.Fatalf("confirmed event must carry the slot: %+v", event)
	}
	if event.PatientID != "p1" {
		t.Fatalf("event targets %q, want p1", event.PatientID)
	}
}

func TestUpdateStatus_CancelledTravelsBare(t *testing.T) {
	store := newMemStore()
	appt := seedAppointment(store, model.StatusPending)
	publisher := &recordingPublisher{}
	srv := newTestServer(store, testDoctorDirectory(), publisher)
	defer srv.Close()

	token := signToken(t, "d1", "doctor", "Dr. Vo", "vo@example.com")
	resp := doRequest(t, http.MethodPatch, srv.URL+"/api/v1/appointments/"+appt.ID+"/status", token,
		`{"status":"cancelled"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	event := publisher.events[0].payload.(events.AppointmentUpdated)
	if event.Date != "" || event.Time != "" {
		t.Fatalf("cancelled event must not carry the slot: %+v", event)
	}
}

func TestUpdateStatus_Authorization(t *testing.T) {
	store := newMemStore()
	pending := seedAppointment(store, model.StatusPending)
	confirmed := seedAppointment(store, model.StatusConfirmed)
	srv := newTestServer(store, testDoctorDirectory(), &recordingPublisher{})
	defer srv.Close()

	patient := signToken(t, "p1", "patient", "Jane Roe", "jane@example.com")
	stranger := signToken(t, "d9", "doctor", "Dr. No", "no@example.com")

	// A patient may cancel an own pending appointment.
	resp := doRequest(t, http.MethodPatch, srv.URL+"/api/v1/appointments/"+pending.ID+"/status", patient,
		`{"status":"cancelled"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("patient cancel pending: status = %d, want 200", resp.StatusCode)
	}

	// But not confirm, and not cancel one already confirmed.
	resp = doRequest(t, http.MethodPatch, srv.URL+"/api/v1/appointments/"+confirmed.ID+"/status", patient,
		`{"status":"cancelled"}`)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("patient cancel confirmed: status = %d, want 403", resp.StatusCode)
	}
	resp = doRequest(t, http.MethodPatch, srv.URL+"/api/v1/appointments/"+confirmed.ID+"/status", patient,
		`{"status":"completed"}`)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("patient complete: status = %d, want 403", resp.StatusCode)
	}

	// A doctor not on the appointment has no say.
	resp = doRequest(t, http.MethodPatch, srv.URL+"/api/v1/appointments/"+confirmed.ID+"/status", stranger,
		`{"status":"completed"}`)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("other doctor: status = %d, want 403", resp.StatusCode)
	}

	resp = doRequest(t, http.MethodPatch, srv.URL+"/api/v1/appointments/missing/status", patient,
		`{"status":"cancelled"}`)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing id: status = %d, want 404", resp.StatusCode)
	}
}

func TestDelete_OwnersOnly(t *testing.T) {
	store := newMemStore()
	appt := seedAppointment(store, model.StatusPending)
	srv := newTestServer(store, testDoctorDirectory(), &recordingPublisher{})
	defer srv.Close()

	stranger := signToken(t, "p9", "patient", "Sam", "sam@example.com")
	resp := doRequest(t, http.MethodDelete, srv.URL+"/api/v1/appointments/"+appt.ID, stranger, "")
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("stranger delete: status = %d, want 403", resp.StatusCode)
	}

	owner := signToken(t, "p1", "patient", "Jane Roe", "jane@example.com")
	resp = doRequest(t, http.MethodDelete, srv.URL+"/api/v1/appointments/"+appt.ID, owner, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("owner delete: status = %d, want 200", resp.StatusCode)
	}
	if len(store.byID) != 0 {
		t.Fatalf("record not removed")
	}

	resp = doRequest(t, http.MethodDelete, srv.URL+"/api/v1/appointments/"+appt.ID, owner, "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("repeat delete: status = %d, want 404", resp.StatusCode)
	}
}
