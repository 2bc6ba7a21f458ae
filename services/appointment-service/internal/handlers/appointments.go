package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/medibook/medibook/libs/auth"
	"github.com/medibook/medibook/libs/events"
	"github.com/medibook/medibook/services/appointment-service/internal/directory"
	"github.com/medibook/medibook/services/appointment-service/internal/model"
	"github.com/medibook/medibook/services/appointment-service/internal/storage"
)

// Directory resolves user profiles from the auth service.
type Directory interface {
	GetUser(ctx context.Context, id string) (directory.Profile, error)
}

type AppointmentHandler struct {
	store     storage.Store
	directory Directory
	publisher events.Publisher
	logger    *slog.Logger
	jwtSecret string
}

func NewAppointmentHandler(store storage.Store, dir Directory, publisher events.Publisher, logger *slog.Logger, jwtSecret string) *AppointmentHandler {
	return &AppointmentHandler{
		store:     store,
		directory: dir,
		publisher: publisher,
		logger:    logger,
		jwtSecret: jwtSecret,
	}
}

type createRequest struct {
	DoctorID string `json:"doctorId"`
	Date     string `json:"date"`
	Time     string `json:"time"`
	Reason   string `json:"reason"`
}

type statusRequest struct {
	Status string `json:"status"`
}

// appointmentView is the wire shape, embedding the denormalized patient
// and doctor summaries the frontend renders directly.
type appointmentView struct {
	ID        string     `json:"id"`
	PatientID string     `json:"patientId"`
	DoctorID  string     `json:"doctorId"`
	Date      string     `json:"date"`
	Time      string     `json:"time"`
	Reason    string     `json:"reason"`
	Status    string     `json:"status"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
	Patient   patientRef `json:"patient"`
	Doctor    doctorRef  `json:"doctor"`
}

type patientRef struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type doctorRef struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Specialization string `json:"specialization,omitempty"`
}

func viewOf(appt model.Appointment) appointmentView {
	return appointmentView{
		ID:        appt.ID,
		PatientID: appt.PatientID,
		DoctorID:  appt.DoctorID,
		Date:      appt.Date,
		Time:      appt.Time,
		Reason:    appt.Reason,
		Status:    appt.Status,
		CreatedAt: appt.CreatedAt,
		UpdatedAt: appt.UpdatedAt,
		Patient:   patientRef{ID: appt.PatientID, Name: appt.PatientName, Email: appt.PatientEmail},
		Doctor:    doctorRef{ID: appt.DoctorID, Name: appt.DoctorName, Specialization: appt.DoctorSpecialization},
	}
}

// Create books a pending appointment for the calling patient and emits
// appointment.created toward the doctor.
func (h *AppointmentHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims, err := auth.ClaimsFromRequest(r, h.jwtSecret)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	if claims.Role != "patient" {
		writeError(w, http.StatusForbidden, "only patients can book appointments")
		return
	}

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	req.DoctorID = strings.TrimSpace(req.DoctorID)
	if req.DoctorID == "" || req.Date == "" || req.Time == "" || req.Reason == "" {
		writeError(w, http.StatusBadRequest, "All fields required")
		return
	}

	doctor, err := h.directory.GetUser(r.Context(), req.DoctorID)
	if err != nil || doctor.Role != "doctor" {
		if err != nil && !errors.Is(err, directory.ErrNotFound) {
			h.logger.Warn("doctor lookup failed", "err", err, "doctor_id", req.DoctorID)
		}
		writeError(w, http.StatusBadRequest, "Doctor not found")
		return
	}

	appt, err := h.store.Create(r.Context(), model.Appointment{
		PatientID:            claims.Sub,
		PatientName:          claims.Name,
		PatientEmail:         claims.Email,
		DoctorID:             doctor.ID,
		DoctorName:           doctor.Name,
		DoctorSpecialization: doctor.Specialization,
		Date:                 req.Date,
		Time:                 req.Time,
		Reason:               req.Reason,
		Status:               model.StatusPending,
	})
	if err != nil {
		h.logger.Error("create appointment failed", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to create appointment")
		return
	}

	// Best-effort: the booking stands even if the event never leaves.
	if err := h.publisher.Publish(r.Context(), events.TopicAppointmentCreated, events.AppointmentCreated{
		AppointmentID: appt.ID,
		DoctorID:      appt.DoctorID,
		PatientID:     appt.PatientID,
		PatientName:   appt.PatientName,
		Date:          appt.Date,
		Time:          appt.Time,
		Reason:        appt.Reason,
	}); err != nil {
		h.logger.Warn("appointment.created publish failed", "err", err, "appointment_id", appt.ID)
	}

	writeJSON(w, http.StatusCreated, viewOf(appt))
}

// List returns the caller's appointments, newest first. Patients see the
// ones they booked, doctors the ones booked with them.
func (h *AppointmentHandler) List(w http.ResponseWriter, r *http.Request) {
	claims, err := auth.ClaimsFromRequest(r, h.jwtSecret)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var appts []model.Appointment
	if claims.Role == "patient" {
		appts, err = h.store.ListByPatient(r.Context(), claims.Sub)
	} else {
		appts, err = h.store.ListByDoctor(r.Context(), claims.Sub)
	}
	if err != nil {
		h.logger.Error("list appointments failed", "err", err, "user_id", claims.Sub)
		writeError(w, http.StatusInternalServerError, "failed to load appointments")
		return
	}

	views := []appointmentView{}
	for _, appt := range appts {
		views = append(views, viewOf(appt))
	}
	writeJSON(w, http.StatusOK, views)
}

// UpdateStatus moves an appointment through its lifecycle. Doctors may
// set any status on their own appointments; patients may only cancel
// their own pending ones.
func (h *AppointmentHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	claims, err := auth.ClaimsFromRequest(r, h.jwtSecret)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if req.Status == "" {
		writeError(w, http.StatusBadRequest, "Status is required")
		return
	}
	if !model.ValidStatus(req.Status) {
		writeError(w, http.StatusBadRequest, "invalid status")
		return
	}

	appt, err := h.store.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		if storage.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "Appointment not found")
			return
		}
		h.logger.Error("load appointment failed", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to load appointment")
		return
	}

	switch {
	case claims.Role == "doctor" && appt.DoctorID == claims.Sub:
		// Doctors manage the full lifecycle of their own appointments.
	case claims.Role == "patient" && appt.PatientID == claims.Sub:
		if req.Status != model.StatusCancelled || appt.Status != model.StatusPending {
			writeError(w, http.StatusForbidden, "Patients can only cancel their pending appointments.")
			return
		}
	default:
		writeError(w, http.StatusForbidden, "Not authorized to perform this status update.")
		return
	}

	updated, err := h.store.UpdateStatus(r.Context(), appt.ID, req.Status)
	if err != nil {
		h.logger.Error("update status failed", "err", err, "appointment_id", appt.ID)
		writeError(w, http.StatusInternalServerError, "failed to update appointment")
		return
	}

	h.publishUpdated(r.Context(), updated)
	writeJSON(w, http.StatusOK, viewOf(updated))
}

// publishUpdated emits appointment.updated toward the patient. Confirmed
// updates carry the slot so the notification can repeat it; every other
// status travels bare.
func (h *AppointmentHandler) publishUpdated(ctx context.Context, appt model.Appointment) {
	event := events.AppointmentUpdated{
		AppointmentID: appt.ID,
		PatientID:     appt.PatientID,
		PatientName:   appt.PatientName,
		Status:        appt.Status,
	}
	if appt.Status == model.StatusConfirmed {
		event.Date = appt.Date
		event.Time = appt.Time
	}
	if err := h.publisher.Publish(ctx, events.TopicAppointmentUpdated, event); err != nil {
		h.logger.Warn("appointment.updated publish failed", "err", err, "appointment_id", appt.ID)
	}
}

// Delete removes an appointment record. Only a party to the appointment
// may do it.
func (h *AppointmentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	claims, err := auth.ClaimsFromRequest(r, h.jwtSecret)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	appt, err := h.store.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		if storage.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "Appointment not found")
			return
		}
		h.logger.Error("load appointment failed", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to load appointment")
		return
	}
	if appt.PatientID != claims.Sub && appt.DoctorID != claims.Sub {
		writeError(w, http.StatusForbidden, "Not authorized")
		return
	}

	if err := h.store.Delete(r.Context(), appt.ID); err != nil && !storage.IsNotFound(err) {
		h.logger.Error("delete appointment failed", "err", err, "appointment_id", appt.ID)
		writeError(w, http.StatusInternalServerError, "failed to delete appointment")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Appointment deleted"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}
