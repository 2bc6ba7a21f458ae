// Package client is the Go data layer a frontend sits on: typed calls to
// the HTTP APIs, a live notification channel, and a merged feed that
// reconciles the two.
package client

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"
)

const tokenCookie = "token"

// Notification mirrors the store's wire shape.
type Notification struct {
	ID            string    `json:"id"`
	UserID        string    `json:"userId"`
	Type          string    `json:"type"`
	Title         string    `json:"title"`
	Message       string    `json:"message"`
	AppointmentID string    `json:"appointmentId,omitempty"`
	Read          bool      `json:"read"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// User is the profile shape the auth service returns.
type User struct {
	ID             string `json:"id"`
	Email          string `json:"email"`
	Role           string `json:"role"`
	Name           string `json:"name"`
	Specialization string `json:"specialization,omitempty"`
}

// APIError carries the {message} body services return on failure.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

// Client talks to the platform through the gateway (or directly to one
// service). The session token captured at login rides along as a cookie.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// Token returns the current session token, if any.
func (c *Client) Token() string { return c.token }

// SetToken installs an existing session token.
func (c *Client) SetToken(token string) { c.token = token }

type credentials struct {
	Email          string `json:"email"`
	Password       string `json:"password"`
	Name           string `json:"name,omitempty"`
	Role           string `json:"role,omitempty"`
	Specialization string `json:"specialization,omitempty"`
}

type userEnvelope struct {
	User User `json:"user"`
}

// Register creates an account and captures the session cookie.
func (c *Client) Register(ctx context.Context, email, password, name, role, specialization string) (User, error) {
	var out userEnvelope
	resp, err := c.do(ctx, http.MethodPost, "/api/v1/auth/register", credentials{
		Email: email, Password: password, Name: name, Role: role, Specialization: specialization,
	}, &out)
	if err != nil {
		return User{}, err
	}
	c.captureToken(resp)
	return out.User, nil
}

// Login authenticates and captures the session cookie.
func (c *Client) Login(ctx context.Context, email, password string) (User, error) {
	var out userEnvelope
	resp, err := c.do(ctx, http.MethodPost, "/api/v1/auth/login", credentials{Email: email, Password: password}, &out)
	if err != nil {
		return User{}, err
	}
	c.captureToken(resp)
	return out.User, nil
}

// Me returns the profile behind the current session.
func (c *Client) Me(ctx context.Context) (User, error) {
	var out userEnvelope
	if _, err := c.do(ctx, http.MethodGet, "/api/v1/auth/me", nil, &out); err != nil {
		return User{}, err
	}
	return out.User, nil
}

// Doctors lists the bookable doctors.
func (c *Client) Doctors(ctx context.Context) ([]User, error) {
	var out []User
	if _, err := c.do(ctx, http.MethodGet, "/api/v1/auth/doctors", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListMyNotifications fetches the caller's persisted notifications,
// newest first.
func (c *Client) ListMyNotifications(ctx context.Context) ([]Notification, error) {
	var out []Notification
	if _, err := c.do(ctx, http.MethodGet, "/api/v1/notifications/my", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// MarkNotificationRead flips one notification to read at the store.
func (c *Client) MarkNotificationRead(ctx context.Context, id string) (Notification, error) {
	var out Notification
	if _, err := c.do(ctx, http.MethodPatch, "/api/v1/notifications/"+id+"/read", nil, &out); err != nil {
		return Notification{}, err
	}
	return out, nil
}

// Appointment is the wire shape the appointment service returns.
type Appointment struct {
	ID        string    `json:"id"`
	PatientID string    `json:"patientId"`
	DoctorID  string    `json:"doctorId"`
	Date      string    `json:"date"`
	Time      string    `json:"time"`
	Reason    string    `json:"reason"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type bookRequest struct {
	DoctorID string `json:"doctorId"`
	Date     string `json:"date"`
	Time     string `json:"time"`
	Reason   string `json:"reason"`
}

// BookAppointment requests a pending appointment with a doctor.
func (c *Client) BookAppointment(ctx context.Context, doctorID, date, timeSlot, reason string) (Appointment, error) {
	var out Appointment
	_, err := c.do(ctx, http.MethodPost, "/api/v1/appointments", bookRequest{
		DoctorID: doctorID, Date: date, Time: timeSlot, Reason: reason,
	}, &out)
	if err != nil {
		return Appointment{}, err
	}
	return out, nil
}

// MyAppointments lists the caller's appointments, newest first.
func (c *Client) MyAppointments(ctx context.Context) ([]Appointment, error) {
	var out []Appointment
	if _, err := c.do(ctx, http.MethodGet, "/api/v1/appointments", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SetAppointmentStatus moves an appointment through its lifecycle.
func (c *Client) SetAppointmentStatus(ctx context.Context, id, status string) (Appointment, error) {
	var out Appointment
	_, err := c.do(ctx, http.MethodPatch, "/api/v1/appointments/"+id+"/status", map[string]string{"status": status}, &out)
	if err != nil {
		return Appointment{}, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) (*http.Response, error) {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.AddCookie(&http.Cookie{Name: tokenCookie, Value: c.token})
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Message string `json:"message"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		return resp, &APIError{StatusCode: resp.StatusCode, Message: apiErr.Message}
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp, fmt.Errorf("decode %s %s: %w", method, path, err)
		}
	}
	return resp, nil
}

func (c *Client) captureToken(resp *http.Response) {
	for _, cookie := range resp.Cookies() {
		if cookie.Name == tokenCookie && cookie.Value != "" {
			c.token = cookie.Value
		}
	}
}
