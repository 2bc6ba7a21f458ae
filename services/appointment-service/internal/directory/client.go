// Package directory resolves user profiles from the auth service. The
// appointment service denormalizes doctor names into its own records, so
// lookups happen only at booking time.
package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

var ErrNotFound = errors.New("user not found")

// Profile is the public view the auth service serves for one account.
type Profile struct {
	ID             string `json:"id"`
	Email          string `json:"email"`
	Role           string `json:"role"`
	Name           string `json:"name"`
	Specialization string `json:"specialization"`
}

type Client struct {
	baseURL string
	client  *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		client: &http.Client{
			Timeout:   5 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

func (c *Client) GetUser(ctx context.Context, id string) (Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/auth/users/"+id, nil)
	if err != nil {
		return Profile{}, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return Profile{}, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return Profile{}, ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return Profile{}, fmt.Errorf("directory: user lookup returned %d", resp.StatusCode)
	}

	var profile Profile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return Profile{}, fmt.Errorf("directory: decode profile: %w", err)
	}
	return profile, nil
}
