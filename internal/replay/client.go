package replay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/okian/enemy/internal/domain/types"
)

// Outcome of one observation submission.
type Outcome int

// Submission outcomes.
const (
	Accepted Outcome = iota
	Duplicate
	Failed
)

// Client talks to the scoring service HTTP API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client with a per-request timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

// StatusError is returned for unexpected response codes.
type StatusError struct {
	Status int
	Code   string
	Body   string
}

func (e *StatusError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("unexpected status %d (%s): %s", e.Status, e.Code, e.Body)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.Status, e.Body)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any, want ...int) (int, error) {
	var r io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal request body: %w", err)
		}
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}

	for _, status := range want {
		if resp.StatusCode != status {
			continue
		}
		if out != nil {
			if err := json.Unmarshal(data, out); err != nil {
				return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
			}
		}
		return resp.StatusCode, nil
	}

	var apiErr struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	_ = json.Unmarshal(data, &apiErr)
	msg := apiErr.Message
	if msg == "" {
		msg = string(data)
	}
	return resp.StatusCode, &StatusError{Status: resp.StatusCode, Code: apiErr.Code, Body: msg}
}

// Health checks that the service answers /healthz.
func (c *Client) Health(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, "/healthz", nil, nil, http.StatusOK)
	return err
}

// ConflictInfo is one catalog entry as served by GET /conflicts.
type ConflictInfo struct {
	Name       string `json:"name"`
	Combatant1 string `json:"combatant_1"`
	Combatant2 string `json:"combatant_2"`
}

// Conflicts lists the service's conflict catalog.
func (c *Client) Conflicts(ctx context.Context) ([]ConflictInfo, error) {
	var out []ConflictInfo
	_, err := c.do(ctx, http.MethodGet, "/conflicts", nil, &out, http.StatusOK)
	return out, err
}

type featuresBody struct {
	MeanDistance     float64 `json:"mean_distance"`
	Stillness        float64 `json:"stillness"`
	AngularStillness float64 `json:"angular_stillness"`
}

type observationBody struct {
	ObservationID string             `json:"observation_id,omitempty"`
	UserID        string             `json:"user_id"`
	Features      featuresBody       `json:"features"`
	Gaze          map[string]float64 `json:"gaze"`
	TS            string             `json:"ts"`
}

// PostObservation submits the participant's window. The observation id is
// fixed per participant so replaying a snapshot deduplicates.
func (c *Client) PostObservation(ctx context.Context, p Participant) (Outcome, error) {
	body := observationBody{
		ObservationID: "replay-" + p.UserID,
		UserID:        p.UserID,
		Features: featuresBody{
			MeanDistance:     p.MeanDistance,
			Stillness:        p.Stillness,
			AngularStillness: p.AngularStillness,
		},
		Gaze: p.Gaze,
		TS:   time.Now().UTC().Format(time.RFC3339),
	}
	status, err := c.do(ctx, http.MethodPost, "/observations", body, nil, http.StatusAccepted, http.StatusOK)
	switch {
	case err != nil:
		return Failed, err
	case status == http.StatusOK:
		return Duplicate, nil
	default:
		return Accepted, nil
	}
}

// RefreshBounds recomputes the service baseline.
func (c *Client) RefreshBounds(ctx context.Context) (types.Bounds, error) {
	var b types.Bounds
	_, err := c.do(ctx, http.MethodPost, "/bounds/refresh", nil, &b, http.StatusOK)
	return b, err
}

// Classification reads one (user, combatant) classification.
func (c *Client) Classification(ctx context.Context, userID, combatant string) (types.Classification, error) {
	var out types.Classification
	path := "/users/" + url.PathEscape(userID) + "/combatants/" + url.PathEscape(combatant) + "/classification"
	_, err := c.do(ctx, http.MethodGet, path, nil, &out, http.StatusOK)
	return out, err
}

// Users returns the number of users the service holds features for.
func (c *Client) Users(ctx context.Context) (int, error) {
	var stats struct {
		Users int `json:"users"`
	}
	_, err := c.do(ctx, http.MethodGet, "/stats", nil, &stats, http.StatusOK)
	return stats.Users, err
}
