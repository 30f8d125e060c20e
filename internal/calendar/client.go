package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"estatebot_backend/platform/apperr"
	"estatebot_backend/platform/config"
	"estatebot_backend/platform/logger"

	"github.com/google/uuid"
)

// Client is the HTTP client for the calendar bridge service.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	log        *logger.Logger
}

// NewClient creates a calendar bridge client.
func NewClient(cfg config.CalendarConfig, log *logger.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(cfg.GetCalendarAPIURL(), "/"),
		apiKey:     cfg.GetCalendarAPIKey(),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		log:        log,
	}
}

type busyResponse struct {
	Busy []BusyInterval `json:"busy"`
}

// CheckAvailability returns the agent's busy intervals inside [from, to).
func (c *Client) CheckAvailability(ctx context.Context, agentID uuid.UUID, from, to time.Time) ([]BusyInterval, error) {
	params := url.Values{}
	params.Set("from", from.Format(time.RFC3339))
	params.Set("to", to.Format(time.RFC3339))

	reqURL := fmt.Sprintf("%s/agents/%s/availability?%s", c.baseURL, agentID.String(), params.Encode())

	var result busyResponse
	if err := c.doJSON(ctx, http.MethodGet, reqURL, nil, &result); err != nil {
		return nil, err
	}
	return result.Busy, nil
}

// CreateEvent creates an event in the agent's calendar.
func (c *Client) CreateEvent(ctx context.Context, agentID uuid.UUID, input EventInput) (*Event, error) {
	reqURL := fmt.Sprintf("%s/agents/%s/events", c.baseURL, agentID.String())

	var created Event
	if err := c.doJSON(ctx, http.MethodPost, reqURL, input, &created); err != nil {
		return nil, err
	}
	if created.ID == "" {
		return nil, apperr.Unavailable("calendar returned event without id", nil)
	}
	return &created, nil
}

// UpdateEvent moves or edits an existing event in place.
func (c *Client) UpdateEvent(ctx context.Context, agentID uuid.UUID, eventID string, input EventInput) error {
	reqURL := fmt.Sprintf("%s/agents/%s/events/%s", c.baseURL, agentID.String(), url.PathEscape(eventID))
	return c.doJSON(ctx, http.MethodPatch, reqURL, input, nil)
}

// DeleteEvent removes an event. A 404 is treated as success so cancellation
// stays idempotent.
func (c *Client) DeleteEvent(ctx context.Context, agentID uuid.UUID, eventID string) error {
	reqURL := fmt.Sprintf("%s/agents/%s/events/%s", c.baseURL, agentID.String(), url.PathEscape(eventID))

	err := c.doJSON(ctx, http.MethodDelete, reqURL, nil, nil)
	if apperr.Is(err, apperr.KindNotFound) {
		return nil
	}
	return err
}

func (c *Client) doJSON(ctx context.Context, method, reqURL string, payload, out interface{}) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal calendar payload: %w", err)
		}
		body = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return fmt.Errorf("create calendar request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-Api-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.ProviderError("calendar", method+" "+reqURL, err)
		return apperr.Unavailable("calendar service unreachable", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if err := statusToError(resp); err != nil {
		c.log.ProviderError("calendar", method+" "+reqURL, err)
		return err
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return apperr.Unavailable("decode calendar response", err)
		}
	}
	return nil
}

// statusToError maps a non-2xx provider response to a domain error.
func statusToError(resp *http.Response) error {
	if resp.StatusCode < http.StatusBadRequest {
		return nil
	}

	data, _ := io.ReadAll(resp.Body)
	detail := strings.TrimSpace(string(data))

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return apperr.NotFound("calendar resource not found")
	case resp.StatusCode == http.StatusConflict:
		return apperr.Conflict("calendar rejected the time slot")
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError:
		return apperr.Unavailable(fmt.Sprintf("calendar returned %d", resp.StatusCode), fmt.Errorf("%s", detail))
	default:
		return apperr.BadRequest(fmt.Sprintf("calendar rejected request: %d", resp.StatusCode))
	}
}
