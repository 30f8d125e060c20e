package video

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

// Client is the HTTP client for the video conferencing provider.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	log        *logger.Logger
}

// NewClient creates a video provider client.
func NewClient(cfg config.VideoConfig, log *logger.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(cfg.GetVideoAPIURL(), "/"),
		apiKey:     cfg.GetVideoAPIKey(),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		log:        log,
	}
}

// CreateMeeting schedules a meeting hosted by the agent.
func (c *Client) CreateMeeting(ctx context.Context, agentID uuid.UUID, input MeetingInput) (*Meeting, error) {
	reqURL := fmt.Sprintf("%s/users/%s/meetings", c.baseURL, agentID.String())

	var created Meeting
	if err := c.doJSON(ctx, http.MethodPost, reqURL, input, &created); err != nil {
		return nil, err
	}
	if created.ID == "" || created.JoinURL == "" {
		return nil, apperr.Unavailable("video provider returned incomplete meeting", nil)
	}
	return &created, nil
}

// UpdateMeeting moves or edits an existing meeting, keeping its join URL.
func (c *Client) UpdateMeeting(ctx context.Context, agentID uuid.UUID, meetingID string, input MeetingInput) error {
	reqURL := fmt.Sprintf("%s/users/%s/meetings/%s", c.baseURL, agentID.String(), url.PathEscape(meetingID))
	return c.doJSON(ctx, http.MethodPatch, reqURL, input, nil)
}

// DeleteMeeting removes a meeting. A 404 is treated as success so
// cancellation stays idempotent.
func (c *Client) DeleteMeeting(ctx context.Context, agentID uuid.UUID, meetingID string) error {
	reqURL := fmt.Sprintf("%s/users/%s/meetings/%s", c.baseURL, agentID.String(), url.PathEscape(meetingID))

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
			return fmt.Errorf("marshal video payload: %w", err)
		}
		body = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return fmt.Errorf("create video request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.ProviderError("video", method+" "+reqURL, err)
		return apperr.Unavailable("video provider unreachable", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if err := statusToError(resp); err != nil {
		c.log.ProviderError("video", method+" "+reqURL, err)
		return err
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return apperr.Unavailable("decode video response", err)
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
		return apperr.NotFound("video meeting not found")
	case resp.StatusCode == http.StatusConflict:
		return apperr.Conflict("video provider rejected the time slot")
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError:
		return apperr.Unavailable(fmt.Sprintf("video provider returned %d", resp.StatusCode), fmt.Errorf("%s", detail))
	default:
		return apperr.BadRequest(fmt.Sprintf("video provider rejected request: %d", resp.StatusCode))
	}
}
