// Package slack is the outbound chat client: a thin Slack Web API wrapper
// plus the delivery step that turns intents into API calls. All calls go
// through the shared retry policy; rate-limit responses honor the
// server-provided delay.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/example/rotabot/internal/intent"
	"github.com/example/rotabot/internal/retry"
)

const defaultBaseURL = "https://slack.com/api"

// callbackID tags interactive controls so inbound callbacks can be routed
// back to the rotation actions.
const callbackID = "rotation_actions"

// Client posts messages through the Slack Web API.
type Client struct {
	token      string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	policy     retry.Policy
}

// NewClient returns a Web API client authenticated with the bot token.
func NewClient(token string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		token:      token,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

// SetBaseURL points the client at a different API root. Used in tests.
func (c *Client) SetBaseURL(u string) { c.baseURL = u }

// SetRetryPolicy overrides the default retry policy.
func (c *Client) SetRetryPolicy(policy retry.Policy) { c.policy = policy }

// AuthTest verifies the bot token against auth.test.
func (c *Client) AuthTest(ctx context.Context) error {
	return c.call(ctx, "auth.test", map[string]any{})
}

// PostMessage posts a channel message, optionally with interactive controls.
func (c *Client) PostMessage(ctx context.Context, channel, text string, controls []intent.Control) error {
	payload := map[string]any{
		"channel": channel,
		"text":    text,
	}
	if len(controls) > 0 {
		payload["attachments"] = buildAttachments(text, controls)
	}
	return c.call(ctx, "chat.postMessage", payload)
}

// UpdateMessage rewrites an existing message. Nil controls strip the
// interactive attachment from the message.
func (c *Client) UpdateMessage(ctx context.Context, channel, timestamp, text string, controls []intent.Control) error {
	payload := map[string]any{
		"channel":     channel,
		"ts":          timestamp,
		"text":        text,
		"attachments": buildAttachments(text, controls),
	}
	return c.call(ctx, "chat.update", payload)
}

// PostEphemeral shows a message to a single user in a channel.
func (c *Client) PostEphemeral(ctx context.Context, channel, user, text string) error {
	payload := map[string]any{
		"channel": channel,
		"user":    user,
		"text":    text,
	}
	return c.call(ctx, "chat.postEphemeral", payload)
}

type apiResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

func (c *Client) call(ctx context.Context, method string, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("slack: encode %s payload: %w", method, err)
	}

	return c.policy.Do(ctx, c.logger, "slack."+method, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+method, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("slack: build %s request: %w", method, err)
		}
		req.Header.Set("Content-Type", "application/json; charset=utf-8")
		req.Header.Set("Authorization", "Bearer "+c.token)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return retry.Transient(fmt.Errorf("slack: %s: %w", method, err))
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			delay := retryAfter(resp)
			return retry.TransientAfter(fmt.Errorf("slack: %s rate limited", method), delay)
		case resp.StatusCode >= 500:
			return retry.Transient(fmt.Errorf("slack: %s returned status %d", method, resp.StatusCode))
		case resp.StatusCode != http.StatusOK:
			return fmt.Errorf("slack: %s returned status %d", method, resp.StatusCode)
		}

		var api apiResponse
		if err := json.NewDecoder(resp.Body).Decode(&api); err != nil {
			return retry.Transient(fmt.Errorf("slack: decode %s response: %w", method, err))
		}
		if !api.OK {
			if api.Error == "ratelimited" {
				return retry.Transient(fmt.Errorf("slack: %s rate limited", method))
			}
			return fmt.Errorf("slack: %s failed: %s", method, api.Error)
		}
		return nil
	})
}

func retryAfter(resp *http.Response) time.Duration {
	seconds, err := strconv.Atoi(resp.Header.Get("Retry-After"))
	if err != nil || seconds <= 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

// Legacy interactive attachment shape, matching the callbacks the inbound
// handler parses.
type attachment struct {
	Text           string   `json:"text,omitempty"`
	Fallback       string   `json:"fallback,omitempty"`
	CallbackID     string   `json:"callback_id"`
	Color          string   `json:"color,omitempty"`
	AttachmentType string   `json:"attachment_type"`
	Actions        []action `json:"actions,omitempty"`
}

type action struct {
	Name  string `json:"name"`
	Text  string `json:"text"`
	Type  string `json:"type"`
	Value string `json:"value"`
}

func buildAttachments(fallback string, controls []intent.Control) []attachment {
	if len(controls) == 0 {
		// chat.update with an empty attachment list removes the buttons.
		return []attachment{}
	}
	actions := make([]action, 0, len(controls))
	for _, control := range controls {
		actions = append(actions, action{
			Name:  control.Name,
			Text:  control.Label,
			Type:  "button",
			Value: control.Value,
		})
	}
	return []attachment{{
		Text:           "If you're unavailable, you can skip to the next person.",
		Fallback:       fallback,
		CallbackID:     callbackID,
		Color:          "#3AA3E3",
		AttachmentType: "default",
		Actions:        actions,
	}}
}
