package slack

import (
	"context"
	"log/slog"
	"time"

	"github.com/example/rotabot/internal/intent"
)

// Deliverer sends outbound intents through the Web API. Rotation state is
// already committed by the time intents exist, so delivery failures are
// logged and never rolled back into rotation state.
type Deliverer struct {
	client  *Client
	timeout time.Duration
	logger  *slog.Logger
}

// NewDeliverer wraps the client with a per-call timeout.
func NewDeliverer(client *Client, timeout time.Duration, logger *slog.Logger) *Deliverer {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Deliverer{client: client, timeout: timeout, logger: logger}
}

// Deliver sends each intent in order. A failed intent does not stop the
// rest of the batch.
func (d *Deliverer) Deliver(ctx context.Context, intents []intent.Intent) {
	for _, it := range intents {
		callCtx, cancel := context.WithTimeout(ctx, d.timeout)
		var err error
		switch v := it.(type) {
		case intent.PublicAnnounce:
			err = d.client.PostMessage(callCtx, v.Channel, v.Text, v.Controls)
		case intent.UpdateMessage:
			err = d.client.UpdateMessage(callCtx, v.Channel, v.Timestamp, v.Text, v.Controls)
		case intent.EphemeralNotice:
			err = d.client.PostEphemeral(callCtx, v.Channel, v.User, v.Text)
		}
		cancel()
		if err != nil {
			d.logger.Error("outbound delivery failed", "intent", intentName(it), "error", err)
		}
	}
}

func intentName(it intent.Intent) string {
	switch it.(type) {
	case intent.PublicAnnounce:
		return "public_announce"
	case intent.UpdateMessage:
		return "update_message"
	case intent.EphemeralNotice:
		return "ephemeral_notice"
	default:
		return "unknown"
	}
}
