package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/rotabot/internal/intent"
)

var (
	errEmptyPayload  = errors.New("empty interaction payload")
	errNoActions     = errors.New("interaction payload carries no actions")
	errUnknownAction = errors.New("unknown interaction action")
)

type commandRunner interface {
	Confirm(ctx context.Context, actor, claimed, channel, messageTS string) []intent.Intent
	Skip(ctx context.Context, actor, channel, messageTS string) []intent.Intent
	Roster(ctx context.Context, subcommand, argument, channel, actor string) []intent.Intent
}

type intentDeliverer interface {
	Deliver(ctx context.Context, intents []intent.Intent)
}

// SlackHandler terminates the inbound Slack webhook: interactive button
// callbacks and the /rotation slash command.
type SlackHandler struct {
	commands  commandRunner
	deliverer intentDeliverer
	responder responder
	logger    *slog.Logger
}

// NewSlackHandler wires the webhook handler.
func NewSlackHandler(commands commandRunner, deliverer intentDeliverer, logger *slog.Logger) *SlackHandler {
	base := defaultLogger(logger)
	return &SlackHandler{
		commands:  commands,
		deliverer: deliverer,
		responder: newResponder(base),
		logger:    base,
	}
}

func (h *SlackHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return handlerLogger(ctx, h.logger, "SlackHandler", operation, attrs...)
}

// callbackPayload is the subset of Slack's interactive callback format the
// handler needs. Both the legacy interactive_message shape and block
// actions carry name/value pairs this way.
type callbackPayload struct {
	Type string `json:"type"`
	User struct {
		ID string `json:"id"`
	} `json:"user"`
	Channel struct {
		ID string `json:"id"`
	} `json:"channel"`
	Message struct {
		TS string `json:"ts"`
	} `json:"message"`
	Actions []struct {
		Name  string `json:"name"`
		Value string `json:"value"`
	} `json:"actions"`
}

// Events handles POST /slack/events: button callbacks from the reminder
// message. State is advanced before any outbound delivery is attempted, so
// a delivery failure never loses a confirm or skip.
func (h *SlackHandler) Events(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := r.ParseForm(); err != nil {
		h.responder.writeError(ctx, w, http.StatusBadRequest, err)
		return
	}
	raw := r.PostFormValue("payload")
	if raw == "" {
		h.responder.writeError(ctx, w, http.StatusBadRequest, errEmptyPayload)
		return
	}

	var payload callbackPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		h.responder.writeError(ctx, w, http.StatusBadRequest, err)
		return
	}
	if len(payload.Actions) == 0 {
		h.responder.writeError(ctx, w, http.StatusBadRequest, errNoActions)
		return
	}

	action := payload.Actions[0]
	logger := h.log(ctx, "Events", "action", action.Name, "user", payload.User.ID)

	var intents []intent.Intent
	switch action.Name {
	case "confirm":
		intents = h.commands.Confirm(ctx, payload.User.ID, action.Value, payload.Channel.ID, payload.Message.TS)
	case "skip":
		intents = h.commands.Skip(ctx, payload.User.ID, payload.Channel.ID, payload.Message.TS)
	default:
		h.responder.writeError(ctx, w, http.StatusBadRequest, errUnknownAction)
		return
	}

	logger.InfoContext(ctx, "interaction handled", "intents", len(intents))
	h.deliverer.Deliver(ctx, intents)
	w.WriteHeader(http.StatusOK)
}

// slashResponse is the immediate response body Slack renders for a slash
// command.
type slashResponse struct {
	ResponseType string `json:"response_type"`
	Text         string `json:"text"`
}

// Commands handles POST /slack/commands: the /rotation slash command.
// Responses ride on the slash-command reply rather than the Web API, so no
// outbound delivery is needed here.
func (h *SlackHandler) Commands(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := r.ParseForm(); err != nil {
		h.responder.writeError(ctx, w, http.StatusBadRequest, err)
		return
	}

	actor := r.PostFormValue("user_id")
	channel := r.PostFormValue("channel_id")
	subcommand, argument := splitCommandText(r.PostFormValue("text"))

	logger := h.log(ctx, "Commands", "subcommand", subcommand, "user", actor)
	intents := h.commands.Roster(ctx, subcommand, argument, channel, actor)
	logger.InfoContext(ctx, "slash command handled", "intents", len(intents))

	h.responder.writeJSON(ctx, w, http.StatusOK, toSlashResponse(intents))
}

// splitCommandText splits the slash-command text into subcommand and
// argument, unwrapping Slack's <@U123|name> mention escaping.
func splitCommandText(text string) (string, string) {
	fields := strings.Fields(strings.TrimSpace(text))
	if len(fields) == 0 {
		return "", ""
	}
	subcommand := fields[0]
	if len(fields) == 1 {
		return subcommand, ""
	}
	return subcommand, unwrapMention(fields[1])
}

func unwrapMention(argument string) string {
	mention := strings.TrimSpace(argument)
	if strings.HasPrefix(mention, "<@") && strings.HasSuffix(mention, ">") {
		mention = mention[2 : len(mention)-1]
		if pipe := strings.IndexByte(mention, '|'); pipe >= 0 {
			mention = mention[:pipe]
		}
		return mention
	}
	return strings.TrimPrefix(mention, "@")
}

// toSlashResponse folds produced intents into one slash-command reply.
// Public intents make the reply visible in channel; everything else stays
// ephemeral to the caller.
func toSlashResponse(intents []intent.Intent) slashResponse {
	response := slashResponse{ResponseType: "ephemeral"}
	var texts []string
	for _, it := range intents {
		switch v := it.(type) {
		case intent.PublicAnnounce:
			response.ResponseType = "in_channel"
			texts = append(texts, v.Text)
		case intent.EphemeralNotice:
			texts = append(texts, v.Text)
		case intent.UpdateMessage:
			texts = append(texts, v.Text)
		}
	}
	if len(texts) == 0 {
		texts = []string{"Nothing to report."}
	}
	response.Text = strings.Join(texts, "\n")
	return response
}
