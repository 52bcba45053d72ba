package http

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/example/rotabot/internal/intent"
)

type runnerCall struct {
	method     string
	actor      string
	claimed    string
	channel    string
	messageTS  string
	subcommand string
	argument   string
}

type fakeRunner struct {
	calls   []runnerCall
	intents []intent.Intent
}

func (f *fakeRunner) Confirm(_ context.Context, actor, claimed, channel, messageTS string) []intent.Intent {
	f.calls = append(f.calls, runnerCall{method: "confirm", actor: actor, claimed: claimed, channel: channel, messageTS: messageTS})
	return f.intents
}

func (f *fakeRunner) Skip(_ context.Context, actor, channel, messageTS string) []intent.Intent {
	f.calls = append(f.calls, runnerCall{method: "skip", actor: actor, channel: channel, messageTS: messageTS})
	return f.intents
}

func (f *fakeRunner) Roster(_ context.Context, subcommand, argument, channel, actor string) []intent.Intent {
	f.calls = append(f.calls, runnerCall{method: "roster", subcommand: subcommand, argument: argument, channel: channel, actor: actor})
	return f.intents
}

type fakeDeliverer struct {
	batches [][]intent.Intent
}

func (f *fakeDeliverer) Deliver(_ context.Context, intents []intent.Intent) {
	f.batches = append(f.batches, intents)
}

func postForm(t *testing.T, handler http.HandlerFunc, values url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func interactionPayload(action, value string) url.Values {
	payload := fmt.Sprintf(`{
		"type": "interactive_message",
		"user": {"id": "U2"},
		"channel": {"id": "C123"},
		"message": {"ts": "1700000000.000100"},
		"actions": [{"name": %q, "value": %q}]
	}`, action, value)
	return url.Values{"payload": {payload}}
}

func TestSlackHandler_Events(t *testing.T) {
	t.Run("confirm button", func(t *testing.T) {
		runner := &fakeRunner{intents: []intent.Intent{intent.UpdateMessage{Text: "done"}}}
		deliverer := &fakeDeliverer{}
		handler := NewSlackHandler(runner, deliverer, slog.Default())

		rec := postForm(t, handler.Events, interactionPayload("confirm", "U1"))
		require.Equal(t, http.StatusOK, rec.Code)

		require.Len(t, runner.calls, 1)
		call := runner.calls[0]
		require.Equal(t, "confirm", call.method)
		require.Equal(t, "U2", call.actor)
		require.Equal(t, "U1", call.claimed)
		require.Equal(t, "C123", call.channel)
		require.Equal(t, "1700000000.000100", call.messageTS)

		require.Len(t, deliverer.batches, 1)
		require.Equal(t, runner.intents, deliverer.batches[0])
	})

	t.Run("skip button", func(t *testing.T) {
		runner := &fakeRunner{}
		deliverer := &fakeDeliverer{}
		handler := NewSlackHandler(runner, deliverer, slog.Default())

		rec := postForm(t, handler.Events, interactionPayload("skip", "skip"))
		require.Equal(t, http.StatusOK, rec.Code)
		require.Len(t, runner.calls, 1)
		require.Equal(t, "skip", runner.calls[0].method)
		require.Equal(t, "U2", runner.calls[0].actor)
	})

	t.Run("unknown action", func(t *testing.T) {
		runner := &fakeRunner{}
		handler := NewSlackHandler(runner, &fakeDeliverer{}, slog.Default())

		rec := postForm(t, handler.Events, interactionPayload("snooze", ""))
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Empty(t, runner.calls)
	})

	t.Run("missing payload", func(t *testing.T) {
		handler := NewSlackHandler(&fakeRunner{}, &fakeDeliverer{}, slog.Default())

		rec := postForm(t, handler.Events, url.Values{})
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("malformed payload", func(t *testing.T) {
		handler := NewSlackHandler(&fakeRunner{}, &fakeDeliverer{}, slog.Default())

		rec := postForm(t, handler.Events, url.Values{"payload": {"{not json"}})
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("payload without actions", func(t *testing.T) {
		handler := NewSlackHandler(&fakeRunner{}, &fakeDeliverer{}, slog.Default())

		rec := postForm(t, handler.Events, url.Values{"payload": {`{"user": {"id": "U2"}, "actions": []}`}})
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestSlackHandler_Commands(t *testing.T) {
	decode := func(t *testing.T, rec *httptest.ResponseRecorder) slashResponse {
		t.Helper()
		var response slashResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
		return response
	}

	t.Run("dispatches subcommand and argument", func(t *testing.T) {
		runner := &fakeRunner{intents: []intent.Intent{intent.EphemeralNotice{Text: "Added <@U3> to the rotation."}}}
		handler := NewSlackHandler(runner, &fakeDeliverer{}, slog.Default())

		rec := postForm(t, handler.Commands, url.Values{
			"user_id":    {"U1"},
			"channel_id": {"C123"},
			"text":       {"add <@U3|carol>"},
		})
		require.Equal(t, http.StatusOK, rec.Code)

		require.Len(t, runner.calls, 1)
		call := runner.calls[0]
		require.Equal(t, "roster", call.method)
		require.Equal(t, "add", call.subcommand)
		require.Equal(t, "U3", call.argument)
		require.Equal(t, "C123", call.channel)
		require.Equal(t, "U1", call.actor)
	})

	t.Run("public intents respond in channel", func(t *testing.T) {
		runner := &fakeRunner{intents: []intent.Intent{intent.PublicAnnounce{Text: "Added <@U3> to the rotation."}}}
		handler := NewSlackHandler(runner, &fakeDeliverer{}, slog.Default())

		rec := postForm(t, handler.Commands, url.Values{"user_id": {"U1"}, "channel_id": {"C123"}, "text": {"add U3"}})
		response := decode(t, rec)
		require.Equal(t, "in_channel", response.ResponseType)
		require.Equal(t, "Added <@U3> to the rotation.", response.Text)
	})

	t.Run("ephemeral intents stay private", func(t *testing.T) {
		runner := &fakeRunner{intents: []intent.Intent{intent.EphemeralNotice{Text: "Rotation roster:"}}}
		handler := NewSlackHandler(runner, &fakeDeliverer{}, slog.Default())

		rec := postForm(t, handler.Commands, url.Values{"user_id": {"U1"}, "channel_id": {"C123"}, "text": {"list"}})
		response := decode(t, rec)
		require.Equal(t, "ephemeral", response.ResponseType)
	})

	t.Run("no intents yields a fallback reply", func(t *testing.T) {
		handler := NewSlackHandler(&fakeRunner{}, &fakeDeliverer{}, slog.Default())

		rec := postForm(t, handler.Commands, url.Values{"user_id": {"U1"}, "channel_id": {"C123"}, "text": {""}})
		response := decode(t, rec)
		require.Equal(t, "Nothing to report.", response.Text)
	})
}

func TestSplitCommandText(t *testing.T) {
	cases := []struct {
		text           string
		wantSubcommand string
		wantArgument   string
	}{
		{text: "", wantSubcommand: "", wantArgument: ""},
		{text: "  list  ", wantSubcommand: "list", wantArgument: ""},
		{text: "add U3", wantSubcommand: "add", wantArgument: "U3"},
		{text: "add @U3", wantSubcommand: "add", wantArgument: "U3"},
		{text: "add <@U3>", wantSubcommand: "add", wantArgument: "U3"},
		{text: "remove <@U3|carol>", wantSubcommand: "remove", wantArgument: "U3"},
		{text: "add U3 extra words", wantSubcommand: "add", wantArgument: "U3"},
	}
	for _, tc := range cases {
		subcommand, argument := splitCommandText(tc.text)
		require.Equal(t, tc.wantSubcommand, subcommand, "text %q", tc.text)
		require.Equal(t, tc.wantArgument, argument, "text %q", tc.text)
	}
}
