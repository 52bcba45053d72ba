// Package command translates inbound actions into rotation engine calls and
// produces outbound intents. It performs no I/O of its own: transport and
// delivery belong to the http and slack packages.
package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/example/rotabot/internal/history"
	"github.com/example/rotabot/internal/intent"
	"github.com/example/rotabot/internal/rotation"
)

const (
	noMembersText  = "No members are configured for the rotation."
	internalText   = "Something went wrong, please try again."
	historyDefault = 10
)

// HistorySource reads recent audit events for the history subcommand.
type HistorySource interface {
	Recent(ctx context.Context, limit int) ([]history.Event, error)
}

// Commands maps inbound actions to engine and roster calls.
type Commands struct {
	engine  *rotation.Engine
	channel string
	logger  *slog.Logger
	history HistorySource
}

// NewCommands wires the command interface. channel is the announcement
// destination used by Announce.
func NewCommands(engine *rotation.Engine, channel string, logger *slog.Logger) *Commands {
	if logger == nil {
		logger = slog.Default()
	}
	return &Commands{engine: engine, channel: channel, logger: logger}
}

// SetHistory installs the audit-trail reader backing the history
// subcommand. Without it the subcommand reports that history is disabled.
func (c *Commands) SetHistory(source HistorySource) { c.history = source }

// Announce runs the reminder transition and produces the announcement with
// its confirm/skip controls. An empty roster is logged, not surfaced: no
// user is waiting on a reminder.
func (c *Commands) Announce(ctx context.Context) []intent.Intent {
	assignment, err := c.engine.Announce(ctx)
	if err != nil {
		if errors.Is(err, rotation.ErrRosterEmpty) {
			c.logger.Warn("reminder skipped, roster is empty")
		} else {
			c.logger.Error("announce failed", "error", err)
		}
		return nil
	}

	return []intent.Intent{intent.PublicAnnounce{
		Channel: c.channel,
		Text:    fmt.Sprintf("<@%s> is responsible for today's task.", assignment.Member),
		Controls: []intent.Control{
			{Name: "confirm", Label: "Confirm", Value: assignment.Member},
			{Name: "skip", Label: "Skip", Value: "skip"},
		},
	}}
}

// Confirm handles a confirm button press. Only the current assignee may
// confirm; anyone else gets a private denial and state is untouched.
func (c *Commands) Confirm(ctx context.Context, actor, claimed, channel, messageTS string) []intent.Intent {
	res, err := c.engine.Confirm(ctx, actor, claimed)
	switch {
	case err == nil:
		return []intent.Intent{intent.UpdateMessage{
			Channel:   channel,
			Timestamp: messageTS,
			Text:      fmt.Sprintf(":white_check_mark: <@%s> confirmed today's task. <@%s> is up next.", actor, res.NextUp),
		}}
	case errors.Is(err, rotation.ErrNotAssignee):
		return []intent.Intent{intent.EphemeralNotice{
			Channel: channel,
			User:    actor,
			Text:    fmt.Sprintf("Only <@%s> can confirm this assignment.", res.Assignee),
		}}
	case errors.Is(err, rotation.ErrRosterEmpty):
		return []intent.Intent{intent.EphemeralNotice{Channel: channel, User: actor, Text: noMembersText}}
	default:
		c.logger.Error("confirm failed", "actor", actor, "error", err)
		return []intent.Intent{intent.EphemeralNotice{Channel: channel, User: actor, Text: internalText}}
	}
}

// Skip hands the assignment to the next member and rewrites the reminder
// message naming both sides of the handoff.
func (c *Commands) Skip(ctx context.Context, actor, channel, messageTS string) []intent.Intent {
	res, err := c.engine.Skip(ctx, actor)
	switch {
	case err == nil:
		return []intent.Intent{intent.UpdateMessage{
			Channel:   channel,
			Timestamp: messageTS,
			Text:      fmt.Sprintf("<@%s> skipped today's task. <@%s> is now responsible.", res.Outgoing, res.Incoming),
		}}
	case errors.Is(err, rotation.ErrRosterEmpty):
		return []intent.Intent{intent.EphemeralNotice{Channel: channel, User: actor, Text: noMembersText}}
	default:
		c.logger.Error("skip failed", "actor", actor, "error", err)
		return []intent.Intent{intent.EphemeralNotice{Channel: channel, User: actor, Text: internalText}}
	}
}

// Roster dispatches the /rotation slash command. Every path produces a
// textual response, including failures.
func (c *Commands) Roster(ctx context.Context, subcommand, argument, channel, actor string) []intent.Intent {
	switch strings.ToLower(strings.TrimSpace(subcommand)) {
	case "", "list":
		return c.list(ctx, channel, actor)
	case "add":
		return c.add(ctx, argument, channel, actor)
	case "remove":
		return c.remove(ctx, argument, channel, actor)
	case "history":
		return c.recentHistory(ctx, channel, actor)
	default:
		return []intent.Intent{intent.EphemeralNotice{
			Channel: channel,
			User:    actor,
			Text:    "Usage: /rotation [list|add <member>|remove <member>|history]",
		}}
	}
}

func (c *Commands) list(ctx context.Context, channel, actor string) []intent.Intent {
	overview := c.engine.Overview(ctx)
	if len(overview.Record.Members) == 0 {
		return []intent.Intent{intent.EphemeralNotice{Channel: channel, User: actor, Text: noMembersText}}
	}

	var b strings.Builder
	b.WriteString("Rotation roster:")
	for i, member := range overview.Record.Members {
		b.WriteString(fmt.Sprintf("\n%d. <@%s>", i+1, member))
		switch i {
		case overview.CurrentIndex:
			b.WriteString(" (current)")
		case overview.NextIndex:
			b.WriteString(" (next)")
		}
	}
	return []intent.Intent{intent.EphemeralNotice{Channel: channel, User: actor, Text: b.String()}}
}

func (c *Commands) add(ctx context.Context, member, channel, actor string) []intent.Intent {
	_, err := c.engine.AddMember(ctx, actor, member)
	switch {
	case err == nil:
		return []intent.Intent{intent.PublicAnnounce{
			Channel: channel,
			Text:    fmt.Sprintf("Added <@%s> to the rotation.", strings.TrimSpace(member)),
		}}
	case errors.Is(err, rotation.ErrAlreadyPresent):
		return []intent.Intent{intent.EphemeralNotice{
			Channel: channel,
			User:    actor,
			Text:    fmt.Sprintf("<@%s> is already in the rotation.", strings.TrimSpace(member)),
		}}
	case errors.Is(err, rotation.ErrInvalidMember):
		return []intent.Intent{intent.EphemeralNotice{Channel: channel, User: actor, Text: "Usage: /rotation add <member>"}}
	default:
		c.logger.Error("roster add failed", "member", member, "error", err)
		return []intent.Intent{intent.EphemeralNotice{Channel: channel, User: actor, Text: internalText}}
	}
}

func (c *Commands) remove(ctx context.Context, member, channel, actor string) []intent.Intent {
	_, err := c.engine.RemoveMember(ctx, actor, member)
	switch {
	case err == nil:
		return []intent.Intent{intent.PublicAnnounce{
			Channel: channel,
			Text:    fmt.Sprintf("Removed <@%s> from the rotation.", strings.TrimSpace(member)),
		}}
	case errors.Is(err, rotation.ErrNotFound):
		return []intent.Intent{intent.EphemeralNotice{
			Channel: channel,
			User:    actor,
			Text:    fmt.Sprintf("<@%s> is not in the rotation.", strings.TrimSpace(member)),
		}}
	case errors.Is(err, rotation.ErrLastMember):
		return []intent.Intent{intent.EphemeralNotice{
			Channel: channel,
			User:    actor,
			Text:    "Cannot remove the last member of the rotation.",
		}}
	case errors.Is(err, rotation.ErrInvalidMember):
		return []intent.Intent{intent.EphemeralNotice{Channel: channel, User: actor, Text: "Usage: /rotation remove <member>"}}
	default:
		c.logger.Error("roster remove failed", "member", member, "error", err)
		return []intent.Intent{intent.EphemeralNotice{Channel: channel, User: actor, Text: internalText}}
	}
}

func (c *Commands) recentHistory(ctx context.Context, channel, actor string) []intent.Intent {
	if c.history == nil {
		return []intent.Intent{intent.EphemeralNotice{Channel: channel, User: actor, Text: "Rotation history is disabled."}}
	}

	events, err := c.history.Recent(ctx, historyDefault)
	if err != nil {
		c.logger.Error("history query failed", "error", err)
		return []intent.Intent{intent.EphemeralNotice{Channel: channel, User: actor, Text: internalText}}
	}
	if len(events) == 0 {
		return []intent.Intent{intent.EphemeralNotice{Channel: channel, User: actor, Text: "No rotation history yet."}}
	}

	var b strings.Builder
	b.WriteString("Recent rotation events:")
	for _, event := range events {
		b.WriteString("\n" + formatEvent(event))
	}
	return []intent.Intent{intent.EphemeralNotice{Channel: channel, User: actor, Text: b.String()}}
}

func formatEvent(event history.Event) string {
	stamp := event.At.Format("2006-01-02 15:04")
	switch event.Kind {
	case history.KindAnnounced:
		return fmt.Sprintf("%s - announced <@%s>", stamp, event.Incoming)
	case history.KindConfirmed:
		return fmt.Sprintf("%s - <@%s> confirmed", stamp, event.Actor)
	case history.KindDenied:
		return fmt.Sprintf("%s - <@%s> tried to confirm for <@%s>", stamp, event.Actor, event.Incoming)
	case history.KindSkipped:
		return fmt.Sprintf("%s - <@%s> skipped to <@%s>", stamp, event.Outgoing, event.Incoming)
	case history.KindMemberAdded:
		return fmt.Sprintf("%s - added <@%s>", stamp, event.Incoming)
	case history.KindMemberRemoved:
		return fmt.Sprintf("%s - removed <@%s>", stamp, event.Outgoing)
	default:
		return fmt.Sprintf("%s - %s", stamp, event.Kind)
	}
}
