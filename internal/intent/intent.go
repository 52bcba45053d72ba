// Package intent models outbound chat messages as a closed set of typed
// variants. The rotation core produces intents; only the Slack delivery
// layer turns them into API calls.
package intent

// Intent is an outbound message intent. The set of implementations is
// closed: PublicAnnounce, UpdateMessage, and EphemeralNotice.
type Intent interface {
	isIntent()
}

// Control is an interactive button attached to a message.
type Control struct {
	Name  string
	Label string
	Value string
}

// PublicAnnounce posts a new message to a channel.
type PublicAnnounce struct {
	Channel  string
	Text     string
	Controls []Control
}

// UpdateMessage rewrites an existing message in place. A nil Controls
// slice removes any interactive controls from the message.
type UpdateMessage struct {
	Channel   string
	Timestamp string
	Text      string
	Controls  []Control
}

// EphemeralNotice shows a message only to one user in a channel.
type EphemeralNotice struct {
	Channel string
	User    string
	Text    string
}

func (PublicAnnounce) isIntent()  {}
func (UpdateMessage) isIntent()   {}
func (EphemeralNotice) isIntent() {}
