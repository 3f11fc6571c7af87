package domain

// Event is one inbound chat message for a company's channel. Payload is either
// TextEvent or AudioEvent.
type Event struct {
	ChannelID   string
	SenderPhone string
	MessageID   string
	Payload     Payload
}

// Payload is implemented only by the event kinds in this package.
type Payload interface {
	payloadKind() string
}

// TextEvent carries a typed reply.
type TextEvent struct {
	Text string
}

// AudioEvent carries a voice note.
type AudioEvent struct {
	Data []byte
	Mime string
}

func (TextEvent) payloadKind() string  { return "text" }
func (AudioEvent) payloadKind() string { return "audio" }

// Kind returns "text", "audio" or "" when the event has no payload.
func (e Event) Kind() string {
	if e.Payload == nil {
		return ""
	}
	return e.Payload.payloadKind()
}
