package telerelay

import "github.com/gotd/td/tg"

// Message is an inbound chat message as seen by routes.
type Message struct {
	// ID is the message id within its chat.
	ID int

	// ChatID is the Bot-API style id of the chat the message was posted in:
	// -100<id> for channels and supergroups, -<id> for basic groups, <id> for users.
	ChatID int64

	// SenderID is the sending user's id, 0 for anonymous channel posts.
	SenderID int64

	// Out is true for messages sent by the account itself.
	Out bool

	// Body is the rendered text of a text message.
	Body string

	// Caption is the rendered text attached to a media message.
	Caption string

	// Raw is the unformatted text and Entities its formatting, as received.
	Raw      string
	Entities []tg.MessageEntityClass

	// Media is the attached media, nil for text messages.
	Media tg.MessageMediaClass

	// peer addresses the source chat for forwarding; set by the client.
	peer tg.InputPeerClass
}

// Text returns the body, else the caption, else "".
func (m *Message) Text() string {
	if m.Body != "" {
		return m.Body
	}
	return m.Caption
}

// newMessage converts a raw Telegram message. Text is rendered with its
// formatting markup, into Caption when media is attached.
func newMessage(msg *tg.Message) *Message {
	m := &Message{
		ID:       msg.ID,
		ChatID:   peerChatID(msg.PeerID),
		Out:      msg.Out,
		Raw:      msg.Message,
		Entities: msg.Entities,
		Media:    msg.Media,
	}

	// FromID is set in groups and channels; private chats use PeerID.
	if user, ok := msg.FromID.(*tg.PeerUser); ok {
		m.SenderID = user.UserID
	} else if user, ok := msg.PeerID.(*tg.PeerUser); ok {
		m.SenderID = user.UserID
	}

	rendered := EntitiesToMarkdown(msg.Message, msg.Entities)
	if msg.Media != nil {
		m.Caption = rendered
	} else {
		m.Body = rendered
	}
	return m
}

// peerChatID returns the Bot-API style id of a peer.
func peerChatID(peer tg.PeerClass) int64 {
	switch p := peer.(type) {
	case *tg.PeerChannel:
		return markChannelID(p.ChannelID)
	case *tg.PeerChat:
		return markChatID(p.ChatID)
	case *tg.PeerUser:
		return p.UserID
	}
	return 0
}
