package telerelay

import "context"

// Client is the chat-service connection an Account drives.
type Client interface {
	// Connect authenticates and starts receiving updates. It returns once
	// the client is ready or has failed; the connection itself outlives ctx
	// and ends at Disconnect.
	Connect(ctx context.Context) error

	// Disconnect closes the connection and waits for it to shut down.
	Disconnect() error

	// Subscribe registers fn for new messages accepted by filter. Each
	// matching message is handled independently.
	Subscribe(filter Filter, fn HandlerFunc) *Subscription

	// Send delivers a copy of out.Message to the destination.
	Send(ctx context.Context, to Peer, out *Outgoing) error

	// SendText sends a plain text message.
	SendText(ctx context.Context, to Peer, text string) error
}

// Peer addresses a destination chat.
type Peer struct {
	// ID is a Bot-API style identifier, or a bare channel id when Channel is set.
	ID int64

	// Channel addresses ID directly as a channel peer.
	Channel bool
}

// Outgoing is a message to deliver.
type Outgoing struct {
	// Message is the inbound message being relayed.
	Message *Message

	// Text is the text to deliver, Message.Raw after transformation.
	Text string

	// Shift is the number of UTF-16 units prepended to Message.Raw;
	// formatting entities move by this amount.
	Shift int

	// Modified is false when Text equals Message.Raw.
	Modified bool
}
