package telerelay

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// channelMarker is the offset Bot-API style identifiers add to channel and
// supergroup ids: channel 1234567890 is addressed as -1001234567890.
const channelMarker int64 = 1_000_000_000_000

const supergroupPrefix = "-100"

// ChatRef is a chat identifier as written in the configuration file. It keeps
// whether the value was a JSON integer or a string, because only strings are
// subject to supergroup normalization.
type ChatRef struct {
	text    string
	literal bool
}

// ChatInt returns a ChatRef for an integer identifier.
func ChatInt(id int64) ChatRef {
	return ChatRef{text: strconv.FormatInt(id, 10), literal: true}
}

// ChatString returns a ChatRef for a string identifier.
func ChatString(s string) ChatRef {
	return ChatRef{text: strings.TrimSpace(s)}
}

func (r ChatRef) String() string { return r.text }

// IsZero reports whether the identifier is absent.
func (r ChatRef) IsZero() bool { return r.text == "" }

// IsLiteral reports whether the identifier was given as an integer.
func (r ChatRef) IsLiteral() bool { return r.literal }

// Key returns the canonical form used to match routes across reloads:
// the decimal integer when the identifier parses, the raw text otherwise.
func (r ChatRef) Key() string {
	if id, err := strconv.ParseInt(r.text, 10, 64); err == nil {
		return strconv.FormatInt(id, 10)
	}
	return r.text
}

// Int64 parses the identifier as-is, without supergroup normalization.
func (r ChatRef) Int64() (int64, error) {
	id, err := strconv.ParseInt(r.text, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w %q", ErrInvalidChatID, r.text)
	}
	return id, nil
}

func (r *ChatRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*r = ChatRef{}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*r = ChatString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidChatID, data)
	}
	id, err := n.Int64()
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidChatID, data)
	}
	*r = ChatInt(id)
	return nil
}

func (r ChatRef) MarshalJSON() ([]byte, error) {
	if r.literal {
		return []byte(r.text), nil
	}
	return json.Marshal(r.text)
}

// NormalizeChatID resolves a configured identifier to the integer used for
// sending:
//
//	integer          -> unchanged
//	"-100<digits>"   -> parsed as is (already supergroup form)
//	"-<digits>"      -> "-100<digits>"
//	"<digits>"       -> positive integer
func NormalizeChatID(ref ChatRef) (int64, error) {
	if ref.literal {
		return ref.Int64()
	}

	s := ref.text
	switch {
	case strings.HasPrefix(s, supergroupPrefix):
		if !isDigits(s[len(supergroupPrefix):]) {
			return 0, fmt.Errorf("%w %q", ErrInvalidChatID, s)
		}
		return ref.Int64()
	case strings.HasPrefix(s, "-"):
		if !isDigits(s[1:]) {
			return 0, fmt.Errorf("%w %q", ErrInvalidChatID, s)
		}
		return ChatString(supergroupPrefix + s[1:]).Int64()
	default:
		if !isDigits(s) {
			return 0, fmt.Errorf("%w %q", ErrInvalidChatID, s)
		}
		return ref.Int64()
	}
}

// ChannelPeerID returns the bare channel id used by the delivery fallback:
// the supergroup marker "-100" is stripped from the decimal form when digits
// follow it, otherwise only the sign is dropped.
func ChannelPeerID(id int64) int64 {
	s := strconv.FormatInt(id, 10)
	if rest, ok := strings.CutPrefix(s, supergroupPrefix); ok && rest != "" {
		bare, err := strconv.ParseInt(rest, 10, 64)
		if err == nil {
			return bare
		}
	}
	if id < 0 {
		return -id
	}
	return id
}

// peerKind classifies a Bot-API style identifier.
type peerKind int

const (
	peerUser peerKind = iota
	peerChat
	peerChannel
)

// splitMarkedID returns the kind and bare MTProto id of a Bot-API style
// identifier.
func splitMarkedID(id int64) (peerKind, int64) {
	switch {
	case id <= -channelMarker:
		return peerChannel, -id - channelMarker
	case id < 0:
		return peerChat, -id
	default:
		return peerUser, id
	}
}

func markChannelID(id int64) int64 { return -(channelMarker + id) }

func markChatID(id int64) int64 { return -id }

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
