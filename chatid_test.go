package telerelay

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestNormalizeChatID(t *testing.T) {
	tests := []struct {
		name    string
		ref     ChatRef
		want    int64
		wantErr bool
	}{
		{name: "integer unchanged", ref: ChatInt(-1001234567890), want: -1001234567890},
		{name: "negative integer is not rewritten", ref: ChatInt(-1234567890), want: -1234567890},
		{name: "positive integer", ref: ChatInt(777000), want: 777000},
		{name: "string already supergroup", ref: ChatString("-1001234567890"), want: -1001234567890},
		{name: "string negative gets marker", ref: ChatString("-1234567890"), want: -1001234567890},
		{name: "string digits", ref: ChatString("1234567890"), want: 1234567890},
		{name: "string with spaces", ref: ChatString("  -42  "), want: -10042},
		{name: "string not a number", ref: ChatString("@channel"), wantErr: true},
		{name: "string bare sign", ref: ChatString("-"), wantErr: true},
		{name: "string bare marker", ref: ChatString("-100"), wantErr: true},
		{name: "string double sign", ref: ChatString("--5"), wantErr: true},
		{name: "empty", ref: ChatRef{}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeChatID(tt.ref)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("NormalizeChatID(%q) = %d, want error", tt.ref, got)
				}
				if !errors.Is(err, ErrInvalidChatID) {
					t.Errorf("NormalizeChatID(%q) error = %v, want ErrInvalidChatID", tt.ref, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("NormalizeChatID(%q) error = %v", tt.ref, err)
			}
			if got != tt.want {
				t.Errorf("NormalizeChatID(%q) = %d, want %d", tt.ref, got, tt.want)
			}
		})
	}
}

func TestChannelPeerID(t *testing.T) {
	tests := []struct {
		id   int64
		want int64
	}{
		{id: -1001234567890, want: 1234567890},
		{id: -1009, want: 9},
		{id: -12345, want: 12345},
		{id: -100, want: 100},
		{id: 42, want: 42},
	}

	for _, tt := range tests {
		if got := ChannelPeerID(tt.id); got != tt.want {
			t.Errorf("ChannelPeerID(%d) = %d, want %d", tt.id, got, tt.want)
		}
	}
}

func TestSplitMarkedID(t *testing.T) {
	tests := []struct {
		id       int64
		wantKind peerKind
		wantID   int64
	}{
		{id: -1001234567890, wantKind: peerChannel, wantID: 1234567890},
		{id: -4567, wantKind: peerChat, wantID: 4567},
		{id: 4567, wantKind: peerUser, wantID: 4567},
	}

	for _, tt := range tests {
		kind, id := splitMarkedID(tt.id)
		if kind != tt.wantKind || id != tt.wantID {
			t.Errorf("splitMarkedID(%d) = (%d, %d), want (%d, %d)", tt.id, kind, id, tt.wantKind, tt.wantID)
		}
		if tt.wantKind == peerChannel && markChannelID(id) != tt.id {
			t.Errorf("markChannelID(%d) = %d, want %d", id, markChannelID(id), tt.id)
		}
	}
}

func TestChatRefJSON(t *testing.T) {
	var v struct {
		Source      ChatRef `json:"source"`
		Destination ChatRef `json:"destination"`
		Missing     ChatRef `json:"missing"`
	}
	data := `{"source": -1001234567890, "destination": "-987654321", "missing": null}`
	if err := json.Unmarshal([]byte(data), &v); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	if !v.Source.IsLiteral() || v.Source.String() != "-1001234567890" {
		t.Errorf("source = %q (literal %v), want literal -1001234567890", v.Source, v.Source.IsLiteral())
	}
	if v.Destination.IsLiteral() || v.Destination.String() != "-987654321" {
		t.Errorf("destination = %q (literal %v), want string -987654321", v.Destination, v.Destination.IsLiteral())
	}
	if !v.Missing.IsZero() {
		t.Errorf("missing = %q, want zero", v.Missing)
	}

	out, err := json.Marshal(v.Destination)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if string(out) != `"-987654321"` {
		t.Errorf("Marshal(destination) = %s, want quoted string", out)
	}

	if err := json.Unmarshal([]byte(`1.5`), &v.Source); !errors.Is(err, ErrInvalidChatID) {
		t.Errorf("Unmarshal(1.5) error = %v, want ErrInvalidChatID", err)
	}
}

func TestChatRefKey(t *testing.T) {
	if ChatInt(-100123).Key() != ChatString("-100123").Key() {
		t.Error("integer and string forms of the same id should share a key")
	}
	if ChatString("-123").Key() == ChatString("-100123").Key() {
		t.Error("key must not normalize supergroup form")
	}
	if got := ChatString("@name").Key(); got != "@name" {
		t.Errorf("Key() = %q, want raw text", got)
	}
}
