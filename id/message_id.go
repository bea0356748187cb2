package id

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// MessageID is distinct from the ID[K] family: unlike other record IDs it
// is not necessarily a bare UUID, because message IDs
// must round-trip through model-provider APIs (Anthropic/OpenAI) that
// assign their own arbitrary opaque strings. A MessageID generated locally
// still carries the conventional "msg_" prefix for readability in logs, but
// MessageID accepts and stores any non-empty string.
type MessageID struct {
	value string
}

// NewMessageID mints a locally-generated message ID of the form
// "msg_<uuid>".
func NewMessageID() MessageID {
	return MessageID{value: "msg_" + uuid.New().String()}
}

// MessageIDFromProvider wraps an arbitrary provider-assigned string as a
// MessageID without rewriting it.
func MessageIDFromProvider(raw string) MessageID {
	return MessageID{value: raw}
}

// MessageIDFromString parses a stored column value back into a MessageID,
// rejecting the empty string so callers get the same error-checked
// round-trip every other ID field on Message gets.
func MessageIDFromString(s string) (MessageID, error) {
	if s == "" {
		return MessageID{}, fmt.Errorf("id: empty message id")
	}
	return MessageID{value: s}, nil
}

// NilMessageID is the sentinel empty message ID.
func NilMessageID() MessageID {
	return MessageID{value: "msg_nil"}
}

func (m MessageID) String() string { return m.value }

func (m MessageID) IsNil() bool {
	return m.value == "" || m.value == "msg_nil"
}

func (m MessageID) MarshalText() ([]byte, error) {
	return []byte(m.value), nil
}

func (m *MessageID) UnmarshalText(text []byte) error {
	m.value = string(text)
	return nil
}

func (m MessageID) Equal(other MessageID) bool {
	return m.value == other.value
}

// LooksGenerated reports whether this ID was minted locally (carries the
// "msg_" convention) as opposed to assigned by a model provider.
func (m MessageID) LooksGenerated() bool {
	return strings.HasPrefix(m.value, "msg_")
}
