package model

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// MessageID is "{epochMillis}-{uuidV4}" (§3).
type MessageID string

// NewMessageID mints a fresh id for epochMillis.
func NewMessageID(epochMillis int64) MessageID {
	return MessageID(fmt.Sprintf("%d-%s", epochMillis, uuid.New().String()))
}

// Valid reports whether the id's first dash-separated segment parses as a
// signed 64-bit integer and the remaining five segments form a lexically
// valid UUID.
func (m MessageID) Valid() bool {
	_, ok := m.parse()
	return ok
}

// EpochMillis returns the embedded timestamp and whether the id parsed.
func (m MessageID) EpochMillis() (int64, bool) {
	return m.parse()
}

func (m MessageID) parse() (int64, bool) {
	parts := strings.Split(string(m), "-")
	if len(parts) != 6 {
		return 0, false
	}
	epoch, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, false
	}
	if _, err := uuid.Parse(strings.Join(parts[1:], "-")); err != nil {
		return 0, false
	}
	return epoch, true
}

// EnrichedEvent is the queue element and wire element (§3): the raw call's
// fields plus identity, context, and dispatch metadata.
type EnrichedEvent struct {
	Type string `json:"type"`

	// Kind-dependent fields; only the ones relevant to Type are populated.
	Event string `json:"event,omitempty"`

	AnonymousID string `json:"anonymousId"`
	UserID      string `json:"userId,omitempty"`
	GroupID     string `json:"groupId,omitempty"`

	Properties   Fields `json:"properties,omitempty"`
	Traits       Fields `json:"traits,omitempty"`
	Integrations Fields `json:"integrations,omitempty"`

	Timestamp string    `json:"timestamp"`
	SentAt    string    `json:"sentAt,omitempty"`
	WriteKey  string    `json:"writeKey"`
	MessageID MessageID `json:"messageId"`
	Context   Context   `json:"context"`
}

// Batch is an ordered slice of enriched events, wrapped as {"batch":[...]}
// on the wire (§3).
type Batch []EnrichedEvent

// WireBatch is the top-level envelope the ingestion endpoint expects (§6).
type WireBatch struct {
	Batch Batch `json:"batch"`
}
