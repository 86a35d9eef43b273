// Package enrich implements the Enricher (C6): combines a raw call with
// identity, context, messageId, writeKey, and timestamp into a wire event
// (§4.5).
package enrich

import (
	"time"

	"github.com/metarouter/go-sdk/internal/identitystore"
	"github.com/metarouter/go-sdk/internal/model"
)

// Enricher attaches identity/context/metadata to raw calls.
type Enricher struct {
	identity *identitystore.Store
	writeKey string
	now      func() time.Time
}

// New constructs an Enricher bound to identity and writeKey.
func New(identity *identitystore.Store, writeKey string) *Enricher {
	return &Enricher{identity: identity, writeKey: writeKey, now: time.Now}
}

// Enrich implements the §4.5 algorithm for a single raw call.
func (e *Enricher) Enrich(call model.RawCall, ctxRecord model.Context) model.EnrichedEvent {
	now := e.now().UTC()
	snap := e.identity.Snapshot()

	ev := model.EnrichedEvent{
		Type:        call.Kind(),
		AnonymousID: snap.AnonymousID,
		WriteKey:    e.writeKey,
		Context:     ctxRecord,
		MessageID:   model.NewMessageID(now.UnixMilli()),
		Timestamp:   now.Format(isoMillis),
	}
	// Fill userId/groupId from the stored identity when the raw call itself
	// carries neither; kind-specific cases below override as needed.
	if snap.HasUserID() {
		ev.UserID = snap.UserID
	}
	if snap.HasGroupID() {
		ev.GroupID = snap.GroupID
	}

	switch c := call.(type) {
	case model.Track:
		ev.Event = c.Event
		ev.Properties = c.Properties
		if c.Timestamp != "" {
			ev.Timestamp = c.Timestamp
		}
	case model.Identify:
		ev.UserID = c.UserID
		ev.Traits = c.Traits
		if c.Timestamp != "" {
			ev.Timestamp = c.Timestamp
		}
		e.identity.SetUserID(c.UserID)
	case model.Group:
		ev.GroupID = c.GroupID
		ev.Traits = c.Traits
		if c.GroupID != "" {
			ev.Properties = model.Fields{"groupId": model.StringValue(c.GroupID)}
		}
		if c.Timestamp != "" {
			ev.Timestamp = c.Timestamp
		}
		e.identity.SetGroupID(c.GroupID)
	case model.Screen:
		ev.Properties = mergeName(c.Properties, c.Name)
		if c.Timestamp != "" {
			ev.Timestamp = c.Timestamp
		}
	case model.Page:
		ev.Properties = mergeName(c.Properties, c.Name)
		if c.Timestamp != "" {
			ev.Timestamp = c.Timestamp
		}
	case model.Alias:
		ev.UserID = c.NewUserID
		if snap.HasUserID() {
			ev.Properties = model.Fields{"previousId": model.StringValue(snap.UserID)}
		}
		if c.Timestamp != "" {
			ev.Timestamp = c.Timestamp
		}
		e.identity.SetUserID(c.NewUserID)
	}

	return ev
}

func mergeName(props model.Fields, name string) model.Fields {
	out := make(model.Fields, len(props)+1)
	for k, v := range props {
		out[k] = v
	}
	out["name"] = model.StringValue(name)
	return out
}

// isoMillis is ISO-8601 UTC with millisecond precision (§3).
const isoMillis = "2006-01-02T15:04:05.000Z"
