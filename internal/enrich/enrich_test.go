package enrich

import (
	"testing"

	"github.com/metarouter/go-sdk/internal/identitystore"
	"github.com/metarouter/go-sdk/internal/model"
)

func newStore(t *testing.T) *identitystore.Store {
	t.Helper()
	return identitystore.New(identitystore.NewMemoryKV())
}

func TestEnrichTrack(t *testing.T) {
	store := newStore(t)
	e := New(store, "wk")

	ev := e.Enrich(model.Track{Event: "E", Properties: model.Fields{"k": model.StringValue("v")}}, model.Context{})

	if ev.Type != "track" {
		t.Errorf("expected type track, got %s", ev.Type)
	}
	if ev.Event != "E" {
		t.Errorf("expected event E, got %s", ev.Event)
	}
	if ev.WriteKey != "wk" {
		t.Errorf("expected writeKey wk, got %s", ev.WriteKey)
	}
	if ev.AnonymousID == "" {
		t.Error("expected anonymousId to be populated")
	}
	if !ev.MessageID.Valid() {
		t.Errorf("expected valid messageId, got %q", ev.MessageID)
	}
	if ev.SentAt != "" {
		t.Errorf("expected sentAt unset at enrichment time, got %q", ev.SentAt)
	}
}

func TestEnrichIdentifyUpdatesIdentityAndFillsUserID(t *testing.T) {
	store := newStore(t)
	e := New(store, "wk")

	ev := e.Enrich(model.Identify{UserID: "u1", Traits: model.Fields{"plan": model.StringValue("pro")}}, model.Context{})
	if ev.UserID != "u1" {
		t.Errorf("expected userId u1, got %s", ev.UserID)
	}
	if store.Snapshot().UserID != "u1" {
		t.Errorf("expected identity store updated, got %s", store.Snapshot().UserID)
	}

	// Subsequent track should pick up the stored userId.
	trackEv := e.Enrich(model.Track{Event: "later"}, model.Context{})
	if trackEv.UserID != "u1" {
		t.Errorf("expected subsequent track to inherit userId, got %s", trackEv.UserID)
	}
}

func TestEnrichAliasCarriesPreviousID(t *testing.T) {
	store := newStore(t)
	e := New(store, "wk")
	e.Enrich(model.Identify{UserID: "old"}, model.Context{})

	ev := e.Enrich(model.Alias{NewUserID: "new"}, model.Context{})
	if ev.UserID != "new" {
		t.Errorf("expected userId new, got %s", ev.UserID)
	}
	prev, ok := ev.Properties["previousId"].(model.StringValue)
	if !ok || string(prev) != "old" {
		t.Errorf("expected previousId=old, got %v", ev.Properties["previousId"])
	}
}

func TestEnrichGroupSetsGroupIDProperty(t *testing.T) {
	store := newStore(t)
	e := New(store, "wk")

	ev := e.Enrich(model.Group{GroupID: "g1"}, model.Context{})
	if ev.GroupID != "g1" {
		t.Errorf("expected groupId g1, got %s", ev.GroupID)
	}
	gid, ok := ev.Properties["groupId"].(model.StringValue)
	if !ok || string(gid) != "g1" {
		t.Errorf("expected properties.groupId=g1, got %v", ev.Properties["groupId"])
	}
	if store.Snapshot().GroupID != "g1" {
		t.Errorf("expected identity store groupId updated")
	}
}

func TestEnrichScreenMergesName(t *testing.T) {
	store := newStore(t)
	e := New(store, "wk")

	ev := e.Enrich(model.Screen{Name: "Home", Properties: model.Fields{"foo": model.StringValue("bar")}}, model.Context{})
	name, ok := ev.Properties["name"].(model.StringValue)
	if !ok || string(name) != "Home" {
		t.Errorf("expected properties.name=Home, got %v", ev.Properties["name"])
	}
	if ev.Properties["foo"] != model.StringValue("bar") {
		t.Errorf("expected original properties preserved")
	}
}
