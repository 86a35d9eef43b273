// Package identitystore implements IdentityStore (C4): an in-memory cache
// of anonymousId/userId/groupId/advertisingId, write-through to a
// platform.KeyValueStore.
package identitystore

import (
	"github.com/google/uuid"

	"github.com/metarouter/go-sdk/internal/actor"
	"github.com/metarouter/go-sdk/internal/model"
	"github.com/metarouter/go-sdk/platform"
)

// Key layout (§6).
const (
	KeyAnonymousID   = "metarouter:anonymous_id"
	KeyUserID        = "metarouter:user_id"
	KeyGroupID       = "metarouter:group_id"
	KeyAdvertisingID = "metarouter:advertising_id"
)

// Store is the actor-serialized identity cache. All operations are
// serialized through a single actor (spec §5 names IdentityStore as one of
// the four single-writer actors).
type Store struct {
	act *actor.Actor
	kv  platform.KeyValueStore

	identity model.Identity
}

// New constructs a Store, loading all four fields from kv. If anonymousId
// is absent, a fresh v4 UUID is minted and persisted (§4.4).
func New(kv platform.KeyValueStore) *Store {
	s := &Store{act: actor.New(16), kv: kv}
	s.act.Submit(func() {
		s.identity = model.Identity{}
		if v, ok := kv.Get(KeyAnonymousID); ok && v != "" {
			s.identity.AnonymousID = v
		} else {
			s.identity.AnonymousID = uuid.New().String()
			_ = kv.Set(KeyAnonymousID, s.identity.AnonymousID)
		}
		if v, ok := kv.Get(KeyUserID); ok {
			s.identity.UserID = v
		}
		if v, ok := kv.Get(KeyGroupID); ok {
			s.identity.GroupID = v
		}
		if v, ok := kv.Get(KeyAdvertisingID); ok {
			s.identity.AdvertisingID = v
		}
	})
	return s
}

// Snapshot returns the current identity record.
func (s *Store) Snapshot() model.Identity {
	var out model.Identity
	s.act.Submit(func() { out = s.identity })
	return out
}

// SetUserID writes through userId.
func (s *Store) SetUserID(userID string) {
	s.act.Submit(func() {
		s.identity.UserID = userID
		_ = s.kv.Set(KeyUserID, userID)
	})
}

// SetGroupID writes through groupId.
func (s *Store) SetGroupID(groupID string) {
	s.act.Submit(func() {
		s.identity.GroupID = groupID
		_ = s.kv.Set(KeyGroupID, groupID)
	})
}

// SetAdvertisingID writes through advertisingId.
func (s *Store) SetAdvertisingID(advertisingID string) {
	s.act.Submit(func() {
		s.identity.AdvertisingID = advertisingID
		_ = s.kv.Set(KeyAdvertisingID, advertisingID)
	})
}

// Reset clears memory and removes all four keys; a subsequent New call
// regenerates anonymousId (§4.4, §8 "reset() followed by initialize()
// yields a different anonymousId").
func (s *Store) Reset() {
	s.act.Submit(func() {
		s.identity = model.Identity{}
		_ = s.kv.Delete(KeyAnonymousID)
		_ = s.kv.Delete(KeyUserID)
		_ = s.kv.Delete(KeyGroupID)
		_ = s.kv.Delete(KeyAdvertisingID)
	})
}

// Stop terminates the store's actor goroutine.
func (s *Store) Stop() { s.act.Stop() }
