////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package conversations

import (
	"encoding/json"
	"sync"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
	"gitlab.com/xx_network/primitives/netTime"

	"github.com/ephemeraHQ/converse-core/storage/versioned"
)

// Storage values.
const (
	legacyStoragePrefix  = "LegacyBlockStore"
	legacyListStorageKey = "LegacyBlockList"
	legacyListVersion    = 0
)

// Error messages.
const (
	legacySaveErr   = "failed to save legacy block list: %+v"
	legacyExistsErr = "topic %s is already flagged blocked"
	legacyAbsentErr = "topic %s is not flagged blocked"
)

// LegacyBlockStore persists the topics of legacy-protocol
// conversations the identity has blocked. The protocol knows nothing
// about these; they exist only client-side and are merged into the
// denied bucket at read time.
type LegacyBlockStore struct {
	topics []string
	kv     *versioned.KV
	mux    sync.RWMutex
}

// NewOrLoadLegacyBlockStore loads the block list from storage or
// creates an empty one if none exists.
func NewOrLoadLegacyBlockStore(kv *versioned.KV) *LegacyBlockStore {
	kv = kv.Prefix(legacyStoragePrefix)
	s := &LegacyBlockStore{kv: kv}

	obj, err := kv.Get(legacyListStorageKey, legacyListVersion)
	if err != nil {
		// No list saved yet; start empty.
		return s
	}
	if err = json.Unmarshal(obj.Data, &s.topics); err != nil {
		jww.ERROR.Printf("[LEGACY] Failed to decode block list, "+
			"starting empty: %+v", err)
		s.topics = nil
	}
	return s
}

// Block flags the topic as legacy-blocked and saves the list. An error
// is returned if the topic is already flagged.
func (s *LegacyBlockStore) Block(topic string) error {
	s.mux.Lock()
	defer s.mux.Unlock()

	if s.contains(topic) {
		return errors.Errorf(legacyExistsErr, topic)
	}
	s.topics = append(s.topics, topic)
	return s.save()
}

// Unblock removes the flag and saves the list. An error is returned if
// the topic was not flagged.
func (s *LegacyBlockStore) Unblock(topic string) error {
	s.mux.Lock()
	defer s.mux.Unlock()

	for i, t := range s.topics {
		if t == topic {
			s.topics = append(s.topics[:i], s.topics[i+1:]...)
			return s.save()
		}
	}
	return errors.Errorf(legacyAbsentErr, topic)
}

// IsBlocked reports whether the topic is flagged.
func (s *LegacyBlockStore) IsBlocked(topic string) bool {
	s.mux.RLock()
	defer s.mux.RUnlock()
	return s.contains(topic)
}

// All returns the flagged topics in the order they were blocked.
func (s *LegacyBlockStore) All() []string {
	s.mux.RLock()
	defer s.mux.RUnlock()
	topics := make([]string, len(s.topics))
	copy(topics, s.topics)
	return topics
}

func (s *LegacyBlockStore) contains(topic string) bool {
	for _, t := range s.topics {
		if t == topic {
			return true
		}
	}
	return false
}

// save writes the list to storage. The caller holds the mutex.
func (s *LegacyBlockStore) save() error {
	data, err := json.Marshal(s.topics)
	if err != nil {
		return errors.Errorf(legacySaveErr, err)
	}
	obj := &versioned.Object{
		Version:   legacyListVersion,
		Timestamp: netTime.Now(),
		Data:      data,
	}
	if err = s.kv.Set(legacyListStorageKey, obj); err != nil {
		return errors.Errorf(legacySaveErr, err)
	}
	return nil
}

// BlockLegacy flags a legacy conversation as blocked for the identity.
func (m *manager) BlockLegacy(identity, topic string) error {
	return m.forIdentity(identity).legacy.Block(topic)
}

// UnblockLegacy removes the legacy block flag for the identity.
func (m *manager) UnblockLegacy(identity, topic string) error {
	return m.forIdentity(identity).legacy.Unblock(topic)
}
