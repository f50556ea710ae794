////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package cache

import (
	"encoding/base64"
	"sync"

	jww "github.com/spf13/jwalterweatherman"
	"golang.org/x/crypto/blake2b"

	"github.com/ephemeraHQ/converse-core/storage/versioned"
)

// Registry partitions cache state by signed-in identity. It is built
// once at construction time and handed to every component explicitly;
// there are no module-level singletons. An identity's partition is
// created on first use and destroyed at logout via TearDown, which
// fires the teardown hooks components register to drop their per-
// identity stores.
type Registry struct {
	kv         *versioned.KV
	partitions map[string]*Partition
	onTearDown []func(identity string)
	mux        sync.RWMutex
}

// Partition is one identity's slice of the key space. Components hang
// their stores off it and persist through its KV.
type Partition struct {
	identity string
	kv       *versioned.KV
}

// NewRegistry creates a Registry persisting under the given KV.
func NewRegistry(kv *versioned.KV) *Registry {
	return &Registry{
		kv:         kv,
		partitions: make(map[string]*Partition),
	}
}

// Get returns the identity's partition, creating it on first use.
func (r *Registry) Get(identity string) *Partition {
	r.mux.RLock()
	p, ok := r.partitions[identity]
	r.mux.RUnlock()
	if ok {
		return p
	}

	r.mux.Lock()
	defer r.mux.Unlock()
	if p, ok = r.partitions[identity]; ok {
		return p
	}

	p = &Partition{
		identity: identity,
		kv:       r.kv.Prefix(makeIdentityPrefix(identity)),
	}
	r.partitions[identity] = p
	jww.DEBUG.Printf("[CACHE] Created partition for identity %s", identity)
	return p
}

// Lookup returns the identity's partition only if it already exists.
func (r *Registry) Lookup(identity string) (*Partition, bool) {
	r.mux.RLock()
	defer r.mux.RUnlock()
	p, ok := r.partitions[identity]
	return p, ok
}

// OnTearDown registers a hook fired when any identity is torn down.
// Components use it to drop their per-identity stores.
func (r *Registry) OnTearDown(f func(identity string)) {
	r.mux.Lock()
	defer r.mux.Unlock()
	r.onTearDown = append(r.onTearDown, f)
}

// TearDown destroys the identity's partition at logout. Hooks run
// after the partition is removed, so a hook reading the registry sees
// the identity as gone. In-flight network calls that resolve later
// find no partition and their writes are dropped by their owners.
func (r *Registry) TearDown(identity string) {
	r.mux.Lock()
	_, existed := r.partitions[identity]
	delete(r.partitions, identity)
	hooks := make([]func(string), len(r.onTearDown))
	copy(hooks, r.onTearDown)
	r.mux.Unlock()

	if !existed {
		jww.DEBUG.Printf("[CACHE] TearDown of unknown identity %s", identity)
		return
	}

	jww.INFO.Printf("[CACHE] Tearing down identity %s", identity)
	for _, hook := range hooks {
		hook(identity)
	}
}

// Identity returns the identity owning this partition.
func (p *Partition) Identity() string {
	return p.identity
}

// KV returns the partition's storage prefix.
func (p *Partition) KV() *versioned.KV {
	return p.kv
}

// makeIdentityPrefix derives a fixed-length storage prefix from the
// identity so arbitrary inbox IDs cannot produce colliding or
// malformed key paths.
func makeIdentityPrefix(identity string) string {
	digest := blake2b.Sum256([]byte(identity))
	return "identity:" + base64.RawStdEncoding.EncodeToString(digest[:16])
}
