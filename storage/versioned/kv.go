////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package versioned

import (
	"fmt"

	jww "github.com/spf13/jwalterweatherman"
	"gitlab.com/elixxir/ekv"
)

const PrefixSeparator = "/"

type root struct {
	data ekv.KeyValue
}

// KV stores versioned data under hierarchical prefixes. Every consumer
// takes a Prefix of the KV it is given so that stores cannot collide.
type KV struct {
	r      *root
	prefix string
}

// NewKV creates a versioned key/value store backed by anything
// implementing ekv.KeyValue.
func NewKV(data ekv.KeyValue) *KV {
	return &KV{r: &root{data: data}}
}

// Get retrieves the object stored under key at the given version.
// Returns an error that fails Exists if the key is not present.
func (v *KV) Get(key string, version uint64) (*Object, error) {
	key = v.makeKey(key, version)
	jww.TRACE.Printf("get %p with key %v", v.r.data, key)
	result := Object{}
	if err := v.r.data.Get(key, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Set upserts the object under key. The version component of the key is
// taken from the object itself.
func (v *KV) Set(key string, object *Object) error {
	key = v.makeKey(key, object.Version)
	jww.TRACE.Printf("set %p with key %v", v.r.data, key)
	return v.r.data.Set(key, object)
}

// Delete removes a given key from the data store.
func (v *KV) Delete(key string, version uint64) error {
	key = v.makeKey(key, version)
	jww.TRACE.Printf("delete %p with key %v", v.r.data, key)
	return v.r.data.Delete(key)
}

// Prefix returns a new KV scoped under the given prefix.
func (v *KV) Prefix(prefix string) *KV {
	return &KV{
		r:      v.r,
		prefix: v.prefix + prefix + PrefixSeparator,
	}
}

// GetPrefix returns the accumulated prefix of the KV.
func (v *KV) GetPrefix() string {
	return v.prefix
}

// IsMemStore returns true if the underlying KeyValue is memory only.
func (v *KV) IsMemStore() bool {
	_, success := v.r.data.(*ekv.Memstore)
	return success
}

// GetFullKey returns the key with all prefixes appended.
func (v *KV) GetFullKey(key string, version uint64) string {
	return v.makeKey(key, version)
}

func (v *KV) makeKey(key string, version uint64) string {
	return fmt.Sprintf("%s%s_%d", v.prefix, key, version)
}

// Exists returns false if the error indicates the element does not
// exist.
func (v *KV) Exists(err error) bool {
	return ekv.Exists(err)
}
