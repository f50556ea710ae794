////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package versioned

import (
	"encoding/json"
	"fmt"
	"time"
)

// Object is the unit of storage for the versioned key/value store. It
// keeps the schema version and the time of the write next to the
// serialized payload.
type Object struct {
	// Used to determine schema compatibility on load.
	Version uint64

	// Set when this object is written.
	Timestamp time.Time

	// Serialized form of the original object.
	Data []byte
}

// Unmarshal deserializes an Object from a byte slice so it can be
// loaded from a KeyValue. All fields are exported with simple types,
// so json.Unmarshal works fine.
func (v *Object) Unmarshal(data []byte) error {
	return json.Unmarshal(data, v)
}

// Marshal serializes an Object into a byte slice so it can be stored
// in a KeyValue.
func (v *Object) Marshal() []byte {
	d, err := json.Marshal(v)
	// Not being able to marshal this simple object means something is
	// really wrong
	if err != nil {
		panic(fmt.Sprintf("Could not marshal: %+v", v))
	}
	return d
}
