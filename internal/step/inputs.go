// SPDX-License-Identifier: MPL-2.0

package step

import (
	"maps"
	"strconv"
	"strings"

	"github.com/parastep/parastep/internal/execctx"
)

// Metadata keys shared by several steps.
const (
	// MetaFullPath carries the resolved absolute path of a file item.
	MetaFullPath = "FullPath"
	// MetaOriginalItemSpec carries the caller's spelling of an item identity.
	MetaOriginalItemSpec = "OriginalItemSpec"
)

type (
	// Item is an identity string plus string metadata.
	Item struct {
		Identity string            `json:"identity"`
		Metadata map[string]string `json:"metadata,omitempty"`
	}

	// Inputs holds the named inputs of one invocation. Names are case-sensitive.
	Inputs struct {
		Scalars map[string]string `json:"scalars,omitempty"`
		Lists   map[string][]Item `json:"items,omitempty"`
	}

	// Outputs holds the named output collections of one invocation.
	Outputs map[string][]Item
)

// NewItem returns an item with metadata built from key/value pairs.
// A trailing key without a value is ignored.
func NewItem(identity string, kv ...string) Item {
	it := Item{Identity: identity}
	for i := 0; i+1 < len(kv); i += 2 {
		it = it.With(kv[i], kv[i+1])
	}
	return it
}

// With returns a copy of the item with key set to value.
func (it Item) With(key, value string) Item {
	md := make(map[string]string, len(it.Metadata)+1)
	maps.Copy(md, it.Metadata)
	md[key] = value
	return Item{Identity: it.Identity, Metadata: md}
}

// Get returns the metadata value for key, or "" when absent.
func (it Item) Get(key string) string { return it.Metadata[key] }

// Clone returns a deep copy of the item.
func (it Item) Clone() Item {
	if it.Metadata == nil {
		return Item{Identity: it.Identity}
	}
	return Item{Identity: it.Identity, Metadata: maps.Clone(it.Metadata)}
}

// Scalar returns the named scalar input. ok is false when the input is absent.
func (in Inputs) Scalar(name string) (value string, ok bool) {
	value, ok = in.Scalars[name]
	return value, ok
}

// Required returns the named scalar input or a configuration error when it
// is absent.
func (in Inputs) Required(name string) (string, error) {
	v, ok := in.Scalars[name]
	if !ok {
		return "", execctx.MissingInputError(name)
	}
	return v, nil
}

// Bool parses the named scalar as a boolean. Absent or blank inputs yield false.
func (in Inputs) Bool(name string) (bool, error) {
	v := strings.TrimSpace(in.Scalars[name])
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, execctx.InvalidInputError(name, "must be a boolean")
	}
	return b, nil
}

// Items returns the named item list; absent lists are empty.
func (in Inputs) Items(name string) []Item { return in.Lists[name] }

// Clone returns a deep copy, so an invocation can never observe another
// invocation's mutations.
func (in Inputs) Clone() Inputs {
	out := Inputs{}
	if in.Scalars != nil {
		out.Scalars = maps.Clone(in.Scalars)
	}
	if in.Lists != nil {
		out.Lists = make(map[string][]Item, len(in.Lists))
		for name, items := range in.Lists {
			cp := make([]Item, len(items))
			for i, it := range items {
				cp[i] = it.Clone()
			}
			out.Lists[name] = cp
		}
	}
	return out
}
