// SPDX-License-Identifier: MPL-2.0

package cueutil

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// ParseResult contains the result of a successful parse.
type ParseResult[T any] struct {
	// Value is the decoded Go struct.
	Value *T
	// Unified is the schema-unified CUE value, for callers that need
	// fields the Go struct does not carry.
	Unified cue.Value
}

// ParseAndDecode compiles schema, unifies data with the definition at
// schemaPath (for example "#Plan"), validates the result and decodes it
// into a T.
func ParseAndDecode[T any](schema, data []byte, schemaPath string, opts ...Option) (*ParseResult[T], error) {
	set := newSettings(opts)
	if err := CheckFileSize(data, set.limit, set.name); err != nil {
		return nil, err
	}

	cctx := cuecontext.New()
	def := cctx.CompileBytes(schema).LookupPath(cue.ParsePath(schemaPath))
	if err := def.Err(); err != nil {
		// Schemas are embedded, so this is a build defect rather than bad input.
		return nil, fmt.Errorf("schema %s unusable: %w", schemaPath, err)
	}

	doc := cctx.CompileBytes(data, cue.Filename(set.name))
	if err := doc.Err(); err != nil {
		return nil, FormatError(err, set.name)
	}

	unified := def.Unify(doc)
	if err := unified.Validate(cue.Concrete(set.concrete)); err != nil {
		return nil, FormatError(err, set.name)
	}

	out := new(T)
	if err := unified.Decode(out); err != nil {
		return nil, FormatError(err, set.name)
	}
	return &ParseResult[T]{Value: out, Unified: unified}, nil
}

// ParseFile reads path and decodes it like ParseAndDecode. The file name
// used in error messages defaults to path.
func ParseFile[T any](schema []byte, path, schemaPath string, opts ...Option) (*ParseResult[T], error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseAndDecode[T](schema, data, schemaPath, append([]Option{WithFilename(path)}, opts...)...)
}
