// SPDX-License-Identifier: MPL-2.0

// Package cueutil decodes CUE (and JSON, which is valid CUE) documents into
// Go structs against an embedded schema.
//
// Every caller follows the same flow:
//
//  1. Compile the embedded schema
//  2. Compile user data and unify it with a schema definition
//  3. Validate and decode into a Go struct
//
// # Usage
//
//	//go:embed plan_schema.cue
//	var schema []byte
//
//	result, err := cueutil.ParseAndDecode[planFile](schema, data, "#Plan",
//	    cueutil.WithFilename("build.plan.cue"))
//	if err != nil {
//	    return nil, err // *ValidationError with JSON-style paths
//	}
//	return result.Value, nil
package cueutil
