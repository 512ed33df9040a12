// SPDX-License-Identifier: MPL-2.0

// Package plan loads batches of step invocations from plan files.
//
// Plans are CUE (or JSON, which CUE reads natively) validated against an
// embedded #Plan schema, or HCL with one `invocation "<id>"` block per
// invocation. Relative anchors resolve against the directory holding the
// plan file.
package plan
