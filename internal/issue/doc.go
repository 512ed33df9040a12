// SPDX-License-Identifier: MPL-2.0

// Package issue provides actionable, user-facing errors and the markdown
// explanations behind `parastep explain`.
//
// An ActionableError says which operation failed, on which resource, and
// what the user can try next. When it refers to an Issue, the CLI points at
// `parastep explain <name>` for the full explanation.
package issue
