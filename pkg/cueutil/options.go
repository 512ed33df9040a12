// SPDX-License-Identifier: MPL-2.0

package cueutil

// DefaultMaxFileSize caps documents at 5MB unless WithMaxFileSize says otherwise.
const DefaultMaxFileSize int64 = 5 << 20

type (
	// Option adjusts how ParseAndDecode treats one document.
	Option func(*settings)

	settings struct {
		limit    int64
		concrete bool
		name     string
	}
)

// newSettings applies opts over the defaults: 5MB limit, concrete values
// required, "<input>" as the name in messages.
func newSettings(opts []Option) settings {
	s := settings{limit: DefaultMaxFileSize, concrete: true}
	for _, opt := range opts {
		opt(&s)
	}
	if s.name == "" {
		s.name = "<input>"
	}
	return s
}

// WithMaxFileSize overrides the document size limit.
func WithMaxFileSize(size int64) Option {
	return func(s *settings) { s.limit = size }
}

// WithConcrete controls whether every value must be concrete after
// unification. Documents whose fields are all optional pass false.
func WithConcrete(concrete bool) Option {
	return func(s *settings) { s.concrete = concrete }
}

// WithFilename names the document in positions and error messages.
func WithFilename(name string) Option {
	return func(s *settings) { s.name = name }
}
