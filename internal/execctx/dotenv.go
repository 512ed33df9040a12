// SPDX-License-Identifier: MPL-2.0

package execctx

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
)

// optionalSuffix marks an overlay file whose absence is not an error.
const optionalSuffix = "?"

// DotenvSyntaxError reports a malformed line in a dotenv overlay file.
type DotenvSyntaxError struct {
	File   string
	Line   int
	Reason string
}

// Error implements the error interface.
func (e *DotenvSyntaxError) Error() string {
	return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Reason)
}

// loadOverlay reads one dotenv file, resolved through ec, and merges it into
// env. The reference keeps its caller-supplied spelling in error messages.
func loadOverlay(ec *ExecutionContext, env map[string]string, ref string) error {
	optional := strings.HasSuffix(ref, optionalSuffix)
	name := strings.TrimSuffix(ref, optionalSuffix)

	full, err := ec.GetAbsolutePath(name)
	if err != nil {
		return err
	}

	content, err := os.ReadFile(full)
	if err != nil {
		if optional && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read env file %q: %w", name, err)
	}
	return ParseDotenv(env, content, name)
}

// ParseDotenv parses dotenv content and merges it into env.
//
//   - blank lines and lines starting with # are skipped
//   - an optional leading "export " is ignored
//   - KEY=value is trimmed, and " #" starts a trailing comment
//   - KEY="value" understands \n \r \t \\ \" and \$
//   - KEY='value' is literal
//
// Values are never expanded; "$HOME" stays "$HOME".
func ParseDotenv(env map[string]string, content []byte, filename string) error {
	for i, raw := range strings.Split(string(content), "\n") {
		line := strings.TrimSpace(strings.TrimSuffix(raw, "\r"))
		if line == "" || line[0] == '#' {
			continue
		}
		line = strings.TrimSpace(strings.TrimPrefix(line, "export "))

		key, value, found := strings.Cut(line, "=")
		if !found {
			return &DotenvSyntaxError{File: filename, Line: i + 1, Reason: "missing '='"}
		}
		key = strings.TrimSpace(key)
		if key == "" {
			return &DotenvSyntaxError{File: filename, Line: i + 1, Reason: "empty variable name"}
		}

		parsed, reason := dotenvValue(strings.TrimSpace(value))
		if reason != "" {
			return &DotenvSyntaxError{File: filename, Line: i + 1, Reason: reason}
		}
		env[key] = parsed
	}
	return nil
}

// dotenvValue returns the decoded value, or a non-empty reason on failure.
func dotenvValue(v string) (string, string) {
	switch {
	case v == "":
		return "", ""
	case v[0] == '"':
		if len(v) < 2 || v[len(v)-1] != '"' {
			return "", "unterminated double quote"
		}
		return unescapeDouble(v[1 : len(v)-1]), ""
	case v[0] == '\'':
		if len(v) < 2 || v[len(v)-1] != '\'' {
			return "", "unterminated single quote"
		}
		return v[1 : len(v)-1], ""
	}
	if idx := strings.Index(v, " #"); idx >= 0 {
		v = strings.TrimSpace(v[:idx])
	}
	return v, ""
}

func unescapeDouble(v string) string {
	var b strings.Builder
	b.Grow(len(v))
	for i := 0; i < len(v); i++ {
		c := v[i]
		if c != '\\' || i+1 == len(v) {
			b.WriteByte(c)
			continue
		}
		i++
		switch next := v[i]; next {
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case 't':
			b.WriteByte('\t')
		case '\\', '"', '$':
			b.WriteByte(next)
		default:
			b.WriteByte('\\')
			b.WriteByte(next)
		}
	}
	return b.String()
}
