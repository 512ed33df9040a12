// SPDX-License-Identifier: MPL-2.0

package cueutil

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const testSchema = `
#Job: {
	name:     string & =~"^[a-z]+$"
	workers:  int & >=1 | *1
	enabled:  bool
	tags?: [...string]
}
`

type testJob struct {
	Name    string   `json:"name"`
	Workers int      `json:"workers"`
	Enabled bool     `json:"enabled"`
	Tags    []string `json:"tags,omitempty"`
}

func TestParseAndDecode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data string
		want testJob
	}{
		{
			name: "cue with default",
			data: "name: \"build\"\nenabled: true\n",
			want: testJob{Name: "build", Workers: 1, Enabled: true},
		},
		{
			name: "json document",
			data: `{"name": "lint", "workers": 4, "enabled": false, "tags": ["a", "b"]}`,
			want: testJob{Name: "lint", Workers: 4, Tags: []string{"a", "b"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			res, err := ParseAndDecode[testJob]([]byte(testSchema), []byte(tt.data), "#Job")
			if err != nil {
				t.Fatalf("ParseAndDecode: %v", err)
			}
			got := *res.Value
			if got.Name != tt.want.Name || got.Workers != tt.want.Workers || got.Enabled != tt.want.Enabled ||
				strings.Join(got.Tags, ",") != strings.Join(tt.want.Tags, ",") {
				t.Errorf("decoded %+v, want %+v", got, tt.want)
			}
			if !res.Unified.Exists() {
				t.Error("Unified value should exist")
			}
		})
	}
}

func TestParseAndDecode_ValidationErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		data     string
		contains string
	}{
		{name: "pattern mismatch", data: "name: \"Build\"\nenabled: true\n", contains: "name"},
		{name: "below minimum", data: "name: \"a\"\nworkers: 0\nenabled: true\n", contains: "workers"},
		{name: "missing required", data: "name: \"a\"\n", contains: "enabled"},
		{name: "unknown field", data: "name: \"a\"\nenabled: true\nextra: 1\n", contains: "extra"},
		{name: "syntax", data: "name: {", contains: "job.cue"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := ParseAndDecode[testJob]([]byte(testSchema), []byte(tt.data), "#Job", WithFilename("job.cue"))
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tt.contains) {
				t.Errorf("error %q should mention %q", err, tt.contains)
			}
		})
	}
}

func TestParseAndDecode_SizeLimit(t *testing.T) {
	t.Parallel()

	_, err := ParseAndDecode[testJob]([]byte(testSchema), []byte(`name: "abc"`), "#Job", WithMaxFileSize(4))
	if !errors.Is(err, ErrFileTooLarge) {
		t.Errorf("error = %v, want ErrFileTooLarge", err)
	}
}

func TestParseAndDecode_MissingDefinition(t *testing.T) {
	t.Parallel()

	_, err := ParseAndDecode[testJob]([]byte(testSchema), []byte(`{}`), "#Nope")
	if err == nil || !strings.Contains(err.Error(), "#Nope") {
		t.Errorf("error = %v, want mention of #Nope", err)
	}
}

func TestParseFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "job.cue")
	if err := os.WriteFile(path, []byte("name: \"x\"\nenabled: 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := ParseFile[testJob]([]byte(testSchema), path, "#Job")
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("error = %v, want *ValidationError", err)
	}
	if ve.File != path {
		t.Errorf("File = %q, want %q", ve.File, path)
	}

	if _, err := ParseFile[testJob]([]byte(testSchema), filepath.Join(t.TempDir(), "missing.cue"), "#Job"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing file error = %v", err)
	}
}
