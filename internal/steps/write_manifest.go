// SPDX-License-Identifier: MPL-2.0

package steps

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/parastep/parastep/internal/step"
)

type (
	// WriteManifest writes the Entries items to OutputPath. The format
	// follows the file extension: .json, .toml, .yaml or .yml.
	WriteManifest struct {
		step.Base
	}

	manifest struct {
		Name    string          `json:"name,omitempty" toml:"name,omitempty" yaml:"name,omitempty"`
		Entries []manifestEntry `json:"entries" toml:"entries" yaml:"entries"`
	}

	manifestEntry struct {
		Identity string            `json:"identity" toml:"identity" yaml:"identity"`
		Metadata map[string]string `json:"metadata,omitempty" toml:"metadata,omitempty" yaml:"metadata,omitempty"`
	}
)

// Execute implements step.Runner.
func (s *WriteManifest) Execute(_ context.Context, in step.Inputs, diags *step.Diagnostics) (step.Outputs, error) {
	raw, _ := in.Scalar("OutputPath")
	full, err := s.Path(in, "OutputPath")
	if err != nil {
		return nil, err
	}
	name, _ := in.Scalar("Name")

	m := manifest{Name: name, Entries: []manifestEntry{}}
	for _, it := range in.Items("Entries") {
		m.Entries = append(m.Entries, manifestEntry{Identity: it.Identity, Metadata: it.Metadata})
	}

	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(full)), ".")
	data, err := encodeManifest(format, m)
	if err != nil {
		return nil, step.Fail(diags, err)
	}

	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return nil, step.Fail(diags, step.Domainf("cannot create directory for %q: %v", raw, err))
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return nil, step.Fail(diags, step.Domainf("cannot write manifest %q: %v", raw, err))
	}

	diags.Messagef("wrote %d entries to %s", len(m.Entries), raw)
	return step.Outputs{"Manifest": {step.NewItem(raw,
		step.MetaFullPath, full,
		"Format", format,
		"EntryCount", itoa(len(m.Entries)),
	)}}, nil
}

func encodeManifest(format string, m manifest) ([]byte, error) {
	switch format {
	case "json":
		data, err := json.MarshalIndent(m, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encode json manifest: %w", err)
		}
		return append(data, '\n'), nil
	case "toml":
		data, err := toml.Marshal(m)
		if err != nil {
			return nil, fmt.Errorf("encode toml manifest: %w", err)
		}
		return data, nil
	case "yaml", "yml":
		data, err := yaml.Marshal(m)
		if err != nil {
			return nil, fmt.Errorf("encode yaml manifest: %w", err)
		}
		return data, nil
	default:
		return nil, step.Domainf("unsupported manifest format %q", format)
	}
}
