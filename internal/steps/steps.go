// SPDX-License-Identifier: MPL-2.0

package steps

import (
	"strconv"

	"github.com/parastep/parastep/internal/registry"
	"github.com/parastep/parastep/internal/step"
)

// Built-in step types.
const (
	TypeFindDuplicates      step.Type = "find-duplicates"
	TypeWriteManifest       step.Type = "write-manifest"
	TypeResolveDependencies step.Type = "resolve-dependencies"
	TypeStampBinary         step.Type = "stamp-binary"
	TypeRunScript           step.Type = "run-script"
	TypeProbeEnv            step.Type = "probe-env"
	TypeCopyFiles           step.Type = "copy-files"
	TypeTouchFiles          step.Type = "touch-files"
)

// Definitions returns the definitions of every built-in step type.
func Definitions() []registry.Definition {
	return []registry.Definition{
		{
			Type:     TypeFindDuplicates,
			Summary:  "Report duplicate item identities or metadata values",
			New:      func() step.Runner { return &FindDuplicates{} },
			Migrated: true,
		},
		{
			Type:     TypeWriteManifest,
			Summary:  "Write items as a JSON, TOML or YAML manifest",
			New:      func() step.Runner { return &WriteManifest{} },
			Migrated: true,
		},
		{
			Type:     TypeResolveDependencies,
			Summary:  "Resolve the transitive dependencies of a package from a lock file",
			New:      func() step.Runner { return &ResolveDependencies{} },
			Migrated: true,
		},
		{
			Type:     TypeStampBinary,
			Summary:  "Replace a placeholder in a template binary",
			New:      func() step.Runner { return &StampBinary{} },
			Migrated: true,
		},
		{
			Type:     TypeRunScript,
			Summary:  "Run a shell script in the embedded interpreter",
			New:      func() step.Runner { return &RunScript{} },
			Migrated: true,
		},
		{
			Type:     TypeProbeEnv,
			Summary:  "Report environment variables from the invocation snapshot",
			New:      func() step.Runner { return &ProbeEnv{} },
			Migrated: true,
		},
		{
			Type:     TypeCopyFiles,
			Summary:  "Copy files into a destination folder",
			New:      func() step.Runner { return &CopyFiles{} },
			Migrated: true,
		},
		{
			Type:    TypeTouchFiles,
			Summary: "Create marker files relative to the working directory (legacy)",
			New:     func() step.Runner { return &TouchFiles{} },
		},
	}
}

// NewRegistry returns a registry holding every built-in step type.
func NewRegistry() *registry.Registry {
	return registry.New().MustRegister(Definitions()...)
}

func itoa(n int) string { return strconv.Itoa(n) }
