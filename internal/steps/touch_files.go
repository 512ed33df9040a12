// SPDX-License-Identifier: MPL-2.0

package steps

import (
	"context"
	"os"
	"path/filepath"

	"github.com/parastep/parastep/internal/step"
)

// TouchFiles creates an empty marker file for each Files item. Paths are
// relative to the process working directory, so the type is not marked
// migrated and only runs in the dispatcher's exclusive lane.
type TouchFiles struct{}

// Execute implements step.Runner.
func (s *TouchFiles) Execute(_ context.Context, in step.Inputs, diags *step.Diagnostics) (step.Outputs, error) {
	var touched []step.Item
	for _, f := range in.Items("Files") {
		full, err := filepath.Abs(f.Identity)
		if err != nil {
			diags.Errorf("cannot resolve %q: %v", f.Identity, err)
			continue
		}
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			diags.Errorf("cannot create directory for %q: %v", f.Identity, err)
			continue
		}
		if err := os.WriteFile(full, nil, 0o644); err != nil {
			diags.Errorf("cannot touch %q: %v", f.Identity, err)
			continue
		}
		touched = append(touched, step.NewItem(f.Identity, step.MetaFullPath, full))
	}
	return step.Outputs{"Touched": touched}, nil
}
