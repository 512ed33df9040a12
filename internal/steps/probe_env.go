// SPDX-License-Identifier: MPL-2.0

package steps

import (
	"context"
	"strconv"

	"github.com/parastep/parastep/internal/step"
)

// ProbeEnv reports the value of each name in Names from the invocation's
// environment snapshot.
type ProbeEnv struct {
	step.Base
}

// Execute implements step.Runner.
func (s *ProbeEnv) Execute(_ context.Context, in step.Inputs, diags *step.Diagnostics) (step.Outputs, error) {
	names := in.Items("Names")
	vars := make([]step.Item, 0, len(names))
	for _, n := range names {
		value, ok := s.Getenv(n.Identity)
		if !ok {
			diags.Warnf("environment variable %q is not set", n.Identity)
		}
		vars = append(vars, step.NewItem(n.Identity, "Value", value, "Set", strconv.FormatBool(ok)))
	}
	return step.Outputs{"Variables": vars}, nil
}
