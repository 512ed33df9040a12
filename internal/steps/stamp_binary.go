// SPDX-License-Identifier: MPL-2.0

package steps

import (
	"bytes"
	"context"
	"os"
	"path/filepath"

	"github.com/parastep/parastep/internal/step"
)

// DefaultPlaceholder is the 32-byte marker stamp-binary looks for when no
// Placeholder input is given.
const DefaultPlaceholder = "PARASTEP_STAMP_XXXXXXXXXXXXXXXXX"

// StampBinary copies TemplatePath to OutputPath, replacing the single
// occurrence of the placeholder with Value padded to the placeholder length
// with NUL bytes. The output keeps the template's permission bits.
type StampBinary struct {
	step.Base
}

// Execute implements step.Runner.
func (s *StampBinary) Execute(_ context.Context, in step.Inputs, diags *step.Diagnostics) (step.Outputs, error) {
	templateSpec, _ := in.Scalar("TemplatePath")
	template, err := s.Path(in, "TemplatePath")
	if err != nil {
		return nil, err
	}
	outSpec, _ := in.Scalar("OutputPath")
	out, err := s.Path(in, "OutputPath")
	if err != nil {
		return nil, err
	}
	value, err := in.Required("Value")
	if err != nil {
		return nil, err
	}
	placeholder := DefaultPlaceholder
	if p, ok := in.Scalar("Placeholder"); ok && p != "" {
		placeholder = p
	}

	if len(value) > len(placeholder) {
		return nil, step.Fail(diags, step.Domainf("value is %d bytes but the placeholder holds %d", len(value), len(placeholder)))
	}

	info, err := os.Stat(template)
	if err != nil {
		return nil, step.Fail(diags, step.Domainf("cannot read template %q: %v", templateSpec, err))
	}
	data, err := os.ReadFile(template)
	if err != nil {
		return nil, step.Fail(diags, step.Domainf("cannot read template %q: %v", templateSpec, err))
	}

	marker := []byte(placeholder)
	switch n := bytes.Count(data, marker); n {
	case 0:
		return nil, step.Fail(diags, step.Domainf("placeholder not found in template %q", templateSpec))
	case 1:
	default:
		return nil, step.Fail(diags, step.Domainf("placeholder appears %d times in template %q", n, templateSpec))
	}

	stamp := make([]byte, len(marker))
	copy(stamp, value)
	stamped := bytes.Replace(data, marker, stamp, 1)

	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return nil, step.Fail(diags, step.Domainf("cannot create directory for %q: %v", outSpec, err))
	}
	if err := os.WriteFile(out, stamped, info.Mode().Perm()); err != nil {
		return nil, step.Fail(diags, step.Domainf("cannot write %q: %v", outSpec, err))
	}

	return step.Outputs{"Binary": {step.NewItem(outSpec,
		step.MetaFullPath, out,
		"Size", itoa(len(stamped)),
	)}}, nil
}
