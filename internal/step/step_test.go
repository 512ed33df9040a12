// SPDX-License-Identifier: MPL-2.0

package step

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/parastep/parastep/internal/execctx"
)

type (
	// echoStep resolves Path and echoes it back.
	echoStep struct {
		Base
	}

	// funcStep adapts a function to Runner without the contract.
	funcStep func(ctx context.Context, in Inputs, diags *Diagnostics) (Outputs, error)
)

func (s *echoStep) Execute(_ context.Context, in Inputs, diags *Diagnostics) (Outputs, error) {
	raw, _ := in.Scalar("Path")
	full, err := s.Path(in, "Path")
	if err != nil {
		return nil, err
	}
	diags.Messagef("resolved %s", raw)
	return Outputs{"Out": {NewItem(raw, MetaFullPath, full)}}, nil
}

func (f funcStep) Execute(ctx context.Context, in Inputs, diags *Diagnostics) (Outputs, error) {
	return f(ctx, in, diags)
}

func mustContext(t *testing.T) *execctx.ExecutionContext {
	t.Helper()
	ec, err := execctx.New(t.TempDir(), map[string]string{"NAME": "value"})
	if err != nil {
		t.Fatal(err)
	}
	return ec
}

func TestRun_BindsContract(t *testing.T) {
	t.Parallel()

	ec := mustContext(t)
	s := &echoStep{}
	out, err := Run(t.Context(), s, ec, Inputs{Scalars: map[string]string{"Path": "obj/a.json"}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if s.ExecutionContext() != ec {
		t.Error("Run did not bind the execution context")
	}

	want := Outcome{
		Success:     true,
		Diagnostics: []Diagnostic{{Severity: SeverityMessage, Message: "resolved obj/a.json"}},
		Outputs: Outputs{"Out": {{
			Identity: "obj/a.json",
			Metadata: map[string]string{MetaFullPath: filepath.Join(ec.AnchorDirectory(), "obj", "a.json")},
		}}},
	}
	if diff := cmp.Diff(want, out); diff != "" {
		t.Errorf("Outcome mismatch (-want +got):\n%s", diff)
	}
}

func TestRun_Categories(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		runner   Runner
		inputs   Inputs
		category Category
		success  bool
		message  string
	}{
		{
			name:     "absent path",
			runner:   &echoStep{},
			category: CategoryResolution,
			message:  `cannot resolve path "": a non-empty path is required`,
		},
		{
			name:     "whitespace path",
			runner:   &echoStep{},
			inputs:   Inputs{Scalars: map[string]string{"Path": "  "}},
			category: CategoryResolution,
			message:  `cannot resolve path "  ": a non-empty path is required`,
		},
		{
			name: "missing required input",
			runner: funcStep(func(_ context.Context, in Inputs, _ *Diagnostics) (Outputs, error) {
				_, err := in.Required("Value")
				return nil, err
			}),
			category: CategoryConfiguration,
			message:  `input "Value": required input is missing`,
		},
		{
			name: "domain failure recorded",
			runner: funcStep(func(_ context.Context, _ Inputs, diags *Diagnostics) (Outputs, error) {
				diags.Warnf("first")
				return Outputs{"Partial": {NewItem("x")}}, Fail(diags, Domainf("lock file has %d errors", 2))
			}),
			category: CategoryDomain,
		},
		{
			name: "escaping domain error",
			runner: funcStep(func(context.Context, Inputs, *Diagnostics) (Outputs, error) {
				return nil, Domainf("broken")
			}),
			category: CategoryDomain,
			message:  "broken",
		},
		{
			name: "panic",
			runner: funcStep(func(context.Context, Inputs, *Diagnostics) (Outputs, error) {
				panic("boom")
			}),
			category: CategoryInternal,
			message:  "step panicked: boom",
		},
		{
			name: "plain error",
			runner: funcStep(func(context.Context, Inputs, *Diagnostics) (Outputs, error) {
				return nil, errors.New("disk on fire")
			}),
			category: CategoryInternal,
			message:  "disk on fire",
		},
		{
			name: "warnings only",
			runner: funcStep(func(_ context.Context, _ Inputs, diags *Diagnostics) (Outputs, error) {
				diags.Warnf("careful")
				return nil, nil
			}),
			category: CategoryNone,
			success:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			out, _ := Run(t.Context(), tt.runner, mustContext(t), tt.inputs)
			if out.Category != tt.category {
				t.Errorf("Category = %q, want %q", out.Category, tt.category)
			}
			if out.Success != tt.success {
				t.Errorf("Success = %v, want %v", out.Success, tt.success)
			}
			if out.Error != tt.message {
				t.Errorf("Error = %q, want %q", out.Error, tt.message)
			}
		})
	}
}

func TestRun_DomainFailureKeepsDiagnosticOrder(t *testing.T) {
	t.Parallel()

	r := funcStep(func(_ context.Context, _ Inputs, diags *Diagnostics) (Outputs, error) {
		diags.Warnf("w1")
		diags.Messagef("m1")
		return nil, Fail(diags, Domainf("bad %s", "thing"))
	})
	out, err := Run(t.Context(), r, mustContext(t), Inputs{})
	if err != nil {
		t.Fatalf("Fail must not escape: %v", err)
	}

	want := []Diagnostic{
		{Severity: SeverityWarning, Message: "w1"},
		{Severity: SeverityMessage, Message: "m1"},
		{Severity: SeverityError, Message: "bad thing"},
	}
	if diff := cmp.Diff(want, out.Diagnostics); diff != "" {
		t.Errorf("Diagnostics mismatch (-want +got):\n%s", diff)
	}
}

func TestRun_InputsAreCloned(t *testing.T) {
	t.Parallel()

	in := Inputs{
		Scalars: map[string]string{"K": "v"},
		Lists:   map[string][]Item{"L": {NewItem("a", "m", "1")}},
	}
	r := funcStep(func(_ context.Context, in Inputs, _ *Diagnostics) (Outputs, error) {
		in.Scalars["K"] = "changed"
		in.Lists["L"][0].Metadata["m"] = "changed"
		return nil, nil
	})
	if _, err := Run(t.Context(), r, mustContext(t), in); err != nil {
		t.Fatal(err)
	}
	if in.Scalars["K"] != "v" || in.Lists["L"][0].Get("m") != "1" {
		t.Errorf("caller inputs were mutated: %+v", in)
	}
}

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want Category
	}{
		{err: nil, want: CategoryNone},
		{err: &execctx.ResolutionError{}, want: CategoryResolution},
		{err: fmt.Errorf("wrapped: %w", &execctx.ResolutionError{Path: " "}), want: CategoryResolution},
		{err: execctx.MissingInputError("X"), want: CategoryConfiguration},
		{err: fmt.Errorf("wrapped: %w", Domainf("x")), want: CategoryDomain},
		{err: &PanicError{Value: 1}, want: CategoryInternal},
		{err: errors.New("other"), want: CategoryInternal},
	}

	for _, tt := range tests {
		if got := Classify(tt.err); got != tt.want {
			t.Errorf("Classify(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestInputs_Bool(t *testing.T) {
	t.Parallel()

	in := Inputs{Scalars: map[string]string{"Yes": "true", "No": "0", "Blank": " ", "Bad": "maybe"}}

	for name, want := range map[string]bool{"Yes": true, "No": false, "Blank": false, "Absent": false} {
		got, err := in.Bool(name)
		if err != nil || got != want {
			t.Errorf("Bool(%q) = (%v, %v), want (%v, nil)", name, got, err, want)
		}
	}
	if _, err := in.Bool("Bad"); !errors.Is(err, execctx.ErrConfiguration) {
		t.Errorf("Bool(\"Bad\") error = %v, want ErrConfiguration", err)
	}
}

func TestTypeAndSeverityValidate(t *testing.T) {
	t.Parallel()

	for _, ok := range []Type{"write-manifest", "a", "copy-files2"} {
		if err := ok.Validate(); err != nil {
			t.Errorf("Type(%q).Validate() = %v", ok, err)
		}
	}
	for _, bad := range []Type{"", "Write", "a--b", "-a", "a_b"} {
		if err := bad.Validate(); !errors.Is(err, ErrInvalidType) {
			t.Errorf("Type(%q).Validate() = %v, want ErrInvalidType", bad, err)
		}
	}
	if err := Severity("fatal").Validate(); !errors.Is(err, ErrInvalidSeverity) {
		t.Errorf("Severity(\"fatal\").Validate() = %v", err)
	}
}
