// SPDX-License-Identifier: MPL-2.0

package steps

import (
	"bytes"
	"context"
	"errors"
	"os"
	"strings"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"

	"github.com/parastep/parastep/internal/execctx"
	"github.com/parastep/parastep/internal/step"
	"github.com/parastep/parastep/internal/uroot"
)

// RunScript runs Script, or the file at ScriptPath, in the embedded POSIX
// shell interpreter. The interpreter's directory is the anchor and its
// environment is the invocation snapshot; the Args identities become the
// positional parameters. Common file utilities are built in unless
// HostCommands is "true".
type RunScript struct {
	step.Base
}

// Execute implements step.Runner.
func (s *RunScript) Execute(ctx context.Context, in step.Inputs, diags *step.Diagnostics) (step.Outputs, error) {
	text, name, err := s.loadScript(in)
	if err != nil {
		var domainErr *step.DomainError
		if errors.As(err, &domainErr) {
			return nil, step.Fail(diags, err)
		}
		return nil, err
	}

	prog, err := syntax.NewParser().Parse(strings.NewReader(text), name)
	if err != nil {
		return nil, step.Fail(diags, step.Domainf("failed to parse script: %v", err))
	}

	hostOnly, err := in.Bool("HostCommands")
	if err != nil {
		return nil, err
	}

	ec := s.ExecutionContext()
	var stdout, stderr bytes.Buffer
	opts := []interp.RunnerOption{
		interp.Dir(ec.AnchorDirectory()),
		interp.Env(expand.ListEnviron(ec.Environ()...)),
		interp.StdIO(nil, &stdout, &stderr),
	}
	if !hostOnly {
		opts = append(opts, interp.ExecHandlers(uroot.New().ExecHandler()))
	}
	// "--" keeps arguments such as "-v" from being read as shell options.
	if args := in.Items("Args"); len(args) > 0 {
		params := []string{"--"}
		for _, a := range args {
			params = append(params, a.Identity)
		}
		opts = append(opts, interp.Params(params...))
	}

	runner, err := interp.New(opts...)
	if err != nil {
		return nil, step.Fail(diags, step.Domainf("failed to create interpreter: %v", err))
	}

	exitCode := 0
	if err := runner.Run(ctx, prog); err != nil {
		var status interp.ExitStatus
		if !errors.As(err, &status) {
			return nil, step.Fail(diags, step.Domainf("script failed: %v", err))
		}
		exitCode = int(status)
	}
	if exitCode != 0 {
		diags.Errorf("script exited with status %d", exitCode)
	}

	return step.Outputs{"Result": {step.NewItem(name,
		"ExitCode", itoa(exitCode),
		"Stdout", stdout.String(),
		"Stderr", stderr.String(),
	)}}, nil
}

// loadScript returns the script text and the name used in parse errors.
func (s *RunScript) loadScript(in step.Inputs) (text, name string, err error) {
	if text, ok := in.Scalar("Script"); ok {
		return text, "script", nil
	}
	raw, ok := in.Scalar("ScriptPath")
	if !ok {
		return "", "", execctx.MissingInputError("Script")
	}
	path, err := s.Path(in, "ScriptPath")
	if err != nil {
		return "", "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", step.Domainf("cannot read script %q: %v", raw, err)
	}
	return string(data), raw, nil
}
