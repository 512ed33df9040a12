// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"strings"

	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Id identifies an issue explanation.
type Id int

// Issue ids. The first four match the invocation error categories.
const (
	ConfigurationErrorId Id = iota + 1
	ResolutionErrorId
	DomainErrorId
	InternalErrorId
	PlanInvalidId
	ConfigLoadFailedId
	ParityMismatchId
	InvocationSkippedId
)

type (
	// MarkdownMsg is markdown rendered by glamour.
	MarkdownMsg string

	// Issue is a named markdown explanation.
	Issue struct {
		id    Id
		name  string
		mdMsg MarkdownMsg
	}
)

// Id returns the issue id.
func (i *Issue) Id() Id { return i.id }

// Name returns the name accepted by `parastep explain`.
func (i *Issue) Name() string { return i.name }

// MarkdownMsg returns the raw markdown.
func (i *Issue) MarkdownMsg() MarkdownMsg { return i.mdMsg }

// Render renders the explanation with a glamour style ("dark", "light",
// "notty", "ascii" or a path to a JSON style).
func (i *Issue) Render(stylePath string) (string, error) {
	return render(strings.TrimSpace(string(i.mdMsg))+"\n", stylePath)
}

var (
	render = glamour.Render

	configurationIssue = &Issue{
		id:   ConfigurationErrorId,
		name: "configuration",
		mdMsg: `
# Configuration error

The invocation could not be set up, so the step never ran. One of these is wrong:

- the **anchor** directory is empty or not absolute
- a **required input** is missing or malformed (for example a non-boolean flag)
- the **step type** is not registered
- an **env file** overlay is missing or has a syntax error

## Things you can try
- Give every invocation an ` + "`anchor`" + `; relative anchors resolve against the plan file's directory
- Run ` + "`parastep steps`" + ` to see the registered step types
- Mark optional env files with a trailing ` + "`?`",
	}

	resolutionIssue = &Issue{
		id:   ResolutionErrorId,
		name: "resolution",
		mdMsg: `
# Resolution error

A step asked to resolve a path that is absent, empty or only whitespace.
Paths are never resolved against the process working directory, so there is
no sensible default to fall back to.

The error is identical no matter where parastep was started from.

## Things you can try
- Set the path input named in the message
- Use ` + "`.`" + ` to refer to the anchor directory itself`,
	}

	domainIssue = &Issue{
		id:   DomainErrorId,
		name: "domain",
		mdMsg: `
# Domain error

The step ran and reported a failure of its own logic: a dependency cycle in
a lock file, a placeholder missing from a template binary, a script that
exited non-zero, and so on.

The failure is recorded as an **error diagnostic** on the invocation; other
invocations in the batch are not affected.

## Things you can try
- Read the error diagnostics printed for the invocation
- Re-run just that invocation with ` + "`parastep run --only <id>`",
	}

	internalIssue = &Issue{
		id:   InternalErrorId,
		name: "internal",
		mdMsg: `
# Internal error

The step panicked or returned an error parastep does not classify. The panic
was contained to the one invocation; the rest of the batch ran normally.

## Things you can try
- Re-run with ` + "`--log-level debug`" + ` to see the recovered stack
- Report the step type and inputs that triggered it`,
	}

	planIssue = &Issue{
		id:   PlanInvalidId,
		name: "plan",
		mdMsg: `
# Invalid plan

A plan lists the invocations of one batch. Plans are read from ` + "`.cue`" + `,
` + "`.json`" + ` or ` + "`.hcl`" + ` files.

~~~cue
invocations: [{
	id:     "manifest"
	step:   "write-manifest"
	anchor: "projects/app"
	scalars: OutputPath: "obj/app.json"
	items: Entries: [{identity: "main.go"}]
}]
~~~

## Things you can try
- Give every invocation a unique ` + "`id`" + `
- Use a step type listed by ` + "`parastep steps`",
	}

	configIssue = &Issue{
		id:   ConfigLoadFailedId,
		name: "config",
		mdMsg: `
# Failed to load configuration

parastep reads configuration from ` + "`--config`" + `, then
` + "`$XDG_CONFIG_HOME/parastep/config.cue`" + `, then ` + "`./parastep.cue`" + `.

~~~cue
workers: 8
environment: {
	snapshot: "invocation" // or "batch"
	inherit:  "allow"
	allow: ["PATH", "HOME"]
}
log: level: "info"
~~~

## Things you can try
- Run ` + "`parastep config show`" + ` to print the effective configuration
- Check the file for CUE syntax errors`,
	}

	parityIssue = &Issue{
		id:   ParityMismatchId,
		name: "parity",
		mdMsg: `
# Parity mismatch

A step produced different results depending on the process working
directory, or when run concurrently. It is reading ambient state instead of
its execution context.

## Things you can try
- Resolve every path through the execution context, never ` + "`os.Getwd`" + ` or ` + "`filepath.Abs`" + `
- Read variables from the context snapshot, never ` + "`os.Getenv`" + `
- Keep per-invocation state on the step instance, not in package variables`,
	}

	skippedIssue = &Issue{
		id:   InvocationSkippedId,
		name: "skipped",
		mdMsg: `
# Invocation skipped

The batch was cancelled (for example by ` + "`--timeout`" + ` or Ctrl-C) before
this invocation started. Invocations already running were allowed to finish.`,
	}

	issues = map[Id]*Issue{
		configurationIssue.Id(): configurationIssue,
		resolutionIssue.Id():    resolutionIssue,
		domainIssue.Id():        domainIssue,
		internalIssue.Id():      internalIssue,
		planIssue.Id():          planIssue,
		configIssue.Id():        configIssue,
		parityIssue.Id():        parityIssue,
		skippedIssue.Id():       skippedIssue,
	}
)

// Values returns every issue ordered by id.
func Values() []*Issue {
	out := maps.Values(issues)
	slices.SortFunc(out, func(a, b *Issue) int { return int(a.id) - int(b.id) })
	return out
}

// Get returns the issue with the given id, or nil.
func Get(id Id) *Issue {
	return issues[id]
}

// Lookup returns the issue with the given name.
func Lookup(name string) (*Issue, bool) {
	for _, is := range issues {
		if is.name == name {
			return is, true
		}
	}
	return nil, false
}

// Names returns every issue name ordered by id.
func Names() []string {
	values := Values()
	names := make([]string, len(values))
	for i, is := range values {
		names[i] = is.name
	}
	return names
}
