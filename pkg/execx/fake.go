package execx

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Call records a single command invocation made through a Fake runner.
type Call struct {
	Name string
	Args []string
	Env  []string
}

// String renders the call the way it would appear on a shell command line,
// with any extra environment leading the way shells show it.
func (c Call) String() string {
	line := c.Name
	if len(c.Args) > 0 {
		line += " " + strings.Join(c.Args, " ")
	}
	if len(c.Env) > 0 {
		line = strings.Join(c.Env, " ") + " " + line
	}
	return line
}

// Response is a scripted result for a command matched by prefix.
type Response struct {
	Stdout string
	Err    error
}

// Fake is a scripted Runner for tests. Commands are matched against scripted
// responses by longest command-line prefix; unmatched commands succeed with
// empty output.
type Fake struct {
	mu        sync.Mutex
	calls     []Call
	responses map[string]Response
	missing   map[string]bool
}

// NewFake creates an empty scripted runner.
func NewFake() *Fake {
	return &Fake{
		responses: make(map[string]Response),
		missing:   make(map[string]bool),
	}
}

// Respond scripts a response for any command line starting with prefix.
func (f *Fake) Respond(prefix string, resp Response) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[prefix] = resp
}

// FailWith scripts a failure for any command line starting with prefix.
func (f *Fake) FailWith(prefix string, err error) {
	f.Respond(prefix, Response{Err: err})
}

// MarkMissing makes LookPath report the named binary as absent.
func (f *Fake) MarkMissing(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.missing[name] = true
}

// Calls returns a copy of all recorded invocations.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Call, len(f.calls))
	copy(out, f.calls)
	return out
}

// CommandLines returns every recorded invocation as a rendered command line.
func (f *Fake) CommandLines() []string {
	calls := f.Calls()
	lines := make([]string, len(calls))
	for i, c := range calls {
		lines[i] = c.String()
	}
	return lines
}

// Ran reports whether any recorded command line starts with prefix.
func (f *Fake) Ran(prefix string) bool {
	for _, line := range f.CommandLines() {
		if strings.HasPrefix(line, prefix) {
			return true
		}
	}
	return false
}

func (f *Fake) lookup(line string) (Response, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	best := ""
	for prefix := range f.responses {
		if strings.HasPrefix(line, prefix) && len(prefix) > len(best) {
			best = prefix
		}
	}
	if best == "" {
		return Response{}, false
	}
	return f.responses[best], true
}

func (f *Fake) record(call Call) string {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
	return call.String()
}

// Run records the invocation and returns the scripted error, if any.
func (f *Fake) Run(ctx context.Context, name string, args ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	line := f.record(Call{Name: name, Args: args})
	if resp, ok := f.lookup(line); ok {
		return resp.Err
	}
	return nil
}

// RunEnv records the invocation with its environment and returns the
// scripted error, if any.
func (f *Fake) RunEnv(ctx context.Context, env []string, name string, args ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	line := f.record(Call{Name: name, Args: args, Env: env})
	if resp, ok := f.lookup(line); ok {
		return resp.Err
	}
	return nil
}

// Output records the invocation and returns the scripted stdout.
func (f *Fake) Output(ctx context.Context, name string, args ...string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	line := f.record(Call{Name: name, Args: args})
	if resp, ok := f.lookup(line); ok {
		return resp.Stdout, resp.Err
	}
	return "", nil
}

// LookPath reports true unless the binary was marked missing.
func (f *Fake) LookPath(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.missing[name]
}

var _ Runner = (*Fake)(nil)
var _ Runner = (*System)(nil)

// ErrScripted is a convenience error for tests scripting failures.
var ErrScripted = fmt.Errorf("scripted failure")
