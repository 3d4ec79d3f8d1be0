// SPDX-License-Identifier: MPL-2.0

package enginetest

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"slices"
	"strconv"
	"strings"
	"sync"
	"testing"
)

const (
	envWantHelper = "GO_WANT_HELPER_PROCESS"
	envExitCode   = "GO_HELPER_EXIT_CODE"
	envStdout     = "GO_HELPER_STDOUT"
	envStderr     = "GO_HELPER_STDERR"
	envEchoEnv    = "GO_HELPER_ECHO_ENV"
)

type (
	// Response scripts what the fake engine does for a matching invocation.
	Response struct {
		ExitCode int
		Stdout   string
		Stderr   string
		// EchoEnv names an environment variable whose value the fake engine
		// prints to stdout as NAME=value after Stdout.
		EchoEnv string
	}

	// Invocation is one recorded engine call.
	Invocation struct {
		Name string
		Args []string
	}

	// Recorder captures engine invocations and answers them with scripted
	// responses. Responses are matched by the longest registered prefix of
	// the space-joined arguments; unmatched calls get Default.
	Recorder struct {
		Default Response

		mu          sync.Mutex
		responses   map[string]Response
		invocations []Invocation
	}
)

// NewRecorder creates a recorder whose default response is a silent success.
func NewRecorder() *Recorder {
	return &Recorder{responses: make(map[string]Response)}
}

// On registers resp for invocations whose arguments start with prefix,
// e.g. "module install" or "task run".
func (r *Recorder) On(prefix string, resp Response) *Recorder {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.responses[prefix] = resp
	return r
}

// CommandFunc returns a function that can replace exec.CommandContext.
func (r *Recorder) CommandFunc() func(ctx context.Context, name string, args ...string) *exec.Cmd {
	return func(ctx context.Context, name string, args ...string) *exec.Cmd {
		resp := r.record(name, args)

		cs := []string{"-test.run=TestHelperProcess", "--", name}
		cs = append(cs, args...)
		//nolint:gosec // TestHelperProcess is a test-only pattern
		cmd := exec.CommandContext(ctx, os.Args[0], cs...)
		cmd.Env = []string{
			envWantHelper + "=1",
			envExitCode + "=" + strconv.Itoa(resp.ExitCode),
			envStdout + "=" + resp.Stdout,
			envStderr + "=" + resp.Stderr,
			envEchoEnv + "=" + resp.EchoEnv,
		}
		return cmd
	}
}

func (r *Recorder) record(name string, args []string) Response {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.invocations = append(r.invocations, Invocation{Name: name, Args: slices.Clone(args)})

	joined := strings.Join(args, " ")
	best, found := "", false
	for prefix := range r.responses {
		if strings.HasPrefix(joined, prefix) && (!found || len(prefix) > len(best)) {
			best, found = prefix, true
		}
	}
	if found {
		return r.responses[best]
	}
	return r.Default
}

// Invocations returns a copy of the recorded calls in order.
func (r *Recorder) Invocations() []Invocation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.invocations)
}

// Commands returns each recorded call as "name arg1 arg2 ...".
func (r *Recorder) Commands() []string {
	invs := r.Invocations()
	out := make([]string, len(invs))
	for i, inv := range invs {
		out[i] = strings.Join(append([]string{inv.Name}, inv.Args...), " ")
	}
	return out
}

// Last returns the most recent invocation, or nil if none.
func (r *Recorder) Last() *Invocation {
	invs := r.Invocations()
	if len(invs) == 0 {
		return nil
	}
	return &invs[len(invs)-1]
}

// AssertInvocationCount verifies the number of engine calls.
func (r *Recorder) AssertInvocationCount(t testing.TB, want int) {
	t.Helper()
	if got := len(r.Invocations()); got != want {
		t.Errorf("engine invoked %d time(s), want %d: %v", got, want, r.Commands())
	}
}

// HelperProcess is the body of the TestHelperProcess test each package
// declares. It does nothing unless run by a Recorder command.
func HelperProcess() {
	if os.Getenv(envWantHelper) != "1" {
		return
	}

	fmt.Fprint(os.Stdout, os.Getenv(envStdout))
	if name := os.Getenv(envEchoEnv); name != "" {
		fmt.Fprintf(os.Stdout, "%s=%s\n", name, os.Getenv(name))
	}
	fmt.Fprint(os.Stderr, os.Getenv(envStderr))

	code, _ := strconv.Atoi(os.Getenv(envExitCode))
	os.Exit(code)
}
