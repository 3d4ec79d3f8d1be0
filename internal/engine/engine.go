// SPDX-License-Identifier: MPL-2.0

package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"slices"
	"strings"

	"github.com/boltstep/boltstep/pkg/types"
)

const (
	// DefaultBinary is the engine executable looked up on PATH.
	DefaultBinary = "bolt"

	// SubcommandTask runs a task.
	SubcommandTask Subcommand = "task"
	// SubcommandPlan runs a plan.
	SubcommandPlan Subcommand = "plan"

	// OutputFormat is the --format value passed to every run.
	OutputFormat = "json"

	stderrTailBytes = 2048
)

var (
	// ErrEngineNotFound is returned when the engine binary cannot be executed.
	ErrEngineNotFound = errors.New("automation engine not found")

	// ErrCommandFailed is the sentinel wrapped by CommandError.
	ErrCommandFailed = errors.New("engine command failed")

	// ErrInvalidSubcommand is the sentinel wrapped by InvalidSubcommandError.
	ErrInvalidSubcommand = errors.New("invalid engine subcommand")
)

type (
	// ExecCommandFunc is the function signature for creating exec.Cmd.
	// This allows injection of mock implementations for testing.
	ExecCommandFunc func(ctx context.Context, name string, arg ...string) *exec.Cmd

	// Option configures a CLI.
	Option func(*CLI)

	// Subcommand is the engine subcommand that executes a named action.
	Subcommand string

	// InvalidSubcommandError is returned for subcommands other than task or plan.
	InvalidSubcommandError struct {
		Value Subcommand
	}

	// CLI runs the automation engine binary.
	CLI struct {
		binary      string
		execCommand ExecCommandFunc
		// envOverrides are appended to the inherited environment of every
		// command, e.g. HOME for run-scoped configuration.
		envOverrides map[string]string
		stderr       io.Writer
	}

	// RunOptions describes a task or plan run.
	RunOptions struct {
		Subcommand    Subcommand
		Name          string
		ProjectDir    string
		InventoryFile string
		ParamsFile    string
		TargetsFile   string
	}

	// ApplyOptions describes a manifest apply.
	ApplyOptions struct {
		Manifest      string
		ProjectDir    string
		InventoryFile string
		TargetsFile   string
	}

	// Result is the outcome of a run that started. A non-zero exit code is
	// not an error.
	Result struct {
		Stdout   []byte
		ExitCode types.ExitCode
	}

	// CommandError reports an engine command that exited non-zero where
	// success was required.
	CommandError struct {
		Args     []string
		ExitCode types.ExitCode
		// Stderr holds the tail of the command's stderr.
		Stderr string
	}
)

// Error implements the error interface.
func (e *InvalidSubcommandError) Error() string {
	return fmt.Sprintf("invalid engine subcommand %q (valid: %s, %s)", e.Value, SubcommandTask, SubcommandPlan)
}

// Unwrap returns ErrInvalidSubcommand for errors.Is() compatibility.
func (e *InvalidSubcommandError) Unwrap() error { return ErrInvalidSubcommand }

// String returns the subcommand.
func (s Subcommand) String() string { return string(s) }

// Validate returns an error if the subcommand is not task or plan.
func (s Subcommand) Validate() error {
	switch s {
	case SubcommandTask, SubcommandPlan:
		return nil
	default:
		return &InvalidSubcommandError{Value: s}
	}
}

// Error implements the error interface.
func (e *CommandError) Error() string {
	msg := fmt.Sprintf("%s exited with status %d", strings.Join(e.Args, " "), e.ExitCode)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

// Unwrap returns ErrCommandFailed for errors.Is() compatibility.
func (e *CommandError) Unwrap() error { return ErrCommandFailed }

// WithExecCommand sets a custom exec command function for testing.
func WithExecCommand(fn ExecCommandFunc) Option {
	return func(c *CLI) {
		c.execCommand = fn
	}
}

// WithEnv adds an environment variable override applied to every command.
func WithEnv(key, value string) Option {
	return func(c *CLI) {
		if c.envOverrides == nil {
			c.envOverrides = make(map[string]string)
		}
		c.envOverrides[key] = value
	}
}

// WithHome runs the engine with HOME set to dir, which scopes the engine's
// user-level configuration to dir.
func WithHome(dir string) Option {
	return WithEnv("HOME", dir)
}

// WithStderr sets where engine stderr and auxiliary command output go.
func WithStderr(w io.Writer) Option {
	return func(c *CLI) {
		c.stderr = w
	}
}

// New creates a CLI for binary (DefaultBinary when empty).
func New(binary string, opts ...Option) *CLI {
	if binary == "" {
		binary = DefaultBinary
	}
	c := &CLI{
		binary:      binary,
		execCommand: exec.CommandContext,
		stderr:      os.Stderr,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Binary returns the engine executable name or path.
func (c *CLI) Binary() string { return c.binary }

// Env returns the environment overrides as sorted KEY=VALUE pairs.
func (c *CLI) Env() []string {
	env := make([]string, 0, len(c.envOverrides))
	for k, v := range c.envOverrides {
		env = append(env, k+"="+v)
	}
	slices.Sort(env)
	return env
}

// --- Argument Builders ---

// RunArgs constructs arguments for a task or plan run.
//
// Generated command: <binary> <task|plan> run <name> --project <dir>
// --inventoryfile <inv> --params @<params> --targets @<targets> --format json
func (c *CLI) RunArgs(opts RunOptions) ([]string, error) {
	if err := opts.Subcommand.Validate(); err != nil {
		return nil, err
	}
	return []string{
		string(opts.Subcommand), "run", opts.Name,
		"--project", opts.ProjectDir,
		"--inventoryfile", opts.InventoryFile,
		"--params", "@" + opts.ParamsFile,
		"--targets", "@" + opts.TargetsFile,
		"--format", OutputFormat,
	}, nil
}

// ApplyArgs constructs arguments for a manifest apply.
//
// Generated command: <binary> apply <manifest> --project <dir>
// --inventoryfile <inv> --targets @<targets> --format json
func (c *CLI) ApplyArgs(opts ApplyOptions) []string {
	return []string{
		"apply", opts.Manifest,
		"--project", opts.ProjectDir,
		"--inventoryfile", opts.InventoryFile,
		"--targets", "@" + opts.TargetsFile,
		"--format", OutputFormat,
	}
}

// ModuleInstallArgs constructs arguments that install a project's declared
// modules.
func (c *CLI) ModuleInstallArgs(projectDir string) []string {
	return []string{"module", "install", "--project", projectDir}
}

// ModuleAddArgs constructs arguments that add a module to a project.
func (c *CLI) ModuleAddArgs(module, projectDir string) []string {
	return []string{"module", "add", module, "--project", projectDir}
}

// CommandLine returns the full command line for args, binary first.
func (c *CLI) CommandLine(args []string) []string {
	return append([]string{c.binary}, args...)
}

// --- Command Execution ---

// Run executes the engine, capturing stdout verbatim and forwarding stderr.
// An engine that starts and exits non-zero yields a Result, not an error.
func (c *CLI) Run(ctx context.Context, args ...string) (*Result, error) {
	cmd := c.CreateCommand(ctx, args...)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = c.stderr

	err := cmd.Run()
	if err == nil {
		return &Result{Stdout: stdout.Bytes(), ExitCode: types.ExitSuccess}, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, fmt.Errorf("%s %s: %w", c.binary, firstArg(args), ctxErr)
	}

	code, exited := types.ExitCodeFromRunError(err)
	if !exited {
		return nil, c.startError(args, err)
	}
	return &Result{Stdout: stdout.Bytes(), ExitCode: code}, nil
}

// RunStatus executes an auxiliary engine command whose success is required.
// All of its output goes to the configured stderr writer so stdout stays
// reserved for the run result.
func (c *CLI) RunStatus(ctx context.Context, args ...string) error {
	cmd := c.CreateCommand(ctx, args...)
	tail := &tailBuffer{max: stderrTailBytes}
	cmd.Stdout = c.stderr
	cmd.Stderr = io.MultiWriter(c.stderr, tail)

	err := cmd.Run()
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%s %s: %w", c.binary, firstArg(args), ctxErr)
	}

	code, exited := types.ExitCodeFromRunError(err)
	if !exited {
		return c.startError(args, err)
	}
	return &CommandError{
		Args:     c.CommandLine(args),
		ExitCode: code,
		Stderr:   strings.TrimSpace(tail.String()),
	}
}

// CreateCommand creates an exec.Cmd for the given arguments with the
// environment overrides applied.
func (c *CLI) CreateCommand(ctx context.Context, args ...string) *exec.Cmd {
	cmd := c.execCommand(ctx, c.binary, args...)
	c.customizeCmd(cmd)
	return cmd
}

func (c *CLI) customizeCmd(cmd *exec.Cmd) {
	if len(c.envOverrides) == 0 {
		return
	}
	// A nil Env inherits everything; once set, only the listed vars pass.
	if cmd.Env == nil {
		cmd.Env = os.Environ()
	}
	cmd.Env = append(cmd.Env, c.Env()...)
}

func (c *CLI) startError(args []string, err error) error {
	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s: %w", ErrEngineNotFound, c.binary, err)
	}
	return fmt.Errorf("start %s %s: %w", c.binary, firstArg(args), err)
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	buf []byte
	max int
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.max; over > 0 {
		b.buf = b.buf[over:]
	}
	return len(p), nil
}

func (b *tailBuffer) String() string { return string(b.buf) }
