// Package sandbox runs short scripts against one session workspace using the
// Yaegi interpreter. Interpreting instead of compiling keeps execution inside
// the host process, makes the capability boundary explicit, and removes the
// failure modes of shelling out to a toolchain.
//
// Safety restrictions:
//   - only whitelisted stdlib imports (no os, os/exec, net, syscall, unsafe)
//   - filesystem access only through the injected workspace capability
//   - hard wall-clock timeout that interrupts interpreted code
//   - panics degrade to a failed result, never to a host crash
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"go/parser"
	"go/token"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	"stratdesk/internal/logging"
	"stratdesk/internal/workspace"
	"stratdesk/pkg/scriptapi"
)

// ExitTimeout is the exit code reported when the wall-clock timeout fires.
const ExitTimeout = 124

// Result is the structured outcome of one Execute call. Success is false
// both for thrown errors and for non-zero completion; the distinguishing
// detail is in ExitCode and Stderr.
type Result struct {
	Success  bool          `json:"success"`
	ExitCode int           `json:"exit_code"`
	Stdout   string        `json:"stdout"`
	Stderr   string        `json:"stderr"`
	TimedOut bool          `json:"timed_out"`
	Duration time.Duration `json:"duration"`
}

// Executor runs scripts confined to session workspaces.
type Executor struct {
	manager        *workspace.Manager
	maxOutputBytes int
	allowedImports map[string]bool

	// symbols is the whitelisted subset of stdlib bindings handed to the
	// interpreter. Import validation rejects forbidden paths up front, but
	// the real wall is here: a path the interpreter never learned about
	// cannot resolve no matter how it reaches the source.
	symbols interp.Exports
}

// NewExecutor returns an executor writing through the given workspace
// manager. maxOutputBytes caps each captured stream; <=0 means the default.
func NewExecutor(manager *workspace.Manager, maxOutputBytes int) *Executor {
	if maxOutputBytes <= 0 {
		maxOutputBytes = 50000
	}
	e := &Executor{
		manager:        manager,
		maxOutputBytes: maxOutputBytes,
		allowedImports: map[string]bool{
			"bytes":           true,
			"encoding/base64": true,
			"encoding/csv":    true,
			"encoding/json":   true,
			"errors":          true,
			"fmt":             true,
			"math":            true,
			"math/rand":       true,
			"path":            true,
			"regexp":          true,
			"sort":            true,
			"strconv":         true,
			"strings":         true,
			"time":            true,
			"unicode":         true,
			"unicode/utf8":    true,

			// Capability package injected by the executor.
			"sandbox": true,

			// Explicitly absent (unsafe for confined execution):
			// os, os/exec, os/signal, io/ioutil, net, net/http,
			// path/filepath, syscall, unsafe, plugin, runtime/debug.
		},
	}
	e.symbols = restrictSymbols(stdlib.Symbols, e.allowedImports)
	return e
}

// restrictSymbols keeps only the bindings whose import path is whitelisted.
// Symbol keys have the form "<import path>/<package name>".
func restrictSymbols(all interp.Exports, allowed map[string]bool) interp.Exports {
	filtered := make(interp.Exports)
	for key, symbols := range all {
		idx := strings.LastIndex(key, "/")
		if idx < 0 {
			continue
		}
		if allowed[key[:idx]] {
			filtered[key] = symbols
		}
	}
	return filtered
}

// Execute runs scriptText against the session's workspace and blocks until
// the script completes, fails, or the timeout fires. The script must define
//
//	func Run(ws sandbox.Workspace) error
//
// Files it writes through ws are visible via the workspace manager after
// return. Execution failures never propagate as errors; they are folded into
// the Result. The returned error covers only host-side setup problems.
func (e *Executor) Execute(ctx context.Context, sessionID, scriptText string, timeout time.Duration) (Result, error) {
	log := logging.Get(logging.CategorySandbox)
	start := time.Now()

	if _, err := e.manager.Init(sessionID); err != nil {
		return Result{}, fmt.Errorf("sandbox: init workspace: %w", err)
	}

	stdout := newCappedBuffer(e.maxOutputBytes)
	stderr := newCappedBuffer(e.maxOutputBytes)

	if err := e.validateImports(scriptText); err != nil {
		stderr.WriteString(err.Error())
		return Result{
			ExitCode: 1,
			Stdout:   stdout.String(),
			Stderr:   stderr.String(),
			Duration: time.Since(start),
		}, nil
	}

	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	binding := &wsBinding{manager: e.manager, sessionID: sessionID}
	log.Debug("executing script: session=%s len=%d timeout=%v", sessionID, len(scriptText), timeout)

	runErr := e.run(execCtx, binding, scriptText, stdout, stderr)

	res := Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	switch {
	case execCtx.Err() == context.DeadlineExceeded:
		res.TimedOut = true
		res.ExitCode = ExitTimeout
		res.Stderr = appendLine(res.Stderr, fmt.Sprintf("execution timed out after %v", timeout))
	case runErr != nil:
		var exit *scriptapi.ExitError
		if errors.As(runErr, &exit) {
			res.ExitCode = exit.Code
			res.Success = exit.Code == 0
			if exit.Message != "" {
				res.Stderr = appendLine(res.Stderr, exit.Message)
			}
		} else {
			res.ExitCode = 1
			res.Stderr = appendLine(res.Stderr, runErr.Error())
		}
	default:
		res.Success = true
	}

	log.Debug("script finished: session=%s success=%v exit=%d timedout=%v in %v",
		sessionID, res.Success, res.ExitCode, res.TimedOut, res.Duration)
	return res, nil
}

// run interprets the script and invokes its Run function. Interpreter panics
// are recovered into errors so one bad script cannot take down the host.
func (e *Executor) run(ctx context.Context, ws scriptapi.Workspace, scriptText string, stdout, stderr *cappedBuffer) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sandbox panic: %v", r)
		}
	}()

	i := interp.New(interp.Options{Stdout: stdout, Stderr: stderr})
	if err := i.Use(e.symbols); err != nil {
		return fmt.Errorf("load stdlib symbols: %w", err)
	}
	if err := i.Use(capabilityExports(ws)); err != nil {
		return fmt.Errorf("load sandbox symbols: %w", err)
	}

	if _, err := i.EvalWithContext(ctx, wrapScript(scriptText)); err != nil {
		return err
	}

	// The call expression is evaluated (not reflected and invoked) so the
	// context can interrupt interpreted loops mid-flight.
	v, err := i.EvalWithContext(ctx, "main.Run(sandbox.WS)")
	if err != nil {
		return err
	}
	if v.IsValid() && !v.IsZero() {
		if rerr, ok := v.Interface().(error); ok && rerr != nil {
			return rerr
		}
	}
	return nil
}

// capabilityExports exposes the sandbox package to interpreted code: the
// Workspace interface type, the live binding, and Exit.
func capabilityExports(ws scriptapi.Workspace) interp.Exports {
	return interp.Exports{
		"sandbox/sandbox": {
			"Workspace": reflect.ValueOf((*scriptapi.Workspace)(nil)),
			"WS":        reflect.ValueOf(ws),
			"Exit":      reflect.ValueOf(scriptapi.Exit),
		},
	}
}

// validateImports rejects scripts importing anything outside the whitelist
// before the interpreter ever sees them. The source is parsed, not scanned
// line by line, so aliased, grouped and oddly formatted import specs are all
// caught.
func (e *Executor) validateImports(code string) error {
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, "script.go", wrapScript(code), parser.ImportsOnly)
	if err != nil {
		return fmt.Errorf("parse imports: %w", err)
	}

	var forbidden []string
	for _, imp := range f.Imports {
		pkg, err := strconv.Unquote(imp.Path.Value)
		if err != nil || !e.allowedImports[pkg] {
			forbidden = append(forbidden, strings.Trim(imp.Path.Value, `"`))
		}
	}
	if len(forbidden) > 0 {
		return fmt.Errorf("forbidden imports: %s", strings.Join(forbidden, ", "))
	}
	return nil
}

// wrapScript prepends a package clause when the script omits one.
func wrapScript(code string) string {
	if strings.Contains(code, "package main") {
		return code
	}
	return "package main\n\n" + code
}

func appendLine(s, line string) string {
	if s == "" {
		return line
	}
	if !strings.HasSuffix(s, "\n") {
		s += "\n"
	}
	return s + line
}
