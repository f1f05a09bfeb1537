// Package pyexec executes embedded Python in a companion interpreter
// process speaking a line-oriented JSON protocol.
//
// One Runtime owns at most one interpreter process. Access is
// exclusive and non-reentrant: callers take a Session with Acquire,
// run a full compile and execute sequence under that one hold, and
// release it with Close. Scopes named by the caller give each
// py.Context its own persistent global namespace inside the shared
// process.
package pyexec

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
)

// Runtime manages the interpreter process. The process starts lazily
// on first Acquire and restarts fresh after any transport failure.
type Runtime struct {
	argv []string
	sem  chan struct{}

	// Everything below is touched only while holding sem.
	cmd      *exec.Cmd
	stdin    io.WriteCloser
	lines    chan string
	readErr  chan error
	quit     chan struct{}
	stderr   bytes.Buffer
	nextUnit int
}

// NewRuntime prepares a runtime for the given interpreter command,
// "python3" when empty.
func NewRuntime(python string) *Runtime {
	if python == "" {
		python = "python3"
	}
	return &Runtime{
		argv: []string{python, "-c", driverSource},
		sem:  make(chan struct{}, 1),
	}
}

// Acquire grants exclusive use of the interpreter, starting it if
// needed. Every Acquire pairs with Session.Close on every exit path.
func (r *Runtime) Acquire(ctx context.Context) (*Session, error) {
	select {
	case r.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if err := r.start(); err != nil {
		<-r.sem
		return nil, err
	}
	return &Session{rt: r}, nil
}

// Close shuts the interpreter down cleanly, waiting for any current
// session holder first.
func (r *Runtime) Close() error {
	r.sem <- struct{}{}
	defer func() { <-r.sem }()

	if r.cmd == nil {
		return nil
	}
	r.stdin.Close()
	close(r.quit)
	err := r.cmd.Wait()
	r.reset()
	if err != nil {
		return fmt.Errorf("python interpreter: %w", err)
	}
	return nil
}

func (r *Runtime) start() error {
	if r.cmd != nil {
		return nil
	}

	cmd := exec.Command(r.argv[0], r.argv[1:]...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("starting python: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("starting python: %w", err)
	}
	cmd.Stderr = &r.stderr
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting python: %w", err)
	}

	r.cmd = cmd
	r.stdin = stdin
	r.lines = make(chan string)
	r.readErr = make(chan error, 1)
	r.quit = make(chan struct{})
	go readLoop(stdout, r.lines, r.readErr, r.quit)
	return nil
}

// readLoop pumps driver responses to the session holder. The channels
// are parameters, not fields, so a torn-down runtime cannot race its
// own replacement.
func readLoop(stdout io.Reader, lines chan<- string, readErr chan<- error, quit <-chan struct{}) {
	reader := bufio.NewReader(stdout)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			select {
			case readErr <- err:
			default:
			}
			return
		}
		select {
		case lines <- line:
		case <-quit:
			return
		}
	}
}

// fail kills the process after a transport failure and reports cause.
// The next Acquire starts a fresh interpreter; compiled units and
// scopes do not survive, which is why callers compile per run.
func (r *Runtime) fail(cause error) error {
	r.stdin.Close()
	close(r.quit)
	r.cmd.Process.Kill()
	r.cmd.Wait()
	r.reset()
	return cause
}

// failExit reaps a process that died on its own and reports why,
// preferring the interpreter's last stderr line over the raw exit
// status.
func (r *Runtime) failExit(readErr error) error {
	r.stdin.Close()
	close(r.quit)
	waitErr := r.cmd.Wait()
	msg := strings.TrimSpace(r.stderr.String())
	r.reset()

	switch {
	case msg != "":
		return fmt.Errorf("python interpreter exited: %s", lastLine(msg))
	case waitErr != nil:
		return fmt.Errorf("python interpreter exited: %w", waitErr)
	default:
		return fmt.Errorf("python interpreter exited unexpectedly (%v)", readErr)
	}
}

func (r *Runtime) reset() {
	r.cmd = nil
	r.stdin = nil
	r.lines = nil
	r.readErr = nil
	r.quit = nil
	r.stderr.Reset()
}

func lastLine(s string) string {
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}

// Unit is a handle to source the interpreter has compiled. Units are
// only valid within the runtime that compiled them.
type Unit struct {
	id string
}

// Output is a successful execution's side channel.
type Output struct {
	Stdout string
}

// Session is an exclusive hold on the interpreter. Methods must stay
// on one goroutine; Close releases the hold and is safe to call twice.
type Session struct {
	rt     *Runtime
	closed bool
}

// Close releases the hold.
func (s *Session) Close() {
	if s.closed {
		return
	}
	s.closed = true
	<-s.rt.sem
}

// Compile turns source into an executable unit. filename is the path
// compile errors and tracebacks report; block source passes the host
// file path so frames match it exactly. Interpreter rejections come
// back as *CompileError.
func (s *Session) Compile(ctx context.Context, source, filename string) (*Unit, error) {
	s.rt.nextUnit++
	id := "u" + strconv.Itoa(s.rt.nextUnit)

	resp, err := s.do(ctx, request{Op: "compile", ID: id, Source: source, Filename: filename})
	if err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, resp.Error.asError()
	}
	return &Unit{id: id}, nil
}

// Execute runs a unit inside the named scope, setting bindings as
// globals first. Whatever the block printed comes back in Output;
// escaped exceptions come back as *RuntimeError.
func (s *Session) Execute(ctx context.Context, unit *Unit, scope string, bindings map[string]any) (*Output, error) {
	resp, err := s.do(ctx, request{Op: "exec", ID: unit.id, Scope: scope, Bindings: bindings})
	if err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, resp.Error.asError()
	}
	return &Output{Stdout: resp.Stdout}, nil
}

// Get reads a global from the named scope, JSON-encoded.
func (s *Session) Get(ctx context.Context, scope, name string) (json.RawMessage, error) {
	resp, err := s.do(ctx, request{Op: "get", Scope: scope, Name: name})
	if err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, resp.Error.asError()
	}
	return resp.Value, nil
}

// Reset drops the named scope's globals.
func (s *Session) Reset(ctx context.Context, scope string) error {
	resp, err := s.do(ctx, request{Op: "reset", Scope: scope})
	if err != nil {
		return err
	}
	if resp.Error != nil {
		return resp.Error.asError()
	}
	return nil
}

func (s *Session) do(ctx context.Context, req request) (*response, error) {
	if s.closed {
		return nil, fmt.Errorf("session is closed")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r := s.rt
	if r.cmd == nil {
		return nil, fmt.Errorf("python interpreter is not running")
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encoding %s request: %w", req.Op, err)
	}
	payload = append(payload, '\n')
	if _, err := r.stdin.Write(payload); err != nil {
		return nil, r.failExit(err)
	}

	select {
	case line := <-r.lines:
		var resp response
		if err := json.Unmarshal([]byte(line), &resp); err != nil {
			return nil, r.fail(fmt.Errorf("malformed driver response: %w", err))
		}
		return &resp, nil
	case readErr := <-r.readErr:
		return nil, r.failExit(readErr)
	case <-ctx.Done():
		// A response with no reader would desynchronize the wire, so
		// the process goes down with the request.
		return nil, r.fail(ctx.Err())
	}
}
