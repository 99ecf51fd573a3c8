// Package supervisor owns the agent subprocess: launch
// resolution, spawning, the auth gate, file-tool emulation, write-tracking,
// and crash recovery.
//
// It owns an *exec.Cmd, serializes writes to its stdin, reads its stdout
// in a dedicated goroutine, and exposes Stop/Wait to the owning bridge.
package supervisor

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/creack/pty"
	"golang.org/x/term"

	"github.com/schmitthub/clawker-bridge/internal/framer"
	"github.com/schmitthub/clawker-bridge/internal/logger"
	"github.com/schmitthub/clawker-bridge/internal/wire"
)

// LaunchSpec describes how to find the agent executable.
type LaunchSpec struct {
	// ExplicitPath, if set and executable, is used unconditionally.
	ExplicitPath string
	// BinName is the global/repo-local executable name to search for,
	// e.g. "gemini".
	BinName string
	// PackageRunner is the fallback runner invoked when no candidate
	// executable is found, e.g. "npx".
	PackageRunner string
	// PackageSpec is the package argument handed to PackageRunner, e.g.
	// "@google/gemini-cli".
	PackageSpec string
	// UsePTY spawns the subprocess attached to a pseudo-terminal instead
	// of plain pipes, for agents that behave differently without a tty
	// (color output, auth-prompt detection).
	UsePTY bool
}

// Callbacks lets the owner (the C4 multiplexer) react to supervisor
// events without the supervisor importing the bridge package.
type Callbacks struct {
	// OnFrame is invoked for every JSON-RPC frame read from the
	// subprocess's stdout that was not intercepted as a file-tool call.
	OnFrame func(*wire.RawFrame)
	// OnAuthURL is invoked when C1 detects an OAuth URL in subprocess
	// output.
	OnAuthURL func(url string)
	// OnCrash is invoked after the subprocess exits and supervisor state
	// has been reset, before the restart delay begins.
	OnCrash func(err error)
	// OnRestart is invoked once a fresh subprocess has been spawned
	// after a crash, with the supervisor's session id at that moment,
	// which the crash reset has already cleared to "".
	OnRestart func(sessionID string)
}

// Supervisor manages one agent subprocess instance across restarts.
type Supervisor struct {
	spec        LaunchSpec
	projectRoot string
	restartDelay time.Duration
	cb          Callbacks

	stopped chan struct{}
	stopOnce sync.Once

	mu          sync.Mutex
	cmd         *exec.Cmd
	stdin       io.WriteCloser
	writeMu     sync.Mutex
	sessionID   string
	turn        int64
	authPending bool
	authURL     string
	modified    map[string]struct{}
}

// New constructs a Supervisor. projectRoot must already be an existing,
// canonical directory; Spawn inherits it as the child's working directory
// and as the file-tool containment root.
func New(spec LaunchSpec, projectRoot string, restartDelay time.Duration, cb Callbacks) *Supervisor {
	if restartDelay <= 0 {
		restartDelay = 2 * time.Second
	}
	return &Supervisor{
		spec:         spec,
		projectRoot:  projectRoot,
		restartDelay: restartDelay,
		cb:           cb,
		stopped:      make(chan struct{}),
		modified:     make(map[string]struct{}),
	}
}

// SessionID returns the current subprocess generation's session id, or ""
// if no session has been established yet.
func (s *Supervisor) SessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID
}

// SetSessionID records the session id the bridge assigned for the current
// subprocess generation.
func (s *Supervisor) SetSessionID(id string) {
	s.mu.Lock()
	s.sessionID = id
	s.mu.Unlock()
}

// NextTurn increments and returns the turn counter.
func (s *Supervisor) NextTurn() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turn++
	return s.turn
}

// CurrentTurn returns the turn counter's current value without
// incrementing it.
func (s *Supervisor) CurrentTurn() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.turn
}

// AuthPending reports whether the auth gate is currently closed.
func (s *Supervisor) AuthPending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authPending
}

// AuthURL returns the pending auth URL, if any.
func (s *Supervisor) AuthURL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authURL
}

// ModifiedFiles returns (and does not clear) the current turn's
// write-tracking set.
func (s *Supervisor) ModifiedFiles() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.modified))
	for p := range s.modified {
		out = append(out, p)
	}
	return out
}

// ClearModifiedFiles resets the write-tracking set, called once the
// checkpoint hook for the current turn has fired.
func (s *Supervisor) ClearModifiedFiles() {
	s.mu.Lock()
	s.modified = make(map[string]struct{})
	s.mu.Unlock()
}

// Start resolves and spawns the subprocess, then begins the stdout/stderr
// read loops. It blocks only long enough to launch the process; callers
// should not assume the agent is ready to accept prompts until a
// session/new round trip completes.
func (s *Supervisor) Start(ctx context.Context) error {
	name, args, env, err := resolveCommand(s.spec, s.projectRoot)
	if err != nil {
		return fmt.Errorf("supervisor: resolve launch command: %w", err)
	}
	logger.Log.Info().Str("command", name).Strs("args", args).Msg("resolved agent subprocess")
	if v, err := probeVersion(ctx, name, args); err == nil {
		logger.Log.Info().Str("version", v).Msg("agent subprocess version probe")
	}

	return s.spawn(name, args, env)
}

func (s *Supervisor) spawn(name string, args, env []string) error {
	cmd := exec.Command(name, args...)
	cmd.Dir = s.projectRoot
	cmd.Env = append(os.Environ(), env...)
	if forceColorEnv() && !hasForceColor(env) {
		cmd.Env = append(cmd.Env, "FORCE_COLOR=1")
	}

	if s.spec.UsePTY {
		return s.spawnPTY(cmd, name, args, env)
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("supervisor: stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("supervisor: stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("supervisor: stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("supervisor: start: %w", err)
	}

	s.mu.Lock()
	s.cmd = cmd
	s.stdin = stdin
	s.authPending = false
	s.authURL = ""
	s.modified = make(map[string]struct{})
	s.turn = 0
	s.mu.Unlock()

	go s.readStdout(stdout)
	go s.readStderr(stderr)
	go s.watchExit(cmd, name, args, env)

	return nil
}

// forceColorEnv reports whether the bridge process itself is attached to
// a terminal, used as the signal for whether the subprocess should get a
// FORCE_COLOR hint: a bridge running detached (e.g. under systemd)
// shouldn't force color codes into a log file.
func forceColorEnv() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

func hasForceColor(env []string) bool {
	for _, e := range env {
		if strings.HasPrefix(e, "FORCE_COLOR=") {
			return true
		}
	}
	return false
}

// spawnPTY attaches the subprocess to a pseudo-terminal instead of plain
// pipes: some agents only emit color output or detect an interactive
// auth prompt when given a controlling tty. The pty merges stdout/stderr
// onto one master file, so only a single read loop runs.
func (s *Supervisor) spawnPTY(cmd *exec.Cmd, name string, args, env []string) error {
	ptmx, err := pty.Start(cmd)
	if err != nil {
		return fmt.Errorf("supervisor: pty start: %w", err)
	}

	s.mu.Lock()
	s.cmd = cmd
	s.stdin = ptmx
	s.authPending = false
	s.authURL = ""
	s.modified = make(map[string]struct{})
	s.turn = 0
	s.mu.Unlock()

	go s.readStdout(ptmx)
	go s.watchExit(cmd, name, args, env)

	return nil
}

func (s *Supervisor) readStdout(r io.Reader) {
	err := framer.Scan(r, s.handleFrame, func(format string, args ...any) {
		logger.Log.Debug().Msgf(format, args...)
	})
	if err != nil {
		logger.Log.Warn().Err(err).Msg("supervisor: stdout scan ended")
	}
}

func (s *Supervisor) readStderr(r io.Reader) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	for sc.Scan() {
		logger.Log.Info().Str("stream", "stderr").Msg(sc.Text())
	}
}

func (s *Supervisor) handleFrame(f framer.Frame) {
	switch f.Kind {
	case framer.KindAuthURL:
		s.mu.Lock()
		s.authPending = true
		s.authURL = f.URL
		s.mu.Unlock()
		if s.cb.OnAuthURL != nil {
			s.cb.OnAuthURL(f.URL)
		}
	case framer.KindJSONRPC:
		if s.tryHandleFileTool(f.RPC) {
			return
		}
		if s.cb.OnFrame != nil {
			s.cb.OnFrame(f.RPC)
		}
	case framer.KindLog:
		logger.Log.Debug().Str("stream", "stdout").Msg(f.Raw)
	}
}

// WriteStdin serializes one frame onto the subprocess's stdin.
func (s *Supervisor) WriteStdin(f *wire.RawFrame) error {
	data, err := f.Encode()
	if err != nil {
		return fmt.Errorf("supervisor: encode frame: %w", err)
	}
	return s.writeLine(data)
}

func (s *Supervisor) writeLine(data []byte) error {
	s.mu.Lock()
	stdin := s.stdin
	s.mu.Unlock()
	if stdin == nil {
		return fmt.Errorf("supervisor: subprocess not running")
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if _, err := stdin.Write(data); err != nil {
		return fmt.Errorf("supervisor: write stdin: %w", err)
	}
	if _, err := stdin.Write([]byte("\n")); err != nil {
		return fmt.Errorf("supervisor: write stdin newline: %w", err)
	}
	return nil
}

// SubmitAuthCode writes the trimmed OAuth code plus a newline directly to
// the subprocess's stdin (not as a JSON-RPC frame) and clears the gate.
func (s *Supervisor) SubmitAuthCode(code string) error {
	trimmed := strings.TrimSpace(code)
	if err := s.writeLine([]byte(trimmed)); err != nil {
		return err
	}
	s.mu.Lock()
	s.authPending = false
	s.authURL = ""
	s.mu.Unlock()
	return nil
}

func (s *Supervisor) watchExit(cmd *exec.Cmd, name string, args, env []string) {
	err := cmd.Wait()

	select {
	case <-s.stopped:
		return
	default:
	}

	s.mu.Lock()
	s.sessionID = ""
	s.authPending = false
	s.authURL = ""
	s.turn = 0
	s.modified = make(map[string]struct{})
	s.mu.Unlock()

	if s.cb.OnCrash != nil {
		s.cb.OnCrash(err)
	}

	logger.Log.Warn().Err(err).Dur("restart_delay", s.restartDelay).Msg("supervisor: subprocess exited, scheduling restart")

	select {
	case <-time.After(s.restartDelay):
	case <-s.stopped:
		return
	}

	if err := s.spawn(name, args, env); err != nil {
		logger.Log.Error().Err(err).Msg("supervisor: restart failed")
		return
	}
	if s.cb.OnRestart != nil {
		s.cb.OnRestart(s.SessionID())
	}
}

// Stop terminates the subprocess and prevents further restarts.
func (s *Supervisor) Stop() error {
	s.stopOnce.Do(func() { close(s.stopped) })

	s.mu.Lock()
	cmd := s.cmd
	stdin := s.stdin
	s.mu.Unlock()

	if stdin != nil {
		stdin.Close()
	}
	if cmd != nil && cmd.Process != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
	}
	return nil
}

