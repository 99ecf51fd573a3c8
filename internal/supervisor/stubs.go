package supervisor

import (
	"io"
	"time"
)

// NewStub returns a Supervisor with stdin wired to w but no subprocess
// attached, for exercising callers of WriteStdin/file-tool handlers in
// tests without spawning a real process.
func NewStub(projectRoot string, w io.WriteCloser) *Supervisor {
	s := New(LaunchSpec{}, projectRoot, 2*time.Second, Callbacks{})
	s.stdin = w
	return s
}

// MarkModifiedForTest records path in the write-tracking set as if a
// fs/write_text_file tool call had touched it, for exercising checkpoint
// triggering without a real subprocess.
func (s *Supervisor) MarkModifiedForTest(path string) {
	s.recordWrite(path)
}
