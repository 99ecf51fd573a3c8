package supervisor

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/schmitthub/clawker-bridge/internal/logger"
	"github.com/schmitthub/clawker-bridge/internal/wire"
)

type readTextFileParams struct {
	Path string `json:"path"`
}

type writeTextFileParams struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

type readTextFileResult struct {
	Content string `json:"content"`
}

// tryHandleFileTool intercepts fs/read_text_file and fs/write_text_file
// requests arriving from the subprocess, servicing them
// against the project root and replying over stdin. It returns false for
// any frame it does not recognize as one of these two methods, leaving it
// to be forwarded normally.
func (s *Supervisor) tryHandleFileTool(f *wire.RawFrame) bool {
	if f.Classify() != wire.KindRequest {
		return false
	}
	switch f.Method {
	case wire.MethodFSReadTextFile:
		s.handleReadTextFile(f)
		return true
	case wire.MethodFSWriteTextFile:
		s.handleWriteTextFile(f)
		return true
	default:
		return false
	}
}

func (s *Supervisor) handleReadTextFile(f *wire.RawFrame) {
	var params readTextFileParams
	if err := json.Unmarshal(f.Params, &params); err != nil {
		s.replyToolError(*f.ID, wire.ErrCodeFileToolIO, "invalid fs/read_text_file params", err)
		return
	}

	resolved, err := s.resolvePath(params.Path)
	if err != nil {
		s.replyToolError(*f.ID, wire.ErrCodeInvalidToolPath, err.Error(), nil)
		return
	}

	content, err := os.ReadFile(resolved)
	if err != nil {
		if os.IsNotExist(err) {
			s.replyResult(*f.ID, readTextFileResult{Content: ""})
			return
		}
		s.replyToolError(*f.ID, wire.ErrCodeFileToolIO, "read failed", err)
		return
	}
	s.replyResult(*f.ID, readTextFileResult{Content: string(content)})
}

func (s *Supervisor) handleWriteTextFile(f *wire.RawFrame) {
	var params writeTextFileParams
	if err := json.Unmarshal(f.Params, &params); err != nil {
		s.replyToolError(*f.ID, wire.ErrCodeFileToolIO, "invalid fs/write_text_file params", err)
		return
	}

	resolved, err := s.resolvePath(params.Path)
	if err != nil {
		s.replyToolError(*f.ID, wire.ErrCodeInvalidToolPath, err.Error(), nil)
		return
	}

	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		s.replyToolError(*f.ID, wire.ErrCodeFileToolIO, "create parent dir failed", err)
		return
	}
	if err := os.WriteFile(resolved, []byte(params.Content), 0o644); err != nil {
		s.replyToolError(*f.ID, wire.ErrCodeFileToolIO, "write failed", err)
		return
	}

	s.recordWrite(resolved)
	s.replyResult(*f.ID, nil)
}

// resolvePath joins a path against the project root and rejects any
// canonical form that escapes it.
func (s *Supervisor) resolvePath(raw string) (string, error) {
	if raw == "" {
		return "", fmt.Errorf("empty path")
	}

	root, err := canonicalDir(s.projectRoot)
	if err != nil {
		return "", fmt.Errorf("resolve project root: %w", err)
	}

	var joined string
	if filepath.IsAbs(raw) {
		joined = raw
	} else {
		joined = filepath.Join(root, raw)
	}
	cleaned := filepath.Clean(joined)

	rel, err := filepath.Rel(root, cleaned)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes project root", raw)
	}
	return cleaned, nil
}

// canonicalDir resolves symlinks on whichever leading portion of dir
// already exists, so a not-yet-created file's containing directories
// don't trip os.IsNotExist.
func canonicalDir(dir string) (string, error) {
	resolved, err := filepath.EvalSymlinks(dir)
	if err == nil {
		return resolved, nil
	}
	if !os.IsNotExist(err) {
		return "", err
	}
	return filepath.Clean(dir), nil
}

func (s *Supervisor) recordWrite(path string) {
	s.mu.Lock()
	s.modified[path] = struct{}{}
	s.mu.Unlock()
}

func (s *Supervisor) replyResult(id wire.ID, result any) {
	f, err := wire.NewResult(id, result)
	if err != nil {
		logger.Log.Warn().Err(err).Msg("supervisor: encode file-tool result")
		return
	}
	if err := s.WriteStdin(f); err != nil {
		logger.Log.Warn().Err(err).Msg("supervisor: write file-tool result")
	}
}

func (s *Supervisor) replyToolError(id wire.ID, code int, message string, cause error) {
	var data any
	if cause != nil {
		data = map[string]string{"cause": cause.Error()}
	}
	f := wire.NewError(id, code, message, data)
	if err := s.WriteStdin(f); err != nil {
		logger.Log.Warn().Err(err).Msg("supervisor: write file-tool error")
	}
}
