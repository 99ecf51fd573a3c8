package client

import (
	"encoding/json"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// rawDiffShape covers the several wire shapes a diff payload may arrive
// in. The "diff" key may hold a string (moved into DiffStr by
// liftDiffString) or a nested object (kept in Diff).
type rawDiffShape struct {
	Type    string          `json:"type"`
	Path    string          `json:"path"`
	OldText string          `json:"oldText"`
	NewText string          `json:"newText"`
	Unified string          `json:"unified"`
	Patch   string          `json:"patch"`
	DiffStr string          `json:"-"`
	Before  string          `json:"before"`
	After   string          `json:"after"`
	Diff    json.RawMessage `json:"diff,omitempty"`
	Content json.RawMessage `json:"content,omitempty"`
}

// normalizeDiff reduces any of the recognized wire diff shapes into the
// client-side Diff{path?, unified, oldTextLength?, newTextLength?}
// model. contextLines configures unified-diff generation when no
// unified string is supplied directly.
func normalizeDiff(raw json.RawMessage, contextLines int) *Diff {
	if len(raw) == 0 {
		return nil
	}

	var shape rawDiffShape
	if err := json.Unmarshal(raw, &shape); err != nil {
		return nil
	}
	shape.liftDiffString()

	// A nested diff or content sub-object takes precedence over a flat
	// shape on the same update; only one level of nesting is examined.
	if nested := firstNonEmpty(shape.Diff, shape.Content); len(nested) > 0 {
		var inner rawDiffShape
		if err := json.Unmarshal(nested, &inner); err == nil {
			inner.liftDiffString()
			if hasDiffContent(inner) {
				shape = inner
			}
		}
	}

	if !hasDiffContent(shape) {
		return nil
	}

	d := &Diff{Path: shape.Path}

	if u := firstNonEmptyString(shape.Unified, shape.Patch, shape.DiffStr); u != "" {
		d.Unified = u
		d.OldTextLength = len(shape.OldText)
		d.NewTextLength = len(shape.NewText)
		return d
	}

	oldText, newText := shape.OldText, shape.NewText
	if oldText == "" && newText == "" {
		oldText, newText = shape.Before, shape.After
	}
	d.OldTextLength = len(oldText)
	d.NewTextLength = len(newText)
	d.Unified = unifiedDiff(oldText, newText, shape.Path, contextLines)
	return d
}

// liftDiffString moves a string-valued "diff" field into DiffStr.
func (s *rawDiffShape) liftDiffString() {
	var str string
	if len(s.Diff) > 0 && json.Unmarshal(s.Diff, &str) == nil {
		s.DiffStr = str
		s.Diff = nil
	}
}

func hasDiffContent(s rawDiffShape) bool {
	return s.Unified != "" || s.Patch != "" || s.DiffStr != "" ||
		s.OldText != "" || s.NewText != "" || s.Before != "" || s.After != ""
}

func firstNonEmpty(candidates ...json.RawMessage) json.RawMessage {
	for _, c := range candidates {
		if len(c) > 0 && string(c) != "null" {
			return c
		}
	}
	return nil
}

func firstNonEmptyString(candidates ...string) string {
	for _, c := range candidates {
		if c != "" {
			return c
		}
	}
	return ""
}

// unifiedDiff computes a unified diff with the given context-line count
//.
func unifiedDiff(oldText, newText, path string, contextLines int) string {
	if contextLines < 0 {
		contextLines = 0
	}
	fromFile, toFile := path, path
	if fromFile == "" {
		fromFile, toFile = "a", "b"
	}
	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(oldText),
		B:        difflib.SplitLines(newText),
		FromFile: fromFile,
		ToFile:   toFile,
		Context:  contextLines,
	}
	out, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		return ""
	}
	return strings.TrimRight(out, "\n")
}
