package client

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestNormalizeDiffUnifiedStringPassthrough(t *testing.T) {
	raw := json.RawMessage(`{"type":"diff","path":"a.go","unified":"@@ -1 +1 @@\n-old\n+new\n","oldText":"old","newText":"new"}`)
	d := normalizeDiff(raw, 3)
	if d == nil {
		t.Fatal("expected non-nil diff")
	}
	if d.Path != "a.go" {
		t.Fatalf("Path = %q", d.Path)
	}
	if d.Unified != "@@ -1 +1 @@\n-old\n+new\n" {
		t.Fatalf("Unified = %q", d.Unified)
	}
	if d.OldTextLength != 3 || d.NewTextLength != 3 {
		t.Fatalf("lengths = %d/%d", d.OldTextLength, d.NewTextLength)
	}
}

func TestNormalizeDiffComputesUnifiedFromBeforeAfter(t *testing.T) {
	raw := json.RawMessage(`{"path":"b.go","before":"line1\nline2\n","after":"line1\nchanged\n"}`)
	d := normalizeDiff(raw, 1)
	if d == nil {
		t.Fatal("expected non-nil diff")
	}
	if !strings.Contains(d.Unified, "-line2") || !strings.Contains(d.Unified, "+changed") {
		t.Fatalf("Unified missing expected hunk: %q", d.Unified)
	}
	if d.OldTextLength != len("line1\nline2\n") {
		t.Fatalf("OldTextLength = %d", d.OldTextLength)
	}
}

func TestNormalizeDiffNestedDiffSubObject(t *testing.T) {
	raw := json.RawMessage(`{"diff":{"unified":"@@ patch @@"}}`)
	d := normalizeDiff(raw, 3)
	if d == nil {
		t.Fatal("expected non-nil diff")
	}
	if d.Unified != "@@ patch @@" {
		t.Fatalf("Unified = %q", d.Unified)
	}
}

func TestNormalizeDiffContentSubObjectFallsBackWhenDiffEmpty(t *testing.T) {
	raw := json.RawMessage(`{"content":{"oldText":"a","newText":"b"}}`)
	d := normalizeDiff(raw, 3)
	if d == nil {
		t.Fatal("expected non-nil diff")
	}
	if d.OldTextLength != 1 || d.NewTextLength != 1 {
		t.Fatalf("lengths = %d/%d", d.OldTextLength, d.NewTextLength)
	}
}

func TestNormalizeDiffEmptyYieldsNil(t *testing.T) {
	if d := normalizeDiff(nil, 3); d != nil {
		t.Fatalf("expected nil, got %+v", d)
	}
	if d := normalizeDiff(json.RawMessage(`{}`), 3); d != nil {
		t.Fatalf("expected nil for content-free diff shape, got %+v", d)
	}
}

func TestUnifiedDiffClampsNegativeContext(t *testing.T) {
	out := unifiedDiff("a\nb\nc\n", "a\nx\nc\n", "f", -5)
	if out == "" {
		t.Fatal("expected non-empty diff output")
	}
}
