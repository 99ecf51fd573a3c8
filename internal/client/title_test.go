package client

import "testing"

func TestParseTitleCwdAndDescription(t *testing.T) {
	got := parseTitle(`ls -la [current working directory /repo/src] (list repository files (recursively))`)
	if got.WorkingDir != "/repo/src" {
		t.Fatalf("WorkingDir = %q, want /repo/src", got.WorkingDir)
	}
	if got.Description != "list repository files (recursively)" {
		t.Fatalf("Description = %q", got.Description)
	}
	if got.Input != "ls -la" {
		t.Fatalf("Input = %q, want %q", got.Input, "ls -la")
	}
}

func TestParseTitleInputsJSON(t *testing.T) {
	got := parseTitle(`grep inputs: {"pattern":"foo","path":"."}`)
	m, ok := got.Args.(map[string]any)
	if !ok {
		t.Fatalf("Args type = %T, want map[string]any", got.Args)
	}
	if m["pattern"] != "foo" {
		t.Fatalf("Args[pattern] = %v", m["pattern"])
	}
	if got.Input != "grep" {
		t.Fatalf("Input = %q, want %q", got.Input, "grep")
	}
}

func TestParseTitleInputsInvalidJSONFallsBackToRaw(t *testing.T) {
	got := parseTitle(`tool input: not-json{`)
	s, ok := got.Args.(string)
	if !ok {
		t.Fatalf("Args type = %T, want string", got.Args)
	}
	if s != "not-json{" {
		t.Fatalf("Args = %q", s)
	}
}

func TestParseTitleNoMetadataLeavesTitleAsInput(t *testing.T) {
	got := parseTitle("plain command")
	if got.Input != "plain command" {
		t.Fatalf("Input = %q", got.Input)
	}
	if got.WorkingDir != "" || got.Description != "" {
		t.Fatalf("expected no WorkingDir/Description, got %+v", got)
	}
}

func TestStripTrailingParenGroupUnbalanced(t *testing.T) {
	desc, rest, ok := stripTrailingParenGroup("cmd (a))")
	if ok {
		t.Fatalf("expected no match for unbalanced parens, got desc=%q rest=%q", desc, rest)
	}
}
