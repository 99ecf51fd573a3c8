package client

import (
	"encoding/json"
	"regexp"
	"strings"
)

var cwdBracketRe = regexp.MustCompile(`\[current working directory ([^\]]*)\]`)

// parsedTitle is the information recovered from a tool call's free-text
// title.
type parsedTitle struct {
	WorkingDir  string
	Description string
	Input       string
	Args        any
}

// parseTitle extracts workingDir, description, and input/args from a
// tool title of the form
// `command [current working directory PATH] (description with possibly (nested) parens)`
// or `command input(s): {json}`.
func parseTitle(title string) parsedTitle {
	out := parsedTitle{}
	remaining := title

	if m := cwdBracketRe.FindStringSubmatchIndex(remaining); m != nil {
		out.WorkingDir = strings.TrimSpace(remaining[m[2]:m[3]])
		remaining = remaining[:m[0]] + remaining[m[1]:]
	}

	if desc, rest, ok := stripTrailingParenGroup(remaining); ok {
		out.Description = desc
		remaining = rest
	}

	remaining = strings.TrimSpace(remaining)

	if idx := strings.Index(remaining, "input"); idx >= 0 {
		if args, residual, ok := parseInputsSuffix(remaining[idx:]); ok {
			out.Args = args
			remaining = strings.TrimSpace(remaining[:idx] + residual)
		}
	}

	out.Input = remaining
	return out
}

// stripTrailingParenGroup locates the last balanced parenthesized group
// anchored at the very end of s (ignoring trailing whitespace) by
// scanning right to left and balancing parens. It
// returns the group's inner text, the string with the group (and any
// separating whitespace before it) removed, and whether a group was
// found.
func stripTrailingParenGroup(s string) (desc string, rest string, ok bool) {
	trimmed := strings.TrimRight(s, " \t")
	if len(trimmed) == 0 || trimmed[len(trimmed)-1] != ')' {
		return "", s, false
	}

	depth := 0
	start := -1
	for idx := len(trimmed) - 1; idx >= 0; idx-- {
		switch trimmed[idx] {
		case ')':
			depth++
		case '(':
			depth--
			if depth == 0 {
				start = idx
			}
		}
		if start != -1 {
			break
		}
	}
	if start == -1 {
		return "", s, false
	}

	desc = trimmed[start+1 : len(trimmed)-1]
	rest = strings.TrimRight(trimmed[:start], " \t")
	return desc, rest, true
}

// parseInputsSuffix recognizes an "input(s): {json}" tail and attempts
// to JSON-decode the braced payload. On decode failure, the raw
// substring is returned as the value instead.
func parseInputsSuffix(s string) (args any, residual string, ok bool) {
	colon := strings.Index(s, ":")
	if colon < 0 {
		return nil, "", false
	}
	prefix := strings.TrimSpace(s[:colon])
	if prefix != "input" && prefix != "inputs" {
		return nil, "", false
	}
	payload := strings.TrimSpace(s[colon+1:])
	if payload == "" {
		return nil, "", false
	}

	var decoded any
	if err := json.Unmarshal([]byte(payload), &decoded); err == nil {
		return decoded, "", true
	}
	return payload, "", true
}
