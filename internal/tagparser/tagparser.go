// Package tagparser implements the bridge's tag-parsing transform (C2): a
// stateful streaming filter over outgoing assistant text chunks that
// extracts structured side-channel events wrapped in recognized XML-like
// tag pairs, while preserving correct output even when a tag's delimiters
// straddle chunk boundaries.
//
// A small stateful byte-oriented parser holds partial delimiters across
// calls and feeds typed events forward as it scans, operating at
// sub-line, chunk-spanning granularity rather than newline-delimited.
package tagparser

import (
	"encoding/json"
	"strings"
)

// Mode controls how recognized tag regions are handled.
type Mode int

const (
	// ModeEvent strips tag regions from the text stream and emits
	// structured events in their place.
	ModeEvent Mode = iota
	// ModeRaw passes all text through untouched; no capture happens.
	ModeRaw
	// ModeBoth emits structured events AND keeps the raw tagged text in
	// the text stream.
	ModeBoth
)

// Tag names the parser recognizes. Configurable.
type Tag struct {
	Name  string // e.g. "SYS_JSON"
	Start string // computed: "<" + Name + ">"
	End   string // computed: "</" + Name + ">"
}

// DefaultTags returns the two recognized tag pairs.
func DefaultTags() []Tag {
	return []Tag{
		NewTag("SYS_JSON"),
		NewTag("SYS_BLOCK"),
	}
}

// NewTag builds a Tag from a bare name.
func NewTag(name string) Tag {
	return Tag{Name: name, Start: "<" + name + ">", End: "</" + name + ">"}
}

// PartKind discriminates the parts Feed returns.
type PartKind int

const (
	PartText PartKind = iota
	PartEvent
)

// Part is one ordered output unit of a Feed call.
type Part struct {
	Kind PartKind

	// Text is populated when Kind == PartText.
	Text string

	// Event fields, populated when Kind == PartEvent.
	EventType string // lower_snake_case tag name, e.g. "sys_json"
	Payload   json.RawMessage
	Err       string
	Raw       string
}

// state values for the pushdown parser.
type state int

const (
	stateOutside state = iota
	stateInTag
)

// Parser is a stateful streaming tag scanner. It is not safe for
// concurrent use; the bridge owns one instance per outgoing stream.
type Parser struct {
	tags []Tag
	mode Mode

	state      state
	pending    string // buffered suffix that might grow into a start/end delimiter
	activeTag  *Tag
	captured   strings.Builder // raw payload captured while inside a tag
}

// New creates a Parser for the given tags and mode. A nil/empty tags
// slice falls back to DefaultTags().
func New(mode Mode, tags []Tag) *Parser {
	if len(tags) == 0 {
		tags = DefaultTags()
	}
	return &Parser{tags: tags, mode: mode, state: stateOutside}
}

// Feed processes one chunk of incoming text in arrival order and returns
// the ordered parts it produces. Concatenating all Part.Text values
// across all Feed calls (plus any Err/Raw handling per mode) reconstructs
// the original text modulo tag stripping.
func (p *Parser) Feed(chunk string) []Part {
	var parts []Part
	buf := p.pending + chunk
	p.pending = ""

	for {
		if p.state == stateOutside {
			idx, tag, matchLen := p.findEarliestStart(buf)
			if idx < 0 {
				// No start tag anywhere. Check for a held-back prefix of a
				// start delimiter at the very end of buf.
				holdLen := p.longestStartPrefixSuffix(buf)
				emit := buf[:len(buf)-holdLen]
				if emit != "" {
					parts = append(parts, Part{Kind: PartText, Text: emit})
				}
				if holdLen > 0 {
					p.pending = buf[len(buf)-holdLen:]
				}
				return parts
			}
			if idx > 0 {
				parts = append(parts, Part{Kind: PartText, Text: buf[:idx]})
			}
			if p.mode == ModeBoth {
				parts = append(parts, Part{Kind: PartText, Text: tag.Start})
			}
			p.state = stateInTag
			p.activeTag = tag
			p.captured.Reset()
			buf = buf[idx+matchLen:]
			continue
		}

		// stateInTag: look for this tag's end delimiter.
		end := p.activeTag.End
		endIdx := strings.Index(buf, end)
		if endIdx < 0 {
			holdLen := longestSuffixPrefixOverlap(buf, end)
			captureLen := len(buf) - holdLen
			if captureLen > 0 {
				p.captured.WriteString(buf[:captureLen])
			}
			if holdLen > 0 {
				p.pending = buf[len(buf)-holdLen:]
			}
			return parts
		}
		p.captured.WriteString(buf[:endIdx])
		raw := p.captured.String()
		parts = append(parts, p.closeTag(raw)...)
		buf = buf[endIdx+len(end):]
		p.state = stateOutside
		p.activeTag = nil
		p.captured.Reset()
	}
}

// closeTag finalizes a captured tag body into the emitted parts per mode.
func (p *Parser) closeTag(raw string) []Part {
	tagName := strings.ToLower(p.activeTag.Name)
	trimmed := strings.TrimSpace(raw)
	var payload json.RawMessage
	var parseErr string
	if trimmed != "" && json.Valid([]byte(trimmed)) {
		payload = json.RawMessage(trimmed)
	} else {
		parseErr = "invalid JSON payload in tag " + p.activeTag.Name
	}

	switch p.mode {
	case ModeRaw:
		return []Part{{Kind: PartText, Text: p.activeTag.Start + raw + p.activeTag.End}}
	case ModeBoth:
		ev := Part{Kind: PartEvent, EventType: tagName, Raw: raw}
		if payload != nil {
			ev.Payload = payload
		} else {
			ev.Err = parseErr
		}
		return []Part{ev, {Kind: PartText, Text: raw + p.activeTag.End}}
	default: // ModeEvent
		ev := Part{Kind: PartEvent, EventType: tagName, Raw: raw}
		if payload != nil {
			ev.Payload = payload
			return []Part{ev}
		}
		// Failed payload parse: still emit the event (with error) but
		// re-inline the raw text so content is never silently dropped.
		ev.Err = parseErr
		return []Part{ev, {Kind: PartText, Text: p.activeTag.Start + raw + p.activeTag.End}}
	}
}

// Flush is called on a stop-of-turn signal. It finalizes any in-flight
// state and returns the resulting parts (always text parts; flushing
// never synthesizes a structured event from unterminated input).
func (p *Parser) Flush() []Part {
	defer p.reset()

	if p.state == stateInTag {
		text := p.captured.String()
		if p.mode != ModeBoth {
			// In ModeBoth the start delimiter was already emitted inline
			// when the tag opened (see Feed); only ModeEvent/ModeRaw need
			// it re-prepended here since they held it back.
			text = p.activeTag.Start + text
		}
		if text == "" {
			return nil
		}
		return []Part{{Kind: PartText, Text: text}}
	}
	if p.pending != "" {
		return []Part{{Kind: PartText, Text: p.pending}}
	}
	return nil
}

func (p *Parser) reset() {
	p.state = stateOutside
	p.pending = ""
	p.activeTag = nil
	p.captured.Reset()
}

// findEarliestStart finds the earliest occurrence of any tag's start
// delimiter in buf, returning its index, the matched Tag, and the
// delimiter's length. Returns idx -1 if none is found.
func (p *Parser) findEarliestStart(buf string) (int, *Tag, int) {
	bestIdx := -1
	var bestTag *Tag
	for i := range p.tags {
		t := &p.tags[i]
		if idx := strings.Index(buf, t.Start); idx >= 0 {
			if bestIdx == -1 || idx < bestIdx {
				bestIdx = idx
				bestTag = t
			}
		}
	}
	if bestIdx == -1 {
		return -1, nil, 0
	}
	return bestIdx, bestTag, len(bestTag.Start)
}

// longestStartPrefixSuffix returns the length of the longest suffix of buf
// that is a strict, non-empty prefix of any tag's start delimiter.
func (p *Parser) longestStartPrefixSuffix(buf string) int {
	best := 0
	for _, t := range p.tags {
		if n := longestSuffixPrefixOverlap(buf, t.Start); n > 0 && n < len(t.Start) {
			if n > best {
				best = n
			}
		}
	}
	return best
}

// longestSuffixPrefixOverlap returns the length of the longest suffix of s
// that equals a prefix of needle (including the full needle itself, which
// callers handle separately via strings.Index first).
func longestSuffixPrefixOverlap(s, needle string) int {
	max := len(needle) - 1
	if max > len(s) {
		max = len(s)
	}
	for n := max; n > 0; n-- {
		if strings.HasSuffix(s, needle[:n]) {
			return n
		}
	}
	return 0
}
