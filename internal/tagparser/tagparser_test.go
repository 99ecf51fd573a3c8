package tagparser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func concatText(parts []Part) string {
	var b strings.Builder
	for _, p := range parts {
		if p.Kind == PartText {
			b.WriteString(p.Text)
		}
	}
	return b.String()
}

func events(parts []Part) []Part {
	var out []Part
	for _, p := range parts {
		if p.Kind == PartEvent {
			out = append(out, p)
		}
	}
	return out
}

// TestChunkBoundaryTag covers an end-tag split across chunks.
func TestChunkBoundaryTag(t *testing.T) {
	p := New(ModeEvent, nil)

	parts1 := p.Feed(`<SYS_JSON>{"a":1}</SYS_`)
	require.Empty(t, parts1)

	parts2 := p.Feed(`JSON>OK`)
	require.Len(t, events(parts2), 1)
	require.Equal(t, "sys_json", parts2[0].EventType)
	require.JSONEq(t, `{"a":1}`, string(parts2[0].Payload))
	require.Equal(t, "OK", concatText(parts2))
}

// TestTwoAdjacentTagsBothMode covers two adjacent tags with a split end-tag in both mode.
func TestTwoAdjacentTagsBothMode(t *testing.T) {
	p := New(ModeBoth, nil)

	part1 := p.Feed(`<SYS_JSON>{"x":1}</SYS_`)
	part2 := p.Feed("JSON>\n\n<SYS_JSON>{\"y\":2}</SYS_JSON>TAIL")

	all := append(append([]Part{}, part1...), part2...)
	evs := events(all)
	require.Len(t, evs, 2)
	require.JSONEq(t, `{"x":1}`, string(evs[0].Payload))
	require.JSONEq(t, `{"y":2}`, string(evs[1].Payload))

	text := concatText(all)
	require.Contains(t, text, `<SYS_JSON>{"x":1}</SYS_JSON>`)
	require.Contains(t, text, `<SYS_JSON>{"y":2}</SYS_JSON>`)
	require.Contains(t, text, "TAIL")
}

func TestEventModeStripsTagFromText(t *testing.T) {
	p := New(ModeEvent, nil)
	parts := p.Feed(`before <SYS_JSON>{"a":1}</SYS_JSON> after`)
	require.Equal(t, "before  after", concatText(parts))
	require.Len(t, events(parts), 1)
}

func TestRawModePassesThroughUntouched(t *testing.T) {
	p := New(ModeRaw, nil)
	input := `before <SYS_JSON>{"a":1}</SYS_JSON> after`
	parts := p.Feed(input)
	require.Equal(t, input, concatText(parts))
	require.Empty(t, events(parts))
}

func TestInvalidPayloadStillEmitsEventWithErrorAndReinlinesRaw(t *testing.T) {
	p := New(ModeEvent, nil)
	parts := p.Feed(`<SYS_JSON>not json</SYS_JSON>`)
	evs := events(parts)
	require.Len(t, evs, 1)
	require.NotEmpty(t, evs[0].Err)
	require.Nil(t, evs[0].Payload)
	require.Contains(t, concatText(parts), "<SYS_JSON>not json</SYS_JSON>")
}

func TestFlushUnterminatedTagEmitsPlainTextWithOpenTag(t *testing.T) {
	p := New(ModeEvent, nil)
	parts := p.Feed(`<SYS_JSON>{"a":1`)
	require.Empty(t, parts)

	flushed := p.Flush()
	require.Len(t, flushed, 1)
	require.Equal(t, PartText, flushed[0].Kind)
	require.Equal(t, `<SYS_JSON>{"a":1`, flushed[0].Text)
}

func TestFlushHeldTextSuffixEmitsAsText(t *testing.T) {
	p := New(ModeEvent, nil)
	parts := p.Feed(`hello <SYS_J`)
	require.Len(t, parts, 1)
	require.Equal(t, "hello ", parts[0].Text)

	flushed := p.Flush()
	require.Len(t, flushed, 1)
	require.Equal(t, "<SYS_J", flushed[0].Text)
}

func TestFlushUnterminatedTagInBothModeDoesNotDuplicateStartTag(t *testing.T) {
	p := New(ModeBoth, nil)
	parts := p.Feed(`<SYS_BLOCK>payload`)
	require.Len(t, parts, 1)
	require.Equal(t, PartText, parts[0].Kind)
	require.Equal(t, `<SYS_BLOCK>`, parts[0].Text)

	flushed := p.Flush()
	require.Len(t, flushed, 1)
	require.Equal(t, PartText, flushed[0].Kind)
	require.Equal(t, `payload`, flushed[0].Text)

	all := append(append([]Part{}, parts...), flushed...)
	require.Equal(t, `<SYS_BLOCK>payload`, concatText(all))
}

func TestFlushWithNothingPendingReturnsNil(t *testing.T) {
	p := New(ModeEvent, nil)
	p.Feed("plain text, no tags")
	require.Nil(t, p.Flush())
}

func TestNoTagsPassesTextThroughAcrossChunks(t *testing.T) {
	p := New(ModeEvent, nil)
	var out strings.Builder
	for _, chunk := range []string{"Hello, ", "world", "!"} {
		for _, part := range p.Feed(chunk) {
			if part.Kind == PartText {
				out.WriteString(part.Text)
			}
		}
	}
	require.Equal(t, "Hello, world!", out.String())
}

// TestSplitAtEveryOffset verifies the chunk-boundary discipline invariant:
// for any way of splitting the same input text into
// chunks, the concatenated output text is identical (modulo tag removal)
// and the extracted events are identical, regardless of the split points.
func TestSplitAtEveryOffset(t *testing.T) {
	input := `leading <SYS_JSON>{"a":1}</SYS_JSON> middle <SYS_BLOCK>hello</SYS_BLOCK> trailing`

	// Baseline: feed whole string at once.
	base := New(ModeEvent, nil)
	baseParts := base.Feed(input)
	baseParts = append(baseParts, base.Flush()...)
	baseText := concatText(baseParts)
	baseEvents := events(baseParts)

	for split := 1; split < len(input); split++ {
		p := New(ModeEvent, nil)
		var all []Part
		all = append(all, p.Feed(input[:split])...)
		all = append(all, p.Feed(input[split:])...)
		all = append(all, p.Flush()...)

		require.Equal(t, baseText, concatText(all), "split at %d", split)
		require.Equal(t, len(baseEvents), len(events(all)), "split at %d", split)
	}
}

// TestSplitAtEveryOffsetBothMode is the ModeBoth counterpart of
// TestSplitAtEveryOffset: in both mode the raw tagged spans stay in the
// text stream, so the concatenated output equals the original input
// verbatim regardless of split point, including when a split lands
// inside a tag or one of its delimiters.
func TestSplitAtEveryOffsetBothMode(t *testing.T) {
	input := `leading <SYS_JSON>{"a":1}</SYS_JSON> middle <SYS_BLOCK>hello</SYS_BLOCK> trailing`

	base := New(ModeBoth, nil)
	baseParts := base.Feed(input)
	baseParts = append(baseParts, base.Flush()...)
	baseText := concatText(baseParts)
	baseEvents := events(baseParts)
	require.Equal(t, input, baseText)

	for split := 1; split < len(input); split++ {
		p := New(ModeBoth, nil)
		var all []Part
		all = append(all, p.Feed(input[:split])...)
		all = append(all, p.Feed(input[split:])...)
		all = append(all, p.Flush()...)

		require.Equal(t, baseText, concatText(all), "split at %d", split)
		require.Equal(t, len(baseEvents), len(events(all)), "split at %d", split)
	}
}
