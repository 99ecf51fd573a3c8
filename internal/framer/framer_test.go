package framer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassifyJSONRPC(t *testing.T) {
	f := Classify(`{"jsonrpc":"2.0","method":"session/update","params":{}}`, nil)
	require.Equal(t, KindJSONRPC, f.Kind)
	require.NotNil(t, f.RPC)
	require.Equal(t, "session/update", f.RPC.Method)
}

func TestClassifyMalformedJSONDowngradesToLog(t *testing.T) {
	var logged []string
	f := Classify(`{not valid json`, func(format string, args ...any) {
		logged = append(logged, format)
	})
	require.Equal(t, KindLog, f.Kind)
	require.Len(t, logged, 1)
}

func TestClassifyAuthURL(t *testing.T) {
	line := "Please visit https://accounts.google.com/o/oauth2/v2/auth?client_id=abc&scope=x to continue"
	f := Classify(line, nil)
	require.Equal(t, KindAuthURL, f.Kind)
	require.Contains(t, f.URL, "accounts.google.com/o/oauth2/v2/auth")
}

func TestClassifyAuthURLAfterStrippingCSI(t *testing.T) {
	line := "\x1b[32mOpen: https://accounts.google.com/o/oauth2/v2/auth?client_id=abc\x1b[0m"
	f := Classify(line, nil)
	require.Equal(t, KindAuthURL, f.Kind)
}

func TestClassifyPlainLogLine(t *testing.T) {
	f := Classify("starting up...", nil)
	require.Equal(t, KindLog, f.Kind)
}

func TestStripTerminalControlCSI(t *testing.T) {
	out := stripTerminalControl("\x1b[1;31mhello\x1b[0m world")
	require.Equal(t, "hello world", out)
}

func TestStripTerminalControlOSC(t *testing.T) {
	out := stripTerminalControl("\x1b]0;title\x07hello")
	require.Equal(t, "hello", out)
}

func TestStripTerminalControlBareEraseAndCursor(t *testing.T) {
	out := stripTerminalControl("a[2Kb[?25lc")
	require.Equal(t, "abc", out)
}

func TestScanSplitsLinesInOrder(t *testing.T) {
	input := "{\"jsonrpc\":\"2.0\",\"method\":\"a\"}\nplain log\nhttps://accounts.google.com/o/oauth2/v2/auth?x=1\n"
	var kinds []FrameKind
	err := Scan(strings.NewReader(input), func(f Frame) {
		kinds = append(kinds, f.Kind)
	}, nil)
	require.NoError(t, err)
	require.Equal(t, []FrameKind{KindJSONRPC, KindLog, KindAuthURL}, kinds)
}

func TestScanSkipsBlankLines(t *testing.T) {
	input := "\n\nplain\n\n"
	var n int
	err := Scan(strings.NewReader(input), func(f Frame) { n++ }, nil)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}
