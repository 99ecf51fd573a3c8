package client

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestRectifyIdempotentProperty verifies the rectification idempotence
// invariants: re-feeding the same accumulated string yields
// an empty segment, and feeding accumulated+suffix yields exactly suffix.
func TestRectifyIdempotentProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("rectify(P, P) == \"\"", prop.ForAll(
		func(p string) bool {
			return rectify(p, p) == ""
		},
		gen.AlphaString(),
	))

	properties.Property("rectify(P, P+suffix) == suffix", prop.ForAll(
		func(p, suffix string) bool {
			return rectify(p, p+suffix) == suffix
		},
		gen.AlphaString(),
		gen.AlphaString(),
	))

	properties.Property("rectify never shrinks the accumulator: P+rectify(P,I) is always a valid append", prop.ForAll(
		func(p, i string) bool {
			n := rectify(p, i)
			// The returned segment, appended to P, must never duplicate
			// content I already fully contained in P.
			if strings.Contains(p, i) {
				return n == ""
			}
			return strings.HasSuffix(p+n, n)
		},
		gen.AlphaString(),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}
