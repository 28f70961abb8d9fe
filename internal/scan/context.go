// Package scan implements the Interrogate search engine: structural and
// entropy-based detection of cryptographic key material in a raw binary
// buffer (typically a memory dump).
//
// The package never mutates the buffer it is given and never performs I/O;
// callers (see cmd/interrogate) own the buffer, open files, and print
// results.
package scan

import "fmt"

// KeyKind selects which structural recognizer Dispatch runs.
type KeyKind int

const (
	// KeyNone selects the entropy scanner (C5) instead of a structural
	// recognizer.
	KeyNone KeyKind = iota
	KeyAES
	KeyRSADER
	KeyRSAWindows
	KeySerpent
	KeyTwofish
	KeyTwofishTC
)

func (k KeyKind) String() string {
	switch k {
	case KeyNone:
		return "none"
	case KeyAES:
		return "aes"
	case KeyRSADER:
		return "rsa"
	case KeyRSAWindows:
		return "rsa-win"
	case KeySerpent:
		return "serpent"
	case KeyTwofish:
		return "twofish"
	case KeyTwofishTC:
		return "tc-twofish"
	default:
		return "unknown"
	}
}

// Interval is a half-open byte range [From, To) into a Buffer.
type Interval struct {
	From, To int
}

// defaultWindowSize is the statistics-kernel window size (§3 DATA MODEL).
const defaultWindowSize = 256

// defaultThreshold is the default entropy threshold (§3 DATA MODEL).
const defaultThreshold = 7.0

// alphabetSize is the fixed alphabet size used throughout the statistics
// kernel: one bin per possible byte value.
const alphabetSize = 256

// bcMod is the byte-count threshold modifier used when deriving a
// byte-count threshold from the default entropy threshold (§7 of
// SPEC_FULL.md, carried over from the original's BCMOD).
const bcMod = 20

// Context configures a single scan invocation (§3 DATA MODEL). It is built
// by the caller and is read-only from a scanner's perspective except for
// Count, which scanners increment monotonically as they emit results.
type Context struct {
	KeyKind      KeyKind
	KeySizeBits  int // 128/192/256; fixed at 256 for Serpent/Twofish
	WindowSize   int // bytes; defaults to 256, Twofish overrides to 4096
	Threshold    float64
	NaiveMode    bool // true: entropy: false: unique-byte count
	QuickMode    bool // true: non-overlapping windows
	CR3Offset    int  // nonzero: run the reconstructor first
	Verbose      bool
	Interval     Interval
	hasInterval  bool

	// Count is the running number of results emitted so far. It is the only
	// field scanners mutate.
	Count int

	// OnMetric, if set, receives every per-window metric value m(i) computed
	// by the entropy scanner, in scan order (feeds the -p output stream).
	OnMetric func(value float64)

	// OnReject, if set, is called when a structural candidate (DER, Twofish
	// layout) is rejected, carrying a short human-readable reason. Used only
	// when Verbose is set; never affects scan results.
	OnReject func(offset int, reason string)
}

// NewContext returns a Context with the defaults documented in §3 DATA
// MODEL / the original tool's initialize().
func NewContext() *Context {
	return &Context{
		KeyKind:     KeyNone,
		WindowSize:  defaultWindowSize,
		Threshold:   defaultThreshold,
		hasInterval: false,
	}
}

// SetInterval pins the scan to [from, to). Passing to <= 0 defers the upper
// bound to the buffer length at scan time.
func (c *Context) SetInterval(from, to int) {
	c.Interval = Interval{From: from, To: to}
	c.hasInterval = true
}

// HasInterval reports whether an explicit interval was set.
func (c *Context) HasInterval() bool { return c.hasInterval }

// ClearInterval drops a previously set interval, reverting to "whole
// buffer". The virtual-memory reconstructor does this once it has consumed
// an explicit interval (§4.6 point 4), so a subsequent key scan runs over
// the entire reconstructed buffer.
func (c *Context) ClearInterval() { c.hasInterval = false }

// resolve returns the concrete [from, to) bounds of c against a buffer of
// length n, clamping an out-of-range interval and reporting whether
// clamping occurred (so the caller can emit a WARNING per §7).
func (c *Context) resolve(n int) (from, to int, clamped bool) {
	from, to = 0, n
	if c.hasInterval {
		from, to = c.Interval.From, c.Interval.To
		if from < 0 {
			from = 0
			clamped = true
		}
		if to <= 0 || to > n {
			to = n
			clamped = true
		}
		if to < from {
			from = 0
			clamped = true
		}
	}
	return from, to, clamped
}

// effectiveThreshold derives the byte-count threshold the original tool
// computes when naive mode is off and the caller left Threshold at its
// entropy default (SPEC_FULL.md §7).
func (c *Context) effectiveThreshold() float64 {
	if c.NaiveMode || c.Threshold != defaultThreshold {
		return c.Threshold
	}
	return float64(int((float64(c.WindowSize)/alphabetSize)*defaultThreshold*bcMod))
}

// reject forwards a verbose-mode rejection hint, if both Verbose and
// OnReject are configured.
func (c *Context) reject(offset int, format string, args ...interface{}) {
	if c.Verbose && c.OnReject != nil {
		c.OnReject(offset, fmt.Sprintf(format, args...))
	}
}

// emitMetric forwards a computed per-window metric to OnMetric, if set.
func (c *Context) emitMetric(v float64) {
	if c.OnMetric != nil {
		c.OnMetric(v)
	}
}
