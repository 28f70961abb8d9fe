package scan

import (
	"sync"

	"golang.org/x/exp/slices"
)

// Dispatcher (C7, §4.7) and the §5 concurrency model: partition the scan
// interval into disjoint chunks with enough overlap that no boundary-
// spanning candidate is missed, run one scanner goroutine per chunk, and
// merge results back into strictly increasing offset order.

// maxScheduleOverlap is large enough to cover every scanner's schedule
// size: the biggest is the Twofish TrueCrypt struct (4276 bytes).
const maxScheduleOverlap = twofishTCStructSize

// scanFunc is the common shape of every offset-scoped scanner in this
// package: scan [from, to) of buf, reporting through emit.
type scanFunc func(ctx *Context, buf []byte, from, to int, emit func(Result))

// Dispatch selects and runs the scanner named by ctx.KeyKind over buf,
// returning every result in strictly increasing offset order. When
// ctx.CR3Offset is nonzero, the virtual-memory reconstructor runs first and
// the key scanner (if any) is then run over the reconstructed buffer
// instead of buf (§4.7).
func Dispatch(ctx *Context, buf []byte) ([]ReconstructedPage, []Result) {
	var pages []ReconstructedPage
	if ctx.CR3Offset != 0 {
		pages = Reconstruct(ctx, buf, ctx.CR3Offset)
		buf = FlattenPages(pages)
	}

	from, to, clamped := ctx.resolve(len(buf))
	if clamped {
		ctx.reject(from, "interval clamped to buffer bounds")
	}

	fn, overlap := scannerFor(ctx)
	if fn == nil {
		return pages, nil
	}
	return pages, runChunked(ctx, buf, from, to, overlap, fn)
}

func scannerFor(ctx *Context) (scanFunc, int) {
	switch ctx.KeyKind {
	case KeyRSADER:
		return rsaDERSearch, maxScheduleOverlap
	case KeyRSAWindows:
		return rsaWindowsSearch, 4
	case KeyAES:
		return aesSearch, aesScheduleBytes(ctx.KeySizeBits)
	case KeySerpent:
		return serpentSearch, serpentScheduleBytes
	case KeyTwofish:
		return twofishSearch, twofishWindowSize + twofishTCStructSize
	case KeyTwofishTC:
		return twofishSearchOld, twofishTCStructSize
	case KeyNone:
		if ctx.QuickMode {
			return entropyQuickSearch, ctx.WindowSize
		}
		return entropySearch, ctx.WindowSize
	default:
		return nil, 0
	}
}

// chunkResult pairs a chunk's ordinal with its results, so they can be
// re-sorted into submission order once every goroutine has finished.
type chunkResult struct {
	idx     int
	results []Result
}

// runChunked splits [from, to) into disjoint chunks of roughly equal size,
// each scan widened forwards by overlap bytes (clamped to to), scans each
// chunk concurrently, and merges the results back into strictly increasing
// offset order (§5). A chunk only reports results whose offset lies inside
// its own (non-widened) [start, end), so overlapping re-scans of the same
// bytes never produce duplicate reports.
func runChunked(ctx *Context, buf []byte, from, to, overlap int, fn scanFunc) []Result {
	span := to - from
	if span <= 0 {
		return nil
	}
	if overlap < 0 {
		overlap = 0
	}

	const targetChunks = 8
	chunkSize := span / targetChunks
	if chunkSize < overlap*2 || chunkSize == 0 {
		chunkSize = span
	}

	type bounds struct{ coreStart, coreEnd, scanEnd int }
	var chunks []bounds
	for start := from; start < to; start += chunkSize {
		end := start + chunkSize
		if end > to {
			end = to
		}
		scanEnd := end + overlap
		if scanEnd > to {
			scanEnd = to
		}
		chunks = append(chunks, bounds{coreStart: start, coreEnd: end, scanEnd: scanEnd})
	}

	results := make(chan chunkResult, len(chunks))
	var wg sync.WaitGroup
	for idx, c := range chunks {
		wg.Add(1)
		go func(idx int, c bounds) {
			defer wg.Done()
			var collected []Result
			var mu sync.Mutex
			localCtx := ctx.forChunk()
			fn(localCtx, buf, c.coreStart, c.scanEnd, func(r Result) {
				if r.Offset() < c.coreStart || r.Offset() >= c.coreEnd {
					return
				}
				mu.Lock()
				collected = append(collected, r)
				mu.Unlock()
			})
			results <- chunkResult{idx: idx, results: collected}
		}(idx, c)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	ordered := make([][]Result, len(chunks))
	total := 0
	for cr := range results {
		ordered[cr.idx] = cr.results
		total += len(cr.results)
		ctx.Count += len(cr.results)
	}

	out := make([]Result, 0, total)
	for _, r := range ordered {
		out = append(out, r...)
	}
	slices.SortFunc(out, func(a, b Result) int {
		switch {
		case a.Offset() < b.Offset():
			return -1
		case a.Offset() > b.Offset():
			return 1
		default:
			return 0
		}
	})
	return out
}

// forChunk returns a private copy of ctx suitable for handing to one
// chunk's goroutine: every chunk must accumulate its own Count and emit its
// own metric/reject callbacks without racing its siblings.
func (c *Context) forChunk() *Context {
	cp := *c
	cp.Count = 0
	return &cp
}

// FlattenPages concatenates reconstructed pages in walk order into one new
// buffer, the "new buffer" that replaces the original for the subsequent
// key scan (§4.7).
func FlattenPages(pages []ReconstructedPage) []byte {
	total := 0
	for _, p := range pages {
		total += len(p.Data)
	}
	out := make([]byte, 0, total)
	for _, p := range pages {
		out = append(out, p.Data...)
	}
	return out
}
