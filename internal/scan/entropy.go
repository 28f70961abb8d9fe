package scan

// Entropy-based blob scanner (C5, §4.5). Two scanning strategies share one
// per-window metric (Shannon entropy in naive mode, otherwise the cheaper
// unique-byte count): search slides the window by one byte, so successive
// windows overlap, and reports each contiguous above-threshold run once;
// quicksearch advances a full window at a time, trading precision for speed.

func windowMetric(ctx *Context, w []byte) float64 {
	if ctx.NaiveMode {
		return Entropy(w)
	}
	return float64(CountUnique(w))
}

// entropySearch is the byte-at-a-time sliding scan ("search" in the
// original), emitting one EntropyBlob per contiguous run of above-threshold
// windows.
func entropySearch(ctx *Context, buf []byte, from, to int, emit func(Result)) {
	threshold := ctx.effectiveThreshold()
	wsize := ctx.WindowSize
	found := false
	start := from
	cent := 0.0

	i := from
	for ; i < to-wsize; i++ {
		m := windowMetric(ctx, buf[i:i+wsize])
		ctx.emitMetric(m)

		if m >= threshold {
			if !found {
				start = i
				ctx.Count++
				found = true
			}
			cent += m
		} else if found {
			end := i + wsize - 1
			bytes := end - start
			numBlocks := float64(bytes) / float64(wsize)
			emit(EntropyBlob{
				Start: start, End: end, Bytes: bytes,
				Windows: numBlocks, MeanMetric: cent / float64(bytes-wsize+1),
			})
			cent = 0
			found = false
		}
	}

	if found {
		end := i + wsize
		bytes := end - start
		numBlocks := float64(bytes) / float64(wsize)
		emit(EntropyBlob{
			Start: start, End: end, Bytes: bytes,
			Windows: numBlocks, MeanMetric: cent / float64(bytes-wsize),
		})
	}
}

// entropyQuickSearch is the non-overlapping scan ("quicksearch" in the
// original): the window jumps forward by its own size each round, and the
// final round shrinks to whatever is left in [from, to).
func entropyQuickSearch(ctx *Context, buf []byte, from, to int, emit func(Result)) {
	threshold := ctx.effectiveThreshold()
	oldWsize := ctx.WindowSize
	wsize := oldWsize

	start := from
	i := from
	found := false
	cent := 0.0
	eof := false
	end := 0

	for !eof {
		if i >= to-wsize {
			eof = true
			wsize = to - i
		}
		end = i + wsize

		m := windowMetric(ctx, buf[i:i+wsize])
		ctx.emitMetric(m)

		if m >= threshold {
			if !found {
				start = i
				ctx.Count++
				found = true
			}
			cent += m
			if eof {
				bytes := end - start
				numBlocks := float64(bytes) / float64(oldWsize)
				emit(EntropyBlob{
					Start: start, End: end, Bytes: bytes,
					Windows: numBlocks, MeanMetric: cent / numBlocks,
				})
			}
		} else if found {
			prevEnd := end - wsize
			bytes := prevEnd - start
			numBlocks := float64(bytes) / float64(oldWsize)
			emit(EntropyBlob{
				Start: start, End: prevEnd, Bytes: bytes,
				Windows: numBlocks, MeanMetric: cent / numBlocks,
			})
			cent = 0
			found = false
		}
		i += wsize
	}
}
