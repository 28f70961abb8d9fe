package scan

import "math"

// runBins is the number of bins in the run-length histogram (R in §4.1);
// the last bin accumulates all runs of length >= runBins.
const runBins = 6

// Entropy returns the Shannon entropy, in bits per symbol, of window w over
// an alphabet of size 256 (§4.1). It treats 0*log2(0) as 0.
func Entropy(w []byte) float64 {
	var counts [alphabetSize]int
	for _, c := range w {
		counts[c]++
	}
	n := float64(len(w))
	var h float64
	for _, c := range counts {
		if c == 0 {
			continue
		}
		p := float64(c) / n
		h -= p * math.Log2(p)
	}
	return h
}

// CountUnique returns the number of distinct byte values in w (§4.1).
func CountUnique(w []byte) int {
	var seen [alphabetSize]bool
	n := 0
	for _, c := range w {
		if !seen[c] {
			seen[c] = true
			n++
		}
	}
	return n
}

// roundTo rounds v to p decimal places, the way the original's format()
// does via snprintf/atof. Used wherever float equality after rounding is
// required (§4.2, §4.4, §9).
func roundTo(v float64, p int) float64 {
	scale := math.Pow(10, float64(p))
	return math.Round(v*scale) / scale
}

// entropyEquals8 reports whether w's entropy rounds to exactly 8.0000 bits,
// the "maximum entropy" check used by both Twofish validators (§4.2, §4.4).
func entropyEquals8(w []byte) bool {
	return roundTo(Entropy(w), 4) == 8.0
}

// RunHistogram tracks the byte-run-length distribution over a sliding
// window (§4.1). A run of length k is a maximal span of k+1 equal bytes;
// bin i counts runs of exact length i+1, with the last bin accumulating
// all longer runs.
//
// Init computes the histogram from scratch over w. Step then advances the
// window by exactly one byte (w must be the *new* window, i.e. the old
// window's [1:] plus one trailing byte) and must produce the same bins
// Init would produce on that new window.
type RunHistogram struct {
	Bins      [runBins]int
	firstRun  int // length, in run-index terms (0 == no run), of the run starting at window[0]
	lastRun   int // length of the run ending at window[len-1]
	winSize   int
}

// Init computes the histogram from scratch over w (the "runs" function).
// len(w) must be >= 2*runBins.
func (h *RunHistogram) Init(w []byte) {
	h.Bins = [runBins]int{}
	h.winSize = len(w)
	currentRun := 0
	overflow := 0
	var last byte
	for i, c := range w {
		if i != 0 {
			if c == last {
				if currentRun < runBins {
					if currentRun != 0 {
						h.Bins[currentRun-1]--
					}
					h.Bins[currentRun]++
					currentRun++
				} else {
					overflow++
				}
			} else {
				if i == currentRun+overflow+1 {
					h.firstRun = currentRun
				}
				currentRun, overflow = 0, 0
			}
		}
		last = c
	}
	h.lastRun = currentRun
}

// Step advances the histogram by one byte (the "runs_opt" function). w must
// be the new window (length h.winSize) after sliding forward by one byte
// from the window last passed to Init or Step.
func (h *RunHistogram) Step(w []byte) {
	if h.winSize < 2*runBins {
		panic("scan: RunHistogram window must be at least 2*runBins")
	}
	newFirstRun := 0
	for newFirstRun < runBins && w[newFirstRun] == w[newFirstRun+1] {
		newFirstRun++
	}
	if h.firstRun > 0 && newFirstRun != runBins {
		h.Bins[h.firstRun-1]--
		h.firstRun--
		if h.firstRun != 0 {
			h.Bins[h.firstRun-1]++
		}
	} else {
		h.firstRun = newFirstRun
	}

	if w[h.winSize-2] == w[h.winSize-1] {
		if h.lastRun > 0 {
			h.Bins[h.lastRun-1]--
		}
		if h.lastRun < runBins {
			h.lastRun++
		}
		h.Bins[h.lastRun-1]++
	} else {
		h.lastRun = 0
	}
}

// isMkTab classifies a run histogram as matching the structure of a
// Twofish mk_tab (§4.1).
func isMkTab(bins [runBins]int) bool {
	return bins[0] > 485 && bins[0] < 520 &&
		bins[1] == 0 &&
		bins[2] >= 1 && bins[2] <= 12 &&
		bins[3] == 0 &&
		bins[4] == 0 &&
		bins[5] >= 0 && bins[5] <= 1
}
