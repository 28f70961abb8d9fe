package scan

// getbits extracts the n-bit field ending at bit p (inclusive, 0-indexed
// from the least significant bit) of x. Folded in from the original's
// util.c, and used by the PTE/VirtualAddress bit-field accessors.
func getbits(x uint32, p, n uint) uint32 {
	return (x >> (p + 1 - n)) & ^(^uint32(0) << n)
}
