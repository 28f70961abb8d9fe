package scan

import (
	"bytes"
	"encoding/binary"
	"testing"
)

// TestReconstructScenarioS6 is scenario S6 of §8: a minimal PDE/PTE chain
// mapping virtual 0x00001000 to physical page P, with CR3 at offset C,
// reconstructs one 4 KiB page whose contents equal P.
func TestReconstructScenarioS6(t *testing.T) {
	const cr3Offset = 0
	const pdeTableOffset = pageSize    // not used: the page directory is at cr3Offset
	const pteTableOffset = 2 * pageSize // page table
	const dataPageOffset = 3 * pageSize // the mapped page P

	buf := make([]byte, 4*pageSize)

	va := VirtualAddress(0x00001000)
	pdIndex := va.PDIndex()
	ptIndex := va.PTIndex()

	// CR3 is itself treated as a page-directory-entry array base: the PDE
	// for pdIndex points at the page table's PFN.
	putPTE(buf, cr3Offset+int(pdIndex)*4, uint32(pteTableOffset/pageSize), true)
	putPTE(buf, pteTableOffset+int(ptIndex)*4, uint32(dataPageOffset/pageSize), true)

	want := bytes.Repeat([]byte{0xAB}, pageSize)
	copy(buf[dataPageOffset:], want)

	ctx := NewContext()
	ctx.SetInterval(0x00001000, 0x00002000)

	pages := Reconstruct(ctx, buf, cr3Offset)
	if len(pages) != 1 {
		t.Fatalf("got %d pages, want 1", len(pages))
	}
	if pages[0].VirtualAddress != 0x00001000 {
		t.Fatalf("virtual address = 0x%x, want 0x00001000", pages[0].VirtualAddress)
	}
	if !bytes.Equal(pages[0].Data, want) {
		t.Fatalf("page data doesn't match the planted page P")
	}
	if ctx.HasInterval() {
		t.Fatalf("Reconstruct must consume the interval (§4.6 point 4)")
	}
}

// TestReconstructDedupesByPFN pins invariant 6 of §8: each physical page
// frame is emitted at most once, even when multiple virtual addresses map
// to it.
func TestReconstructDedupesByPFN(t *testing.T) {
	const cr3Offset = 0
	const pdeTableOffset = pageSize
	const dataPageOffset = 2 * pageSize

	buf := make([]byte, 3*pageSize)
	copy(buf[dataPageOffset:], bytes.Repeat([]byte{0x42}, pageSize))

	// Two distinct virtual pages (different PD indices), both pointing at
	// the same page table, whose single PTE maps to the same PFN.
	va1 := VirtualAddress(0x00000000)
	va2 := VirtualAddress(0x00400000) // next PD index, pt_index 0
	putPTE(buf, cr3Offset+int(va1.PDIndex())*4, uint32(pdeTableOffset/pageSize), true)
	putPTE(buf, cr3Offset+int(va2.PDIndex())*4, uint32(pdeTableOffset/pageSize), true)
	putPTE(buf, pdeTableOffset+int(va1.PTIndex())*4, uint32(dataPageOffset/pageSize), true)

	ctx := NewContext()
	ctx.SetInterval(0, 0x00800000)

	pages := Reconstruct(ctx, buf, cr3Offset)
	seen := make(map[uint32]bool)
	for _, p := range pages {
		if seen[p.PFN] {
			t.Fatalf("PFN %d emitted more than once", p.PFN)
		}
		seen[p.PFN] = true
	}

	totalSize := 0
	for _, p := range pages {
		totalSize += len(p.Data)
	}
	if totalSize != pageSize*len(pages) {
		t.Fatalf("total reconstructed size %d != 4096 * %d pages", totalSize, len(pages))
	}
}

func putPTE(buf []byte, byteOffset int, pfn uint32, valid bool) {
	var v uint32
	if valid {
		v |= 1
	}
	v |= pfn << 12
	binary.LittleEndian.PutUint32(buf[byteOffset:byteOffset+4], v)
}
