package scan

import "encoding/binary"

// x86 32-bit two-level page-table reconstructor (C6, §4.6). Interprets a
// flat physical-memory image as a page directory rooted at cr3Offset and
// walks every virtual address in [limLow, limHigh) to recover the pages
// reachable from it, in walk order.

const pageSize = 4096
const largePageSize = pageSize * 1024

// PTE is a page directory entry or page table entry: Windows (and this
// tool) use the same 32-bit bit-field layout for both (§9).
type PTE uint32

func (e PTE) Valid() bool         { return e&(1<<0) != 0 }
func (e PTE) Write() bool         { return e&(1<<1) != 0 }
func (e PTE) Owner() bool         { return e&(1<<2) != 0 }
func (e PTE) WriteThrough() bool  { return e&(1<<3) != 0 }
func (e PTE) CacheDisabled() bool { return e&(1<<4) != 0 }
func (e PTE) Accessed() bool      { return e&(1<<5) != 0 }
func (e PTE) Dirty() bool         { return e&(1<<6) != 0 }
func (e PTE) LargePage() bool     { return e&(1<<7) != 0 }
func (e PTE) Global() bool        { return e&(1<<8) != 0 }
func (e PTE) CopyOnWrite() bool   { return e&(1<<9) != 0 }
func (e PTE) Transition() bool    { return e&(1<<10) != 0 }
func (e PTE) Prototype() bool     { return e&(1<<11) != 0 }
func (e PTE) PFN() uint32 { return getbits(uint32(e), 31, 20) }

// VirtualAddress splits a 32-bit x86 virtual address into its page
// directory index, page table index and byte offset (§9).
type VirtualAddress uint32

func (a VirtualAddress) ByteOffset() uint32 { return getbits(uint32(a), 11, 12) }
func (a VirtualAddress) PTIndex() uint32    { return getbits(uint32(a), 21, 10) }
func (a VirtualAddress) PDIndex() uint32    { return getbits(uint32(a), 31, 10) }

func readPTE(buf []byte, byteOffset int) PTE {
	return PTE(binary.LittleEndian.Uint32(buf[byteOffset : byteOffset+4]))
}

// ReconstructedPage is one page recovered by Reconstruct, in walk order.
type ReconstructedPage struct {
	VirtualAddress uint32
	PFN            uint32
	Large          bool
	Data           []byte
}

// Reconstruct walks the page tables rooted at cr3Offset across
// [limLow, limHigh), returning the distinct physical pages reachable from
// it in walk order (§4.6). If ctx has an interval set, it is consumed as
// [limLow, limHigh) and then cleared (point 4 of §4.6); otherwise the walk
// covers the full 32-bit virtual address space.
func Reconstruct(ctx *Context, buf []byte, cr3Offset int) []ReconstructedPage {
	n := len(buf)
	largePages := n > 255*1024

	var limLow, limHigh uint64
	if ctx.HasInterval() {
		limLow = uint64(ctx.Interval.From)
		limHigh = uint64(ctx.Interval.To)
		ctx.ClearInterval()
	} else {
		limLow = 0
		limHigh = 0x100000000
	}

	seen := make(map[uint32]bool)
	var pages []ReconstructedPage

	var lastI uint64
	first := true
	for i := limLow; i < limHigh; i += pageSize {
		if !first && i < lastI {
			break
		}
		first = false
		lastI = i

		va := VirtualAddress(uint32(i))
		pdEntryOffset := cr3Offset + int(va.PDIndex())*4
		if pdEntryOffset < 0 || pdEntryOffset+4 > n {
			continue
		}
		pde := readPTE(buf, pdEntryOffset)
		if pde == 0 {
			continue
		}

		pdeOffset := int(pde.PFN()) * pageSize
		if pdeOffset >= n || !pde.Valid() {
			continue
		}

		ptEntryOffset := pdeOffset + int(va.PTIndex())*4
		if ptEntryOffset+4 > n {
			continue
		}
		pte := readPTE(buf, ptEntryOffset)
		if pte == 0 {
			continue
		}

		pteOffset := int(pte.PFN()) * pageSize
		if pteOffset >= n || !pte.Valid() {
			continue
		}

		pfn := pte.PFN()
		if seen[pfn] {
			continue
		}
		seen[pfn] = true

		size := pageSize
		large := false
		if pte.LargePage() && largePages {
			size = largePageSize
			large = true
		}
		if pteOffset+size > n {
			size = n - pteOffset
		}

		data := make([]byte, size)
		copy(data, buf[pteOffset:pteOffset+size])
		pages = append(pages, ReconstructedPage{
			VirtualAddress: uint32(i),
			PFN:            pfn,
			Large:          large,
			Data:           data,
		})
	}
	return pages
}
