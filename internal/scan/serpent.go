package scan

import "encoding/binary"

// Serpent-256 key-schedule recomputer (C2, §4.2). Adapted from the
// Serpent reference key schedule (Wei Dai's public-domain implementation,
// the same lineage the original Interrogate tool ported from), used here
// only to validate candidate key material, never to encrypt or decrypt.

const (
	serpentKeyBytes      = 32
	serpentPrekeyWords    = 132
	serpentScheduleBytes  = 560 // 32 (raw key) + 132*4 (subkeys)
	serpentPhi            = 0x9e3779b9
)

func rotl32(x uint32, n uint) uint32 {
	return (x << n) | (x >> (32 - n))
}

// The eight Serpent S-boxes, expressed as round-register transforms
// exactly as the reference implementation does (bitsliced boolean
// functions over five 32-bit "registers").

func sbox0(r0, r1, r2, r3 uint32) (uint32, uint32, uint32, uint32, uint32) {
	var r4 uint32
	r3 ^= r0
	r4 = r1
	r1 &= r3
	r4 ^= r2
	r1 ^= r0
	r0 |= r3
	r0 ^= r4
	r4 ^= r3
	r3 ^= r2
	r2 |= r1
	r2 ^= r4
	r4 = ^r4
	r4 |= r1
	r1 ^= r3
	r1 ^= r4
	r3 |= r0
	r1 ^= r3
	r4 ^= r3
	return r0, r1, r2, r3, r4
}

func sbox1(r0, r1, r2, r3 uint32) (uint32, uint32, uint32, uint32, uint32) {
	var r4 uint32
	r0 = ^r0
	r2 = ^r2
	r4 = r0
	r0 &= r1
	r2 ^= r0
	r0 |= r3
	r3 ^= r2
	r1 ^= r0
	r0 ^= r4
	r4 |= r1
	r1 ^= r3
	r2 |= r0
	r2 &= r4
	r0 ^= r1
	r1 &= r2
	r1 ^= r0
	r0 &= r2
	r0 ^= r4
	return r0, r1, r2, r3, r4
}

func sbox2(r0, r1, r2, r3 uint32) (uint32, uint32, uint32, uint32, uint32) {
	var r4 uint32
	r4 = r0
	r0 &= r2
	r0 ^= r3
	r2 ^= r1
	r2 ^= r0
	r3 |= r4
	r3 ^= r1
	r4 ^= r2
	r1 = r3
	r3 |= r4
	r3 ^= r0
	r0 &= r1
	r4 ^= r0
	r1 ^= r3
	r1 ^= r4
	r4 = ^r4
	return r0, r1, r2, r3, r4
}

func sbox3(r0, r1, r2, r3 uint32) (uint32, uint32, uint32, uint32, uint32) {
	var r4 uint32
	r4 = r0
	r0 |= r3
	r3 ^= r1
	r1 &= r4
	r4 ^= r2
	r2 ^= r3
	r3 &= r0
	r4 |= r1
	r3 ^= r4
	r0 ^= r1
	r4 &= r0
	r1 ^= r3
	r4 ^= r2
	r1 |= r0
	r1 ^= r2
	r0 ^= r3
	r2 = r1
	r1 |= r3
	r1 ^= r0
	return r0, r1, r2, r3, r4
}

func sbox4(r0, r1, r2, r3 uint32) (uint32, uint32, uint32, uint32, uint32) {
	var r4 uint32
	r1 ^= r3
	r3 = ^r3
	r2 ^= r3
	r3 ^= r0
	r4 = r1
	r1 &= r3
	r1 ^= r2
	r4 ^= r3
	r0 ^= r4
	r2 &= r4
	r2 ^= r0
	r0 &= r1
	r3 ^= r0
	r4 |= r1
	r4 ^= r0
	r0 |= r3
	r0 ^= r2
	r2 &= r3
	r0 = ^r0
	r4 ^= r2
	return r0, r1, r2, r3, r4
}

func sbox5(r0, r1, r2, r3 uint32) (uint32, uint32, uint32, uint32, uint32) {
	var r4 uint32
	r0 ^= r1
	r1 ^= r3
	r3 = ^r3
	r4 = r1
	r1 &= r0
	r2 ^= r3
	r1 ^= r2
	r2 |= r4
	r4 ^= r3
	r3 &= r1
	r3 ^= r0
	r4 ^= r1
	r4 ^= r2
	r2 ^= r0
	r0 &= r3
	r2 = ^r2
	r0 ^= r4
	r4 |= r3
	r2 ^= r4
	return r0, r1, r2, r3, r4
}

func sbox6(r0, r1, r2, r3 uint32) (uint32, uint32, uint32, uint32, uint32) {
	var r4 uint32
	r2 = ^r2
	r4 = r3
	r3 &= r0
	r0 ^= r4
	r3 ^= r2
	r2 |= r4
	r1 ^= r3
	r2 ^= r0
	r0 |= r1
	r2 ^= r1
	r4 ^= r0
	r0 |= r3
	r0 ^= r2
	r4 ^= r3
	r4 ^= r0
	r3 = ^r3
	r2 &= r4
	r2 ^= r3
	return r0, r1, r2, r3, r4
}

func sbox7(r0, r1, r2, r3 uint32) (uint32, uint32, uint32, uint32, uint32) {
	var r4 uint32
	r4 = r2
	r2 &= r1
	r2 ^= r3
	r3 &= r1
	r4 ^= r2
	r2 ^= r1
	r1 ^= r0
	r0 |= r4
	r0 ^= r2
	r3 ^= r1
	r2 ^= r3
	r3 &= r0
	r3 ^= r4
	r4 ^= r2
	r2 &= r0
	r4 = ^r4
	r2 ^= r4
	r4 &= r0
	r1 ^= r3
	r4 ^= r1
	return r0, r1, r2, r3, r4
}

// serpentLoad and serpentStore read and write four words of a, the
// 140-word workspace, for the substitution phase below. p is the C
// implementation's running pointer offset (which starts negative and is
// only ever advanced, never reset, across rounds).

func serpentLoad(a []uint32, p, r int) (v0, v1, v2, v3 uint32) {
	return a[p+r], a[p+r+1], a[p+r+2], a[p+r+3]
}

func serpentStore(a []uint32, p, r int, v0, v1, v2, v3 uint32) {
	a[p+r+4] = v0
	a[p+r+5] = v1
	a[p+r+6] = v2
	a[p+r+7] = v3
}

// serpentExpandKey runs the Serpent-256 key schedule on a 32-byte key,
// returning the 560-byte schedule (raw key || 132 little-endian subkey
// words) described in §4.2.
func serpentExpandKey(key []byte) []byte {
	// a holds the 8 raw key words followed by 132 prekey/subkey words.
	a := make([]uint32, serpentKeyBytes/4+serpentPrekeyWords)
	for i := 0; i < serpentKeyBytes/4; i++ {
		a[i] = binary.LittleEndian.Uint32(key[4*i : 4*i+4])
	}

	t := a[7]
	for i := 0; i < serpentPrekeyWords; i++ {
		t = rotl32(a[i]^a[i+3]^a[i+5]^t^serpentPhi^uint32(i), 11)
		a[8+i] = t
	}

	// Substitution phase: pass the prekeys through the S-boxes (in the
	// fixed order S3,S2,S1,S0,S7,S6,S5,S4, repeated) to turn them into the
	// actual round subkeys, overwriting a[8:140] in place. p tracks the
	// reference implementation's running pointer offset; it is advanced
	// by 32 once per outer iteration and never reset.
	var va, vb, vc, vd, ve uint32
	p := -12
	for i := 0; i < 4; i++ {
		va, ve, vb, vd = serpentLoad(a, p, 20)
		va, ve, vb, vd, vc = sbox3(va, ve, vb, vd)
		serpentStore(a, p, 16, ve, vb, vd, vc)

		vc, vb, va, ve = serpentLoad(a, p, 24)
		vc, vb, va, ve, vd = sbox2(vc, vb, va, ve)
		serpentStore(a, p, 20, va, ve, vb, vd)

		vb, ve, vc, va = serpentLoad(a, p, 28)
		vb, ve, vc, va, vd = sbox1(vb, ve, vc, va)
		serpentStore(a, p, 24, vc, vb, va, ve)

		va, vb, vc, vd = serpentLoad(a, p, 32)
		va, vb, vc, vd, ve = sbox0(va, vb, vc, vd)
		serpentStore(a, p, 28, vb, ve, vc, va)

		p += 8 * 4

		va, vc, vd, vb = serpentLoad(a, p, 4)
		va, vc, vd, vb, ve = sbox7(va, vc, vd, vb)
		serpentStore(a, p, 0, vd, ve, vb, va)

		va, vc, vb, ve = serpentLoad(a, p, 8)
		va, vc, vb, ve, vd = sbox6(va, vc, vb, ve)
		serpentStore(a, p, 4, va, vc, vd, vb)

		vb, va, ve, vc = serpentLoad(a, p, 12)
		vb, va, ve, vc, vd = sbox5(vb, va, ve, vc)
		serpentStore(a, p, 8, va, vc, vb, ve)

		ve, vb, vd, vc = serpentLoad(a, p, 16)
		ve, vb, vd, vc, va = sbox4(ve, vb, vd, vc)
		serpentStore(a, p, 12, vb, va, ve, vc)
	}
	va, ve, vb, vd = serpentLoad(a, p, 20)
	va, ve, vb, vd, vc = sbox3(va, ve, vb, vd)
	serpentStore(a, p, 16, ve, vb, vd, vc)

	out := make([]byte, serpentScheduleBytes)
	for i, w := range a {
		binary.LittleEndian.PutUint32(out[4*i:4*i+4], w)
	}
	return out
}

// serpentSearch scans [from, to) for a Serpent-256 key whose stored
// schedule matches the reference expansion (§4.2).
func serpentSearch(ctx *Context, buf []byte, from, to int, emit func(Result)) {
	if to-from < serpentScheduleBytes {
		return
	}
	for i := from; i < to-serpentScheduleBytes; i++ {
		key := buf[i : i+serpentKeyBytes]
		if isConstant(key) {
			continue
		}
		schedule := serpentExpandKey(key)
		if bytesEqual(schedule, buf[i:i+serpentScheduleBytes]) {
			ctx.Count++
			out := make([]byte, serpentScheduleBytes)
			copy(out, buf[i:i+serpentScheduleBytes])
			emit(SerpentKey{OffsetField: i, ScheduleBytes: out})
		}
	}
}
