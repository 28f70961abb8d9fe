package scan

import "encoding/binary"

// Twofish support (C2/C4, §4.2 and §4.4). Unlike AES and Serpent, Twofish
// candidates are not validated by recomputing a schedule from a raw key and
// comparing; none of the four in-memory layouts store the original key, so
// detection is purely structural and statistical (entropy of the S-box
// tables, entropy of the subkey/whitening words). twofishExpandTrueCrypt
// below exists to build TrueCrypt-layout fixtures for tests, grounded on
// the same reference key schedule the real TrueCrypt/Interrogate code used.

const (
	twofishTCStructSize = 4276 // l_key[40] + s_key[4] + mk_tab[1024] + k_len, all uint32
	twofishWindowSize   = 4096
)

var tfRor4 = [16]byte{0, 8, 1, 9, 2, 10, 3, 11, 4, 12, 5, 13, 6, 14, 7, 15}
var tfAshx = [16]byte{0, 9, 2, 11, 4, 13, 6, 15, 8, 1, 10, 3, 12, 5, 14, 7}

var tfQt0 = [2][16]byte{
	{8, 1, 7, 13, 6, 15, 3, 2, 0, 11, 5, 9, 14, 12, 10, 4},
	{2, 8, 11, 13, 15, 7, 6, 14, 3, 1, 9, 4, 0, 10, 12, 5},
}
var tfQt1 = [2][16]byte{
	{14, 12, 11, 8, 1, 2, 3, 5, 15, 4, 10, 6, 7, 0, 9, 13},
	{1, 14, 2, 11, 4, 12, 3, 7, 6, 13, 10, 5, 15, 9, 0, 8},
}
var tfQt2 = [2][16]byte{
	{11, 10, 5, 14, 6, 13, 9, 0, 12, 8, 15, 3, 2, 4, 7, 1},
	{4, 12, 7, 5, 1, 6, 9, 10, 0, 14, 13, 8, 2, 11, 3, 15},
}
var tfQt3 = [2][16]byte{
	{13, 7, 15, 4, 1, 2, 6, 14, 9, 11, 3, 0, 8, 5, 12, 10},
	{11, 9, 5, 1, 12, 3, 13, 14, 6, 4, 7, 15, 2, 0, 8, 10},
}

const tfGM = 0x0169

var tfTab5b = [4]byte{0, tfGM >> 2, tfGM >> 1, (tfGM >> 1) ^ (tfGM >> 2)}
var tfTabEf = [4]byte{0, (tfGM >> 1) ^ (tfGM >> 2), tfGM >> 1, tfGM >> 2}

func ffm5b(x byte) byte { return x ^ (x >> 2) ^ tfTab5b[x&3] }
func ffmEf(x byte) byte { return x ^ (x >> 1) ^ (x >> 2) ^ tfTabEf[x&3] }

func tfQp(n int, x byte) byte {
	a0 := x >> 4
	b0 := x & 15
	a1 := a0 ^ b0
	b1 := tfRor4[b0] ^ tfAshx[a0]
	a2 := tfQt0[n][a1]
	b2 := tfQt1[n][b1]
	a3 := a2 ^ b2
	b3 := tfRor4[b2] ^ tfAshx[a2]
	a4 := tfQt2[n][a3]
	b4 := tfQt3[n][b3]
	return (b4 << 4) | a4
}

type twofishTables struct {
	q [2][256]byte
	m [4][256]uint32
}

func newTwofishTables() *twofishTables {
	t := &twofishTables{}
	for i := 0; i < 256; i++ {
		t.q[0][i] = tfQp(0, byte(i))
		t.q[1][i] = tfQp(1, byte(i))
	}
	for i := 0; i < 256; i++ {
		f01 := uint32(t.q[1][i])
		f5b := uint32(ffm5b(byte(f01)))
		fef := uint32(ffmEf(byte(f01)))
		t.m[0][i] = f01 + (f5b << 8) + (fef << 16) + (fef << 24)
		t.m[2][i] = f5b + (fef << 8) + (f01 << 16) + (fef << 24)

		f01 = uint32(t.q[0][i])
		f5b = uint32(ffm5b(byte(f01)))
		fef = uint32(ffmEf(byte(f01)))
		t.m[1][i] = fef + (fef << 8) + (f5b << 16) + (f01 << 24)
		t.m[3][i] = f5b + (f01 << 8) + (fef << 16) + (f5b << 24)
	}
	return t
}

func extractByte(x uint32, n uint) byte { return byte(x >> (8 * n)) }

// hFun is the Twofish h-function for a 256-bit key (k_len == 4).
func (t *twofishTables) hFun(x uint32, key [4]uint32) uint32 {
	b0 := extractByte(x, 0)
	b1 := extractByte(x, 1)
	b2 := extractByte(x, 2)
	b3 := extractByte(x, 3)

	b0 = t.q[1][b0] ^ extractByte(key[3], 0)
	b1 = t.q[0][b1] ^ extractByte(key[3], 1)
	b2 = t.q[0][b2] ^ extractByte(key[3], 2)
	b3 = t.q[1][b3] ^ extractByte(key[3], 3)

	b0 = t.q[1][b0] ^ extractByte(key[2], 0)
	b1 = t.q[1][b1] ^ extractByte(key[2], 1)
	b2 = t.q[0][b2] ^ extractByte(key[2], 2)
	b3 = t.q[0][b3] ^ extractByte(key[2], 3)

	b0 = t.q[0][t.q[0][b0]^extractByte(key[1], 0)] ^ extractByte(key[0], 0)
	b1 = t.q[0][t.q[1][b1]^extractByte(key[1], 1)] ^ extractByte(key[0], 1)
	b2 = t.q[1][t.q[0][b2]^extractByte(key[1], 2)] ^ extractByte(key[0], 2)
	b3 = t.q[1][t.q[1][b3]^extractByte(key[1], 3)] ^ extractByte(key[0], 3)

	return t.m[0][b0] ^ t.m[1][b1] ^ t.m[2][b2] ^ t.m[3][b3]
}

func tfMdsRem(p0, p1 uint32) uint32 {
	const gMod = 0x0000014d
	for i := 0; i < 8; i++ {
		t := p1 >> 24
		p1 = (p1 << 8) | (p0 >> 24)
		p0 <<= 8
		u := t << 1
		if t&0x80 != 0 {
			u ^= gMod
		}
		p1 ^= t ^ (u << 16)
		u ^= t >> 1
		if t&0x01 != 0 {
			u ^= gMod >> 1
		}
		p1 ^= (u << 24) | (u << 8)
	}
	return p1
}

// q40..q43: the fixed-depth Q-box compositions used by gen_mk_tab for a
// 256-bit (k_len==4) key.
func (t *twofishTables) q40(x byte, key [4]uint32) byte {
	v := t.q[1][x] ^ extractByte(key[3], 0)
	v = t.q[1][v] ^ extractByte(key[2], 0)
	v = t.q[0][v] ^ extractByte(key[1], 0)
	return t.q[0][v] ^ extractByte(key[0], 0)
}
func (t *twofishTables) q41(x byte, key [4]uint32) byte {
	v := t.q[0][x] ^ extractByte(key[3], 1)
	v = t.q[1][v] ^ extractByte(key[2], 1)
	v = t.q[1][v] ^ extractByte(key[1], 1)
	return t.q[0][v] ^ extractByte(key[0], 1)
}
func (t *twofishTables) q42(x byte, key [4]uint32) byte {
	v := t.q[0][x] ^ extractByte(key[3], 2)
	v = t.q[0][v] ^ extractByte(key[2], 2)
	v = t.q[0][v] ^ extractByte(key[1], 2)
	return t.q[1][v] ^ extractByte(key[0], 2)
}
func (t *twofishTables) q43(x byte, key [4]uint32) byte {
	v := t.q[1][x] ^ extractByte(key[3], 3)
	v = t.q[0][v] ^ extractByte(key[2], 3)
	v = t.q[1][v] ^ extractByte(key[1], 3)
	return t.q[1][v] ^ extractByte(key[0], 3)
}

func (t *twofishTables) genMkTab(sKey [4]uint32) []uint32 {
	mkTab := make([]uint32, 4*256)
	for i := 0; i < 256; i++ {
		by := byte(i)
		mkTab[0+4*i] = t.m[0][t.q40(by, sKey)]
		mkTab[1+4*i] = t.m[1][t.q41(by, sKey)]
		mkTab[2+4*i] = t.m[2][t.q42(by, sKey)]
		mkTab[3+4*i] = t.m[3][t.q43(by, sKey)]
	}
	return mkTab
}

// twofishExpandTrueCrypt runs the Twofish-256 key schedule (TrueCrypt
// layout, k_len fixed at 4) on a 32-byte key, returning the raw l_key[40],
// s_key[4] and mk_tab[1024] words it produces (§4.2). Not used by the
// heuristic searches below; it exists so tests can construct a genuine
// TrueCrypt-layout key-schedule blob.
func twofishExpandTrueCrypt(key []byte) (lKey [40]uint32, sKey [4]uint32, mkTab []uint32) {
	t := newTwofishTables()

	var meKey, moKey [4]uint32
	inWords := make([]uint32, 8)
	for i := range inWords {
		inWords[i] = binary.LittleEndian.Uint32(key[4*i : 4*i+4])
	}
	for i := 0; i < 4; i++ {
		a := inWords[2*i]
		b := inWords[2*i+1]
		meKey[i] = a
		moKey[i] = b
		sKey[4-i-1] = tfMdsRem(a, b)
	}

	for i := 0; i < 40; i += 2 {
		a := uint32(0x01010101) * uint32(i)
		b := a + 0x01010101
		a = t.hFun(a, meKey)
		b = rotl32(t.hFun(b, moKey), 8)
		lKey[i] = a + b
		lKey[i+1] = rotl32(a+2*b, 9)
	}
	mkTab = t.genMkTab(sKey)
	return lKey, sKey, mkTab
}

// twofishSearchOld validates candidate twofish_tc structs in place (the
// deprecated but still-supported TrueCrypt-only search, §4.2): no key
// schedule is recomputed, only the entropy of its fields is checked.
func twofishSearchOld(ctx *Context, buf []byte, from, to int, emit func(Result)) {
	if to-from < twofishTCStructSize {
		return
	}
	for i := from; i < to-twofishTCStructSize; i++ {
		lKey := readWords(buf, i, 40)
		sKey := readWords(buf, i+160, 4)
		mkTab := buf[i+176 : i+176+4096]
		kLen := binary.LittleEndian.Uint32(buf[i+176+4096 : i+176+4096+4])

		switch kLen {
		case 2:
			if sKey[2] == 0 && sKey[3] == 0 && lKey[0] != 0 {
				if entropyEquals8(mkTab) {
					e := Entropy(wordsToBytes(lKey))
					if e > 6 && e < 7.2 {
						ctx.Count++
						emit(twofishOldResult(i, kLen, buf, twofishTCStructSize))
					}
				}
			}
		case 3:
			if sKey[3] == 0 && lKey[0] != 0 {
				if entropyEquals8(mkTab) {
					e := Entropy(wordsToBytes(lKey))
					if e > 4 {
						ctx.Count++
						emit(twofishOldResult(i, kLen, buf, twofishTCStructSize))
					}
				}
			}
		case 4:
			if entropyEquals8(mkTab) {
				e := Entropy(wordsToBytes(lKey))
				if e > 6 && e < 7.2 {
					ctx.Count++
					emit(twofishOldResult(i, kLen, buf, twofishTCStructSize))
				}
			}
		}
	}
}

func twofishOldResult(offset int, kLen uint32, buf []byte, size int) TwofishKey {
	out := make([]byte, size)
	copy(out, buf[offset:offset+size])
	return TwofishKey{OffsetField: offset, Variant: TwofishTrueCrypt, ScheduleBytes: out}
}

func readWords(buf []byte, offset, n int) []uint32 {
	w := make([]uint32, n)
	for i := 0; i < n; i++ {
		w[i] = binary.LittleEndian.Uint32(buf[offset+4*i : offset+4*i+4])
	}
	return w
}

func wordsToBytes(w []uint32) []byte {
	b := make([]byte, 4*len(w))
	for i, v := range w {
		binary.LittleEndian.PutUint32(b[4*i:4*i+4], v)
	}
	return b
}

// twofishSearch is the current (non-deprecated) Twofish search (§4.4): a
// run-histogram scan for mk_tab-shaped windows, followed by structural
// validation against all four known in-memory layouts at each hit.
func twofishSearch(ctx *Context, buf []byte, from, to int, emit func(Result)) {
	if to-from < twofishTCStructSize {
		return
	}
	if to-from < twofishWindowSize {
		return
	}

	var hist RunHistogram
	hist.Init(buf[from : from+twofishWindowSize])
	if isMkTab(hist.Bins) {
		validateTwofishLayouts(ctx, buf, from, emit)
	}
	for i := from + 1; i+twofishWindowSize <= to; i++ {
		hist.Step(buf[i : i+twofishWindowSize])
		if isMkTab(hist.Bins) {
			validateTwofishLayouts(ctx, buf, i, emit)
		}
	}
}

// validateTwofishLayouts tries the TrueCrypt, Optimized, GPG/SSH and
// Nettle struct layouts, each anchored so that the candidate S-box array
// begins at offset (§4.4).
func validateTwofishLayouts(ctx *Context, buf []byte, offset int, emit func(Result)) {
	// TrueCrypt: mk_tab sits 176 bytes into the struct.
	if tcOffs := offset - 44*4; tcOffs >= 0 && tcOffs+twofishTCStructSize <= len(buf) {
		mkTab := buf[tcOffs+176 : tcOffs+176+4096]
		kLen := binary.LittleEndian.Uint32(buf[tcOffs+176+4096 : tcOffs+176+4096+4])
		if entropyEquals8(mkTab) && kLen == 4 {
			lKey := wordsToBytes(readWords(buf, tcOffs, 40))
			if isTwofishLKey(lKey) {
				sKey := wordsToBytes(readWords(buf, tcOffs+160, 4))
				if isTwofishSKey(sKey) {
					ctx.Count++
					emit(twofishOldResult(tcOffs, kLen, buf, twofishTCStructSize))
				}
			}
		}
	}

	// Optimized: K[40], k_len, QF[1024] (QF at +164).
	if optOffs := offset - 41*4; optOffs >= 0 && optOffs+164+4096 <= len(buf) {
		qf := buf[optOffs+164 : optOffs+164+4096]
		kLen := binary.LittleEndian.Uint32(buf[optOffs+160 : optOffs+164])
		if entropyEquals8(qf) && (kLen == 0 || kLen == 1) {
			k := wordsToBytes(readWords(buf, optOffs, 40))
			if isTwofishLKey(k) {
				ctx.Count++
				out := make([]byte, 164+4096)
				copy(out, buf[optOffs:optOffs+164+4096])
				emit(TwofishKey{OffsetField: optOffs, Variant: TwofishOptimized, ScheduleBytes: out})
			}
		}
	}

	// GPG/Linux and SSH: s[4][256] is the first field.
	if offset+4096+160 <= len(buf) {
		s := buf[offset : offset+4096]
		if entropyEquals8(s) {
			w := wordsToBytes(readWords(buf, offset+4096, 40))
			if isTwofishLKey(w) {
				ctx.Count++
				out := make([]byte, 4096+160)
				copy(out, buf[offset:offset+4096+160])
				emit(TwofishKey{OffsetField: offset, Variant: TwofishGPGSSH, ScheduleBytes: out})
			}
		}
	}

	// Nettle: k[40] then s[4][256] (s at +160).
	if nettleOffs := offset - 40*4; nettleOffs >= 0 && nettleOffs+160+4096 <= len(buf) {
		s := buf[nettleOffs+160 : nettleOffs+160+4096]
		if entropyEquals8(s) {
			k := wordsToBytes(readWords(buf, nettleOffs, 40))
			if isTwofishLKey(k) {
				ctx.Count++
				out := make([]byte, 160+4096)
				copy(out, buf[nettleOffs:nettleOffs+160+4096])
				emit(TwofishKey{OffsetField: nettleOffs, Variant: TwofishNettle, ScheduleBytes: out})
			}
		}
	}
}

// isTwofishLKey is the heuristic entropy window for Twofish subkey/
// whitening words, always measured over 160 bytes (40 words) regardless of
// which layout they came from (§4.4).
func isTwofishLKey(lKey []byte) bool {
	e := Entropy(lKey)
	return e < 7.2 && e > 6.3
}

// isTwofishSKey is the TrueCrypt-only S-box key entropy whitelist: a fixed
// set of entropy values recur for the 4-word s_key array, plus an open
// band between 2 and 3 bits (§4.4).
func isTwofishSKey(sKey []byte) bool {
	e := roundTo(Entropy(sKey), 4)
	switch e {
	case 4.0000, 3.8750, 3.7500, 3.7028, 3.6250, 3.5778, 3.5000, 3.4528,
		3.4056, 3.3750, 3.3278, 3.2806, 3.2744, 3.2500, 3.2028, 3.1556,
		3.1494, 3.1250, 3.0778, 3.0306, 3.0244:
		return true
	}
	return e <= 3.0000 && e >= 2.0000
}
