package scan

import (
	"bytes"
	"fmt"
	"math/rand"
	"testing"
)

// TestAESScheduleRoundTrip pins invariant 2 of §8: writing a key followed
// by its own FIPS-197 schedule into a buffer makes aes_search report
// exactly that offset, for all three key sizes.
func TestAESScheduleRoundTrip(t *testing.T) {
	for _, bits := range []int{128, 192, 256} {
		bits := bits
		t.Run(fmt.Sprintf("bits=%d", bits), func(t *testing.T) {
			nk := bits / 32
			size := aesScheduleBytes(bits)

			r := rand.New(rand.NewSource(int64(bits)))
			key := make([]byte, 4*nk)
			r.Read(key)

			ks := make([]byte, size)
			copy(ks, key)
			aesExpandKey(ks, nk)

			buf := make([]byte, 4096)
			r.Read(buf)
			const offset = 1500
			copy(buf[offset:], ks)

			ctx := NewContext()
			ctx.KeyKind = KeyAES
			ctx.KeySizeBits = bits

			var found []AesKey
			aesSearch(ctx, buf, 0, len(buf), func(res Result) {
				if k, ok := res.(AesKey); ok {
					found = append(found, k)
				}
			})

			if len(found) != 1 {
				t.Fatalf("got %d AesKey results, want 1 (bits=%d)", len(found), bits)
			}
			if found[0].OffsetField != offset {
				t.Fatalf("reported offset %d, want %d", found[0].OffsetField, offset)
			}
			if !bytes.Equal(found[0].ScheduleBytes, ks) {
				t.Fatalf("reported schedule bytes don't match what was planted")
			}
		})
	}
}

// TestAESAllZeroBufferNoMatch is scenario S1: 1024 zero bytes, AES-128 mode,
// no key reported. A constant-byte candidate key is explicitly excluded
// (§9 open question 4), even though its expansion would otherwise match.
func TestAESAllZeroBufferNoMatch(t *testing.T) {
	buf := make([]byte, 1024)
	ctx := NewContext()
	ctx.KeyKind = KeyAES
	ctx.KeySizeBits = 128

	var found []Result
	aesSearch(ctx, buf, 0, len(buf), func(res Result) { found = append(found, res) })

	if len(found) != 0 {
		t.Fatalf("got %d results scanning an all-zero buffer, want 0", len(found))
	}
}

// TestAESScenarioS4 is scenario S4: 4 KiB zero, then the AES-256 test
// vector key 0x00..0x1F followed by its 240-byte schedule, then 1 KiB
// zero, reports exactly one AesKey at offset 4096.
func TestAESScenarioS4(t *testing.T) {
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	ks := make([]byte, 240)
	copy(ks, key)
	aesExpandKey(ks, 8)

	buf := make([]byte, 4096+240+1024)
	copy(buf[4096:], ks)

	ctx := NewContext()
	ctx.KeyKind = KeyAES
	ctx.KeySizeBits = 256

	var found []AesKey
	aesSearch(ctx, buf, 0, len(buf), func(res Result) {
		if k, ok := res.(AesKey); ok {
			found = append(found, k)
		}
	})

	if len(found) != 1 || found[0].OffsetField != 4096 {
		t.Fatalf("got %+v, want exactly one AesKey at offset 4096", found)
	}
}
