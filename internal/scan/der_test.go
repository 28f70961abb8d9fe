package scan

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

// TestDERRoundTrip pins invariant 1 of §8: for every reported DerKey, the
// parser re-run at the reported offset returns the same length, and the
// candidate is structurally valid.
func TestDERRoundTrip(t *testing.T) {
	buf := buildDERCandidate(t, 1191)

	ctx := NewContext()
	ctx.KeyKind = KeyRSADER

	var found []DerKey
	rsaDERSearch(ctx, buf, 0, len(buf), func(res Result) {
		if k, ok := res.(DerKey); ok {
			found = append(found, k)
		}
	})
	if len(found) != 1 {
		t.Fatalf("got %d DerKey results, want 1", len(found))
	}

	again, ok, reason := parseDER(buf, found[0].OffsetField)
	if !ok {
		t.Fatalf("re-parsing the reported offset failed: %s", reason)
	}
	if again.length != found[0].Length {
		t.Fatalf("length mismatch: reported %d, re-parsed %d", found[0].Length, again.length)
	}
}

// TestDERScenarioS2 is scenario S2 of §8: a literal PKCS#8 RSA-2048 header
// followed by 1187 arbitrary bytes reports one DerKey{offset:0,
// modulus_bits:2048, public_exponent:65537, length:1191}.
func TestDERScenarioS2(t *testing.T) {
	buf := buildDERCandidate(t, 1191)

	ctx := NewContext()
	ctx.KeyKind = KeyRSADER

	var found []DerKey
	rsaDERSearch(ctx, buf, 0, len(buf), func(res Result) {
		if k, ok := res.(DerKey); ok {
			found = append(found, k)
		}
	})

	if len(found) != 1 {
		t.Fatalf("got %d DerKey results, want 1", len(found))
	}

	want := DerKey{OffsetField: 0, ModulusBits: 2048, PublicExponent: 65537, Length: 1191}
	if diff := cmp.Diff(want, found[0]); diff != "" {
		t.Fatalf("DerKey mismatch (-want +got):\n%s", diff)
	}
}

// buildDERCandidate constructs the literal S2 header: [0x30, 0x82, 0x04,
// 0xA3, 0x02, 0x01, 0x00, 0x02, 0x82, 0x01, 0x01, 0x00, ...], a long-form
// (2-byte) modulus length of 257 bytes yielding modulus_bits=2048, the
// public exponent 65537 placed right after the modulus, and arbitrary
// filler so the whole candidate is exactly wantLength (1191) bytes.
func buildDERCandidate(t *testing.T, wantLength int) []byte {
	t.Helper()
	buf := make([]byte, wantLength)
	header := []byte{0x30, 0x82, 0x04, 0xA3, 0x02, 0x01, 0x00, 0x02, 0x82, 0x01, 0x01}
	copy(buf, header)

	const modLength = 257       // buf[9]<<8 | buf[10] = 0x0101
	const pubExpFieldLength = 3 // asn1Length 0x82 + 2 length bytes
	pubExpOffset := 8 + pubExpFieldLength + modLength
	buf[pubExpOffset] = 0x02
	buf[pubExpOffset+1] = 0x03
	buf[pubExpOffset+2] = 0x01
	buf[pubExpOffset+3] = 0x00
	buf[pubExpOffset+4] = 0x01

	length := wantLength - 4
	buf[2] = byte(length >> 8)
	buf[3] = byte(length & 0xff)

	return buf
}

// TestRSAWindowsScenarioS5 is scenario S5 of §8: a buffer with ASCII
// "RSA2" at offsets 100 and 2000 reports two RsaWinSignature results at
// exactly those offsets.
func TestRSAWindowsScenarioS5(t *testing.T) {
	buf := make([]byte, 2100)
	copy(buf[100:], []byte("RSA2"))
	copy(buf[2000:], []byte("RSA2"))

	ctx := NewContext()
	ctx.KeyKind = KeyRSAWindows

	var offsets []int
	rsaWindowsSearch(ctx, buf, 0, len(buf), func(res Result) {
		offsets = append(offsets, res.Offset())
	})

	if len(offsets) != 2 || offsets[0] != 100 || offsets[1] != 2000 {
		t.Fatalf("got offsets %v, want [100 2000]", offsets)
	}
}
