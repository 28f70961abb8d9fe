package scan

import (
	"bytes"
	"math/rand"
	"testing"
)

// TestSerpentScheduleRoundTrip checks the shape of the Serpent-256
// expansion: it is 560 bytes long, begins with the raw 32-byte key, and is
// deterministic. TestSerpentScenarioS3 plants it in a buffer for the search.
func TestSerpentScheduleRoundTrip(t *testing.T) {
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	schedule := serpentExpandKey(key)
	if len(schedule) != serpentScheduleBytes {
		t.Fatalf("schedule length = %d, want %d", len(schedule), serpentScheduleBytes)
	}
	if !bytes.Equal(schedule[:32], key) {
		t.Fatalf("schedule doesn't begin with the raw key")
	}

	// Re-expanding the same key must be deterministic.
	again := serpentExpandKey(key)
	if !bytes.Equal(schedule, again) {
		t.Fatalf("serpentExpandKey is not deterministic")
	}
}

// TestSerpentScenarioS3 is scenario S3: the test-vector key 0x00..0x1F
// followed by its reference schedule reports one SerpentKey at offset 0.
func TestSerpentScenarioS3(t *testing.T) {
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	schedule := serpentExpandKey(key)

	r := rand.New(rand.NewSource(7))
	buf := make([]byte, 2048)
	r.Read(buf)
	copy(buf[0:], schedule)

	ctx := NewContext()
	ctx.KeyKind = KeySerpent
	ctx.KeySizeBits = 256

	var found []SerpentKey
	serpentSearch(ctx, buf, 0, len(buf), func(res Result) {
		if k, ok := res.(SerpentKey); ok {
			found = append(found, k)
		}
	})

	if len(found) != 1 {
		t.Fatalf("got %d SerpentKey results, want 1", len(found))
	}
	if found[0].OffsetField != 0 {
		t.Fatalf("reported offset %d, want 0", found[0].OffsetField)
	}
}

func TestSerpentConstantKeyRejected(t *testing.T) {
	buf := make([]byte, serpentScheduleBytes+64)
	ctx := NewContext()
	ctx.KeyKind = KeySerpent
	ctx.KeySizeBits = 256

	var found []Result
	serpentSearch(ctx, buf, 0, len(buf), func(res Result) { found = append(found, res) })
	if len(found) != 0 {
		t.Fatalf("got %d results scanning an all-zero buffer, want 0", len(found))
	}
}
