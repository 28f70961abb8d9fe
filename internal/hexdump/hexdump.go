// Package hexdump prints raw key-schedule bytes for discovery banners, the
// way the original tool's print_hex_array/print_hex_words did.
package hexdump

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Bytes prints data as space-separated hex byte pairs, columns per line.
func Bytes(w io.Writer, data []byte, columns int) {
	for i, b := range data {
		if i%columns == 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "%02x ", b)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w)
}

// Words prints data as space-separated 32-bit little-endian hex words,
// columns per line. len(data) must be a multiple of 4.
func Words(w io.Writer, data []byte, columns int) {
	n := len(data) / 4
	for i := 0; i < n; i++ {
		if i%columns == 0 {
			fmt.Fprintln(w)
		}
		word := binary.LittleEndian.Uint32(data[4*i : 4*i+4])
		fmt.Fprintf(w, "%08x ", word)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w)
}
