// Command interrogate scans raw binary dumps for structural and
// entropy-based evidence of cryptographic key material (§6 EXTERNAL
// INTERFACES).
package main

import (
	"bufio"
	"bytes"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"
	isatty "github.com/mattn/go-isatty"
	"github.com/natefinch/atomic"

	"github.com/carmaa/interrogate/internal/hexdump"
	"github.com/carmaa/interrogate/internal/scan"
)

const version = "1.0"

var (
	algFlag       string
	intervalFlag  string
	keySizeFlag   uint
	naiveFlag     bool
	metricFile    string
	quickFlag     bool
	cr3Flag       string
	thresholdFlag float64
	verboseFlag   bool
	windowFlag    uint

	warn = color.New(color.FgYellow)
	fail = color.New(color.FgRed)
	hit  = color.New(color.FgGreen)
)

func usage() {
	fmt.Fprintln(os.Stderr, "usage: interrogate [flags] file [file...]")
	flag.PrintDefaults()
}

func main() {
	flag.StringVar(&algFlag, "a", "", "key `type` [aes|rsa|rsa-win|serpent|twofish|tc-twofish] (default: entropy scan)")
	flag.StringVar(&intervalFlag, "i", "", "hex `from:to` scan interval, either side may be empty")
	flag.UintVar(&keySizeFlag, "k", 256, "AES key `size` in bits [128|192|256]")
	flag.BoolVar(&naiveFlag, "n", false, "naive entropy mode (Shannon entropy instead of unique-byte count)")
	flag.StringVar(&metricFile, "p", "", "write per-window metric stream to `file`")
	flag.BoolVar(&quickFlag, "q", false, "quick mode (non-overlapping entropy windows)")
	flag.StringVar(&cr3Flag, "r", "", "hex CR3 `offset`, enables the virtual-memory reconstructor")
	flag.Float64Var(&thresholdFlag, "t", 7.0, "entropy `threshold`")
	flag.BoolVar(&verboseFlag, "v", false, "verbose")
	flag.UintVar(&windowFlag, "w", 256, "window `size` in bytes")
	flag.Usage = usage

	fmt.Printf("interrogate version %s\n", version)

	flag.Parse()

	noColor := !isatty.IsTerminal(os.Stdout.Fd())
	warn.DisableColor()
	fail.DisableColor()
	hit.DisableColor()
	if !noColor {
		warn.EnableColor()
		fail.EnableColor()
		hit.EnableColor()
	}

	files := flag.Args()
	if len(files) == 0 {
		fail.Fprintln(os.Stderr, "Error: no input files given")
		flag.Usage()
		os.Exit(1)
	}

	ctx, err := buildContext()
	if err != nil {
		fail.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	var metricOut *bufio.Writer
	if metricFile != "" {
		f, err := os.Create(metricFile)
		if err != nil {
			log.Fatal("could not create metric file: ", err)
		}
		defer f.Close()
		metricOut = bufio.NewWriter(f)
		defer metricOut.Flush()
		ctx.OnMetric = func(v float64) {
			fmt.Fprintf(metricOut, "%.4g\n", v)
		}
	}
	if verboseFlag {
		ctx.OnReject = func(offset int, reason string) {
			log.Printf("rejected candidate at 0x%x: %s\n", offset, reason)
		}
	}

	status := 0
	derIndex := 0
	for _, path := range files {
		buf, err := os.ReadFile(path)
		if err != nil {
			fail.Fprintf(os.Stderr, "Error: %v\n", err)
			status = 1
			continue
		}

		fmt.Printf("%s: %d bytes, mode %s\n", path, len(buf), ctx.KeyKind)

		pages, results := scan.Dispatch(ctx, buf)

		if len(pages) > 0 {
			data := scan.FlattenPages(pages)
			if err := atomic.WriteFile("pages", bytes.NewReader(data)); err != nil {
				fail.Fprintf(os.Stderr, "Error: %v\n", err)
				status = 1
			} else {
				fmt.Printf("reconstructed %d page(s), %d bytes -> pages\n", len(pages), len(data))
			}
		}

		for _, r := range results {
			switch v := r.(type) {
			case scan.EntropyBlob:
				fmt.Printf("0x%08x - 0x%08x | %8d | %8.3f | %8.4f\n",
					v.Start, v.End, v.Bytes, v.Windows, v.MeanMetric)
			case scan.DerKey:
				hit.Printf("%08x: Key: %d bits, public exponent %d.\n",
					v.OffsetField, v.ModulusBits, v.PublicExponent)
				derIndex++
				name := fmt.Sprintf("privkey-%02d.der", derIndex)
				if err := atomic.WriteFile(name, bytes.NewReader(buf[v.OffsetField:v.OffsetField+v.Length])); err != nil {
					fail.Fprintf(os.Stderr, "Error: %v\n", err)
					status = 1
				} else {
					fmt.Printf("  -> %s\n", name)
				}
			case scan.AesKey:
				hit.Printf("Found (probable) AES key at offset %.8x:\n", v.OffsetField)
				hexdump.Bytes(os.Stdout, v.ScheduleBytes[:v.Bits/8], 16)
				fmt.Println("Expanded key:")
				hexdump.Bytes(os.Stdout, v.ScheduleBytes, 16)
			case scan.SerpentKey:
				const serpentRawKeyBytes = 32
				hit.Printf("Found (probable) SERPENT key at offset %.8x:\n", v.OffsetField)
				hexdump.Bytes(os.Stdout, v.ScheduleBytes[:serpentRawKeyBytes], serpentRawKeyBytes)
				fmt.Println("Expanded key:")
				hexdump.Words(os.Stdout, v.ScheduleBytes, 8)
			case scan.TwofishKey:
				hit.Printf("Found (probable) TwoFish key at offset %.8x:\n", v.OffsetField)
				fmt.Println("Expanded key:")
				hexdump.Words(os.Stdout, v.ScheduleBytes, 4)
			case scan.RsaWinSignature:
				hit.Printf("Windows RSA2 signature at 0x%x\n", v.OffsetField)
			}
		}

		fmt.Printf("%d result(s)\n", ctx.Count)
	}

	os.Exit(status)
}

func buildContext() (*scan.Context, error) {
	ctx := scan.NewContext()
	ctx.Verbose = verboseFlag
	ctx.NaiveMode = naiveFlag
	ctx.QuickMode = quickFlag
	ctx.Threshold = thresholdFlag
	ctx.WindowSize = int(windowFlag)

	switch algFlag {
	case "":
		ctx.KeyKind = scan.KeyNone
	case "aes":
		ctx.KeyKind = scan.KeyAES
		switch keySizeFlag {
		case 128, 192, 256:
			ctx.KeySizeBits = int(keySizeFlag)
		default:
			return nil, fmt.Errorf("invalid AES key size %d (want 128, 192, or 256)", keySizeFlag)
		}
	case "rsa":
		ctx.KeyKind = scan.KeyRSADER
	case "rsa-win":
		ctx.KeyKind = scan.KeyRSAWindows
	case "serpent":
		ctx.KeyKind = scan.KeySerpent
		ctx.KeySizeBits = 256
	case "twofish":
		ctx.KeyKind = scan.KeyTwofish
		ctx.WindowSize = 4096
	case "tc-twofish":
		ctx.KeyKind = scan.KeyTwofishTC
	default:
		return nil, fmt.Errorf("invalid key type %q", algFlag)
	}

	if intervalFlag != "" {
		from, to, err := parseInterval(intervalFlag)
		if err != nil {
			return nil, err
		}
		ctx.SetInterval(from, to)
	}

	if cr3Flag != "" {
		v, err := strconv.ParseUint(strings.TrimPrefix(cr3Flag, "0x"), 16, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid CR3 offset %q: %w", cr3Flag, err)
		}
		ctx.CR3Offset = int(v)
	}

	return ctx, nil
}

// parseInterval parses "from:to" where either side may be empty, both in
// hex without a leading "0x" (§6).
func parseInterval(s string) (from, to int, err error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid interval %q, want from:to", s)
	}
	if parts[0] != "" {
		v, err := strconv.ParseUint(strings.TrimPrefix(parts[0], "0x"), 16, 64)
		if err != nil {
			return 0, 0, fmt.Errorf("invalid interval start %q: %w", parts[0], err)
		}
		from = int(v)
	}
	if parts[1] != "" {
		v, err := strconv.ParseUint(strings.TrimPrefix(parts[1], "0x"), 16, 64)
		if err != nil {
			return 0, 0, fmt.Errorf("invalid interval end %q: %w", parts[1], err)
		}
		to = int(v)
	}
	if parts[1] != "" && to < from {
		return 0, 0, fmt.Errorf("invalid interval %q: to < from", s)
	}
	return from, to, nil
}
