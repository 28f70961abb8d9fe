package scan

// DER/PKCS#8 RSA private-key structural parser (C3, §4.3).

// derCandidate describes a parsed (and structurally validated) DER blob at
// a given offset.
type derCandidate struct {
	offset         int
	modulusBits    int
	publicExponent int
	length         int // bytes from offset to end of the DER blob
}

// parseDER validates a DER/PKCS#8 RSA private-key candidate starting at
// offset o in buf, returning ok=false if the structure doesn't check out.
// It never panics on short buffers; an out-of-range read is treated as a
// parse failure.
func parseDER(buf []byte, o int) (derCandidate, bool, string) {
	if o+8 > len(buf) {
		return derCandidate{}, false, "truncated header"
	}
	if !(buf[o+4] == 0x02 && buf[o+5] == 0x01 && buf[o+6] == 0x00 && buf[o+7] == 0x02) {
		return derCandidate{}, false, "not a PKCS#8 RSA private key header"
	}

	length := int(buf[o+2])<<8 | int(buf[o+3])
	end := 4 + length

	asn1Length := buf[o+8]
	var modLength, pubExpFieldLength int
	if asn1Length&0x80 == 0 {
		modLength = int(asn1Length)
		pubExpFieldLength = 1
	} else {
		numBytes := int(asn1Length & 0x7F)
		if numBytes > 8 {
			return derCandidate{}, false, "modulus > 64 bits not supported"
		}
		if o+9+numBytes > len(buf) {
			return derCandidate{}, false, "truncated modulus length"
		}
		pubExpFieldLength = 1 + numBytes
		modLength = int(buf[o+9])
		for i := 1; i < numBytes; i++ {
			modLength = (modLength << 8) | int(buf[o+9+i])
		}
	}

	pubExpOffset := o + 8 + pubExpFieldLength + modLength
	if pubExpOffset+1 > len(buf) || buf[pubExpOffset] != 0x02 {
		return derCandidate{}, false, "missing public exponent tag"
	}

	var pubExp int
	switch {
	case pubExpOffset+3 <= len(buf) && buf[pubExpOffset+1] == 0x01 && buf[pubExpOffset+2] == 0x01:
		pubExp = 1
	case pubExpOffset+5 <= len(buf) &&
		buf[pubExpOffset+1] == 0x03 && buf[pubExpOffset+2] == 0x01 &&
		buf[pubExpOffset+3] == 0x00 && buf[pubExpOffset+4] == 0x01:
		pubExp = 65537
	default:
		return derCandidate{}, false, "could not find public exponent"
	}

	return derCandidate{
		offset:         o,
		modulusBits:    (modLength - 1) * 8,
		publicExponent: pubExp,
		length:         end,
	}, true, ""
}

// rsaDERSearch scans [from, to) on even offsets for the {0x30, 0x82}
// PKCS#8 marker and validates each candidate (§4.3).
func rsaDERSearch(ctx *Context, buf []byte, from, to int, emit func(Result)) {
	const flag1, flag2 = 0x30, 0x82

	for i := from; i < to-1; i += 2 {
		c1, c2 := buf[i], buf[i+1]
		foundAt := -1
		if c1 == flag1 && c2 == flag2 {
			foundAt = i
		} else if c2 == flag1 && i+2 < to && buf[i+2] == flag2 {
			foundAt = i + 1
		}

		if foundAt == -1 {
			continue
		}

		cand, ok, reason := parseDER(buf, foundAt)
		if !ok {
			ctx.reject(foundAt, "rsa: %s", reason)
			continue
		}

		ctx.Count++
		emit(DerKey{
			OffsetField:    cand.offset,
			ModulusBits:    cand.modulusBits,
			PublicExponent: cand.publicExponent,
			Length:         cand.length,
		})
		// Skip the bytes containing the key; the outer i += 2 still runs.
		i += cand.length
	}
}

// rsaWindowsSearch is a literal scan for the four-byte ASCII "RSA2"
// signature (Windows PRIVATEKEYBLOB magic), §4.7.
func rsaWindowsSearch(ctx *Context, buf []byte, from, to int, emit func(Result)) {
	for i := from; i < to-3; i++ {
		if buf[i] == 'R' && buf[i+1] == 'S' && buf[i+2] == 'A' && buf[i+3] == '2' {
			ctx.Count++
			emit(RsaWinSignature{OffsetField: i})
		}
	}
}
