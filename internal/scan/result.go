package scan

// Result is the sum type of everything a scanner can emit (§3 DATA MODEL).
// Concrete types below are the only implementations; callers should type
// switch on the concrete type rather than relying on inheritance.
type Result interface {
	// Offset returns the absolute buffer offset the result was found at.
	Offset() int
	isResult()
}

// DerKey is a DER/PKCS#8-encoded RSA private key found by the DER parser
// (C3).
type DerKey struct {
	OffsetField    int
	ModulusBits    int
	PublicExponent int
	Length         int // total DER blob length in bytes, from offset
}

func (k DerKey) Offset() int { return k.OffsetField }
func (DerKey) isResult()     {}

// AesKey is an expanded AES key schedule found in the buffer (C2).
type AesKey struct {
	OffsetField    int
	Bits           int // 128, 192, or 256
	ScheduleBytes  []byte
}

func (k AesKey) Offset() int { return k.OffsetField }
func (AesKey) isResult()     {}

// SerpentKey is an expanded Serpent-256 key schedule found in the buffer
// (C2).
type SerpentKey struct {
	OffsetField   int
	ScheduleBytes []byte
}

func (k SerpentKey) Offset() int { return k.OffsetField }
func (SerpentKey) isResult()     {}

// TwofishVariant names one of the four recognized in-memory Twofish key
// schedule layouts (C2/C4).
type TwofishVariant int

const (
	// TwofishTrueCrypt is the twofish_search_old / TrueCrypt layout:
	// l_key[40], s_key[4], mk_tab[1024], k_len.
	TwofishTrueCrypt TwofishVariant = iota
	// TwofishOptimized is the K[40], k_len, QF[1024] layout.
	TwofishOptimized
	// TwofishGPGSSH is the s[4][256], w[8], k[32] layout (GPG/Linux and SSH
	// implementations are isomorphic here).
	TwofishGPGSSH
	// TwofishNettle is the k[40], s[4][256] layout.
	TwofishNettle
)

func (v TwofishVariant) String() string {
	switch v {
	case TwofishTrueCrypt:
		return "TrueCrypt"
	case TwofishOptimized:
		return "Optimized"
	case TwofishGPGSSH:
		return "GPG/SSH"
	case TwofishNettle:
		return "Nettle"
	default:
		return "unknown"
	}
}

// TwofishKey is an expanded Twofish key schedule found in one of the four
// recognized layouts (C4), or the raw TrueCrypt layout recognized directly
// by twofishSearchOld's field and entropy checks (twofish_search_old).
type TwofishKey struct {
	OffsetField   int
	Variant       TwofishVariant
	ScheduleBytes []byte
}

func (k TwofishKey) Offset() int { return k.OffsetField }
func (TwofishKey) isResult()     {}

// EntropyBlob is a contiguous span over which the chosen statistical
// metric stayed at or above threshold in successive windows (C5).
type EntropyBlob struct {
	Start, End int
	Bytes      int
	Windows    float64
	MeanMetric float64
}

func (b EntropyBlob) Offset() int { return b.Start }
func (EntropyBlob) isResult()     {}

// RsaWinSignature is a hit on the Windows PRIVATEKEYBLOB "RSA2" magic.
type RsaWinSignature struct {
	OffsetField int
}

func (s RsaWinSignature) Offset() int { return s.OffsetField }
func (RsaWinSignature) isResult()     {}
