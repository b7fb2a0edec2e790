package ingest

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/unicode"
)

const (
	DefaultSampleSize = 10000
	DefaultFallback   = "utf-8"
)

// DefaultCandidates is the detection order used when no list is configured.
var DefaultCandidates = []string{"utf-8", "gbk", "gb2312", "latin1", "cp1252", "iso-8859-1"}

var (
	ErrUnknownEncoding = errors.New("unknown encoding")
	ErrInvalidEncoding = errors.New("data is not valid in encoding")
)

// Encoding is a named text encoding with a strict validity check.
type Encoding struct {
	Name     string
	codec    encoding.Encoding
	validate func(b []byte, complete bool) bool
}

// Valid reports whether b decodes without error. When complete is false, b is a
// prefix of a longer stream and a multi-byte sequence cut at the end is allowed.
func (e Encoding) Valid(b []byte, complete bool) bool {
	return e.validate(b, complete)
}

var encodingTable = map[string]Encoding{
	"utf-8":      {Name: "utf-8", codec: unicode.UTF8, validate: validUTF8},
	"gbk":        {Name: "gbk", codec: simplifiedchinese.GBK, validate: validGBK},
	"gb2312":     {Name: "gb2312", codec: simplifiedchinese.GBK, validate: validGB2312},
	"latin1":     {Name: "latin1", codec: charmap.ISO8859_1, validate: validAny},
	"iso-8859-1": {Name: "iso-8859-1", codec: charmap.ISO8859_1, validate: validAny},
	"cp1252":     {Name: "cp1252", codec: charmap.Windows1252, validate: validCP1252},
}

var encodingAliases = map[string]string{
	"utf8":         "utf-8",
	"u8":           "utf-8",
	"cp936":        "gbk",
	"936":          "gbk",
	"ms936":        "gbk",
	"gb-2312":      "gb2312",
	"euc-cn":       "gb2312",
	"euccn":        "gb2312",
	"latin-1":      "latin1",
	"l1":           "latin1",
	"iso8859-1":    "iso-8859-1",
	"iso-8859_1":   "iso-8859-1",
	"8859":         "iso-8859-1",
	"windows-1252": "cp1252",
	"win1252":      "cp1252",
}

// LookupEncoding resolves an encoding name case-insensitively, including
// common aliases such as "utf8", "cp936" or "windows-1252".
func LookupEncoding(name string) (Encoding, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	key = strings.ReplaceAll(key, "_", "-")
	if alias, ok := encodingAliases[key]; ok {
		key = alias
	}
	enc, ok := encodingTable[key]
	if !ok {
		return Encoding{}, fmt.Errorf("%w: %q", ErrUnknownEncoding, name)
	}
	return enc, nil
}

// DetectEncoding returns the first candidate that accepts sample. If none does,
// it returns fallback and matched=false.
func DetectEncoding(sample []byte, candidates []Encoding, fallback Encoding, complete bool) (enc Encoding, matched bool) {
	for _, c := range candidates {
		if c.Valid(sample, complete) {
			return c, true
		}
	}
	return fallback, false
}

// Resolver holds the ordered candidate list used for detection and retries.
type Resolver struct {
	candidates []Encoding
	fallback   Encoding
	sampleSize int
}

func NewResolver(names []string, fallback string, sampleSize int) (*Resolver, error) {
	if len(names) == 0 {
		names = DefaultCandidates
	}
	if fallback == "" {
		fallback = DefaultFallback
	}
	if sampleSize <= 0 {
		sampleSize = DefaultSampleSize
	}

	candidates := make([]Encoding, 0, len(names))
	for _, name := range names {
		enc, err := LookupEncoding(name)
		if err != nil {
			return nil, fmt.Errorf("candidate encodings: %w", err)
		}
		candidates = append(candidates, enc)
	}

	fb, err := LookupEncoding(fallback)
	if err != nil {
		return nil, fmt.Errorf("fallback encoding: %w", err)
	}

	return &Resolver{candidates: candidates, fallback: fb, sampleSize: sampleSize}, nil
}

// DefaultResolver uses the built-in candidate list, utf-8 fallback and a 10KB sample.
func DefaultResolver() *Resolver {
	r, err := NewResolver(nil, "", 0)
	if err != nil {
		panic(err)
	}
	return r
}

func (r *Resolver) Candidates() []Encoding { return r.candidates }

// Detect inspects at most sampleSize leading bytes of data.
func (r *Resolver) Detect(data []byte) (Encoding, bool) {
	sample, complete := data, true
	if len(sample) > r.sampleSize {
		sample, complete = data[:r.sampleSize], false
	}
	return DetectEncoding(sample, r.candidates, r.fallback, complete)
}

// Decode converts data to UTF-8 text, failing on any invalid sequence.
func Decode(data []byte, enc Encoding) (string, error) {
	if !enc.Valid(data, true) {
		return "", fmt.Errorf("%w %s", ErrInvalidEncoding, enc.Name)
	}
	if enc.Name == "utf-8" {
		return stripBOM(string(data)), nil
	}
	out, err := enc.codec.NewDecoder().Bytes(data)
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", enc.Name, err)
	}
	return stripBOM(string(out)), nil
}

// DecodeLossy decodes data as UTF-8, replacing every invalid byte with U+FFFD.
func DecodeLossy(data []byte) string {
	out, err := unicode.UTF8.NewDecoder().Bytes(data)
	if err != nil {
		return stripBOM(strings.ToValidUTF8(string(data), "\ufffd"))
	}
	return stripBOM(string(out))
}

func stripBOM(s string) string {
	return strings.TrimPrefix(s, "\ufeff")
}

func validAny([]byte, bool) bool { return true }

func validUTF8(b []byte, complete bool) bool {
	if utf8.Valid(b) {
		return true
	}
	if complete {
		return false
	}
	for cut := 1; cut < utf8.UTFMax && cut <= len(b); cut++ {
		head, tail := b[:len(b)-cut], b[len(b)-cut:]
		if utf8.RuneStart(tail[0]) && !utf8.FullRune(tail) && utf8.Valid(head) {
			return true
		}
	}
	return false
}

func validCP1252(b []byte, _ bool) bool {
	for _, c := range b {
		switch c {
		case 0x81, 0x8D, 0x8F, 0x90, 0x9D:
			return false
		}
	}
	return true
}

func validGBK(b []byte, complete bool) bool {
	return validDoubleByte(b, complete, simplifiedchinese.GBK,
		func(lead byte) bool { return lead >= 0x81 && lead <= 0xFE },
		func(trail byte) bool { return (trail >= 0x40 && trail <= 0x7E) || (trail >= 0x80 && trail <= 0xFE) },
	)
}

func validGB2312(b []byte, complete bool) bool {
	return validDoubleByte(b, complete, simplifiedchinese.GBK,
		func(lead byte) bool { return lead >= 0xA1 && lead <= 0xF7 },
		func(trail byte) bool { return trail >= 0xA1 && trail <= 0xFE },
	)
}

// validDoubleByte checks byte ranges first, then makes sure every pair maps to
// a character. The x/text decoders substitute U+FFFD instead of failing.
func validDoubleByte(b []byte, complete bool, codec encoding.Encoding, lead, trail func(byte) bool) bool {
	end := len(b)
	for i := 0; i < len(b); i++ {
		c := b[i]
		if c < 0x80 {
			continue
		}
		if !lead(c) {
			return false
		}
		if i+1 == len(b) {
			if complete {
				return false
			}
			end = i
			break
		}
		if !trail(b[i+1]) {
			return false
		}
		i++
	}

	out, err := codec.NewDecoder().Bytes(b[:end])
	if err != nil {
		return false
	}
	return !bytes.ContainsRune(out, utf8.RuneError)
}
