// Package canonical turns structured documents into deterministic byte
// serializations and 32-byte keccak commitments.
//
// Two documents with the same logical content always serialize to identical
// bytes: mapping keys are sorted lexicographically, no whitespace is emitted
// between tokens, and numbers and strings follow a single fixed formatting
// scheme. The resulting form is what gets hashed, so insertion order of keys
// never affects the commitment.
package canonical

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"unicode/utf16"
	"unicode/utf8"

	"golang.org/x/crypto/sha3"
)

// Commitment is a fixed 32-byte digest over a canonical serialization.
// It is a value type and freely copyable. A Commitment is always computed
// from source data, never re-derived from another hash.
type Commitment [32]byte

// Zero is the all-zero sentinel commitment. It stands for "no prior state
// anchored" in authorship anchors and is a documented value, not an error.
var Zero Commitment

// Document is an arbitrary string-keyed mapping to be committed.
// Values may be strings, booleans, nil, integers, floats, json.Number,
// []interface{} and nested Documents / map[string]interface{}.
type Document = map[string]interface{}

// Bytes returns the commitment as a byte slice copy.
func (c Commitment) Bytes() []byte {
	out := make([]byte, 32)
	copy(out, c[:])
	return out
}

// Hex returns the 0x-prefixed hex form.
func (c Commitment) Hex() string {
	return "0x" + hex.EncodeToString(c[:])
}

// IsZero reports whether the commitment is the all-zero sentinel.
func (c Commitment) IsZero() bool {
	return c == Zero
}

// String implements fmt.Stringer.
func (c Commitment) String() string {
	return c.Hex()
}

// ParseCommitment parses a 0x-prefixed (or bare) 64-char hex string.
func ParseCommitment(s string) (Commitment, error) {
	var c Commitment
	s = strings.TrimPrefix(s, "0x")
	if len(s) != 64 {
		return c, fmt.Errorf("commitment must be 32 bytes of hex, got %d chars", len(s))
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return c, fmt.Errorf("decode commitment hex: %w", err)
	}
	copy(c[:], raw)
	return c, nil
}

// SerializationError reports a document value outside the supported set.
// Binary blobs must be pre-encoded to strings by the caller.
type SerializationError struct {
	Path  string
	Value interface{}
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("canonical: unsupported value of type %T at %q", e.Value, e.Path)
}

// Hash serializes the document canonically and returns the keccak-256
// commitment over the UTF-8 bytes. Pure function: the same document always
// yields the same Commitment.
func Hash(doc interface{}) (Commitment, error) {
	raw, err := Marshal(doc)
	if err != nil {
		return Commitment{}, err
	}
	return HashBytes(raw), nil
}

// HashBytes returns the keccak-256 commitment over raw bytes. Used for
// opaque content (work products) that is not a structured document.
func HashBytes(raw []byte) Commitment {
	var c Commitment
	h := sha3.NewLegacyKeccak256()
	h.Write(raw)
	h.Sum(c[:0])
	return c
}

// HashText returns the keccak-256 commitment over the UTF-8 bytes of text.
func HashText(text string) Commitment {
	return HashBytes([]byte(text))
}

// Marshal emits the canonical serialization of doc: keys sorted, separators
// "," and ":" with no surrounding whitespace, integers without exponent
// notation, strings escaped to 7-bit ASCII.
func Marshal(doc interface{}) ([]byte, error) {
	var b strings.Builder
	if err := appendValue(&b, "$", doc); err != nil {
		return nil, err
	}
	return []byte(b.String()), nil
}

func appendValue(b *strings.Builder, path string, v interface{}) error {
	switch val := v.(type) {
	case nil:
		b.WriteString("null")
	case bool:
		if val {
			b.WriteString("true")
		} else {
			b.WriteString("false")
		}
	case string:
		appendString(b, val)
	case int:
		b.WriteString(strconv.FormatInt(int64(val), 10))
	case int32:
		b.WriteString(strconv.FormatInt(int64(val), 10))
	case int64:
		b.WriteString(strconv.FormatInt(val, 10))
	case uint:
		b.WriteString(strconv.FormatUint(uint64(val), 10))
	case uint32:
		b.WriteString(strconv.FormatUint(uint64(val), 10))
	case uint64:
		b.WriteString(strconv.FormatUint(val, 10))
	case float64:
		return appendFloat(b, path, val)
	case float32:
		return appendFloat(b, path, float64(val))
	case json.Number:
		// Pass decoded JSON numbers through verbatim so a decode/re-encode
		// round trip is byte stable.
		b.WriteString(val.String())
	case []interface{}:
		b.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				b.WriteByte(',')
			}
			if err := appendValue(b, fmt.Sprintf("%s[%d]", path, i), item); err != nil {
				return err
			}
		}
		b.WriteByte(']')
	case []string:
		b.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				b.WriteByte(',')
			}
			appendString(b, item)
		}
		b.WriteByte(']')
	case map[string]interface{}:
		return appendObject(b, path, val)
	case map[string]string:
		m := make(map[string]interface{}, len(val))
		for k, item := range val {
			m[k] = item
		}
		return appendObject(b, path, m)
	default:
		return &SerializationError{Path: path, Value: v}
	}
	return nil
}

func appendObject(b *strings.Builder, path string, m map[string]interface{}) error {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		appendString(b, k)
		b.WriteByte(':')
		if err := appendValue(b, path+"."+k, m[k]); err != nil {
			return err
		}
	}
	b.WriteByte('}')
	return nil
}

// appendFloat writes a float using a fixed rule: integral values in range are
// written as plain integers, everything else in shortest decimal form.
// NaN and infinities have no serialization.
func appendFloat(b *strings.Builder, path string, f float64) error {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return &SerializationError{Path: path, Value: f}
	}
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		b.WriteString(strconv.FormatInt(int64(f), 10))
		return nil
	}
	b.WriteString(strconv.FormatFloat(f, 'g', -1, 64))
	return nil
}

const hexDigits = "0123456789abcdef"

// appendString writes a JSON string literal escaped to 7-bit ASCII, matching
// the emitter the anchored documents were originally produced with. Code
// points above U+FFFF are written as surrogate pairs.
func appendString(b *strings.Builder, s string) {
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		case '\b':
			b.WriteString(`\b`)
		case '\f':
			b.WriteString(`\f`)
		default:
			switch {
			case r < 0x20:
				appendEscaped(b, uint16(r))
			case r < utf8.RuneSelf:
				b.WriteByte(byte(r))
			case r > 0xFFFF:
				hi, lo := utf16.EncodeRune(r)
				appendEscaped(b, uint16(hi))
				appendEscaped(b, uint16(lo))
			default:
				appendEscaped(b, uint16(r))
			}
		}
	}
	b.WriteByte('"')
}

func appendEscaped(b *strings.Builder, u uint16) {
	b.WriteString(`\u`)
	b.WriteByte(hexDigits[u>>12&0xF])
	b.WriteByte(hexDigits[u>>8&0xF])
	b.WriteByte(hexDigits[u>>4&0xF])
	b.WriteByte(hexDigits[u&0xF])
}
