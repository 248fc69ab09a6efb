// Package canonicalize provides the canonical JSON serialization and hashing
// helpers that every hashed artifact in the evaluator (traces, κ, proof
// graph, safety envelope, receipt, bundle) is built on top of.
package canonicalize

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"unicode/utf16"

	"golang.org/x/text/unicode/norm"
)

// JCS returns the canonical JSON representation of v.
//
// Key features:
//  1. Object keys are sorted by their UTF-16 code units, the same order
//     JavaScript's String.prototype.localeCompare uses by default — NOT
//     Go's native (UTF-8 byte) string ordering, which diverges for
//     characters outside the Basic Multilingual Plane. This is a hard
//     requirement: a general JSON library's "sort_keys" cannot be trusted
//     to match without confirming it uses the same comparison.
//  2. HTML escaping is disabled.
//  3. Arrays preserve given order; numbers are preserved via json.Number.
//  4. String leaves are NFC-normalized so visually identical but
//     differently-composed Unicode text hashes identically.
func JCS(v interface{}) ([]byte, error) {
	intermediate, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("canonicalize: pre-marshal failed: %w", err)
	}

	var generic interface{}
	dec := json.NewDecoder(bytes.NewReader(intermediate))
	dec.UseNumber()
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("canonicalize: intermediate decode failed: %w", err)
	}

	return marshalRecursive(generic)
}

// CanonicalHash returns the SHA-256 hex digest of the canonical JSON
// representation of v followed by a trailing newline, per spec.md §4.1:
// every hashed artifact is stable_stringify(x) + "\n".
func CanonicalHash(v interface{}) (string, error) {
	b, err := JCS(v)
	if err != nil {
		return "", err
	}
	return HashBytes(append(b, '\n')), nil
}

// HashBytes returns the lowercase hex SHA-256 digest of data.
func HashBytes(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// JCSString is JCS rendered as a string.
func JCSString(v interface{}) (string, error) {
	b, err := JCS(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// StableStringifyWithNewline returns stable_stringify(v) + "\n" exactly as
// described in spec.md §4.1, the byte sequence every hash in this module is
// computed over.
func StableStringifyWithNewline(v interface{}) ([]byte, error) {
	b, err := JCS(v)
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

func marshalRecursive(v interface{}) ([]byte, error) {
	switch t := v.(type) {
	case nil:
		return []byte("null"), nil
	case bool:
		if t {
			return []byte("true"), nil
		}
		return []byte("false"), nil
	case json.Number:
		return []byte(t.String()), nil
	case string:
		return encodeString(norm.NFC.String(t))
	case []interface{}:
		var buf bytes.Buffer
		buf.WriteByte('[')
		for i, elem := range t {
			if i > 0 {
				buf.WriteByte(',')
			}
			b, err := marshalRecursive(elem)
			if err != nil {
				return nil, err
			}
			buf.Write(b)
		}
		buf.WriteByte(']')
		return buf.Bytes(), nil
	case map[string]interface{}:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sortUTF16(keys)

		var buf bytes.Buffer
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := encodeString(k)
			if err != nil {
				return nil, err
			}
			buf.Write(kb)
			buf.WriteByte(':')
			vb, err := marshalRecursive(t[k])
			if err != nil {
				return nil, err
			}
			buf.Write(vb)
		}
		buf.WriteByte('}')
		return buf.Bytes(), nil
	default:
		// Fallback for unexpected concrete types (e.g. a float64 that slipped
		// through without json.Number).
		enc, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("canonicalize: unsupported value %T: %w", v, err)
		}
		return enc, nil
	}
}

func encodeString(s string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte{'\n'}), nil
}

// sortUTF16 sorts keys lexicographically by UTF-16 code unit, matching
// JavaScript's default (locale-insensitive) String.prototype.localeCompare
// ordering for object-key sorting. This intentionally differs from Go's
// native UTF-8 byte ordering for code points above U+FFFF.
func sortUTF16(keys []string) {
	// Insertion sort is adequate: key lists are small (element/rule/domain
	// counts, not corpus-sized), and determinism matters far more than
	// asymptotic complexity here.
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && utf16Less(keys[j], keys[j-1]); j-- {
			keys[j], keys[j-1] = keys[j-1], keys[j]
		}
	}
}

func utf16Less(a, b string) bool {
	au, bu := utf16.Encode([]rune(a)), utf16.Encode([]rune(b))
	n := len(au)
	if len(bu) < n {
		n = len(bu)
	}
	for i := 0; i < n; i++ {
		if au[i] != bu[i] {
			return au[i] < bu[i]
		}
	}
	return len(au) < len(bu)
}

// CompareUTF16 exposes utf16Less's ordering for callers (e.g. the trace
// builder) that need the identical comparator for a non-JSON sort key.
func CompareUTF16(a, b string) int {
	if a == b {
		return 0
	}
	if utf16Less(a, b) {
		return -1
	}
	return 1
}
