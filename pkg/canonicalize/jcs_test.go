package canonicalize

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJCSKeyOrderingIndependence(t *testing.T) {
	a := map[string]interface{}{"b": 1, "a": 2, "c": 3}
	b := map[string]interface{}{"c": 3, "a": 2, "b": 1}

	ja, err := JCSString(a)
	require.NoError(t, err)
	jb, err := JCSString(b)
	require.NoError(t, err)
	assert.Equal(t, ja, jb)
	assert.Equal(t, `{"a":2,"b":1,"c":3}`, ja)
}

func TestJCSNoHTMLEscaping(t *testing.T) {
	s, err := JCSString(map[string]interface{}{"x": "<b>&"})
	require.NoError(t, err)
	assert.Contains(t, s, "<b>&")
}

func TestJCSUTF16KeyOrderingDiffersFromUTF8(t *testing.T) {
	// U+10000 encodes as a UTF-16 surrogate pair starting 0xD800, which
	// sorts BEFORE U+FFFF (0xFFFF) under UTF-16 code-unit comparison, even
	// though U+10000 is the numerically larger Unicode code point.
	bmpMax := "\uffff"
	supplementary := "\U00010000"
	keys := []string{bmpMax, supplementary, "a"}
	sortUTF16(keys)
	assert.Equal(t, []string{"a", supplementary, bmpMax}, keys)
}

func TestJCSNFCNormalizesStrings(t *testing.T) {
	// U+00E9 (single precomposed codepoint, NFC) vs U+0065 U+0301 (letter
	// "e" + combining acute accent, NFD): visually identical, byte-different.
	nfc := "\u00e9"
	nfd := "e\u0301"

	hNFC, err := CanonicalHash(map[string]interface{}{"v": nfc})
	require.NoError(t, err)
	hNFD, err := CanonicalHash(map[string]interface{}{"v": nfd})
	require.NoError(t, err)
	assert.Equal(t, hNFC, hNFD)
}

func TestCanonicalHashTrailingNewline(t *testing.T) {
	b, err := JCS(map[string]interface{}{"a": 1})
	require.NoError(t, err)
	want := HashBytes(append(b, '\n'))

	got, err := CanonicalHash(map[string]interface{}{"a": 1})
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestStableStringifyWithNewlineEndsInNewline(t *testing.T) {
	b, err := StableStringifyWithNewline(map[string]interface{}{"a": 1})
	require.NoError(t, err)
	require.NotEmpty(t, b)
	assert.Equal(t, byte('\n'), b[len(b)-1])
}

func TestCompareUTF16Consistency(t *testing.T) {
	assert.Equal(t, 0, CompareUTF16("a", "a"))
	assert.Equal(t, -1, CompareUTF16("a", "b"))
	assert.Equal(t, 1, CompareUTF16("b", "a"))
}

// TestCanonicalHashDeterminism is spec.md §8's canonicalization law:
// hashing the same logical value twice, via maps built in different key
// insertion orders, always produces the same digest.
func TestCanonicalHashDeterminism(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("canonical hash is independent of map insertion order", prop.ForAll(
		func(keys []string, values []string) bool {
			obj1 := map[string]interface{}{}
			obj2 := map[string]interface{}{}
			for i := 0; i < len(keys) && i < len(values); i++ {
				if keys[i] == "" {
					continue
				}
				obj1[keys[i]] = values[i]
			}
			// Re-insert in reverse order into obj2, keeping each key's
			// last value as obj1 does.
			for i := len(keys) - 1; i >= 0; i-- {
				if i >= len(values) || keys[i] == "" {
					continue
				}
				if _, seen := obj2[keys[i]]; seen {
					continue
				}
				obj2[keys[i]] = values[i]
			}

			h1, err1 := CanonicalHash(obj1)
			h2, err2 := CanonicalHash(obj2)
			if err1 != nil || err2 != nil {
				return err1 != nil && err2 != nil
			}
			return h1 == h2
		},
		gen.SliceOf(gen.AlphaString()),
		gen.SliceOf(gen.AlphaString()),
	))

	properties.TestingRun(t)
}

// TestJCSRoundTripIsIdempotent: re-canonicalizing already-canonical bytes
// (decoded back to a generic value) yields byte-identical output.
func TestJCSRoundTripIsIdempotent(t *testing.T) {
	v := map[string]interface{}{
		"z": []interface{}{1, 2, "three"},
		"a": true,
		"m": nil,
	}
	b1, err := JCS(v)
	require.NoError(t, err)

	var decoded interface{}
	dec := json.NewDecoder(bytes.NewReader(b1))
	dec.UseNumber()
	require.NoError(t, dec.Decode(&decoded))

	b2, err := JCS(decoded)
	require.NoError(t, err)
	assert.Equal(t, string(b1), string(b2))
}
