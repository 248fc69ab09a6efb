package bundle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/periodic-system/evaluator/pkg/dsse"
)

func TestBuildProducesStableHash(t *testing.T) {
	p := Params{
		Profile:             "ship",
		ReceiptHash:         "r-hash",
		SPELSemanticsHash:   "s-hash",
		ProfileContractHash: "p-hash",
		EnvelopeHash:        "e-hash",
	}

	b1, h1, err := Build(p)
	require.NoError(t, err)
	b2, h2, err := Build(p)
	require.NoError(t, err)

	assert.Equal(t, h1, h2)
	assert.Equal(t, SchemaID, b1.Schema)
	assert.Equal(t, b1, b2)
}

func TestBuildDiffersWhenDSSEEnvelopeDiffers(t *testing.T) {
	base := Params{Profile: "ship", ReceiptHash: "r"}
	withSig := base
	withSig.DSSEEnvelope = dsse.Envelope{PayloadType: "application/json", Payload: "eyJhIjoxfQ=="}

	_, h1, err := Build(base)
	require.NoError(t, err)
	_, h2, err := Build(withSig)
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2)
}

func TestBytesEndsInNewline(t *testing.T) {
	b, _, err := Build(Params{Profile: "ship"})
	require.NoError(t, err)
	data, err := Bytes(b)
	require.NoError(t, err)
	require.NotEmpty(t, data)
	assert.Equal(t, byte('\n'), data[len(data)-1])
}
