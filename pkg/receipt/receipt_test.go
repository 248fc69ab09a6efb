package receipt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/periodic-system/evaluator/pkg/model"
)

func TestAssembleDerivesDeterministicVerifierID(t *testing.T) {
	p := Params{ProfileContractHash: "abc123"}
	r1, h1, err := Assemble(p)
	require.NoError(t, err)
	r2, h2, err := Assemble(p)
	require.NoError(t, err)

	assert.Equal(t, r1.Verifier.ID, r2.Verifier.ID)
	assert.Equal(t, h1, h2)
	assert.NotEmpty(t, r1.Verifier.ID)
}

func TestAssembleHonorsExplicitVerifierID(t *testing.T) {
	p := Params{ProfileContractHash: "abc123", VerifierID: "explicit-id"}
	r, _, err := Assemble(p)
	require.NoError(t, err)
	assert.Equal(t, "explicit-id", r.Verifier.ID)
}

func TestAssembleDifferentContractsYieldDifferentVerifierIDs(t *testing.T) {
	r1, _, err := Assemble(Params{ProfileContractHash: "a"})
	require.NoError(t, err)
	r2, _, err := Assemble(Params{ProfileContractHash: "b"})
	require.NoError(t, err)
	assert.NotEqual(t, r1.Verifier.ID, r2.Verifier.ID)
}

func TestKappaIndexStripsVolatileWiringFields(t *testing.T) {
	idx1 := &model.Index{
		Schema:  "periodic-system.index.v1",
		Systems: []string{"sys/a.json"},
	}
	idx2 := &model.Index{
		Schema:  "periodic-system.index.v1",
		Systems: []string{"sys/b.json", "sys/c.json"},
	}

	h1, err := KappaIndex(idx1)
	require.NoError(t, err)
	h2, err := KappaIndex(idx2)
	require.NoError(t, err)

	// Systems is a volatile wiring field: differing only in that field
	// must not change the kappa(index) hash.
	assert.Equal(t, h1, h2)
}

func TestKappaIndexChangesWithNonVolatileFields(t *testing.T) {
	idx1 := &model.Index{Schema: "v1"}
	idx2 := &model.Index{Schema: "v2"}

	h1, err := KappaIndex(idx1)
	require.NoError(t, err)
	h2, err := KappaIndex(idx2)
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2)
}
