package audio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSelectFrom_NoCandidates(t *testing.T) {
	assert.Nil(t, selectFrom(zap.NewNop(), nil))
}

func TestSelectFrom_SingleCandidateUsedDirectly(t *testing.T) {
	only := NewMock("only")

	p := selectFrom(zap.NewNop(), []Player{only})

	require.NotNil(t, p)
	assert.Equal(t, "only", p.Name())
	_, isChain := p.(*Failover)
	assert.False(t, isChain)
}

func TestSelectFrom_MultipleCandidatesChained(t *testing.T) {
	first := NewMock("first")
	second := NewMock("second")

	p := selectFrom(zap.NewNop(), []Player{first, second})

	chain, ok := p.(*Failover)
	require.True(t, ok)
	assert.Equal(t, 2, chain.Remaining())
}
