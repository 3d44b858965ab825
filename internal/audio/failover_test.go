package audio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testPCM = []byte{0, 1, 2, 3}

func TestFailover_PromotesFirstSuccess(t *testing.T) {
	failing := NewMock("failing")
	failing.SetFailing(true)
	succeeding := NewMock("succeeding")
	chain := NewFailover(zap.NewNop(), failing, succeeding)

	h, err := chain.Play(testPCM, 22050)
	require.NoError(t, err)
	require.NotNil(t, h)

	// The failing backend is gone for good and never retried.
	_, err = chain.Play(testPCM, 22050)
	require.NoError(t, err)
	_, err = chain.Play(testPCM, 22050)
	require.NoError(t, err)

	assert.Equal(t, 1, failing.PlayCalls())
	assert.Equal(t, 1, failing.StopAllCalls())
	assert.Equal(t, 3, succeeding.PlayCalls())
	assert.Equal(t, 1, chain.Remaining())
}

func TestFailover_StickyPreference(t *testing.T) {
	first := NewMock("first")
	first.SetFailing(true)
	second := NewMock("second")
	third := NewMock("third")
	chain := NewFailover(zap.NewNop(), first, second, third)

	_, err := chain.Play(testPCM, 22050)
	require.NoError(t, err)
	_, err = chain.Play(testPCM, 22050)
	require.NoError(t, err)

	// second won the first call and stays preferred; third is never tried.
	assert.Equal(t, 2, second.PlayCalls())
	assert.Equal(t, 0, third.PlayCalls())
	assert.Equal(t, 2, chain.Remaining())
}

func TestFailover_AllFail(t *testing.T) {
	a := NewMock("a")
	a.SetFailing(true)
	b := NewMock("b")
	b.SetFailing(true)
	chain := NewFailover(zap.NewNop(), a, b)

	h, err := chain.Play(testPCM, 22050)

	assert.Nil(t, h)
	assert.ErrorIs(t, err, ErrNoPlayerAvailable)
	assert.Equal(t, 0, chain.Remaining())
}

func TestFailover_StopAllForwards(t *testing.T) {
	a := NewMock("a")
	b := NewMock("b")
	chain := NewFailover(zap.NewNop(), a, b)

	chain.StopAll()

	assert.Equal(t, 1, a.StopAllCalls())
	assert.Equal(t, 1, b.StopAllCalls())
}

func TestFailover_SetVolumeForwards(t *testing.T) {
	a := NewMock("a")
	b := NewMock("b")
	chain := NewFailover(zap.NewNop(), a, b)

	chain.SetVolume(0.25)

	assert.InDelta(t, 0.25, a.Volume(), 1e-9)
	assert.InDelta(t, 0.25, b.Volume(), 1e-9)
}

func TestMockHandle_StopIdempotent(t *testing.T) {
	m := NewMock("m")
	h, err := m.Play(testPCM, 22050)
	require.NoError(t, err)

	h.Stop()
	h.Stop()

	assert.True(t, m.Handles()[0].Stopped())
}
