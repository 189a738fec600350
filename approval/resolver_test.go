package approval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveOutcomeLabelMatch(t *testing.T) {
	labels := []string{"Yes", "No"}
	tokens := []string{"T1", "T2"}

	for _, want := range []string{"yes", "Yes", "YES", "  yes  "} {
		tokenID, label, err := ResolveOutcome(labels, tokens, want)
		require.NoError(t, err, "label %q", want)
		assert.Equal(t, "T1", tokenID)
		assert.Equal(t, "Yes", label)
	}

	tokenID, label, err := ResolveOutcome(labels, tokens, "no")
	require.NoError(t, err)
	assert.Equal(t, "T2", tokenID)
	assert.Equal(t, "No", label)
}

func TestResolveOutcomeUnknownLabel(t *testing.T) {
	_, _, err := ResolveOutcome([]string{"Yes", "No"}, []string{"T1", "T2"}, "Maybe")
	assert.ErrorIs(t, err, ErrUnknownOutcome)
}

func TestResolveOutcomeDefaultsToFirst(t *testing.T) {
	tokenID, label, err := ResolveOutcome([]string{"Yes", "No"}, []string{"T1", "T2"}, "")
	require.NoError(t, err)
	assert.Equal(t, "T1", tokenID)
	assert.Equal(t, "Yes", label)

	// No labels at all still defaults to the first instrument.
	tokenID, label, err = ResolveOutcome(nil, []string{"T1", "T2"}, "")
	require.NoError(t, err)
	assert.Equal(t, "T1", tokenID)
	assert.Equal(t, "", label)
}

func TestResolveOutcomeHeuristicWithoutLabels(t *testing.T) {
	// Labels missing or length-mismatched: fall back to yes/no positions.
	tokenID, _, err := ResolveOutcome(nil, []string{"T1", "T2"}, "yes")
	require.NoError(t, err)
	assert.Equal(t, "T1", tokenID)

	tokenID, _, err = ResolveOutcome(nil, []string{"T1", "T2"}, "NO")
	require.NoError(t, err)
	assert.Equal(t, "T2", tokenID)

	// "no" with a single instrument has nowhere to land.
	_, _, err = ResolveOutcome(nil, []string{"T1"}, "no")
	assert.ErrorIs(t, err, ErrOutcomeUnresolvable)

	// Arbitrary labels without a label list cannot be resolved.
	_, _, err = ResolveOutcome(nil, []string{"T1", "T2"}, "Lakers")
	assert.ErrorIs(t, err, ErrOutcomeUnresolvable)
}

func TestResolveOutcomeNoInstruments(t *testing.T) {
	_, _, err := ResolveOutcome([]string{"Yes"}, nil, "yes")
	assert.ErrorIs(t, err, ErrNoTradableInstruments)

	_, _, err = ResolveOutcome(nil, []string{}, "")
	assert.ErrorIs(t, err, ErrNoTradableInstruments)
}
