package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Speedtest_Selector_Go/pkg/model"
)

func rankedOf(ids ...string) []model.RankedServer {
	out := make([]model.RankedServer, len(ids))
	for i, id := range ids {
		out[i] = model.RankedServer{ServerRecord: model.ServerRecord{ID: id}, DistanceKm: float64(i)}
	}
	return out
}

func TestSelect_Auto(t *testing.T) {
	got, err := Select(rankedOf("a", "b", "c"), Automatic())
	require.NoError(t, err)
	assert.Equal(t, "a", got.ID)
}

func TestSelect_Empty(t *testing.T) {
	_, err := Select(nil, Automatic())
	assert.ErrorIs(t, err, ErrNoCandidate)

	_, err = Select([]model.RankedServer{}, Explicit(1))
	assert.ErrorIs(t, err, ErrNoCandidate)
}

func TestSelect_Explicit(t *testing.T) {
	ranked := rankedOf("a", "b", "c")

	tests := []struct {
		index   int
		want    string
		wantErr bool
	}{
		{0, "", true},
		{1, "a", false},
		{2, "b", false},
		{3, "c", false},
		{4, "", true},
		{-2, "", true},
	}
	for _, tt := range tests {
		t.Run(Explicit(tt.index).String(), func(t *testing.T) {
			got, err := Select(ranked, Explicit(tt.index))
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidSelection)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.ID)
		})
	}
}

func TestSelect_UnknownMode(t *testing.T) {
	_, err := Select(rankedOf("a"), Selection{Mode: SelectionMode(9)})
	assert.ErrorIs(t, err, ErrInvalidSelection)
}

func TestSelectionString(t *testing.T) {
	assert.Equal(t, "auto", Automatic().String())
	assert.Equal(t, "#3", Explicit(3).String())
}
