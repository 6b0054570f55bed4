package walkforward

import (
	"testing"

	"github.com/alejandrodnm/stratlab/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateGrid_CartesianWhenSmall(t *testing.T) {
	ranges := []domain.ParameterRange{
		{Name: "fast", Min: 5, Max: 15, Step: 5},  // 3 valores
		{Name: "slow", Min: 20, Max: 40, Step: 10}, // 3 valores
	}
	grid, err := GenerateGrid(ranges, 100, 1)
	require.NoError(t, err)
	assert.Len(t, grid, 9)

	seen := make(map[string]struct{})
	for _, c := range grid {
		seen[candidateKey(c)] = struct{}{}
	}
	assert.Len(t, seen, 9, "sin duplicados")
}

func TestGenerateGrid_SampledWhenOverCap(t *testing.T) {
	ranges := []domain.ParameterRange{
		{Name: "a", Min: 1, Max: 100, Step: 1},
		{Name: "b", Min: 1, Max: 100, Step: 1},
	}
	grid, err := GenerateGrid(ranges, 50, 7)
	require.NoError(t, err)
	assert.Len(t, grid, 50)

	// El ancla de punto medio (redondeada al lattice) abre la muestra.
	assert.Equal(t, 51.0, grid[0]["a"])
	assert.Equal(t, 51.0, grid[0]["b"])

	seen := make(map[string]struct{})
	for _, c := range grid {
		seen[candidateKey(c)] = struct{}{}
	}
	assert.Len(t, seen, 50)
}

func TestGenerateGrid_SampledIsDeterministicBySeed(t *testing.T) {
	ranges := []domain.ParameterRange{
		{Name: "a", Min: 1, Max: 500, Step: 1},
	}
	g1, err := GenerateGrid(ranges, 40, 99)
	require.NoError(t, err)
	g2, err := GenerateGrid(ranges, 40, 99)
	require.NoError(t, err)
	assert.Equal(t, g1, g2)
}

func TestGenerateGrid_InvalidRangeFailsFast(t *testing.T) {
	_, err := GenerateGrid([]domain.ParameterRange{{Name: "x", Min: 10, Max: 5, Step: 1}}, 100, 1)
	assert.Error(t, err)

	_, err = GenerateGrid([]domain.ParameterRange{{Name: "x", Min: 1, Max: 5, Step: 0}}, 100, 1)
	assert.Error(t, err)
}

func TestGenerateGrid_EmptyRanges(t *testing.T) {
	grid, err := GenerateGrid(nil, 100, 1)
	require.NoError(t, err)
	require.Len(t, grid, 1)
	assert.Empty(t, grid[0])
}
