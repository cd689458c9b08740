package postprocess

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/go-anchors/boxes"
)

func boxTensor(shape []int, data ...float32) *tensor.Dense {
	return tensor.New(tensor.WithShape(shape...), tensor.WithBacking(data))
}

func gridAnchors() *tensor.Dense {
	return boxTensor([]int{4, 4},
		0, 0, 10, 10,
		0, 10, 10, 20,
		10, 0, 20, 10,
		10, 10, 20, 20,
	)
}

func TestDetectionsDecodesAndFilters(t *testing.T) {
	anchorSet := gridAnchors()
	// Zero deltas decode every anchor to itself.
	deltas := boxTensor([]int{4, 4}, make([]float32, 16)...)
	scores := boxTensor([]int{4, 3},
		0.9, 0.05, 0.05, // anchor 0: class 0, kept
		0.2, 0.3, 0.1, // anchor 1: best 0.3, dropped
		0.1, 0.2, 0.7, // anchor 2: class 2, kept
		0.1, 0.95, 0.3, // anchor 3: class 1, kept, highest score
	)

	got, err := Detections(anchorSet, deltas, scores, 0.5)
	require.NoError(t, err)
	require.Len(t, got, 3)

	// Sorted by descending score.
	assert.Equal(t, Result{Box: boxes.Box{Top: 10, Left: 10, Bottom: 20, Right: 20}, Score: 0.95, Class: 1}, got[0])
	assert.Equal(t, Result{Box: boxes.Box{Top: 0, Left: 0, Bottom: 10, Right: 10}, Score: 0.9, Class: 0}, got[1])
	assert.Equal(t, Result{Box: boxes.Box{Top: 10, Left: 0, Bottom: 20, Right: 10}, Score: 0.7, Class: 2}, got[2])
}

func TestDetectionsAppliesDeltas(t *testing.T) {
	anchorSet := boxTensor([]int{1, 4}, 0, 0, 10, 10)
	// Shift the center down half an anchor height.
	deltas := boxTensor([]int{1, 4}, 0.5, 0, 0, 0)
	scores := boxTensor([]int{1, 1}, 0.8)

	got, err := Detections(anchorSet, deltas, scores, 0.5)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.InDelta(t, 5, got[0].Box.Top, 1e-4)
	assert.InDelta(t, 15, got[0].Box.Bottom, 1e-4)
	assert.InDelta(t, 0, got[0].Box.Left, 1e-4)
	assert.InDelta(t, 10, got[0].Box.Right, 1e-4)
}

func TestDetectionsNoneAboveThreshold(t *testing.T) {
	anchorSet := boxTensor([]int{1, 4}, 0, 0, 10, 10)
	deltas := boxTensor([]int{1, 4}, 0, 0, 0, 0)
	scores := boxTensor([]int{1, 2}, 0.4, 0.3)

	got, err := Detections(anchorSet, deltas, scores, 0.5)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestDetectionsShapeErrors(t *testing.T) {
	anchorSet := gridAnchors()
	deltas := boxTensor([]int{4, 4}, make([]float32, 16)...)

	t.Run("scores must be rank two", func(t *testing.T) {
		bad := boxTensor([]int{4}, 0.1, 0.2, 0.3, 0.4)
		_, err := Detections(anchorSet, deltas, bad, 0.5)
		require.ErrorIs(t, err, boxes.ErrShapeMismatch)
	})
	t.Run("scores must cover every anchor", func(t *testing.T) {
		bad := boxTensor([]int{2, 3}, 0.1, 0.2, 0.3, 0.4, 0.5, 0.6)
		_, err := Detections(anchorSet, deltas, bad, 0.5)
		require.ErrorIs(t, err, boxes.ErrShapeMismatch)
	})
}
