package anchors

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/go-anchors/boxes"
)

func ln(x float64) float32 { return float32(math.Log(x)) }

func boxTensor(shape []int, data ...float32) *tensor.Dense {
	return tensor.New(tensor.WithShape(shape...), tensor.WithBacking(data))
}

// codingCases pairs anchors and boxes with their known regression targets.
var codingCases = []struct {
	anchor, box, deltas []float32
}{
	{[]float32{0, 0, 10, 10}, []float32{0, 0, 10, 10}, []float32{0, 0, 0, 0}},
	{[]float32{0, 0, 10, 10}, []float32{5, 0, 15, 10}, []float32{0.5, 0, 0, 0}},
	{[]float32{0, 0, 10, 10}, []float32{0, 5, 10, 15}, []float32{0, 0.5, 0, 0}},
	{[]float32{0, 0, 10, 10}, []float32{0, 0, 20, 30}, []float32{0.5, 1, ln(2), ln(3)}},
	{[]float32{0, 9, 10, 19}, []float32{2, 10, 5, 16}, []float32{-0.15, -0.1, -1.20397, -0.51083}},
	{[]float32{5, 3, 15, 13}, []float32{7, 7, 10, 9}, []float32{-0.15, 0, -1.20397, -1.60944}},
	{[]float32{7, 6, 17, 16}, []float32{9, 10, 12, 13}, []float32{-0.15, 0.05, -1.20397, -1.20397}},
	{[]float32{5, 6, 15, 16}, []float32{7, 7, 10, 10}, []float32{-0.15, -0.25, -1.20397, -1.20397}},
	{[]float32{6, 3, 16, 13}, []float32{8, 5, 12, 8}, []float32{-0.1, -0.15, -0.91629, -1.20397}},
	{[]float32{5, 2, 15, 12}, []float32{9, 6, 12, 8}, []float32{0.05, 0, -1.20397, -1.60944}},
	{[]float32{2, 10, 12, 20}, []float32{6, 11, 8, 17}, []float32{0, -0.1, -1.60944, -0.51083}},
	{[]float32{10, 9, 20, 19}, []float32{12, 13, 17, 16}, []float32{-0.05, 0.05, -0.69315, -1.20397}},
	{[]float32{6, 7, 16, 17}, []float32{10, 11, 12, 14}, []float32{0, 0.05, -1.60944, -1.20397}},
	{[]float32{2, 2, 12, 12}, []float32{3, 5, 8, 8}, []float32{-0.15, -0.05, -0.69315, -1.20397}},
}

func codingBatch() (anchorT, boxT, deltaT *tensor.Dense) {
	var anchorData, boxData, deltaData []float32
	for _, c := range codingCases {
		anchorData = append(anchorData, c.anchor...)
		boxData = append(boxData, c.box...)
		deltaData = append(deltaData, c.deltas...)
	}
	n := len(codingCases)
	return boxTensor([]int{n, 4}, anchorData...),
		boxTensor([]int{n, 4}, boxData...),
		boxTensor([]int{n, 4}, deltaData...)
}

func TestToRegressionTargetsSingle(t *testing.T) {
	for _, c := range codingCases {
		got, err := ToRegressionTargets(
			boxTensor([]int{4}, c.anchor...), boxTensor([]int{4}, c.box...))
		require.NoError(t, err)
		assert.InDeltaSlice(t, c.deltas, got.Float32s(), 1e-3,
			"encoding %v against anchor %v", c.box, c.anchor)
	}
}

func TestToRegressionTargetsBatch(t *testing.T) {
	anchorT, boxT, deltaT := codingBatch()

	got, err := ToRegressionTargets(anchorT, boxT)
	require.NoError(t, err)
	assert.Equal(t, []int{len(codingCases), 4}, []int(got.Shape()))
	assert.InDeltaSlice(t, deltaT.Float32s(), got.Float32s(), 1e-3)
}

func TestFromRegressionTargetsBatch(t *testing.T) {
	anchorT, boxT, deltaT := codingBatch()

	got, err := FromRegressionTargets(anchorT, deltaT)
	require.NoError(t, err)
	assert.InDeltaSlice(t, boxT.Float32s(), got.Float32s(), 1e-3)
}

// Encoding then decoding against the same anchor must reproduce the box.
func TestRoundTrip(t *testing.T) {
	anchorT, boxT, _ := codingBatch()

	deltas, err := ToRegressionTargets(anchorT, boxT)
	require.NoError(t, err)
	back, err := FromRegressionTargets(anchorT, deltas)
	require.NoError(t, err)

	assert.InDeltaSlice(t, boxT.Float32s(), back.Float32s(), 1e-3,
		"decode(anchor, encode(anchor, box)) must reproduce box")
}

func TestToRegressionTargetsBroadcast(t *testing.T) {
	// One anchor against a batch of boxes.
	anchor := boxTensor([]int{4}, 0, 0, 10, 10)
	bxs := boxTensor([]int{3, 4},
		0, 0, 10, 10,
		5, 0, 15, 10,
		0, 0, 20, 30,
	)

	got, err := ToRegressionTargets(anchor, bxs)
	require.NoError(t, err)
	require.Equal(t, []int{3, 4}, []int(got.Shape()))
	want := []float32{
		0, 0, 0, 0,
		0.5, 0, 0, 0,
		0.5, 1, ln(2), ln(3),
	}
	assert.InDeltaSlice(t, want, got.Float32s(), 1e-3)
}

func TestToRegressionTargetsRejectsBadAnchor(t *testing.T) {
	box := boxTensor([]int{4}, 0, 0, 10, 10)

	t.Run("zero width", func(t *testing.T) {
		_, err := ToRegressionTargets(boxTensor([]int{4}, 0, 5, 10, 5), box)
		require.ErrorIs(t, err, ErrInvalidAnchor)
	})
	t.Run("inverted height", func(t *testing.T) {
		_, err := ToRegressionTargets(boxTensor([]int{4}, 10, 0, 0, 10), box)
		require.ErrorIs(t, err, ErrInvalidAnchor)
	})
	t.Run("wrong trailing dimension", func(t *testing.T) {
		bad := tensor.New(tensor.WithShape(3), tensor.WithBacking([]float32{1, 2, 3}))
		_, err := ToRegressionTargets(bad, box)
		require.ErrorIs(t, err, boxes.ErrShapeMismatch)
	})
}

func TestFromRegressionTargetsRejectsBadAnchor(t *testing.T) {
	deltas := boxTensor([]int{4}, 0, 0, 0, 0)
	_, err := FromRegressionTargets(boxTensor([]int{4}, 0, 5, 10, 5), deltas)
	require.ErrorIs(t, err, ErrInvalidAnchor)
}

func TestValidateBoxes(t *testing.T) {
	require.NoError(t, ValidateBoxes(boxTensor([]int{4}, 0, 0, 10, 10)))

	err := ValidateBoxes(boxTensor([]int{2, 4},
		0, 0, 10, 10,
		5, 5, 5, 9,
	))
	require.ErrorIs(t, err, ErrInvalidBox)
}
