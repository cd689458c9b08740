// Package boxes - geometry over batched bounding-box tensors.
//
// Boxes are stored in pixel coordinates as (top, left, bottom, right) along
// the last axis of a float32 *tensor.Dense; any leading dimensions are
// treated as batch dimensions and broadcast NumPy-style by the binary
// operations. Well-formed boxes satisfy top <= bottom and left <= right;
// degenerate or inverted boxes are not an error, they simply have zero area.
package boxes

import (
	"github.com/chewxy/math32"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// Indices of the box coordinates along the last tensor axis.
const (
	Top    = 0
	Left   = 1
	Bottom = 2
	Right  = 3
)

// Validate checks that t is a float32 tensor whose last axis has size 4.
// It is called eagerly by every operation in this package before any
// computation happens.
func Validate(t *tensor.Dense) error {
	if t == nil {
		return errors.Wrap(ErrShapeMismatch, "nil box tensor")
	}
	if t.Dtype() != tensor.Float32 {
		return errors.Wrapf(ErrShapeMismatch, "want float32 boxes, got %v", t.Dtype())
	}
	shape := t.Shape()
	if len(shape) == 0 || shape[len(shape)-1] != 4 {
		return errors.Wrapf(ErrShapeMismatch, "want trailing dimension 4, got shape %v", shape)
	}
	return nil
}

// Leading returns the batch dimensions of a box tensor, i.e. its shape with
// the trailing 4 stripped. A single box (shape [4]) has no batch dimensions.
func Leading(t *tensor.Dense) []int {
	shape := t.Shape()
	return []int(shape)[:len(shape)-1]
}

// Area computes the area of every box in b, broadcasting over leading
// dimensions. Degenerate and inverted boxes yield area 0, never negative.
// A single box (shape [4]) produces a one-element tensor.
func Area(b *tensor.Dense) (*tensor.Dense, error) {
	if err := Validate(b); err != nil {
		return nil, err
	}

	leading := Leading(b)
	data := b.Float32s()
	out := make([]float32, numElements(leading))
	for i := range out {
		out[i] = area(data, i*4)
	}
	return tensor.New(tensor.WithShape(outShape(leading)...), tensor.WithBacking(out)), nil
}

// IoU computes the intersection-over-union of every pair of boxes from a and
// b, broadcasting their leading dimensions against each other. The result has
// the broadcast leading shape (or one element for two single boxes).
//
// When the union is empty - both boxes degenerate and disjoint - the IoU is
// 0 by convention rather than NaN.
func IoU(a, b *tensor.Dense) (*tensor.Dense, error) {
	if err := Validate(a); err != nil {
		return nil, err
	}
	if err := Validate(b); err != nil {
		return nil, err
	}

	leadA, leadB := Leading(a), Leading(b)
	lead, err := BroadcastShape(leadA, leadB)
	if err != nil {
		return nil, err
	}
	stridesA := BroadcastStrides(leadA, lead)
	stridesB := BroadcastStrides(leadB, lead)

	dataA, dataB := a.Float32s(), b.Float32s()
	out := make([]float32, numElements(lead))
	for i := range out {
		baseA := BroadcastOffset(i, lead, stridesA) * 4
		baseB := BroadcastOffset(i, lead, stridesB) * 4
		out[i] = iou(dataA, baseA, dataB, baseB)
	}
	return tensor.New(tensor.WithShape(outShape(lead)...), tensor.WithBacking(out)), nil
}

// area reads one box starting at base and returns its clamped area.
func area(data []float32, base int) float32 {
	h := math32.Max(0, data[base+Bottom]-data[base+Top])
	w := math32.Max(0, data[base+Right]-data[base+Left])
	return h * w
}

// iou reads one box from each backing slice and returns their IoU.
func iou(a []float32, baseA int, b []float32, baseB int) float32 {
	interTop := math32.Max(a[baseA+Top], b[baseB+Top])
	interLeft := math32.Max(a[baseA+Left], b[baseB+Left])
	interBottom := math32.Min(a[baseA+Bottom], b[baseB+Bottom])
	interRight := math32.Min(a[baseA+Right], b[baseB+Right])

	interH := math32.Max(0, interBottom-interTop)
	interW := math32.Max(0, interRight-interLeft)
	inter := interH * interW

	union := area(a, baseA) + area(b, baseB) - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// outShape maps an empty leading shape to a one-element tensor shape, since
// a Dense cannot be built with no dimensions.
func outShape(leading []int) []int {
	if len(leading) == 0 {
		return []int{1}
	}
	return leading
}
