// Package anchors - anchor-relative box coding and training-target assignment.
//
// An anchor is a fixed candidate box at a known image location that serves as
// the reference frame for regression. A box is encoded against an anchor as
// (dy, dx, dh, dw): the center offset normalized by the anchor size and the
// log ratio of the box size to the anchor size. Encoding and decoding are
// exact inverses, so decoding a box's own targets reproduces the box up to
// floating-point error.
package anchors

import (
	"github.com/chewxy/math32"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/go-anchors/boxes"
)

// ToRegressionTargets encodes bxs relative to anchorBoxes, broadcasting
// leading dimensions against each other. The result has the broadcast leading
// shape with a trailing axis of 4 holding (dy, dx, dh, dw).
//
// Anchors must have strictly positive height and width; that is validated up
// front and violations fail with ErrInvalidAnchor. Boxes with non-positive
// height or width are a caller contract violation (the size ratio goes
// through log); use ValidateBoxes to reject them explicitly instead of
// propagating -Inf.
func ToRegressionTargets(anchorBoxes, bxs *tensor.Dense) (*tensor.Dense, error) {
	if err := ValidateAnchors(anchorBoxes); err != nil {
		return nil, err
	}
	if err := boxes.Validate(bxs); err != nil {
		return nil, err
	}

	leadA, leadB := boxes.Leading(anchorBoxes), boxes.Leading(bxs)
	lead, err := boxes.BroadcastShape(leadA, leadB)
	if err != nil {
		return nil, err
	}

	anchorData, boxData := anchorBoxes.Float32s(), bxs.Float32s()
	out := make([]float32, numBoxes(lead)*4)
	forEachPair(lead, leadA, leadB, func(i, baseA, baseB int) {
		acy, acx, ah, aw := centerSize(anchorData, baseA)
		bcy, bcx, bh, bw := centerSize(boxData, baseB)

		out[i*4+0] = (bcy - acy) / ah
		out[i*4+1] = (bcx - acx) / aw
		out[i*4+2] = math32.Log(bh / ah)
		out[i*4+3] = math32.Log(bw / aw)
	})
	return tensor.New(tensor.WithShape(targetShape(lead)...), tensor.WithBacking(out)), nil
}

// FromRegressionTargets decodes (dy, dx, dh, dw) deltas back into absolute
// boxes, broadcasting leading dimensions. It is the exact algebraic inverse
// of ToRegressionTargets for the same anchors.
func FromRegressionTargets(anchorBoxes, deltas *tensor.Dense) (*tensor.Dense, error) {
	if err := ValidateAnchors(anchorBoxes); err != nil {
		return nil, err
	}
	if err := boxes.Validate(deltas); err != nil {
		return nil, err
	}

	leadA, leadD := boxes.Leading(anchorBoxes), boxes.Leading(deltas)
	lead, err := boxes.BroadcastShape(leadA, leadD)
	if err != nil {
		return nil, err
	}

	anchorData, deltaData := anchorBoxes.Float32s(), deltas.Float32s()
	out := make([]float32, numBoxes(lead)*4)
	forEachPair(lead, leadA, leadD, func(i, baseA, baseD int) {
		acy, acx, ah, aw := centerSize(anchorData, baseA)

		cy := deltaData[baseD+0]*ah + acy
		cx := deltaData[baseD+1]*aw + acx
		h := math32.Exp(deltaData[baseD+2]) * ah
		w := math32.Exp(deltaData[baseD+3]) * aw

		out[i*4+boxes.Top] = cy - h/2
		out[i*4+boxes.Left] = cx - w/2
		out[i*4+boxes.Bottom] = cy + h/2
		out[i*4+boxes.Right] = cx + w/2
	})
	return tensor.New(tensor.WithShape(targetShape(lead)...), tensor.WithBacking(out)), nil
}

// ValidateAnchors checks the (..., 4) float32 contract and that every anchor
// has strictly positive height and width.
func ValidateAnchors(anchorBoxes *tensor.Dense) error {
	if err := boxes.Validate(anchorBoxes); err != nil {
		return err
	}
	data := anchorBoxes.Float32s()
	for base := 0; base < len(data); base += 4 {
		if data[base+boxes.Bottom] <= data[base+boxes.Top] ||
			data[base+boxes.Right] <= data[base+boxes.Left] {
			return errors.Wrapf(ErrInvalidAnchor, "anchor %d is %v",
				base/4, boxes.At(anchorBoxes, base/4))
		}
	}
	return nil
}

// ValidateBoxes rejects boxes whose height or width is not strictly positive.
// Optional: callers that prefer -Inf regression targets over an error may
// skip it.
func ValidateBoxes(bxs *tensor.Dense) error {
	if err := boxes.Validate(bxs); err != nil {
		return err
	}
	data := bxs.Float32s()
	for base := 0; base < len(data); base += 4 {
		if data[base+boxes.Bottom] <= data[base+boxes.Top] ||
			data[base+boxes.Right] <= data[base+boxes.Left] {
			return errors.Wrapf(ErrInvalidBox, "box %d is %v",
				base/4, boxes.At(bxs, base/4))
		}
	}
	return nil
}

// centerSize converts one corner-form box in a backing slice to center form.
func centerSize(data []float32, base int) (cy, cx, h, w float32) {
	h = data[base+boxes.Bottom] - data[base+boxes.Top]
	w = data[base+boxes.Right] - data[base+boxes.Left]
	cy = (data[base+boxes.Top] + data[base+boxes.Bottom]) / 2
	cx = (data[base+boxes.Left] + data[base+boxes.Right]) / 2
	return cy, cx, h, w
}

// forEachPair walks the broadcast leading shape and hands the callback the
// output box index together with the element offsets of the two inputs.
func forEachPair(lead, leadA, leadB []int, fn func(i, baseA, baseB int)) {
	stridesA := boxes.BroadcastStrides(leadA, lead)
	stridesB := boxes.BroadcastStrides(leadB, lead)
	n := numBoxes(lead)
	for i := 0; i < n; i++ {
		baseA := boxes.BroadcastOffset(i, lead, stridesA) * 4
		baseB := boxes.BroadcastOffset(i, lead, stridesB) * 4
		fn(i, baseA, baseB)
	}
}

func numBoxes(lead []int) int {
	n := 1
	for _, d := range lead {
		n *= d
	}
	return n
}

// targetShape appends the trailing coordinate axis to the broadcast leading
// shape; a pair of single boxes produces shape [1, 4].
func targetShape(lead []int) []int {
	if len(lead) == 0 {
		return []int{1, 4}
	}
	return append(append([]int{}, lead...), 4)
}
