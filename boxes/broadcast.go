package boxes

import "github.com/pkg/errors"

// BroadcastShape computes the NumPy-style broadcast of two leading shapes:
// dimensions are aligned on the right, and each pair must be equal or one of
// them must be 1. An empty shape broadcasts against anything.
//
// Returns:
//   - The broadcast shape.
//   - ErrShapeMismatch if the shapes are incompatible.
func BroadcastShape(a, b []int) ([]int, error) {
	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	out := make([]int, n)
	for i := 1; i <= n; i++ {
		da, db := 1, 1
		if i <= len(a) {
			da = a[len(a)-i]
		}
		if i <= len(b) {
			db = b[len(b)-i]
		}
		switch {
		case da == db:
			out[n-i] = da
		case da == 1:
			out[n-i] = db
		case db == 1:
			out[n-i] = da
		default:
			return nil, errors.Wrapf(ErrShapeMismatch,
				"cannot broadcast leading shapes %v and %v", a, b)
		}
	}
	return out, nil
}

// BroadcastStrides maps a (right-aligned) input shape onto the broadcast
// output shape, returning one stride per output dimension. Broadcast
// dimensions get stride 0, so repeated reads land on the same input element.
func BroadcastStrides(shape, out []int) []int {
	natural := make([]int, len(shape))
	acc := 1
	for i := len(shape) - 1; i >= 0; i-- {
		natural[i] = acc
		acc *= shape[i]
	}

	strides := make([]int, len(out))
	offset := len(out) - len(shape)
	for i := range out {
		j := i - offset
		if j < 0 || shape[j] == 1 {
			strides[i] = 0
		} else {
			strides[i] = natural[j]
		}
	}
	return strides
}

// BroadcastOffset turns a flat index into the broadcast output into the flat
// index of the corresponding input element, using strides produced by
// BroadcastStrides.
func BroadcastOffset(idx int, out, strides []int) int {
	off := 0
	for i := len(out) - 1; i >= 0; i-- {
		off += (idx % out[i]) * strides[i]
		idx /= out[i]
	}
	return off
}

func numElements(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}
