package boxes

import "github.com/pkg/errors"

// ErrShapeMismatch reports a box tensor whose rank, trailing dimension or
// dtype does not match the (..., 4) float32 contract, or two tensors whose
// leading dimensions cannot be broadcast together. It is checked eagerly,
// before any computation, and is a deterministic function of the input.
var ErrShapeMismatch = errors.New("box tensor shape mismatch")
