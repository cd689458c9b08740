package anchors

import "github.com/pkg/errors"

// Sentinel errors of the coding layer. Shape violations are reported with
// boxes.ErrShapeMismatch; the two below are about box contents.
var (
	// ErrInvalidAnchor reports an anchor with zero or negative height or
	// width. Anchors are the reference frame for regression and must be
	// strictly positive in both dimensions; this is validated up front.
	ErrInvalidAnchor = errors.New("anchor has non-positive size")

	// ErrInvalidBox reports a box with zero or negative height or width in
	// a context where its size goes through log (encoding). Degenerate
	// boxes are fine for area and IoU, but not as regression sources.
	ErrInvalidBox = errors.New("box has non-positive size")
)
