package boxes

import (
	"fmt"

	"github.com/chewxy/math32"
	"gorgonia.org/tensor"
)

// Box is a single bounding box in pixel coordinates. It is the scalar
// counterpart of the tensor operations in this package and is what the
// post-processing path (NMS, result streams, evaluation) works with.
type Box struct {
	Top, Left, Bottom, Right float32
}

// At reads box i out of a box tensor with shape [..., 4], indexing the boxes
// in row-major order. The caller is responsible for i being in range.
func At(t *tensor.Dense, i int) Box {
	data := t.Float32s()
	base := i * 4
	return Box{
		Top:    data[base+Top],
		Left:   data[base+Left],
		Bottom: data[base+Bottom],
		Right:  data[base+Right],
	}
}

// Area returns the clamped area of the box; degenerate boxes have area 0.
func (b Box) Area() float32 {
	return math32.Max(0, b.Bottom-b.Top) * math32.Max(0, b.Right-b.Left)
}

// IoU returns the intersection-over-union of b and o, between 0 and 1.
// An empty union yields 0.
func (b Box) IoU(o Box) float32 {
	interTop := math32.Max(b.Top, o.Top)
	interLeft := math32.Max(b.Left, o.Left)
	interBottom := math32.Min(b.Bottom, o.Bottom)
	interRight := math32.Min(b.Right, o.Right)

	inter := math32.Max(0, interBottom-interTop) * math32.Max(0, interRight-interLeft)
	union := b.Area() + o.Area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

func (b Box) String() string {
	return fmt.Sprintf("(%g, %g)-(%g, %g)", b.Top, b.Left, b.Bottom, b.Right)
}
