package anchors

import (
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// GridConfig describes a dense anchor grid over a feature map. The feature
// map has FeatureHeight x FeatureWidth cells covering an InputHeight x
// InputWidth image; one square anchor per entry of Sizes is centered on every
// cell.
type GridConfig struct {
	// Network input resolution in pixels.
	InputHeight, InputWidth int
	// Feature map resolution the detection head predicts on.
	FeatureHeight, FeatureWidth int
	// Side lengths of the square anchors placed at each cell, in input
	// pixels. Must be non-empty and strictly positive.
	Sizes []float32
}

// Grid generates the anchor set for cfg as an [A, 4] tensor with
// A = FeatureHeight * FeatureWidth * len(Sizes). Anchor centers sit at
// (cell + 0.5) * stride; boxes may extend past the image border.
//
// Anchors are ordered row-major by cell, then by size within a cell. The
// order is load-bearing: anchor index is the tie-break key of the assigner,
// so the same config always produces the same assignment.
func Grid(cfg GridConfig) (*tensor.Dense, error) {
	if cfg.InputHeight <= 0 || cfg.InputWidth <= 0 {
		return nil, errors.Errorf("non-positive input resolution %dx%d",
			cfg.InputHeight, cfg.InputWidth)
	}
	if cfg.FeatureHeight <= 0 || cfg.FeatureWidth <= 0 {
		return nil, errors.Errorf("non-positive feature resolution %dx%d",
			cfg.FeatureHeight, cfg.FeatureWidth)
	}
	if len(cfg.Sizes) == 0 {
		return nil, errors.New("no anchor sizes configured")
	}
	for _, size := range cfg.Sizes {
		if size <= 0 {
			return nil, errors.Wrapf(ErrInvalidAnchor, "anchor size %g", size)
		}
	}

	strideY := float32(cfg.InputHeight) / float32(cfg.FeatureHeight)
	strideX := float32(cfg.InputWidth) / float32(cfg.FeatureWidth)

	numAnchors := cfg.FeatureHeight * cfg.FeatureWidth * len(cfg.Sizes)
	data := make([]float32, 0, numAnchors*4)
	for y := 0; y < cfg.FeatureHeight; y++ {
		cy := (float32(y) + 0.5) * strideY
		for x := 0; x < cfg.FeatureWidth; x++ {
			cx := (float32(x) + 0.5) * strideX
			for _, size := range cfg.Sizes {
				half := size / 2
				data = append(data, cy-half, cx-half, cy+half, cx+half)
			}
		}
	}
	return tensor.New(tensor.WithShape(numAnchors, 4), tensor.WithBacking(data)), nil
}
