// Package postprocess - inference-side consumers of the anchor coding layer:
// decoding predicted offsets into scored detections, non-maximum suppression,
// result serialization and accuracy evaluation.
package postprocess

import "github.com/nvr-ai/go-anchors/boxes"

// Result represents a single detection.
type Result struct {
	// The bounding box of the result, in input pixel coordinates.
	Box boxes.Box
	// The confidence score of the result.
	Score float32
	// The predicted class index of the result.
	Class int
}
