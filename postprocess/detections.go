package postprocess

import (
	"sort"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/go-anchors/anchors"
	"github.com/nvr-ai/go-anchors/boxes"
)

// Detections turns one image's raw head output into scored boxes. anchorBoxes
// and deltas are [A, 4]; scores is [A, C] with one probability per class
// (already activated, e.g. through a sigmoid). Every anchor contributes its
// best-scoring class; anchors whose best score is not above scoreThreshold
// are dropped, the rest are decoded through FromRegressionTargets and
// returned sorted by descending score, ready for NMS.
func Detections(
	anchorBoxes, deltas, scores *tensor.Dense,
	scoreThreshold float32,
) ([]Result, error) {
	if err := boxes.Validate(anchorBoxes); err != nil {
		return nil, err
	}
	if err := boxes.Validate(deltas); err != nil {
		return nil, err
	}
	if scores == nil {
		return nil, errors.Wrap(boxes.ErrShapeMismatch, "nil score tensor")
	}
	scoreShape := scores.Shape()
	if len(scoreShape) != 2 || scoreShape[1] < 1 || scores.Dtype() != tensor.Float32 {
		return nil, errors.Wrapf(boxes.ErrShapeMismatch,
			"scores must be float32 [A, C], got %v %v", scores.Dtype(), scoreShape)
	}
	numAnchors, numClasses := scoreShape[0], scoreShape[1]
	if anchorBoxes.Shape().TotalSize() != numAnchors*4 ||
		deltas.Shape().TotalSize() != numAnchors*4 {
		return nil, errors.Wrapf(boxes.ErrShapeMismatch,
			"anchors %v and deltas %v do not cover %d scored anchors",
			anchorBoxes.Shape(), deltas.Shape(), numAnchors)
	}

	decoded, err := anchors.FromRegressionTargets(anchorBoxes, deltas)
	if err != nil {
		return nil, err
	}

	scoreData := scores.Float32s()
	results := make([]Result, 0, numAnchors)
	for a := 0; a < numAnchors; a++ {
		best, bestScore := 0, scoreData[a*numClasses]
		for c := 1; c < numClasses; c++ {
			if v := scoreData[a*numClasses+c]; v > bestScore {
				best, bestScore = c, v
			}
		}
		if bestScore <= scoreThreshold {
			continue
		}
		results = append(results, Result{
			Box:   boxes.At(decoded, a),
			Score: bestScore,
			Class: best,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	return results, nil
}
