package postprocess

import (
	"github.com/pkg/errors"

	"github.com/nvr-ai/go-anchors/boxes"
)

// evalIoUThreshold is the minimum overlap for a predicted box to count as a
// hit on its gold box.
const evalIoUThreshold = 0.5

// ImageObjects is one image's gold annotation for evaluation: parallel class
// and box slices in reading order.
type ImageObjects struct {
	Classes []int
	Boxes   []boxes.Box
}

// Evaluate scores predictions against gold annotations and returns the
// fraction of images predicted entirely correctly. An image counts as correct
// when the prediction has exactly as many objects as the gold annotation and
// the i-th prediction matches the i-th gold object: same class and IoU >= 0.5.
// Predictions must therefore be ordered the same way the annotation is
// (reading order for the original digit-detection task).
func Evaluate(gold []ImageObjects, pred [][]Result) (float64, error) {
	if len(gold) != len(pred) {
		return 0, errors.Errorf("%d gold images but %d predicted images",
			len(gold), len(pred))
	}
	if len(gold) == 0 {
		return 0, errors.New("nothing to evaluate")
	}

	correct := 0
	for i := range gold {
		if matches(gold[i], pred[i]) {
			correct++
		}
	}
	return float64(correct) / float64(len(gold)), nil
}

func matches(gold ImageObjects, pred []Result) bool {
	if len(pred) != len(gold.Classes) {
		return false
	}
	for i, r := range pred {
		if r.Class != gold.Classes[i] {
			return false
		}
		if r.Box.IoU(gold.Boxes[i]) < evalIoUThreshold {
			return false
		}
	}
	return true
}
