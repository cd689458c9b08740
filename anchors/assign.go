package anchors

import (
	"runtime"
	"sync"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/go-anchors/boxes"
)

// Background is the classification target of an anchor that no gold object
// was assigned to. Assigned anchors get 1 + the gold class.
const Background = 0

// AssignTrainingTargets decides, for every anchor, which gold object (if any)
// it is responsible for predicting, and materializes the per-anchor training
// targets. anchorBoxes must have shape [A, 4] with strictly positive sizes;
// goldBoxes has shape [G, 4] with one class per row in goldClasses.
//
// The matching runs in two deterministic passes over the anchor x gold IoU
// matrix:
//
//  1. Every gold object, in ascending index order, claims the anchor it
//     overlaps most (smallest anchor index on IoU ties). An anchor already
//     claimed by an earlier gold object is not reassigned; the later object
//     simply gets no forced anchor.
//  2. Every anchor still free takes the gold object it overlaps most
//     (smallest gold index on ties), but only if that IoU is >= iouThreshold.
//     The comparison is a literal >=, so a threshold of 0 accepts any best
//     match. Everything else stays background.
//
// Returns:
//   - Per-anchor classes: Background, or 1 + the assigned gold class.
//   - Per-anchor regression targets [A, 4], zero-filled for background anchors.
//   - An error on shape violations or non-positive anchors.
//
// An empty gold list is not an error; it yields an all-background result.
func AssignTrainingTargets(
	anchorBoxes *tensor.Dense,
	goldClasses []int,
	goldBoxes *tensor.Dense,
	iouThreshold float32,
) ([]int, *tensor.Dense, error) {
	if err := ValidateAnchors(anchorBoxes); err != nil {
		return nil, nil, err
	}
	if len(anchorBoxes.Shape()) != 2 {
		return nil, nil, errors.Wrapf(boxes.ErrShapeMismatch,
			"anchors must be [A, 4], got %v", anchorBoxes.Shape())
	}
	numAnchors := anchorBoxes.Shape()[0]
	if numAnchors == 0 {
		return nil, nil, errors.Wrap(boxes.ErrShapeMismatch, "empty anchor set")
	}

	classes := make([]int, numAnchors)
	regressions := make([]float32, numAnchors*4)

	if len(goldClasses) == 0 && (goldBoxes == nil || goldBoxes.Shape().TotalSize() == 0) {
		return classes, tensor.New(
			tensor.WithShape(numAnchors, 4), tensor.WithBacking(regressions)), nil
	}

	if err := boxes.Validate(goldBoxes); err != nil {
		return nil, nil, err
	}
	if len(goldBoxes.Shape()) != 2 {
		return nil, nil, errors.Wrapf(boxes.ErrShapeMismatch,
			"gold boxes must be [G, 4], got %v", goldBoxes.Shape())
	}
	numGold := goldBoxes.Shape()[0]
	if numGold != len(goldClasses) {
		return nil, nil, errors.Wrapf(boxes.ErrShapeMismatch,
			"%d gold boxes for %d gold classes", numGold, len(goldClasses))
	}
	iou, err := iouMatrix(anchorBoxes, goldBoxes)
	if err != nil {
		return nil, nil, err
	}

	// Assignment arena: gold index per anchor, -1 = free. Each slot is
	// written at most once per pass and never reopened.
	assigned := make([]int, numAnchors)
	for a := range assigned {
		assigned[a] = -1
	}

	// Pass 1: every gold object claims its best anchor, earlier gold
	// objects winning contested anchors. The gold loop must stay
	// sequential; the tie-break rule depends on its order.
	for g := 0; g < numGold; g++ {
		best, bestIoU := 0, iou[g]
		for a := 1; a < numAnchors; a++ {
			if v := iou[a*numGold+g]; v > bestIoU {
				best, bestIoU = a, v
			}
		}
		if assigned[best] == -1 {
			assigned[best] = g
		}
	}

	// Pass 2: remaining anchors take their best gold object when the
	// overlap clears the threshold.
	for a := 0; a < numAnchors; a++ {
		if assigned[a] != -1 {
			continue
		}
		best, bestIoU := 0, iou[a*numGold]
		for g := 1; g < numGold; g++ {
			if v := iou[a*numGold+g]; v > bestIoU {
				best, bestIoU = g, v
			}
		}
		if bestIoU >= iouThreshold {
			assigned[a] = best
		}
	}

	// Materialize targets: gather the assigned pairs, encode them in one
	// call, and scatter the deltas back into the per-anchor layout.
	anchorData, goldData := anchorBoxes.Float32s(), goldBoxes.Float32s()
	var pairIdx []int
	var pairAnchors, pairBoxes []float32
	for a, g := range assigned {
		if g == -1 {
			continue
		}
		classes[a] = 1 + goldClasses[g]
		pairIdx = append(pairIdx, a)
		pairAnchors = append(pairAnchors, anchorData[a*4:a*4+4]...)
		pairBoxes = append(pairBoxes, goldData[g*4:g*4+4]...)
	}
	if len(pairIdx) > 0 {
		deltas, err := ToRegressionTargets(
			tensor.New(tensor.WithShape(len(pairIdx), 4), tensor.WithBacking(pairAnchors)),
			tensor.New(tensor.WithShape(len(pairIdx), 4), tensor.WithBacking(pairBoxes)),
		)
		if err != nil {
			return nil, nil, err
		}
		deltaData := deltas.Float32s()
		for i, a := range pairIdx {
			copy(regressions[a*4:a*4+4], deltaData[i*4:i*4+4])
		}
	}

	return classes, tensor.New(
		tensor.WithShape(numAnchors, 4), tensor.WithBacking(regressions)), nil
}

// iouMatrix computes the full anchor x gold IoU matrix as a flat row-major
// slice, by broadcasting [A, 1, 4] anchors against [1, G, 4] gold boxes.
func iouMatrix(anchorBoxes, goldBoxes *tensor.Dense) ([]float32, error) {
	numAnchors := anchorBoxes.Shape()[0]
	numGold := goldBoxes.Shape()[0]

	// Views over the caller's backing data; read-only by contract.
	anchorView := tensor.New(
		tensor.WithShape(numAnchors, 1, 4), tensor.WithBacking(anchorBoxes.Float32s()))
	goldView := tensor.New(
		tensor.WithShape(1, numGold, 4), tensor.WithBacking(goldBoxes.Float32s()))

	iou, err := boxes.IoU(anchorView, goldView)
	if err != nil {
		return nil, err
	}
	return iou.Float32s(), nil
}

// ImageTargets is one image's ground truth: parallel classes and [G, 4] boxes.
type ImageTargets struct {
	Classes []int
	Boxes   *tensor.Dense
}

// Assignment is the training target of one image.
type Assignment struct {
	// Classes holds Background or 1 + the gold class, one entry per anchor.
	Classes []int
	// Regressions is [A, 4], meaningful only where Classes is non-background.
	Regressions *tensor.Dense
}

// AssignBatch runs AssignTrainingTargets for every image over a worker pool.
// Images are independent and the anchor set is shared read-only, so the fan
// out is safe. workers <= 0 means one worker per CPU.
//
// Returns the per-image assignments in input order, or the first error
// encountered (remaining images are still processed).
func AssignBatch(
	anchorBoxes *tensor.Dense,
	images []ImageTargets,
	iouThreshold float32,
	workers int,
) ([]Assignment, error) {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	results := make([]Assignment, len(images))
	errs := make([]error, len(images))
	jobs := make(chan int, len(images))

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				classes, regressions, err := AssignTrainingTargets(
					anchorBoxes, images[i].Classes, images[i].Boxes, iouThreshold)
				if err != nil {
					errs[i] = errors.Wrapf(err, "image %d", i)
					continue
				}
				results[i] = Assignment{Classes: classes, Regressions: regressions}
			}
		}()
	}

	for i := range images {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}
