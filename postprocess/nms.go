package postprocess

// NMSConfig defines parameters for Non-Maximum Suppression.
type NMSConfig struct {
	IoUThreshold float32 // Overlap threshold for suppression.
	ClassAware   bool    // If true, suppress only within the same class.
}

// DefaultNMSConfig suppresses within each class at IoU 0.3.
func DefaultNMSConfig() *NMSConfig {
	return &NMSConfig{IoUThreshold: 0.3, ClassAware: true}
}

// ApplyGreedyNMS performs greedy Non-Maximum Suppression.
//
// Arguments:
//   - detections: Slice of detections sorted by descending confidence.
//   - config: NMS configuration. With ClassAware set, a detection only
//     suppresses overlapping detections of its own class.
//
// Returns:
//   - Filtered slice of detections, still in descending-confidence order.
//     If no detections are provided, returns nil.
func ApplyGreedyNMS(detections []Result, config *NMSConfig) []Result {
	n := len(detections)
	if n == 0 {
		return nil
	}

	filtered := make([]Result, 0, n)
	used := make([]bool, n)

	for i := 0; i < n; i++ {
		if used[i] {
			continue
		}

		keep := detections[i]
		filtered = append(filtered, keep)
		used[i] = true

		for j := i + 1; j < n; j++ {
			if used[j] {
				continue
			}
			if config.ClassAware && keep.Class != detections[j].Class {
				continue
			}
			// Suppress if IoU exceeds threshold.
			if keep.Box.IoU(detections[j].Box) > config.IoUThreshold {
				used[j] = true
			}
		}
	}

	return filtered
}
