package postprocess

import (
	"bufio"
	"io"
	"strconv"

	"github.com/pkg/errors"
)

// WriteResults serializes detections to a results stream, one line per image.
// Each line holds the image's detections as space-separated
// "class top left bottom right" tuples; an image without detections is an
// empty line. Floats are written in shortest round-trip float32 form.
func WriteResults(w io.Writer, perImage [][]Result) error {
	out := bufio.NewWriter(w)
	for i, results := range perImage {
		for j, r := range results {
			if j > 0 {
				if err := out.WriteByte(' '); err != nil {
					return errors.Wrapf(err, "image %d", i)
				}
			}
			line := strconv.Itoa(r.Class) +
				" " + formatCoord(r.Box.Top) +
				" " + formatCoord(r.Box.Left) +
				" " + formatCoord(r.Box.Bottom) +
				" " + formatCoord(r.Box.Right)
			if _, err := out.WriteString(line); err != nil {
				return errors.Wrapf(err, "image %d", i)
			}
		}
		if err := out.WriteByte('\n'); err != nil {
			return errors.Wrapf(err, "image %d", i)
		}
	}
	return errors.Wrap(out.Flush(), "flushing results")
}

func formatCoord(v float32) string {
	return strconv.FormatFloat(float64(v), 'g', -1, 32)
}
