package scanning

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// Tesseract implements the Engine interface by shelling out to the
// tesseract binary and parsing its TSV output, which carries word-level
// bounding geometry.
type Tesseract struct {
	bin string
}

// NewTesseract creates a new Tesseract engine. bin may be empty to use the
// binary from PATH.
func NewTesseract(bin string) *Tesseract {
	if bin == "" {
		bin = "tesseract"
	}
	return &Tesseract{bin: bin}
}

// Recognize runs tesseract over an image file and groups its word boxes
// into line spans
func (t *Tesseract) Recognize(ctx context.Context, imagePath string) ([]TextSpan, error) {
	cmd := exec.CommandContext(ctx, t.bin, imagePath, "stdout", "tsv")
	out, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return nil, fmt.Errorf("running tesseract: %w: %s", err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return nil, fmt.Errorf("running tesseract: %w", err)
	}
	return parseTSV(string(out))
}

// parseTSV parses tesseract's TSV output. Columns:
// level page_num block_num par_num line_num word_num left top width height conf text
// Word rows (level 5) are grouped by (block, par, line) into spans in order
// of appearance.
func parseTSV(out string) ([]TextSpan, error) {
	lines := strings.Split(out, "\n")
	if len(lines) > 0 && strings.HasPrefix(lines[0], "level") {
		lines = lines[1:]
	}

	var spans []TextSpan
	var currentKey string
	var current *TextSpan

	for _, line := range lines {
		fields := strings.Split(line, "\t")
		if len(fields) < 12 {
			continue
		}
		if fields[0] != "5" { // word rows only
			continue
		}
		word := strings.TrimSpace(fields[11])
		if word == "" {
			continue
		}

		left, err1 := strconv.Atoi(fields[6])
		top, err2 := strconv.Atoi(fields[7])
		width, err3 := strconv.Atoi(fields[8])
		height, err4 := strconv.Atoi(fields[9])
		if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
			return nil, fmt.Errorf("malformed tsv row: %q", line)
		}

		key := fields[2] + "/" + fields[3] + "/" + fields[4]
		if current == nil || key != currentKey {
			spans = append(spans, TextSpan{})
			current = &spans[len(spans)-1]
			currentKey = key
		}

		if current.Text != "" {
			current.Text += " "
		}
		current.Text += word
		current.Glyphs = append(current.Glyphs, Box{
			Left:   left,
			Top:    top,
			Right:  left + width,
			Bottom: top + height,
		})
	}

	return spans, nil
}
