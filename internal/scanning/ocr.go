package scanning

import "context"

// Box is an axis-aligned bounding box in the recognizer's pixel space
type Box struct {
	Left   int
	Top    int
	Right  int
	Bottom int
}

// Width returns the box width
func (b Box) Width() int {
	return b.Right - b.Left
}

// Height returns the box height
func (b Box) Height() int {
	return b.Bottom - b.Top
}

// TextSpan is one recognized line of text together with the bounding boxes
// of its glyph runs. Spans are ephemeral, scoped to a single recognition
// call.
type TextSpan struct {
	Text   string
	Glyphs []Box
}

// Bounds returns the aggregate bounding box of the span: min over
// lefts/tops, max over rights/bottoms of every glyph run
func (s TextSpan) Bounds() Box {
	if len(s.Glyphs) == 0 {
		return Box{}
	}
	bounds := s.Glyphs[0]
	for _, g := range s.Glyphs[1:] {
		if g.Left < bounds.Left {
			bounds.Left = g.Left
		}
		if g.Top < bounds.Top {
			bounds.Top = g.Top
		}
		if g.Right > bounds.Right {
			bounds.Right = g.Right
		}
		if g.Bottom > bounds.Bottom {
			bounds.Bottom = g.Bottom
		}
	}
	return bounds
}

// Engine defines the interface for local text recognition over a captured
// frame
type Engine interface {
	// Recognize runs text recognition on an image file and returns line
	// spans in the engine's natural order
	Recognize(ctx context.Context, imagePath string) ([]TextSpan, error)
}
