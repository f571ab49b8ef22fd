// Package layout computes non-overlapping positions for new widgets on the
// dashboard canvas.
//
// Placement is deterministic: the candidate grid is scanned row-major with a
// fixed step, so the same widget set and footprint always yield the same
// coordinate. No randomness and no map iteration are involved.
package layout

import "github.com/boardpilot/boardpilot/internal/schema"

const (
	// CanvasWidth is the usable canvas width in grid units.
	CanvasWidth = 880.0

	// Margin is the minimum spacing kept between widget rectangles.
	Margin = 20.0

	// gridStep is the scan resolution for candidate positions.
	gridStep = 20.0

	// rowGap is the spacing added when appending below the lowest widget.
	rowGap = 30.0
)

// FootprintFor returns the default size for a widget type.
func FootprintFor(typ schema.WidgetType) schema.Size {
	switch typ {
	case schema.WidgetMetric:
		return schema.Size{Width: 280, Height: 160}
	case schema.WidgetChart:
		return schema.Size{Width: 500, Height: 300}
	case schema.WidgetTable:
		return schema.Size{Width: 580, Height: 300}
	case schema.WidgetText:
		return schema.Size{Width: 400, Height: 200}
	default:
		return schema.Size{Width: 400, Height: 250}
	}
}

// FindPosition returns the first grid coordinate whose footprint rectangle
// does not intersect any existing widget, scanning rows top to bottom and
// cells left to right. If no gap exists within the occupied extent, a new
// row is opened below the lowest occupied cell.
func FindPosition(existing []schema.Widget, footprint schema.Size) schema.Position {
	if len(existing) == 0 {
		return schema.Position{X: 0, Y: 0}
	}

	maxBottom := 0.0
	for _, w := range existing {
		bottom := w.Position.Y + w.Size.Height
		if bottom > maxBottom {
			maxBottom = bottom
		}
	}

	for y := 0.0; y <= maxBottom; y += gridStep {
		for x := 0.0; x+footprint.Width <= CanvasWidth; x += gridStep {
			if !overlapsAny(x, y, footprint, existing) {
				return schema.Position{X: x, Y: y}
			}
		}
	}

	return schema.Position{X: 0, Y: maxBottom + rowGap}
}

// overlapsAny reports whether the candidate rectangle intersects any
// existing widget's rectangle, keeping Margin between them.
func overlapsAny(x, y float64, footprint schema.Size, existing []schema.Widget) bool {
	for _, w := range existing {
		if x < w.Position.X+w.Size.Width+Margin &&
			x+footprint.Width+Margin > w.Position.X &&
			y < w.Position.Y+w.Size.Height+Margin &&
			y+footprint.Height+Margin > w.Position.Y {
			return true
		}
	}
	return false
}
