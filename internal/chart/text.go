package chart

import (
	"strings"

	"github.com/guptarohit/asciigraph"

	"stockdesk/internal/view"
)

// TextRenderer plots line charts as text into the chart canvas region.
type TextRenderer struct {
	views  *view.Registry
	height int
	width  int
}

// NewTextRenderer creates a renderer drawing height x width plots.
func NewTextRenderer(views *view.Registry, height, width int) *TextRenderer {
	return &TextRenderer{views: views, height: height, width: width}
}

// Render draws spec into the canvas and returns the object owning it.
func (r *TextRenderer) Render(spec Spec) (Object, error) {
	var plot string
	if len(spec.Prices) == 0 {
		plot = spec.Label + ": no data"
	} else {
		plot = asciigraph.Plot(spec.Prices,
			asciigraph.Height(r.height),
			asciigraph.Width(r.width),
			asciigraph.Precision(2),
			asciigraph.Caption(spec.Label),
		)
		if spec.ShowDomainAxis && len(spec.Labels) > 0 {
			first, last := spec.Labels[0], spec.Labels[len(spec.Labels)-1]
			gap := r.width - len(first) - len(last)
			if gap < 1 {
				gap = 1
			}
			plot += "\n" + first + strings.Repeat(" ", gap) + last
		}
	}
	r.views.SetValue(view.ChartCanvas, plot)
	return &textChart{views: r.views}, nil
}

type textChart struct {
	views     *view.Registry
	destroyed bool
}

// Destroy clears the canvas. Calling it twice is harmless.
func (c *textChart) Destroy() {
	if c.destroyed {
		return
	}
	c.destroyed = true
	c.views.SetValue(view.ChartCanvas, "")
}
