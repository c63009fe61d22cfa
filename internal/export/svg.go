package export

import (
	"fmt"
	"os"
	"strings"

	"github.com/san-kum/rayview/internal/rays"
	"github.com/san-kum/rayview/internal/render"
	"github.com/san-kum/rayview/internal/viewstate"
)

const svgHeader = `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="%s"/>
`

// CanvasToSVG draws every lit braille dot as a circle of diameter about scale.
func CanvasToSVG(canvas *render.Canvas, scale float64, theme render.Theme) string {
	if canvas == nil {
		return ""
	}
	w := int(float64(canvas.DotsWide()) * scale)
	h := int(float64(canvas.DotsHigh()) * scale)

	var sb strings.Builder
	fmt.Fprintf(&sb, svgHeader, w, h, w, h, theme.Paper)
	fmt.Fprintf(&sb, "<g fill=\"%s\">\n", theme.Primary)
	r := scale * 0.4
	for y := 0; y < canvas.DotsHigh(); y++ {
		for x := 0; x < canvas.DotsWide(); x++ {
			if canvas.IsSet(x, y) {
				fmt.Fprintf(&sb, "<circle cx=\"%.1f\" cy=\"%.1f\" r=\"%.1f\"/>\n",
					float64(x)*scale+scale/2, float64(y)*scale+scale/2, r)
			}
		}
	}
	sb.WriteString("</g>\n</svg>\n")
	return sb.String()
}

// RaysToSVG draws the rays the view reveals as polylines coloured by speed,
// with scatter points as circles when they are enabled. An empty scene still
// yields a valid document.
func RaysToSVG(d *rays.Dataset, v viewstate.ViewState, cam *render.Camera, w, h int, theme render.Theme) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, svgHeader, w, h, w, h, theme.Paper)

	vmin, vmax := d.SpeedRange()
	span := vmax - vmin
	visible := render.Visible(d, v)

	sb.WriteString("<g fill=\"none\" stroke-width=\"1.2\" stroke-linejoin=\"round\">\n")
	for _, i := range visible {
		r, _ := d.At(i)
		if len(r.Events) < 2 {
			continue
		}
		frac := 0.5
		if span > 0 {
			frac = (r.Speed - vmin) / span
		}
		fmt.Fprintf(&sb, "<polyline data-ray=\"%d\" stroke=\"%s\" points=\"", i, theme.SpeedColor(frac))
		for j, e := range r.Events {
			x, y, _, _ := cam.Project(e.Position, w, h)
			if j > 0 {
				sb.WriteByte(' ')
			}
			fmt.Fprintf(&sb, "%d,%d", x, y)
		}
		sb.WriteString("\"/>\n")
	}
	sb.WriteString("</g>\n")

	if v.ScatterPoints && len(visible) > 0 {
		fmt.Fprintf(&sb, "<g fill=\"%s\">\n", theme.Scatter)
		for _, p := range d.ScatterPoints(len(visible)) {
			if x, y, _, ok := cam.Project(p, w, h); ok {
				fmt.Fprintf(&sb, "<circle cx=\"%d\" cy=\"%d\" r=\"2.5\"/>\n", x, y)
			}
		}
		sb.WriteString("</g>\n")
	}

	sb.WriteString("</svg>\n")
	return sb.String()
}

func WriteFile(path, svg string) error {
	return os.WriteFile(path, []byte(svg), 0o644)
}
