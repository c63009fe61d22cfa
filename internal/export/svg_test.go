package export

import (
	"bytes"
	"encoding/xml"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/rayview/internal/metrics"
	"github.com/san-kum/rayview/internal/rays"
	"github.com/san-kum/rayview/internal/render"
	"github.com/san-kum/rayview/internal/viewstate"
)

func dataset() *rays.Dataset {
	mk := func(speed, x float64) rays.Ray {
		return rays.Ray{Speed: speed, Events: []rays.Event{
			{Position: rays.Vec3{X: x}},
			{Position: rays.Vec3{X: x, Z: 1}},
			{Position: rays.Vec3{X: x, Z: 2}},
		}}
	}
	return rays.NewDataset([]rays.Ray{mk(400, 0), mk(800, 0.1), mk(1200, 0.2)})
}

func camera(d *rays.Dataset) *render.Camera {
	cam := render.NewCamera()
	cam.Fit(d.Bounds())
	return cam
}

func assertWellFormed(t *testing.T, doc string) {
	t.Helper()
	dec := xml.NewDecoder(strings.NewReader(doc))
	for {
		_, err := dec.Token()
		if err != nil {
			require.ErrorIs(t, err, io.EOF)
			return
		}
	}
}

func TestRaysToSVGShowAll(t *testing.T) {
	d := dataset()
	v := viewstate.ViewState{RaysVisible: true, ShowAllRays: true, ScatterPoints: true}
	doc := RaysToSVG(d, v, camera(d), 400, 300, render.ThemePaper)

	assertWellFormed(t, doc)
	assert.Equal(t, 3, strings.Count(doc, "<polyline"))
	assert.Equal(t, 3, strings.Count(doc, "<circle"))
	assert.Contains(t, doc, `stroke="`+string(render.ThemePaper.Slow)+`"`)
	assert.Contains(t, doc, `stroke="`+string(render.ThemePaper.Fast)+`"`)
}

func TestRaysToSVGPlayback(t *testing.T) {
	d := dataset()
	v := viewstate.ViewState{RaysVisible: true, PlaybackIndex: 1}
	doc := RaysToSVG(d, v, camera(d), 400, 300, render.ThemePaper)

	assert.Equal(t, 2, strings.Count(doc, "<polyline"))
	assert.NotContains(t, doc, `data-ray="2"`)
	assert.NotContains(t, doc, "<circle")
}

func TestRaysToSVGHidden(t *testing.T) {
	d := dataset()
	doc := RaysToSVG(d, viewstate.Initial(), camera(d), 100, 100, render.ThemeCyberpunk)
	assertWellFormed(t, doc)
	assert.NotContains(t, doc, "<polyline")

	doc = RaysToSVG(nil, viewstate.ViewState{RaysVisible: true, ShowAllRays: true}, render.NewCamera(), 100, 100, render.ThemeCyberpunk)
	assertWellFormed(t, doc)
	assert.NotContains(t, doc, "<polyline")
}

func TestCanvasToSVG(t *testing.T) {
	c := render.NewCanvas(2, 1)
	c.Set(0, 0)
	c.Set(3, 3)

	doc := CanvasToSVG(c, 4, render.ThemeRetro)
	assertWellFormed(t, doc)
	assert.Equal(t, 2, strings.Count(doc, "<circle"))
	assert.Contains(t, doc, `width="16" height="16"`)
	assert.Empty(t, CanvasToSVG(nil, 4, render.ThemeRetro))
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rays.svg")
	require.NoError(t, WriteFile(path, "<svg/>"))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "<svg/>", string(data))
}

func TestNewDataPlayback(t *testing.T) {
	d := dataset()
	v := viewstate.ViewState{RaysVisible: true, PlaybackIndex: 0}
	data := NewData("trace.json", d, v, metrics.Default("detector"))

	assert.Equal(t, viewstate.ModePlayback, data.Mode)
	assert.Equal(t, d.Len(), data.RayCount)
	assert.Equal(t, []int{0}, data.Visible)
	require.Len(t, data.Rays, 1)
	assert.Contains(t, data.Metrics, "transmission")

	var buf bytes.Buffer
	require.NoError(t, EncodeJSON(&buf, data))
	assert.Contains(t, buf.String(), `"mode": "playback"`)
}

func TestNewDataHidden(t *testing.T) {
	data := NewData("trace.json", dataset(), viewstate.Initial(), nil)
	assert.Empty(t, data.Visible)
	assert.Empty(t, data.Metrics)

	path := filepath.Join(t.TempDir(), "rays.json")
	require.NoError(t, WriteJSON(path, data))
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"rays": []`)
}
