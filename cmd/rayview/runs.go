package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"sort"
	"strings"

	"github.com/guptarohit/asciigraph"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/san-kum/rayview/internal/config"
	"github.com/san-kum/rayview/internal/export"
	"github.com/san-kum/rayview/internal/metrics"
	"github.com/san-kum/rayview/internal/rays"
	"github.com/san-kum/rayview/internal/render"
	"github.com/san-kum/rayview/internal/store"
	"github.com/san-kum/rayview/internal/trace"
	"github.com/san-kum/rayview/internal/tracegen"
	"github.com/san-kum/rayview/internal/viewstate"
)

const histogramBins = 40

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.Style().Format.Footer = text.FormatDefault
	return t
}

func runInfo(cmd *cobra.Command, args []string) error {
	s, err := loadSession(cmd.Context(), args)
	if err != nil {
		return err
	}
	defer s.Close()

	d := s.Dataset()
	out := cmd.OutOrStdout()
	vmin, vmax := d.SpeedRange()
	b := d.Bounds()

	t := newTable(out)
	t.AppendRows([]table.Row{
		{"ref", s.Ref()},
		{"rays", d.Len()},
		{"events", d.EventCount()},
		{"speed", fmt.Sprintf("%.1f - %.1f m/s", vmin, vmax)},
		{"bounds min", fmt.Sprintf("%.4g %.4g %.4g", b.Min.X, b.Min.Y, b.Min.Z)},
		{"bounds max", fmt.Sprintf("%.4g %.4g %.4g", b.Max.X, b.Max.Y, b.Max.Z)},
		{"scatter points", len(d.ScatterPoints(-1))},
	})
	t.Render()
	fmt.Fprintln(out)

	comps := componentCounts(d)
	ct := newTable(out)
	ct.AppendHeader(table.Row{"component", "events"})
	for _, c := range sortedKeys(comps) {
		ct.AppendRow(table.Row{c, comps[c]})
	}
	ct.Render()
	fmt.Fprintln(out)

	mt := newTable(out)
	mt.AppendHeader(table.Row{"metric", "value"})
	for _, r := range metrics.Evaluate(d, metrics.Default(cfg.Instrument.Detector())...) {
		mt.AppendRow(table.Row{r.Name, fmt.Sprintf("%.4g", r.Value)})
	}
	mt.Render()
	fmt.Fprintln(out)

	if topRays > 0 {
		rt := newTable(out)
		rt.AppendHeader(table.Row{"#", "speed", "events", "path"})
		for i, r := range d.Rays() {
			if i >= topRays {
				break
			}
			rt.AppendRow(table.Row{i, fmt.Sprintf("%.1f", r.Speed), len(r.Events), rayPath(r)})
		}
		if d.Len() > topRays {
			rt.AppendFooter(table.Row{"", "", "", fmt.Sprintf("%d more", d.Len()-topRays)})
		}
		rt.Render()
		fmt.Fprintln(out)
	}

	if vmax > vmin {
		fmt.Fprintln(out, asciigraph.Plot(speedHistogram(d, histogramBins),
			asciigraph.Height(10),
			asciigraph.Width(2*histogramBins),
			asciigraph.Caption(fmt.Sprintf("speed distribution %.0f-%.0f m/s", vmin, vmax)),
		))
	}
	return nil
}

func componentCounts(d *rays.Dataset) map[string]int {
	counts := make(map[string]int)
	for _, r := range d.Rays() {
		for _, e := range r.Events {
			name := e.Component
			if name == "" {
				name = "-"
			}
			counts[name]++
		}
	}
	return counts
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func rayPath(r rays.Ray) string {
	names := make([]string, 0, len(r.Events))
	for _, e := range r.Events {
		if e.Component != "" {
			names = append(names, e.Component)
		}
	}
	return strings.Join(names, " > ")
}

// speedHistogram counts ray speeds into n equal-width bins.
func speedHistogram(d *rays.Dataset, n int) []float64 {
	vmin, vmax := d.SpeedRange()
	bins := make([]float64, n)
	span := vmax - vmin
	for _, r := range d.Rays() {
		i := 0
		if span > 0 {
			i = int(math.Floor((r.Speed - vmin) / span * float64(n)))
		}
		bins[min(max(i, 0), n-1)]++
	}
	return bins
}

func runGen(cmd *cobra.Command, args []string) error {
	gen := cfg.Generator
	if genProfile != "" {
		p, ok := config.GetGenPreset(genProfile)
		if !ok {
			return fmt.Errorf("unknown profile: %s (available: %v)", genProfile, config.ListPresets(config.GenPresets))
		}
		gen = p
		if cmd.Flags().Changed("rays") {
			gen.Rays = genRays
		}
		if cmd.Flags().Changed("seed") {
			gen.Seed = genSeed
		}
	}

	g, err := tracegen.New(cfg.Instrument, gen, logger)
	if err != nil {
		return err
	}
	bundle, err := g.Generate(cmd.Context())
	if err != nil {
		return err
	}
	payload, err := bundle.JSON()
	if err != nil {
		return err
	}

	// Round-trip through the transformer so only loadable traces are stored.
	d, err := rays.NewParticleTransformer(logger).Transform(&trace.Raw{Ref: args[0], Payload: payload})
	if err != nil {
		return fmt.Errorf("generated trace does not load: %w", err)
	}

	st := store.New(cfg.DataDir)
	if err := st.Init(); err != nil {
		return err
	}
	meta, err := st.Save(store.Run{
		Name:      args[0],
		Payload:   payload,
		Dataset:   d,
		Seed:      int64(gen.Seed),
		Generator: "tracegen",
		Settings:  gen.Settings(),
	})
	if err != nil {
		return err
	}

	logger.Info("trace saved", "run", meta.Run, "rays", meta.RayCount, "events", meta.Events)
	fmt.Fprintf(cmd.OutOrStdout(), "run saved: %s\n", meta.Run)
	return nil
}

func runList(cmd *cobra.Command, _ []string) error {
	runs, err := store.New(cfg.DataDir).List()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintln(out, "no runs found")
		return nil
	}

	t := newTable(out)
	t.AppendHeader(table.Row{"run", "name", "created", "rays", "events", "seed", "generator"})
	for _, r := range runs {
		t.AppendRow(table.Row{r.Run, r.Name, r.Created.Format("2006-01-02 15:04:05"), r.RayCount, r.Events, r.Seed, r.Generator})
	}
	t.Render()
	return nil
}

// exportSession loads a trace and applies the export view flags to it.
func exportSession(cmd *cobra.Command, args []string) (*viewstate.Session, error) {
	s, err := loadSession(cmd.Context(), args)
	if err != nil {
		return nil, err
	}
	if err := applyExportView(s); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func applyExportView(s *viewstate.Session) error {
	if svgShowAll {
		if err := s.ToggleShowAllRays(); err != nil {
			return err
		}
	} else if svgIndex != viewstate.NoPlayback {
		if err := s.SetPlaybackIndex(svgIndex); err != nil {
			return err
		}
	}
	if svgScatter {
		return s.ToggleScatterPoints()
	}
	return nil
}

func runExportSVG(cmd *cobra.Command, args []string) error {
	s, err := exportSession(cmd, args)
	if err != nil {
		return err
	}
	defer s.Close()

	d := s.Dataset()
	cam := newCamera()
	cam.Fit(d.Bounds())
	theme := render.GetTheme(cfg.Theme)

	var svg string
	if svgBraille {
		const dot = 4
		cols, lines := svgWidth/(2*dot), svgHeight/(4*dot)
		svg = export.CanvasToSVG(render.BuildScene(d, s.View()).Frame(cam, cols, lines), dot, theme)
	} else {
		svg = export.RaysToSVG(d, s.View(), cam, svgWidth, svgHeight, theme)
	}
	if err := export.WriteFile(svgOut, svg); err != nil {
		return err
	}
	logger.Info("svg written", "path", svgOut, "mode", s.Snapshot().Mode, "rays", len(render.Visible(d, s.View())))
	return nil
}

func runExportJSON(cmd *cobra.Command, args []string) error {
	s, err := exportSession(cmd, args)
	if err != nil {
		return err
	}
	defer s.Close()

	d := s.Dataset()
	data := export.NewData(s.Ref(), d, s.View(), metrics.Default(cfg.Instrument.Detector()))
	if jsonOut == "-" {
		return export.EncodeJSON(cmd.OutOrStdout(), data)
	}
	if err := export.WriteJSON(jsonOut, data); err != nil {
		return err
	}
	logger.Info("json written", "path", jsonOut, "mode", data.Mode, "rays", len(data.Rays))
	return nil
}

func runPresets(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()

	t := newTable(out)
	t.SetTitle("camera presets")
	t.AppendHeader(table.Row{"name", "description"})
	for _, name := range config.ListPresets(config.ViewPresets) {
		t.AppendRow(table.Row{name, config.ViewPresets[name].Description})
	}
	t.Render()
	fmt.Fprintln(out)

	gt := newTable(out)
	gt.SetTitle("generator profiles")
	gt.AppendHeader(table.Row{"name", "rays", "speed", "divergence", "scatter"})
	for _, name := range config.ListPresets(config.GenPresets) {
		g := config.GenPresets[name]
		gt.AppendRow(table.Row{name, g.Rays, fmt.Sprintf("%.0f-%.0f", g.SpeedMin, g.SpeedMax), g.Divergence, g.ScatterProb})
	}
	gt.Render()
	fmt.Fprintln(out)

	fmt.Fprintf(out, "themes: %s\n", strings.Join(render.ThemeNames(), ", "))
	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := config.FileNames[0]
	if len(args) > 0 {
		path = args[0]
	}
	if _, err := os.Stat(path); err == nil && !forceInit {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	if err := config.Save(path, cfg); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "config written: %s\n", path)
	return nil
}
