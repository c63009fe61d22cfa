package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/san-kum/rayview/internal/config"
	"github.com/san-kum/rayview/internal/rays"
	"github.com/san-kum/rayview/internal/render"
	"github.com/san-kum/rayview/internal/store"
	"github.com/san-kum/rayview/internal/trace"
	"github.com/san-kum/rayview/internal/viewstate"
)

var (
	configFile string
	cfg        *config.Config
	logger     *slog.Logger

	// view
	logFile string
	// info
	topRays int
	// gen
	genRays    int
	genSeed    uint64
	genProfile string
	// export-svg
	svgShowAll bool
	svgScatter bool
	svgIndex   int
	svgOut     string
	svgWidth   int
	svgHeight  int
	svgBraille bool
	// export-json
	jsonOut string
	// config init
	forceInit bool
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "rayview",
		Short: "particle ray trace viewer",
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" {
				return nil
			}
			var err error
			if cfg, err = config.Load(configFile, cmd.Flags()); err != nil {
				return err
			}
			logger, err = cfg.NewLogger(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if cfg.File != "" {
				logger.Debug("using config file", "path", cfg.File)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configFile, "config", "", "config file (default: ./rayview.yaml)")
	pf.String("data-dir", config.DefaultDataDir, "trace store directory")
	pf.String("log-level", "info", "log level (debug|info|warn|error)")
	pf.String("log-format", "text", "log format (text|json)")
	pf.String("theme", config.DefaultTheme, "color theme")
	pf.String("preset", config.DefaultPreset, "camera preset (side|top|beam|iso)")
	pf.Duration("fetch-timeout", config.DefaultFetchTimeout, "trace fetch timeout")
	pf.String("inspect", "", "show only rays reaching this component")

	_ = rootCmd.RegisterFlagCompletionFunc("theme", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return render.ThemeNames(), cobra.ShellCompDirectiveNoFileComp
	})
	_ = rootCmd.RegisterFlagCompletionFunc("preset", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return config.ListPresets(config.ViewPresets), cobra.ShellCompDirectiveNoFileComp
	})

	viewCmd := &cobra.Command{
		Use:   "view [ref]",
		Short: "interactive terminal viewer",
		Long: `Open a trace in the terminal viewer. ref is a file, an http(s) URL,
a run ID from the store or "latest" (the default). Rays stay hidden and
nothing is fetched until they are first shown.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runView,
	}
	viewCmd.Flags().Int("fps", config.DefaultFPS, "autoplay frame rate")
	viewCmd.Flags().Bool("invert-canvas", false, "draw the canvas in reverse video")
	viewCmd.Flags().StringVar(&logFile, "log-file", "", "write logs to this file while the viewer runs")

	serveCmd := &cobra.Command{
		Use:   "serve [ref]",
		Short: "serve the viewer over HTTP",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runServe,
	}
	serveCmd.Flags().String("addr", config.DefaultAddr, "listen address")
	serveCmd.Flags().Duration("timeout", config.DefaultServerTimeout, "stop the server after this long (0 runs until interrupted)")
	serveCmd.Flags().Int("notice-limit", config.DefaultNoticeLimit, "notices kept per session")

	infoCmd := &cobra.Command{
		Use:   "info [ref]",
		Short: "summarize a trace",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runInfo,
	}
	infoCmd.Flags().IntVar(&topRays, "top", 10, "list this many rays")

	genCmd := &cobra.Command{
		Use:   "gen [name]",
		Short: "generate a synthetic trace into the store",
		Args:  cobra.ExactArgs(1),
		RunE:  runGen,
	}
	genCmd.Flags().IntVar(&genRays, "rays", 0, "particles to trace")
	genCmd.Flags().Uint64Var(&genSeed, "seed", 0, "random seed")
	genCmd.Flags().StringVar(&genProfile, "profile", "", "generator profile (see presets)")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list stored runs",
		Args:  cobra.NoArgs,
		RunE:  runList,
	}

	exportCmd := &cobra.Command{
		Use:   "export-svg [ref]",
		Short: "render rays to SVG",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runExportSVG,
	}
	exportCmd.Flags().BoolVar(&svgShowAll, "show-all", false, "draw every ray instead of playback")
	exportCmd.Flags().BoolVar(&svgScatter, "scatter", false, "mark scatter points")
	exportCmd.Flags().IntVar(&svgIndex, "index", viewstate.NoPlayback, "playback cursor")
	exportCmd.Flags().StringVarP(&svgOut, "out", "o", "rays.svg", "output file")
	exportCmd.Flags().IntVar(&svgWidth, "width", 800, "image width")
	exportCmd.Flags().IntVar(&svgHeight, "height", 600, "image height")
	exportCmd.Flags().BoolVar(&svgBraille, "braille", false, "export the braille canvas instead of polylines")

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [ref]",
		Short: "dump revealed rays and metrics as JSON",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runExportJSON,
	}
	exportJSONCmd.Flags().BoolVar(&svgShowAll, "show-all", false, "include every ray instead of playback")
	exportJSONCmd.Flags().IntVar(&svgIndex, "index", viewstate.NoPlayback, "playback cursor")
	exportJSONCmd.Flags().StringVarP(&jsonOut, "out", "o", "-", "output file (- for stdout)")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list camera presets and generator profiles",
		Args:  cobra.NoArgs,
		RunE:  runPresets,
	}

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "manage the config file",
	}
	configInitCmd := &cobra.Command{
		Use:   "init [path]",
		Short: "write the effective config to a file",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runConfigInit,
	}
	configInitCmd.Flags().BoolVar(&forceInit, "force", false, "overwrite an existing file")
	configCmd.AddCommand(configInitCmd)

	rootCmd.AddCommand(viewCmd, serveCmd, infoCmd, genCmd, listCmd, exportCmd, exportJSONCmd, presetsCmd, configCmd)
	return rootCmd
}

func refArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return store.Latest
}

// resolveRef maps a run ID or "latest" onto a trace path. Unknown refs are
// passed on so the loader reports them when rays are first shown.
func resolveRef(ref string) (string, error) {
	resolved, err := store.New(cfg.DataDir).Resolve(ref)
	if err == nil {
		return resolved, nil
	}
	if errors.Is(err, store.ErrRunNotFound) && ref != store.Latest {
		logger.Warn("ref is neither a stored run nor an existing path", "ref", ref)
		return ref, nil
	}
	return "", err
}

func newLoader(ref string) (trace.Loader, error) {
	return trace.NewLoader(ref, cfg.FetchTimeout, logger)
}

func openSession(args []string) (*viewstate.Session, error) {
	ref, err := resolveRef(refArg(args))
	if err != nil {
		return nil, err
	}
	loader, err := newLoader(ref)
	if err != nil {
		return nil, err
	}
	return viewstate.New(loader, newTransformer(), ref,
		viewstate.WithLogger(logger),
		viewstate.WithNoticeLimit(cfg.NoticeLimit),
	), nil
}

func newTransformer() rays.Transformer {
	if cfg.Inspect != "" {
		logger.Debug("inspecting component", "component", cfg.Inspect)
	}
	return rays.Inspect(rays.NewParticleTransformer(logger), cfg.Inspect)
}

// loadSession opens a session and shows its rays, leaving it in playback.
func loadSession(ctx context.Context, args []string) (*viewstate.Session, error) {
	s, err := openSession(args)
	if err != nil {
		return nil, err
	}
	if err := s.ToggleRaysVisible(ctx); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func newCamera() *render.Camera {
	cam := render.NewCamera()
	if p := config.GetViewPreset(cfg.Preset); p != nil {
		p.Apply(cam)
	}
	return cam
}
