package main

import (
	"errors"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/san-kum/rayview/internal/server"
	"github.com/san-kum/rayview/internal/tui"
)

var errNoTerminal = errors.New("view needs an interactive terminal; try serve or export-svg")

func runView(cmd *cobra.Command, args []string) error {
	if !term.IsTerminal(int(os.Stdout.Fd())) || !term.IsTerminal(int(os.Stdin.Fd())) {
		return errNoTerminal
	}

	// The viewer owns the screen, so logs go to a file or nowhere.
	logger = slog.New(slog.DiscardHandler)
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return err
		}
		defer f.Close()
		if logger, err = cfg.NewLogger(f); err != nil {
			return err
		}
	}

	s, err := openSession(args)
	if err != nil {
		return err
	}
	defer s.Close()

	return tui.Run(cmd.Context(), s, tui.Options{
		Theme:  cfg.Theme,
		FPS:    cfg.FPS,
		Camera: newCamera(),
		Invert: cfg.InvertCanvas,
		Logger: logger,
	})
}

func runServe(cmd *cobra.Command, args []string) error {
	ref, err := resolveRef(refArg(args))
	if err != nil {
		return err
	}
	loader, err := newLoader(ref)
	if err != nil {
		return err
	}

	srv := server.New(server.Config{
		Addr:          cfg.Addr,
		SessionSecret: cfg.SessionSecret,
		Timeout:       cfg.ServerTimeout,
		Ref:           ref,
		Loader:        loader,
		Transformer:   newTransformer(),
		NoticeLimit:   cfg.NoticeLimit,
		Theme:         cfg.Theme,
		NewCamera:     newCamera,
		Logger:        logger,
	})
	return srv.Serve(cmd.Context())
}
