// Command decks is a two-deck DJ mixer for the terminal.
//
// Usage:
//
//	decks [flags] console [track-a] [track-b]
//	decks [flags] render -o mix.wav track-a track-b
//
// Tracks are local WAV or MP3 files or http(s) URLs. Configuration is read
// from a YAML file (see -c) and DECKS_* environment variables.
//
// Examples:
//
//	decks console intro.mp3 peak.mp3
//	decks -c decks.yaml render --length 90 --at 45 -o mix.wav a.wav b.wav
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/alecthomas/kong"

	"github.com/madcamp4-daw-project/madcamp4-daw-project-sub001/config"
)

var version = "0.1.0"

// CLI defines the command line.
type CLI struct {
	Config  string           `short:"c" type:"path" help:"Path to a YAML config file."`
	LogFile string           `type:"path" help:"Write logs to this file instead of stderr."`
	Version kong.VersionFlag `short:"v" help:"Show version information."`

	Console ConsoleCmd `cmd:"" default:"withargs" help:"Mix two decks live with keyboard control."`
	Render  RenderCmd  `cmd:"" help:"Render a transition between two tracks to a WAV file."`
}

// app carries what every subcommand needs.
type app struct {
	cfg config.Config
	log *slog.Logger
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("decks"),
		kong.Description("Two-deck DJ mixer with beat matching and automated transitions."),
		kong.UsageOnError(),
		kong.Vars{"version": version},
	)

	cfg, err := config.Load(cli.Config)
	ctx.FatalIfErrorf(err)

	logOut, closeLog, err := openLog(cli.LogFile, ctx.Command())
	ctx.FatalIfErrorf(err)
	defer closeLog()

	a := &app{
		cfg: cfg,
		log: slog.New(slog.NewTextHandler(logOut, &slog.HandlerOptions{Level: cfg.Level()})),
	}
	slog.SetDefault(a.log)
	ctx.FatalIfErrorf(ctx.Run(a))
}

// openLog picks the log destination. The console owns the terminal, so it
// logs nowhere unless a file is given.
func openLog(path, command string) (io.Writer, func(), error) {
	if path == "" {
		if strings.HasPrefix(command, "render") {
			return os.Stderr, func() {}, nil
		}
		return io.Discard, func() {}, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}
