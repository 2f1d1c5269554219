package main

import (
	"io"
	"log"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffval"
)

// rootConfig holds flags shared by every subcommand, mirroring the
// teacher CLI's root/filter split: one flag set registered on the root
// command, inherited by every subcommand's own FlagSet.
type rootConfig struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	LogLevel string
	Output   string

	info, debug *log.Logger
}

func (cfg *rootConfig) registerBaseFlags(fs *ff.FlagSet) {
	fs.AddFlag(ff.FlagConfig{
		ShortName:   'l',
		LongName:    "log",
		Value:       ffval.NewEnum(&cfg.LogLevel, "info", "i", "debug", "d", "none", "n"),
		Usage:       "log level: i/info, d/debug, n/none",
		Placeholder: "LEVEL",
	})
	fs.AddFlag(ff.FlagConfig{
		ShortName:   'o',
		LongName:    "output",
		Value:       ffval.NewEnum(&cfg.Output, "ndjson", "prettyjson"),
		Usage:       "output format: ndjson, prettyjson",
		Placeholder: "FORMAT",
	})
}

func (cfg *rootConfig) setupLogging() error {
	var infodst, debugdst io.Writer
	switch cfg.LogLevel {
	case "", "n", "none":
		infodst, debugdst = io.Discard, io.Discard
	case "i", "info":
		infodst, debugdst = cfg.stderr, io.Discard
	case "d", "debug":
		infodst, debugdst = cfg.stderr, cfg.stderr
	default:
		infodst, debugdst = cfg.stderr, io.Discard
	}
	cfg.info = log.New(infodst, "", 0)
	cfg.debug = log.New(debugdst, "[DEBUG] ", log.Lmsgprefix)
	return nil
}
