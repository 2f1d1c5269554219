// lttv is a CLI for the LTTV trace analysis engine: it decodes one or more
// Linux Trace Toolkit traces, drives them through the merged iterator with
// the process/execution-mode state tracker and stats aggregator installed,
// and either prints matching events, a stats rollup, or serves both live
// over HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/oklog/run"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"
	"github.com/peterbourgon/unixtransport"
)

func main() {
	var (
		ctx    = context.Background()
		stdin  = os.Stdin
		stdout = os.Stdout
		stderr = os.Stderr
		args   = os.Args[1:]
	)
	err := exec(ctx, stdin, stdout, stderr, args)
	switch {
	case err == nil, errors.Is(err, context.Canceled), errors.As(err, &(run.SignalError{})):
		os.Exit(0)
	case err != nil:
		fmt.Fprintf(stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func exec(ctx context.Context, stdin io.Reader, stdout, stderr io.Writer, args []string) (err error) {
	unixtransport.RegisterDefault()

	root := &rootConfig{stdin: stdin, stdout: stdout, stderr: stderr}
	rootFlags := ff.NewFlagSet("lttv")
	root.registerBaseFlags(rootFlags)
	rootCommand := &ff.Command{
		Name:      "lttv",
		ShortHelp: "decode and analyze Linux Trace Toolkit traces",
		Flags:     rootFlags,
	}

	processCfg := &processConfig{rootConfig: root}
	processFlags := ff.NewFlagSet("process").SetParent(rootFlags)
	processCfg.register(processFlags)
	processCommand := &ff.Command{
		Name:      "process",
		ShortHelp: "run the process-trace driver over one or more trace directories",
		LongHelp:  "Decode the given trace directories, track process/execution state, and print matching events or a stats rollup.",
		Flags:     processFlags,
		Exec:      processCfg.Exec,
	}
	rootCommand.Subcommands = append(rootCommand.Subcommands, processCommand)

	serveCfg := &serveConfig{rootConfig: root}
	serveFlags := ff.NewFlagSet("serve").SetParent(rootFlags)
	serveCfg.register(serveFlags)
	serveCommand := &ff.Command{
		Name:      "serve",
		ShortHelp: "serve a live JSON+SSE query surface over one or more trace directories",
		LongHelp:  "Decode the given trace directories in the background and serve /events, /events/stream, and /stats over HTTP.",
		Flags:     serveFlags,
		Exec:      serveCfg.Exec,
	}
	rootCommand.Subcommands = append(rootCommand.Subcommands, serveCommand)

	showHelp := true
	defer func() {
		errHelp := errors.Is(err, ff.ErrHelp) || errors.Is(err, ff.ErrNoExec)
		if showHelp || errHelp {
			fmt.Fprintf(stderr, "\n%s\n", ffhelp.Command(rootCommand))
		}
		if errHelp {
			err = nil
		}
	}()

	if err := rootCommand.Parse(args, ff.WithEnvVarPrefix("LTTV")); err != nil {
		return err
	}

	if err := root.setupLogging(); err != nil {
		return err
	}

	showHelp = false

	return rootCommand.Run(ctx)
}
