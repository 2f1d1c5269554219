package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"

	"github.com/oklog/run"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffval"

	"github.com/giraldeau/lttv"
	"github.com/giraldeau/lttv/internal/lttvpubsub"
	"github.com/giraldeau/lttv/lttvattr"
	"github.com/giraldeau/lttv/lttvdecode"
	"github.com/giraldeau/lttv/lttvdriver"
	"github.com/giraldeau/lttv/lttvhook"
	"github.com/giraldeau/lttv/lttviter"
	"github.com/giraldeau/lttv/lttvstate"
	"github.com/giraldeau/lttv/lttvstats"
	"github.com/giraldeau/lttv/lttvweb"
)

// serveConfig runs the process-trace driver in the background, publishing
// every decoded event to a broker, and serves lttvweb's JSON+SSE surface
// over the result (SPEC_FULL.md §6.S1). Grounded on the teacher's `trc
// serve`, which runs an http.Server behind a run.Group alongside a signal
// handler.
type serveConfig struct {
	*rootConfig

	ListenAddr string
	BatchSize  int
}

func (cfg *serveConfig) register(fs *ff.FlagSet) {
	fs.AddFlag(ff.FlagConfig{ShortName: 'a', LongName: "listen-addr", Value: ffval.NewValueDefault(&cfg.ListenAddr, "localhost:8001"), Usage: "HTTP server listen address", Placeholder: "ADDR"})
	fs.AddFlag(ff.FlagConfig{ShortName: 'b', LongName: "batch-size", Value: ffval.NewValueDefault(&cfg.BatchSize, lttvdriver.DefaultBatchSize), Usage: "events processed per driver batch"})
}

func (cfg *serveConfig) Exec(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("at least one trace directory is required")
	}

	traceset := &lttv.Traceset{}
	var allStreams [][]*lttvdecode.Stream
	for _, dir := range args {
		trace, streams, err := openTraceDir(dir)
		if err != nil {
			return err
		}
		defer closeStreams(streams)
		traceset.Traces = append(traceset.Traces, trace)
		allStreams = append(allStreams, streams)
	}

	it := lttviter.New(traceset, allStreams)

	root := lttvattr.NewBranch()
	byID := lttvhook.NewTable()
	eventHook := lttvhook.NewChain()

	var agg *lttvstats.Aggregator
	for ti, trace := range traceset.Traces {
		tracker := lttvstate.NewTracker(trace, len(allStreams[ti]))
		tracker.Install(byID)
		a := lttvstats.NewAggregator(root, tracker)
		a.Install(eventHook)
		agg = a // last tracker's aggregator shares the same root; Root() is tracker-independent
	}

	broker := lttvpubsub.NewBroker[*lttv.Event](nil)
	eventHook.Insert(func(data any, callData any) bool {
		broker.Publish(callData.(*lttv.Event))
		return false
	}, nil, -100)

	ln, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	cfg.info.Printf("listening on %s", ln.Addr().String())

	httpServer := &http.Server{Handler: lttvweb.NewServer(broker, agg)}

	var g run.Group
	{
		driveCtx, cancel := context.WithCancel(ctx)
		g.Add(func() error {
			n, err := lttvdriver.Run(driveCtx, it, lttviter.Hooks{Event: eventHook, ByID: byID}, lttv.Timestamp(1<<62), nil, cfg.BatchSize)
			cfg.info.Printf("driver finished: processed %d events", n)
			if agg != nil {
				agg.Rollup()
			}
			return err
		}, func(error) {
			cancel()
		})
	}
	{
		g.Add(func() error {
			return httpServer.Serve(ln)
		}, func(error) {
			ln.Close()
		})
	}
	{
		g.Add(run.SignalHandler(ctx, os.Interrupt, os.Kill))
	}
	return g.Run()
}
