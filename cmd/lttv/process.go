package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffval"

	"github.com/giraldeau/lttv"
	"github.com/giraldeau/lttv/lttvattr"
	"github.com/giraldeau/lttv/lttvdecode"
	"github.com/giraldeau/lttv/lttvdriver"
	"github.com/giraldeau/lttv/lttvfilter"
	"github.com/giraldeau/lttv/lttvhook"
	"github.com/giraldeau/lttv/lttviter"
	"github.com/giraldeau/lttv/lttvstate"
	"github.com/giraldeau/lttv/lttvstats"
)

// processConfig drives one batch pass over a set of trace directories: the
// process-trace driver (C9) pulling through the merged iterator (C5), with
// the state tracker (C6) and stats aggregator (C8) installed as hooks, and
// an optional filter expression (C7) selecting which events are printed.
type processConfig struct {
	*rootConfig

	Filter    string
	BatchSize int
	Stats     bool
}

func (cfg *processConfig) register(fs *ff.FlagSet) {
	fs.AddFlag(ff.FlagConfig{ShortName: 'q', LongName: "filter", Value: ffval.NewValue(&cfg.Filter), NoDefault: true, Usage: "boolean filter expression (spec.md §4.7)", Placeholder: "EXPR"})
	fs.AddFlag(ff.FlagConfig{ShortName: 'b', LongName: "batch-size", Value: ffval.NewValueDefault(&cfg.BatchSize, lttvdriver.DefaultBatchSize), Usage: "events processed per driver batch"})
	fs.AddFlag(ff.FlagConfig{ShortName: 's', LongName: "stats", Value: ffval.NewValue(&cfg.Stats), NoDefault: true, Usage: "print the rolled-up event/cpu-time stats tree instead of matching events"})
}

func (cfg *processConfig) Exec(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("at least one trace directory is required")
	}

	var node *lttvfilter.Node
	if cfg.Filter != "" {
		n, err := lttvfilter.Parse(cfg.Filter)
		if err != nil {
			return fmt.Errorf("parse filter: %w", err)
		}
		node = n
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
	var aggregators []*lttvstats.Aggregator
	eventHook := lttvhook.NewChain()
	byID := lttvhook.NewTable()

	enc := json.NewEncoder(cfg.stdout)
	if cfg.Output == "prettyjson" {
		enc.SetIndent("", "    ")
	}

	for ti, trace := range traceset.Traces {
		tracker := lttvstate.NewTracker(trace, len(allStreams[ti]))
		tracker.Install(byID)

		agg := lttvstats.NewAggregator(root, tracker)
		agg.Install(eventHook)
		aggregators = append(aggregators, agg)
	}

	littleEndian := true
	if len(traceset.Traces) > 0 {
		littleEndian = traceset.Traces[0].Header.Arch.LittleEndian
	}

	if node != nil && !cfg.Stats {
		eventHook.Insert(func(data any, callData any) bool {
			ev := callData.(*lttv.Event)
			if node.Eval(&lttvfilter.EvalContext{Event: ev, LittleEndian: littleEndian}) {
				enc.Encode(eventToMap(ev))
			}
			return false
		}, nil, -100) // runs before the aggregator, after tracker/byID updates
	} else if node == nil && !cfg.Stats {
		eventHook.Insert(func(data any, callData any) bool {
			ev := callData.(*lttv.Event)
			enc.Encode(eventToMap(ev))
			return false
		}, nil, -100)
	}

	n, err := lttvdriver.Run(ctx, it, lttviter.Hooks{Event: eventHook, ByID: byID}, lttv.Timestamp(1<<62), nil, cfg.BatchSize)
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}
	cfg.debug.Printf("processed %d events", n)

	if cfg.Stats {
		if len(aggregators) > 0 {
			aggregators[0].Rollup() // Rollup walks the shared root tree once; every tracker wrote into it
		}
		return enc.Encode(root.ToMap())
	}
	return nil
}

func eventToMap(ev *lttv.Event) map[string]any {
	name := ""
	if ev.Marker != nil {
		name = ev.Marker.Name
	}
	return map[string]any{
		"timestamp": uint64(ev.Timestamp),
		"event_id":  ev.EventID,
		"marker":    name,
		"cpu":       ev.CPU,
	}
}
