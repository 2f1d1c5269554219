package main

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/giraldeau/lttv"
	"github.com/giraldeau/lttv/lttvdecode"
)

// openTraceDir opens every per-CPU ring-buffer file under dir (named
// "cpu0", "cpu1", ... per spec.md §6.1) as one lttv.Trace with one
// lttvdecode.Stream per file, CPU-numbered by position in the sorted file
// list.
func openTraceDir(dir string) (*lttv.Trace, []*lttvdecode.Stream, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "cpu*"))
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", dir, err)
	}
	if len(matches) == 0 {
		return nil, nil, fmt.Errorf("%s: no per-CPU trace files found (expected cpu0, cpu1, ...)", dir)
	}
	sort.Strings(matches)

	trace := &lttv.Trace{Path: dir, Markers: lttv.NewMarkerRegistry()}
	streams := make([]*lttvdecode.Stream, 0, len(matches))
	for cpu, path := range matches {
		s, err := lttvdecode.Open(path, cpu, trace)
		if err != nil {
			for _, opened := range streams {
				opened.Close()
			}
			return nil, nil, fmt.Errorf("open %s: %w", path, err)
		}
		streams = append(streams, s)
	}
	return trace, streams, nil
}

func closeStreams(streams []*lttvdecode.Stream) {
	for _, s := range streams {
		s.Close()
	}
}
