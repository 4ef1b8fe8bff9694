package fibbench

import (
	"bytes"
	"io"
	"runtime"

	"github.com/grafana/pyroscope-go/godeltaprof"

	"github.com/grafana/fibbench/upstream"
)

type heapProfiler interface {
	Profile(w io.Writer) error
}

func newDeltaHeapProfiler() heapProfiler {
	// The workload loop is generic, keep its type parameters in frame names.
	return godeltaprof.NewHeapProfilerWithOptions(godeltaprof.ProfileOptions{
		GenericsFrames: true,
		LazyMappings:   true,
	})
}

// allocProfileCollector reports what was allocated between Start and Stop.
// The first delta heap profile is a baseline and is discarded.
type allocProfileCollector struct {
	profiler      heapProfiler
	disableGCRuns bool
	buf           *bytes.Buffer

	started bool
}

func newAllocProfileCollector(p heapProfiler, disableGCRuns bool) *allocProfileCollector {
	return &allocProfileCollector{
		profiler:      p,
		disableGCRuns: disableGCRuns,
		buf:           bytes.NewBuffer(make([]byte, 0, 1<<10)),
	}
}

func (a *allocProfileCollector) Type() ProfileType { return ProfileAlloc }

func (a *allocProfileCollector) Start() error {
	if a.started {
		return errCollectorStarted
	}
	a.gc()
	if err := a.profiler.Profile(io.Discard); err != nil {
		return err
	}
	a.started = true
	return nil
}

func (a *allocProfileCollector) Stop() (*upstream.Profile, error) {
	if !a.started {
		return nil, errCollectorNotStarted
	}
	a.started = false
	a.gc()
	a.buf.Reset()
	if err := a.profiler.Profile(a.buf); err != nil {
		return nil, err
	}
	p := &upstream.Profile{
		Type:       string(ProfileAlloc),
		SampleType: "alloc_space",
		Data:       copyBuf(a.buf.Bytes()),
	}
	a.buf.Reset()
	return p, nil
}

// gc publishes the allocations of the current cycle to the heap profile.
// Users can disable it with the DisableGCRuns option.
func (a *allocProfileCollector) gc() {
	if !a.disableGCRuns {
		runtime.GC()
	}
}
