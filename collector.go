package fibbench

import (
	"bytes"
	"errors"
	"io"
	"runtime/pprof"

	"github.com/grafana/fibbench/upstream"
)

// collector captures one profile around a single variant run.
type collector interface {
	Type() ProfileType
	Start() error
	Stop() (*upstream.Profile, error)
}

var (
	errCollectorStarted    = errors.New("profile collector already started")
	errCollectorNotStarted = errors.New("profile collector not started")
)

func newCollector(t ProfileType, cfg Config) collector {
	switch t {
	case ProfileCPU:
		return newCPUProfileCollector(runtimeCPUProfiler{})
	case ProfileWall:
		return newWallClockProfileCollector()
	case ProfileAlloc:
		return newAllocProfileCollector(newDeltaHeapProfiler(), cfg.DisableGCRuns)
	}
	return nil
}

type cpuProfiler interface {
	StartCPUProfile(w io.Writer) error
	StopCPUProfile()
}

type runtimeCPUProfiler struct{}

func (runtimeCPUProfiler) StartCPUProfile(w io.Writer) error { return pprof.StartCPUProfile(w) }
func (runtimeCPUProfiler) StopCPUProfile()                   { pprof.StopCPUProfile() }

type cpuProfileCollector struct {
	buf       *bytes.Buffer
	collector cpuProfiler

	started bool
}

func newCPUProfileCollector(p cpuProfiler) *cpuProfileCollector {
	return &cpuProfileCollector{
		buf:       bytes.NewBuffer(make([]byte, 0, 1<<10)),
		collector: p,
	}
}

func (c *cpuProfileCollector) Type() ProfileType { return ProfileCPU }

// Start fails if CPU profiling is already in progress, for example when
// pprof.StartCPUProfile was called outside the package.
func (c *cpuProfileCollector) Start() error {
	if c.started {
		return errCollectorStarted
	}
	c.buf.Reset()
	if err := c.collector.StartCPUProfile(c.buf); err != nil {
		return err
	}
	c.started = true
	return nil
}

func (c *cpuProfileCollector) Stop() (*upstream.Profile, error) {
	if !c.started {
		return nil, errCollectorNotStarted
	}
	// pprof.StopCPUProfile flushes the remaining profile into the buffer.
	c.collector.StopCPUProfile()
	c.started = false
	p := &upstream.Profile{
		Type:       string(ProfileCPU),
		SampleType: "cpu",
		Data:       copyBuf(c.buf.Bytes()),
	}
	c.buf.Reset()
	return p, nil
}

func copyBuf(b []byte) []byte {
	r := make([]byte, len(b))
	copy(r, b)
	return r
}
