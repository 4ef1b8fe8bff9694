package fibbench

import (
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grafana/fibbench/fibonacci"
	"github.com/grafana/fibbench/internal/stackcollapse"
	"github.com/grafana/fibbench/upstream"
)

func Test_cpuProfileCollector_lifecycle(t *testing.T) {
	m := new(mockCollector)
	c := newCPUProfileCollector(m)

	_, err := c.Stop()
	assert.ErrorIs(t, err, errCollectorNotStarted)

	require.NoError(t, c.Start())
	assert.ErrorIs(t, c.Start(), errCollectorStarted)
	assert.Equal(t, 1, m.starts)

	p, err := c.Stop()
	require.NoError(t, err)
	assert.Equal(t, 1, m.stops)
	assert.Equal(t, "cpu", p.Type)
	assert.Equal(t, "cpu", p.SampleType)
	assert.Equal(t, []byte("profile"), p.Data)

	// The collector can be reused by the next variant.
	require.NoError(t, c.Start())
	p, err = c.Stop()
	require.NoError(t, err)
	assert.Equal(t, []byte("profile"), p.Data)
}

func Test_cpuProfileCollector_busy(t *testing.T) {
	m := &mockCollector{startErr: errors.New("cpu profiling already in use")}
	c := newCPUProfileCollector(m)

	assert.EqualError(t, c.Start(), "cpu profiling already in use")
	_, err := c.Stop()
	assert.ErrorIs(t, err, errCollectorNotStarted)
	assert.Zero(t, m.stops)
}

func Test_cpuProfileCollector_runtime(t *testing.T) {
	c := newCPUProfileCollector(runtimeCPUProfiler{})
	require.NoError(t, c.Start())
	spin(100 * time.Millisecond)
	p, err := c.Stop()
	require.NoError(t, err)

	prof, err := stackcollapse.Parse(p.Data)
	require.NoError(t, err)
	assert.Equal(t, "cpu", prof.SampleType[stackcollapse.SampleIndex(prof, p.SampleType)].Type)
}

func Test_wallClockProfileCollector(t *testing.T) {
	c := newWallClockProfileCollector()
	require.NoError(t, c.Start())
	assert.ErrorIs(t, c.Start(), errCollectorStarted)
	time.Sleep(100 * time.Millisecond)
	p, err := c.Stop()
	require.NoError(t, err)
	assert.Equal(t, "wall", p.Type)

	prof, err := stackcollapse.Parse(p.Data)
	require.NoError(t, err)
	assert.Equal(t, "time", prof.SampleType[stackcollapse.SampleIndex(prof, p.SampleType)].Type)

	_, err = c.Stop()
	assert.ErrorIs(t, err, errCollectorNotStarted)
}

var sink [][]int64

func Test_allocProfileCollector(t *testing.T) {
	c := newAllocProfileCollector(newDeltaHeapProfiler(), false)
	require.NoError(t, c.Start())
	for i := 0; i < 4096; i++ {
		seq, err := fibonacci.Sequence(1000)
		require.NoError(t, err)
		sink = append(sink, seq)
	}
	p, err := c.Stop()
	sink = nil
	require.NoError(t, err)
	assert.Equal(t, "alloc", p.Type)

	prof, err := stackcollapse.Parse(p.Data)
	require.NoError(t, err)
	idx := stackcollapse.SampleIndex(prof, p.SampleType)
	require.Equal(t, "alloc_space", prof.SampleType[idx].Type)
	var total int64
	for _, s := range stackcollapse.Collapse(prof, idx) {
		total += s.Value
	}
	assert.Greater(t, total, int64(0))
}

func Test_allocProfileCollector_profilerError(t *testing.T) {
	h := &mockHeapProfiler{err: errors.New("boom")}
	c := newAllocProfileCollector(h, true)
	assert.EqualError(t, c.Start(), "boom")

	h.err = nil
	require.NoError(t, c.Start())
	h.err = errors.New("boom again")
	_, err := c.Stop()
	assert.EqualError(t, err, "boom again")
	assert.Equal(t, 3, h.calls)
}

func spin(d time.Duration) {
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		_, _ = fibonacci.Recursive(20)
	}
}

type mockCollector struct {
	sync.Mutex
	starts   int
	stops    int
	startErr error
	w        io.Writer
}

func (m *mockCollector) StartCPUProfile(w io.Writer) error {
	m.Lock()
	defer m.Unlock()
	if m.startErr != nil {
		return m.startErr
	}
	m.starts++
	m.w = w
	return nil
}

func (m *mockCollector) StopCPUProfile() {
	m.Lock()
	defer m.Unlock()
	m.stops++
	_, _ = m.w.Write([]byte("profile"))
}

type mockHeapProfiler struct {
	calls int
	err   error
}

func (m *mockHeapProfiler) Profile(w io.Writer) error {
	m.calls++
	if m.err != nil {
		return m.err
	}
	_, err := w.Write([]byte("heap"))
	return err
}

// stubCollector is a collector that returns a fixed profile.
type stubCollector struct {
	typ      ProfileType
	startErr error
	stopErr  error
	stopped  bool
}

func (s *stubCollector) Type() ProfileType { return s.typ }
func (s *stubCollector) Start() error      { return s.startErr }

func (s *stubCollector) Stop() (*upstream.Profile, error) {
	s.stopped = true
	if s.stopErr != nil {
		return nil, s.stopErr
	}
	return &upstream.Profile{Type: string(s.typ), Data: []byte(s.typ)}, nil
}
