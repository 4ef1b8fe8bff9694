package fibbench

import (
	"context"
	"errors"
	"runtime/pprof"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/grafana/fibbench/internal/testutil"
	"github.com/grafana/fibbench/upstream"
)

func testSession(u upstream.Upstream, logger Logger, w workload, collectors ...collector) *session {
	return &session{
		appName:    "test",
		variant:    VariantIterative,
		n:          10,
		iterations: 3,
		workload:   w,
		collectors: collectors,
		upstream:   u,
		logger:     logger,
	}
}

func TestSessionUploadsReport(t *testing.T) {
	u := new(mockUpstream)
	u.On("Upload", mock.Anything).Return()

	cpu := &stubCollector{typ: ProfileCPU}
	wall := &stubCollector{typ: ProfileWall}
	s := testSession(u, testutil.NewTestLogger(), workloads[VariantIterative], cpu, wall)
	require.NoError(t, s.run(context.Background()))

	require.Len(t, u.reports, 1)
	r := u.reports[0]
	assert.Equal(t, "test", r.Name)
	assert.Equal(t, "iterative", r.Variant)
	assert.Equal(t, 10, r.N)
	assert.Equal(t, 3, r.Iterations)
	assert.Equal(t, "55", r.Result)
	assert.False(t, r.StartTime.IsZero())
	assert.GreaterOrEqual(t, int64(r.Elapsed()), int64(0))
	require.Len(t, r.Profiles, 2)
	assert.Equal(t, "cpu", r.Profiles[0].Type)
	assert.Equal(t, "wall", r.Profiles[1].Type)
	u.AssertExpectations(t)
}

func TestSessionSkipsFailingCollectors(t *testing.T) {
	u := new(mockUpstream)
	u.On("Upload", mock.Anything).Return()
	logger := testutil.NewTestLogger()

	busy := &stubCollector{typ: ProfileCPU, startErr: errors.New("cpu profiling already in use")}
	broken := &stubCollector{typ: ProfileAlloc, stopErr: errors.New("no heap")}
	wall := &stubCollector{typ: ProfileWall}
	s := testSession(u, logger, workloads[VariantIterative], busy, broken, wall)
	require.NoError(t, s.run(context.Background()))

	assert.False(t, busy.stopped)
	assert.True(t, broken.stopped)
	require.Len(t, u.reports, 1)
	require.Len(t, u.reports[0].Profiles, 1)
	assert.Equal(t, "wall", u.reports[0].Profiles[0].Type)
	assert.Contains(t, logger.Lines(), "error: start cpu profile collector: cpu profiling already in use")
	assert.Contains(t, logger.Lines(), "error: stop alloc profile collector: no heap")
}

func TestSessionWorkloadError(t *testing.T) {
	u := new(mockUpstream)
	wall := &stubCollector{typ: ProfileWall}
	s := testSession(u, testutil.NewTestLogger(), workloads[VariantRecursive], wall)
	s.variant = VariantRecursive
	s.n = MaxRecursiveIndex + 1

	err := s.run(context.Background())
	assert.ErrorIs(t, err, ErrIndexTooLarge)
	assert.True(t, wall.stopped)
	assert.Empty(t, u.reports)
	u.AssertNotCalled(t, "Upload", mock.Anything)
}

func TestSessionLabels(t *testing.T) {
	s := testSession(nil, noopLogger{}, nil)
	s.variant = VariantSequence
	s.tags = map[string]string{"region": "eu", "host": "a", "variant": "ignored"}

	labels := make(map[string]string)
	ctx := pprof.WithLabels(context.Background(), s.labels())
	pprof.ForLabels(ctx, func(key, value string) bool {
		labels[key] = value
		return true
	})
	assert.Equal(t, map[string]string{
		"variant": "sequence",
		"region":  "eu",
		"host":    "a",
	}, labels)
}

type mockUpstream struct {
	mock.Mock
	reports []*upstream.Report
}

func (m *mockUpstream) Upload(r *upstream.Report) {
	m.Called(r)
	m.reports = append(m.reports, r)
}
