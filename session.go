package fibbench

import (
	"context"
	"sort"
	"time"

	"github.com/grafana/pyroscope-go"

	"github.com/grafana/fibbench/upstream"
)

// session runs one variant and uploads its report.
type session struct {
	// configuration, doesn't change
	appName    string
	variant    Variant
	n          int
	iterations int
	tags       map[string]string
	workload   workload
	collectors []collector

	upstream upstream.Upstream
	logger   Logger
}

func newSession(cfg Config, v Variant) *session {
	s := &session{
		appName:    cfg.ApplicationName,
		variant:    v,
		n:          cfg.N,
		iterations: cfg.Iterations,
		tags:       cfg.Tags,
		workload:   workloads[v],
		upstream:   cfg.Upstream,
		logger:     cfg.Logger,
	}
	for _, t := range cfg.ProfileTypes {
		if c := newCollector(t, cfg); c != nil {
			s.collectors = append(s.collectors, c)
		}
	}
	return s
}

// labels returns the pprof labels the workload runs under.
func (s *session) labels() pyroscope.LabelSet {
	keys := make([]string, 0, len(s.tags))
	for k := range s.tags {
		if k != "variant" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	args := make([]string, 0, 2*len(keys)+2)
	args = append(args, "variant", string(s.variant))
	for _, k := range keys {
		args = append(args, k, s.tags[k])
	}
	return pyroscope.Labels(args...)
}

func (s *session) run(ctx context.Context) error {
	started := make([]collector, 0, len(s.collectors))
	for _, c := range s.collectors {
		if err := c.Start(); err != nil {
			s.logger.Errorf("start %s profile collector: %v", c.Type(), err)
			continue
		}
		started = append(started, c)
	}

	r := &upstream.Report{
		Name:       s.appName,
		Variant:    string(s.variant),
		N:          s.n,
		Iterations: s.iterations,
	}
	s.logger.Debugf("running %s n=%d iterations=%d", s.variant, s.n, s.iterations)
	var err error
	pyroscope.TagWrapper(ctx, s.labels(), func(c context.Context) {
		r.StartTime = time.Now()
		r.Result, err = s.workload(c, s.n, s.iterations)
		r.EndTime = time.Now()
	})

	for _, c := range started {
		p, stopErr := c.Stop()
		if stopErr != nil {
			s.logger.Errorf("stop %s profile collector: %v", c.Type(), stopErr)
			continue
		}
		r.Profiles = append(r.Profiles, p)
	}
	if err != nil {
		return err
	}
	s.logger.Debugf("%s done in %s", s.variant, r.Elapsed())
	s.upstream.Upload(r)
	return nil
}
