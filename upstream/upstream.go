package upstream

import (
	"time"
)

type Upstream interface {
	Upload(*Report)
}

// Report is the outcome of one benchmark variant.
type Report struct {
	Name       string
	Variant    string
	N          int
	Iterations int
	// Result is the formatted value of the last call.
	Result    string
	StartTime time.Time
	EndTime   time.Time
	Profiles  []*Profile
}

func (r *Report) Elapsed() time.Duration {
	return r.EndTime.Sub(r.StartTime)
}

// Profile is pprof data collected while the variant ran. Data may be gzipped.
type Profile struct {
	Type       string // e.g. cpu, wall
	SampleType string // pprof sample type to summarize, e.g. cpu, alloc_space
	Data       []byte
}
