package fibbench

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"go.uber.org/multierr"

	"github.com/grafana/fibbench/fibonacci"
	"github.com/grafana/fibbench/upstream"
	"github.com/grafana/fibbench/upstream/console"
)

type ProfileType string

const (
	ProfileCPU   ProfileType = "cpu"
	ProfileWall  ProfileType = "wall"
	ProfileAlloc ProfileType = "alloc"

	DefaultIterations = 100000
	DefaultAppName    = "fibbench"
)

var DefaultVariants = []Variant{VariantIterative}

var AllProfileTypes = []ProfileType{ProfileCPU, ProfileWall, ProfileAlloc}

type Config struct {
	ApplicationName string
	Tags            map[string]string // added to the pprof labels of every variant, "variant" is reserved
	N               int
	Iterations      int
	Variants        []Variant
	ProfileTypes    []ProfileType
	Upstream        upstream.Upstream
	Logger          Logger
	DisableGCRuns   bool // this will disable runtime.GC runs around the alloc profile
}

// Logger is a small subset of the logrus API, a *logrus.Logger satisfies it.
// The same method set is accepted by pyroscope.Config.
type Logger interface {
	Infof(_ string, _ ...interface{})
	Debugf(_ string, _ ...interface{})
	Errorf(_ string, _ ...interface{})
}

type noopLogger struct{}

func (noopLogger) Infof(_ string, _ ...interface{})  {}
func (noopLogger) Debugf(_ string, _ ...interface{}) {}
func (noopLogger) Errorf(_ string, _ ...interface{}) {}

// StandardLogger writes to stderr, stdout carries the reports.
var StandardLogger Logger = newStandardLogger(os.Stderr)

type standardLogger struct {
	mu sync.Mutex
	w  io.Writer
}

func newStandardLogger(w io.Writer) *standardLogger {
	return &standardLogger{w: w}
}

func (l *standardLogger) Infof(format string, args ...interface{})  { l.logf("INFO ", format, args...) }
func (l *standardLogger) Debugf(format string, args ...interface{}) { l.logf("DEBUG", format, args...) }
func (l *standardLogger) Errorf(format string, args ...interface{}) { l.logf("ERROR", format, args...) }

func (l *standardLogger) logf(level, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.w, "["+level+"] "+format+"\n", args...)
}

type Benchmark struct {
	cfg Config
}

// New validates cfg and fills in the defaults.
func New(cfg Config) (*Benchmark, error) {
	if cfg.N < 0 {
		return nil, fmt.Errorf("%w: negative index %d", fibonacci.ErrInvalidArgument, cfg.N)
	}
	if cfg.Iterations < 0 {
		return nil, fmt.Errorf("%w: negative iterations %d", fibonacci.ErrInvalidArgument, cfg.Iterations)
	}
	if cfg.Iterations == 0 {
		cfg.Iterations = DefaultIterations
	}
	if len(cfg.Variants) == 0 {
		cfg.Variants = DefaultVariants
	}
	if cfg.ApplicationName == "" {
		cfg.ApplicationName = DefaultAppName
	}
	if cfg.Logger == nil {
		cfg.Logger = noopLogger{}
	}
	for _, v := range cfg.Variants {
		if _, ok := workloads[v]; !ok {
			return nil, fmt.Errorf("unknown variant %q", v)
		}
	}
	for _, t := range cfg.ProfileTypes {
		if !t.valid() {
			return nil, fmt.Errorf("unknown profile type %q", t)
		}
	}
	if cfg.Upstream == nil {
		c, err := console.New(console.Config{Logger: cfg.Logger})
		if err != nil {
			return nil, err
		}
		cfg.Upstream = c
	}

	cfg.Logger.Infof("starting benchmark:")
	cfg.Logger.Infof("  AppName:       %+v", cfg.ApplicationName)
	cfg.Logger.Infof("  Tags:          %+v", cfg.Tags)
	cfg.Logger.Infof("  N:             %+v", cfg.N)
	cfg.Logger.Infof("  Iterations:    %+v", cfg.Iterations)
	cfg.Logger.Infof("  Variants:      %+v", cfg.Variants)
	cfg.Logger.Infof("  ProfileTypes:  %+v", cfg.ProfileTypes)
	cfg.Logger.Infof("  DisableGCRuns: %+v", cfg.DisableGCRuns)
	if cfg.N > fibonacci.MaxInt64Index {
		for _, v := range cfg.Variants {
			if v.wraps() {
				cfg.Logger.Infof("n=%d exceeds %d, %s results wrap around int64", cfg.N, fibonacci.MaxInt64Index, v)
			}
		}
	}

	return &Benchmark{cfg: cfg}, nil
}

// Run runs every configured variant in order and uploads one report per
// variant. A failing variant does not stop the others; all failures are
// returned together.
func (b *Benchmark) Run(ctx context.Context) error {
	var errs error
	for _, v := range b.cfg.Variants {
		if err := ctx.Err(); err != nil {
			return multierr.Append(errs, err)
		}
		s := newSession(b.cfg, v)
		if err := s.run(ctx); err != nil {
			b.cfg.Logger.Errorf("variant %s: %v", v, err)
			errs = multierr.Append(errs, fmt.Errorf("variant %s: %w", v, err))
		}
	}
	return errs
}

func (t ProfileType) valid() bool {
	for _, p := range AllProfileTypes {
		if p == t {
			return true
		}
	}
	return false
}

// ParseProfileTypes parses a comma separated list such as "cpu,alloc".
func ParseProfileTypes(s string) ([]ProfileType, error) {
	var ret []ProfileType
	for _, f := range splitList(s) {
		t := ProfileType(f)
		if !t.valid() {
			return nil, fmt.Errorf("unknown profile type %q", f)
		}
		ret = append(ret, t)
	}
	return ret, nil
}

func splitList(s string) []string {
	var ret []string
	for _, f := range strings.Split(s, ",") {
		if f = strings.TrimSpace(f); f != "" {
			ret = append(ret, f)
		}
	}
	return ret
}
