package console

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"strconv"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/grafana/fibbench/internal/stackcollapse"
	"github.com/grafana/fibbench/upstream"
)

type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

const DefaultTopFrames = 5

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type Logger interface {
	Infof(_ string, _ ...interface{})
	Debugf(_ string, _ ...interface{})
	Errorf(_ string, _ ...interface{})
}

type noopLogger struct{}

func (noopLogger) Infof(_ string, _ ...interface{})  {}
func (noopLogger) Debugf(_ string, _ ...interface{}) {}
func (noopLogger) Errorf(_ string, _ ...interface{}) {}

type Config struct {
	Writer    io.Writer // os.Stdout if nil
	Format    Format
	TopFrames int // frames listed per profile; negative lists all
	Logger    Logger
}

// Console writes reports to a terminal or any other writer.
type Console struct {
	mu     sync.Mutex
	cfg    Config
	logger Logger
}

func New(cfg Config) (*Console, error) {
	if cfg.Writer == nil {
		cfg.Writer = os.Stdout
	}
	if cfg.Format == "" {
		cfg.Format = FormatText
	}
	if cfg.Format != FormatText && cfg.Format != FormatJSON {
		return nil, fmt.Errorf("unknown output format %q", cfg.Format)
	}
	if cfg.TopFrames == 0 {
		cfg.TopFrames = DefaultTopFrames
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	return &Console{cfg: cfg, logger: logger}, nil
}

func (c *Console) Upload(r *upstream.Report) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.safeUpload(r)
}

func (c *Console) safeUpload(r *upstream.Report) {
	defer func() {
		if catch := recover(); catch != nil {
			c.logger.Errorf("recover stack: %v", string(debug.Stack()))
		}
	}()

	var err error
	switch c.cfg.Format {
	case FormatJSON:
		err = c.writeJSON(r)
	default:
		err = c.writeText(r)
	}
	if err != nil {
		c.logger.Errorf("write report %s: %v", r.Variant, err)
	}
}

type profileSummary struct {
	Type       string                `json:"type"`
	SampleType string                `json:"sample_type"`
	Unit       string                `json:"unit"`
	Total      int64                 `json:"total"`
	Top        []stackcollapse.Frame `json:"top"`
}

func (c *Console) summarize(p *upstream.Profile) (*profileSummary, error) {
	prof, err := stackcollapse.Parse(p.Data)
	if err != nil {
		return nil, err
	}
	idx := stackcollapse.SampleIndex(prof, p.SampleType)
	s := &profileSummary{Type: p.Type}
	if idx >= 0 {
		s.SampleType = prof.SampleType[idx].Type
		s.Unit = prof.SampleType[idx].Unit
	}
	stacks := stackcollapse.Collapse(prof, idx)
	for _, st := range stacks {
		s.Total += st.Value
	}
	s.Top = stackcollapse.Top(stacks, c.cfg.TopFrames)
	return s, nil
}

func (c *Console) summaries(r *upstream.Report) []*profileSummary {
	ret := make([]*profileSummary, 0, len(r.Profiles))
	for _, p := range r.Profiles {
		s, err := c.summarize(p)
		if err != nil {
			c.logger.Errorf("%s %s profile: %v", r.Variant, p.Type, err)
			continue
		}
		ret = append(ret, s)
	}
	return ret
}

func (c *Console) writeText(r *upstream.Report) error {
	w := bufio.NewWriter(c.cfg.Writer)
	fmt.Fprintf(w, "%s(%d) = %s\n", r.Variant, r.N, r.Result)
	fmt.Fprintln(w, strconv.FormatFloat(r.Elapsed().Seconds(), 'f', -1, 64))
	for _, s := range c.summaries(r) {
		fmt.Fprintf(w, "  %s profile, %s total %d %s\n", s.Type, s.SampleType, s.Total, s.Unit)
		for _, f := range s.Top {
			fmt.Fprintf(w, "    %6.2f%%  %s\n", f.Share*100, f.Name)
		}
	}
	return w.Flush()
}

type jsonReport struct {
	Name           string            `json:"name,omitempty"`
	Variant        string            `json:"variant"`
	N              int               `json:"n"`
	Iterations     int               `json:"iterations"`
	Result         string            `json:"result"`
	StartTime      time.Time         `json:"start_time"`
	EndTime        time.Time         `json:"end_time"`
	ElapsedSeconds float64           `json:"elapsed_seconds"`
	Profiles       []*profileSummary `json:"profiles,omitempty"`
}

func (c *Console) writeJSON(r *upstream.Report) error {
	return json.NewEncoder(c.cfg.Writer).Encode(&jsonReport{
		Name:           r.Name,
		Variant:        r.Variant,
		N:              r.N,
		Iterations:     r.Iterations,
		Result:         r.Result,
		StartTime:      r.StartTime,
		EndTime:        r.EndTime,
		ElapsedSeconds: r.Elapsed().Seconds(),
		Profiles:       c.summaries(r),
	})
}
