package fibbench

import (
	"bytes"
	"errors"

	"github.com/felixge/fgprof"

	"github.com/grafana/fibbench/upstream"
)

// wallClockProfileCollector samples all goroutines, on and off CPU, with fgprof.
type wallClockProfileCollector struct {
	buf  *bytes.Buffer
	stop func() error
}

func newWallClockProfileCollector() *wallClockProfileCollector {
	return &wallClockProfileCollector{
		buf: bytes.NewBuffer(make([]byte, 0, 1<<10)),
	}
}

func (w *wallClockProfileCollector) Type() ProfileType { return ProfileWall }

func (w *wallClockProfileCollector) Start() error {
	if w.stop != nil {
		return errCollectorStarted
	}
	w.buf.Reset()
	w.stop = fgprof.Start(w.buf, fgprof.FormatPprof)
	return nil
}

func (w *wallClockProfileCollector) Stop() (*upstream.Profile, error) {
	if w.stop == nil {
		return nil, errCollectorNotStarted
	}
	err := w.stop()
	w.stop = nil
	if err != nil {
		return nil, err
	}
	if w.buf.Len() == 0 {
		return nil, errors.New("empty wall-clock profile")
	}
	p := &upstream.Profile{
		Type:       string(ProfileWall),
		SampleType: "time",
		Data:       copyBuf(w.buf.Bytes()),
	}
	w.buf.Reset()
	return p, nil
}
