package testutil

import (
	"fmt"
	"strings"
	"sync"
)

// TestLogger records every line logged through it, regardless of level.
type TestLogger struct {
	sync.Mutex

	lines []string
}

func NewTestLogger() *TestLogger {
	return &TestLogger{lines: make([]string, 0)}
}

func (t *TestLogger) Debugf(format string, args ...interface{}) { t.putf("debug", format, args...) }
func (t *TestLogger) Infof(format string, args ...interface{})  { t.putf("info", format, args...) }
func (t *TestLogger) Errorf(format string, args ...interface{}) { t.putf("error", format, args...) }

func (t *TestLogger) putf(level, format string, args ...interface{}) {
	t.Lock()
	t.lines = append(t.lines, level+": "+fmt.Sprintf(format, args...))
	t.Unlock()
}

// Lines returns a copy of the logged lines, each prefixed with its level.
func (t *TestLogger) Lines() []string {
	t.Lock()
	defer t.Unlock()

	return append([]string(nil), t.lines...)
}

// Contains reports whether any logged line contains s.
func (t *TestLogger) Contains(s string) bool {
	for _, line := range t.Lines() {
		if strings.Contains(line, s) {
			return true
		}
	}
	return false
}
