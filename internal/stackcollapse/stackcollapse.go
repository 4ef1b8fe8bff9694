// Package stackcollapse folds pprof samples into stacks and self frames.
package stackcollapse

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	gprofile "github.com/google/pprof/profile"
)

type Stack struct {
	Funcs []string
	Line  string
	Value int64
}

type Frame struct {
	Name  string  `json:"name"`
	Value int64   `json:"value"`
	Share float64 `json:"share"`
}

// Parse accepts both gzipped and raw pprof data.
func Parse(data []byte) (*gprofile.Profile, error) {
	p, err := gprofile.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse profile: %w", err)
	}
	return p, nil
}

// SampleIndex returns the index of sampleType, or the last sample type
// when the profile has no such type.
func SampleIndex(p *gprofile.Profile, sampleType string) int {
	for i, st := range p.SampleType {
		if st.Type == sampleType {
			return i
		}
	}
	return len(p.SampleType) - 1
}

// Collapse merges samples with identical stacks. Stacks are ordered by line.
func Collapse(p *gprofile.Profile, idx int) []Stack {
	if idx < 0 {
		return nil
	}
	var ret = make([]Stack, 0, len(p.Sample))
	for _, s := range p.Sample {
		if idx >= len(s.Value) || s.Value[idx] == 0 {
			continue
		}
		funcs, line := sampleStackToStrings(s)
		ret = append(ret, Stack{
			Line:  line,
			Funcs: funcs,
			Value: s.Value[idx],
		})
	}
	sort.Slice(ret, func(i, j int) bool {
		return strings.Compare(ret[i].Line, ret[j].Line) < 0
	})
	var unique = make([]Stack, 0, len(ret))
	for _, s := range ret {
		if len(unique) != 0 && unique[len(unique)-1].Line == s.Line {
			unique[len(unique)-1].Value += s.Value

			continue
		}
		unique = append(unique, s)
	}

	return unique
}

// Top returns up to n leaf functions ordered by self value.
func Top(stacks []Stack, n int) []Frame {
	var total int64
	self := make(map[string]int64)
	for _, s := range stacks {
		total += s.Value
		if len(s.Funcs) == 0 {
			continue
		}
		self[s.Funcs[len(s.Funcs)-1]] += s.Value
	}
	frames := make([]Frame, 0, len(self))
	for name, v := range self {
		frames = append(frames, Frame{Name: name, Value: v})
	}
	sort.Slice(frames, func(i, j int) bool {
		if frames[i].Value != frames[j].Value {
			return frames[i].Value > frames[j].Value
		}
		return frames[i].Name < frames[j].Name
	})
	if n >= 0 && len(frames) > n {
		frames = frames[:n]
	}
	if total > 0 {
		for i := range frames {
			frames[i].Share = float64(frames[i].Value) / float64(total)
		}
	}
	return frames
}

// sampleStackToStrings returns the functions of s from root to leaf.
func sampleStackToStrings(s *gprofile.Sample) ([]string, string) {
	var funcs []string
	for i := range s.Location {
		loc := s.Location[i]
		for _, line := range loc.Line {
			if line.Function == nil {
				continue
			}
			funcs = append(funcs, line.Function.Name)
		}
	}
	for i := 0; i < len(funcs)/2; i++ {
		j := len(funcs) - i - 1
		funcs[i], funcs[j] = funcs[j], funcs[i]
	}

	return funcs, strings.Join(funcs, ";")
}
