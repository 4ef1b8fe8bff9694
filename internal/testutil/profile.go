package testutil

import (
	"bytes"
	"strings"

	gprofile "github.com/google/pprof/profile"
)

// ProfileStack is a root-to-leaf stack written as "root;child;leaf".
type ProfileStack struct {
	Line  string
	Value int64
}

// WriteProfile builds a gzipped pprof profile with a single sample type.
func WriteProfile(sampleType, unit string, stacks ...ProfileStack) ([]byte, error) {
	p := &gprofile.Profile{
		SampleType: []*gprofile.ValueType{{Type: sampleType, Unit: unit}},
	}
	functions := make(map[string]*gprofile.Location)
	location := func(name string) *gprofile.Location {
		if loc, ok := functions[name]; ok {
			return loc
		}
		id := uint64(len(functions) + 1)
		fn := &gprofile.Function{ID: id, Name: name, SystemName: name}
		loc := &gprofile.Location{ID: id, Line: []gprofile.Line{{Function: fn}}}
		p.Function = append(p.Function, fn)
		p.Location = append(p.Location, loc)
		functions[name] = loc
		return loc
	}
	for _, s := range stacks {
		names := strings.Split(s.Line, ";")
		sample := &gprofile.Sample{Value: []int64{s.Value}}
		// pprof stores leaf first.
		for i := len(names) - 1; i >= 0; i-- {
			sample.Location = append(sample.Location, location(names[i]))
		}
		p.Sample = append(p.Sample, sample)
	}
	var buf bytes.Buffer
	if err := p.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
