// Package propagate copies, transforms and combines attributes and groups
// from a source document and a target point set into instanced output.
//
// Every pass compares version tokens against State so that repeated
// invocations only touch what changed.
package propagate

import (
	"fmt"

	"copytopoints/internal/geo"
)

// Method is how a target attribute is combined with the copied value.
type Method int8

const (
	Copy Method = iota
	None
	Multiply
	Add
	Subtract
)

var methodNames = [...]string{"copy", "none", "mult", "add", "sub"}

func (m Method) String() string {
	if m >= 0 && int(m) < len(methodNames) {
		return methodNames[m]
	}
	return "invalid"
}

func ParseMethod(s string) (Method, error) {
	for i, n := range methodNames {
		if n == s {
			return Method(i), nil
		}
	}
	return None, fmt.Errorf("propagate: unknown combine method %q", s)
}

// TargetInfo is one target attribute request.
type TargetInfo struct {
	// DataID is the target attribute token when the request was made.
	DataID geo.Token
	CopyTo geo.Owner
	Method Method
}

// TargetInfoMap maps attribute or group names to requests.
type TargetInfoMap map[string]TargetInfo

// State remembers the tokens of everything copied by the previous
// invocation.
type State struct {
	SourceAttribIDs    [geo.NumElementOwners]map[string]geo.Token
	SourceGroupIDs     [geo.NumElementOwners]map[string]geo.Token
	SourceEdgeGroupIDs map[string]geo.Token
	SourceDetailIDs    map[string]geo.Token
	TargetAttribInfo   TargetInfoMap
	TargetGroupInfo    TargetInfoMap
}

func NewState() *State {
	s := &State{}
	s.Reset()
	return s
}

// Reset forgets everything, forcing the next pass to copy all values.
func (s *State) Reset() {
	s.ResetSource()
	s.TargetAttribInfo = TargetInfoMap{}
	s.TargetGroupInfo = TargetInfoMap{}
}

// ResetSource forgets the source tokens only.
func (s *State) ResetSource() {
	for i := range s.SourceAttribIDs {
		s.SourceAttribIDs[i] = map[string]geo.Token{}
		s.SourceGroupIDs[i] = map[string]geo.Token{}
	}
	s.SourceEdgeGroupIDs = map[string]geo.Token{}
	s.SourceDetailIDs = map[string]geo.Token{}
}

func (s *State) hasSource(isGroup bool, o geo.Owner, name string) bool {
	m := s.SourceAttribIDs[o]
	if isGroup {
		m = s.SourceGroupIDs[o]
	}
	_, ok := m[name]
	return ok
}

// Counts is what AddFromSourceOrTarget found to copy.
type Counts struct {
	// Source and Target count attributes plus groups per element class.
	Source [geo.NumElementOwners]int
	Target [geo.NumElementOwners]int
}

// work estimates the number of element writes for the parallel threshold.
func work(out *geo.Document, perClass [geo.NumElementOwners]int) int {
	n := 0
	for _, o := range geo.ElementOwners {
		n += out.Count(o) * perClass[o]
	}
	return n
}

// Below this many element writes, a pass runs on the calling goroutine.
const parallelWork = 4096

// Output blocks handed to one task.
const blockGrain = 1024
