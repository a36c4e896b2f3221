// Copyright 2022 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package abi

import (
	"fmt"

	"github.com/samber/lo"
	"github.com/smolt/ldcabi/internal/layout"
	"github.com/smolt/ldcabi/internal/types"
)

// IsIntegerLike reports whether every field of a sits at offset 0 and is an
// integer, a pointer, a class reference, an associative array or itself an
// integer-like struct. A static array field counts only when it has exactly
// one element. An aggregate without fields is not integer-like.
func IsIntegerLike(a *layout.Aggregate) bool {
	if len(a.Fields) == 0 {
		return false
	}
	for _, f := range a.Fields {
		if f.Offset != 0 {
			return false
		}
		if f.Array && f.Count != 1 {
			return false
		}
		switch f.Kind {
		case layout.Integral, layout.PointerLike:
		case layout.Nested:
			if !IsIntegerLike(f.Inner) {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// IsSimpleSmall reports whether a fits in one word and is integer-like.
// Such a struct is returned in the first result register.
func IsSimpleSmall(a *layout.Aggregate, wordSize int64) bool {
	return a.Size <= wordSize && IsIntegerLike(a)
}

// HFA describes a homogeneous floating point aggregate.
type HFA struct {
	Elem  types.Type
	Count int
}

func (h HFA) ElemSize() int64 { return h.Elem.Size() }

func (h HFA) String() string { return fmt.Sprintf("HFA(%s x %d)", h.Elem, h.Count) }

// IsHFA reports whether a consists of one to four floating point leaves of
// the same size. Nested structs and arrays are flattened, complex numbers
// count as two halves and members sharing an offset contribute the largest
// of their counts.
func IsHFA(a *layout.Aggregate) (HFA, bool) {
	elem, count, ok := hfaMembers(a)
	if !ok || count < 1 || count > 4 {
		return HFA{}, false
	}
	// holes between members rule out an element-wise register assignment
	if elem.Size()*count != a.Size {
		return HFA{}, false
	}
	return HFA{Elem: elem, Count: int(count)}, true
}

func hfaMembers(a *layout.Aggregate) (types.Type, int64, bool) {
	var elem types.Type
	byOffset := make(map[int64]int64)
	for _, f := range a.Fields {
		if f.Array && f.Count == 0 {
			return nil, 0, false
		}
		var fe types.Type
		var n int64
		switch f.Kind {
		case layout.Floating:
			fe, n = f.Elem, f.Count
			if types.IsComplex(f.Elem) {
				fe, n = types.ComplexPart(f.Elem), 2*f.Count
			}
		case layout.Nested:
			inner, m, ok := hfaMembers(f.Inner)
			if !ok {
				return nil, 0, false
			}
			fe, n = inner, m*f.Count
		default:
			return nil, 0, false
		}
		if fe == nil || n == 0 {
			return nil, 0, false
		}
		if elem == nil {
			elem = fe
		} else if elem.Size() != fe.Size() {
			return nil, 0, false
		}
		byOffset[f.Offset] = max(byOffset[f.Offset], n)
	}
	if elem == nil {
		return nil, 0, false
	}
	return elem, lo.Sum(lo.Values(byOffset)), true
}

// Tag is the classification of an aggregate.
type Tag int

const (
	Opaque Tag = iota
	IntegerLike
	SimpleSmall
	Homogeneous
)

var tagNames = [...]string{"opaque", "integer-like", "simple", "hfa"}

func (t Tag) String() string { return tagNames[t] }

// Classification is the result of Classify. HFA is set only for the
// Homogeneous tag.
type Classification struct {
	Tag Tag
	HFA HFA
}

func (c Classification) String() string {
	if c.Tag == Homogeneous {
		return c.HFA.String()
	}
	return c.Tag.String()
}

// Classify assigns a its most specific tag for a target with the given
// word size.
func Classify(a *layout.Aggregate, wordSize int64) Classification {
	switch {
	case IsSimpleSmall(a, wordSize):
		return Classification{Tag: SimpleSmall}
	case IsIntegerLike(a):
		return Classification{Tag: IntegerLike}
	}
	if h, ok := IsHFA(a); ok {
		return Classification{Tag: Homogeneous, HFA: h}
	}
	return Classification{Tag: Opaque}
}
