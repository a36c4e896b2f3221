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

// Package layout describes the memory layout of structs and static arrays
// in the terms ABI classification needs: field offsets and leaf categories.
package layout

import (
	"fmt"

	"github.com/smolt/ldcabi/internal/types"
)

// LeafKind is the category of a field once array dimensions are stripped.
type LeafKind int

const (
	// Integral covers integers, booleans, characters and enums over them.
	Integral LeafKind = iota
	// PointerLike covers raw pointers, class references and associative
	// arrays, all of which are a single machine word.
	PointerLike
	// Floating covers real, imaginary and complex floating point types.
	Floating
	// Nested is a struct embedded by value.
	Nested
	// Other covers slices, delegates and vectors.
	Other
)

var leafKindNames = [...]string{"integral", "pointer", "floating", "nested", "other"}

func (k LeafKind) String() string { return leafKindNames[k] }

// Field is one member of an aggregate. Static array members are described by
// their innermost element type and the total element count.
type Field struct {
	Name   string
	Offset int64
	Kind   LeafKind
	Elem   types.Type
	Size   int64 // size of one element
	Count  int64 // number of elements, 1 unless Array
	Array  bool
	Inner  *Aggregate // set when Kind is Nested
}

// Aggregate is the layout of a struct, union or static array.
type Aggregate struct {
	Type   types.Type
	Size   int64
	Align  int64
	Fields []Field
}

// Leaf is a scalar field of a flattened aggregate.
type Leaf struct {
	Offset int64
	Kind   LeafKind
	Type   types.Type
	Size   int64
}

// Of returns the layout of a struct or static array type. Passing any other
// type is a bug in the caller.
func Of(t types.Type) *Aggregate {
	switch bt := types.ToBase(t).(type) {
	case *types.StructType:
		if !bt.Complete() {
			panic(fmt.Sprintf("unreachable: layout of incomplete struct %s", bt))
		}
		a := &Aggregate{Type: t, Size: bt.Size(), Align: bt.Align()}
		for _, f := range bt.Fields {
			a.Fields = append(a.Fields, fieldOf(f.Name, f.Offset, f.Type))
		}
		return a
	case *types.SArrayType:
		return &Aggregate{Type: t, Size: bt.Size(), Align: bt.Align(), Fields: []Field{fieldOf("", 0, bt)}}
	}
	panic(fmt.Sprintf("unreachable: %s is not an aggregate", t))
}

func fieldOf(name string, offset int64, t types.Type) Field {
	f := Field{Name: name, Offset: offset, Count: 1}
	t = types.ToBase(t)
	for {
		sa, ok := t.(*types.SArrayType)
		if !ok {
			break
		}
		f.Array = true
		f.Count *= sa.Len
		t = types.ToBase(sa.Elem)
	}
	f.Elem, f.Size = t, t.Size()
	switch {
	case types.IsIntegral(t):
		f.Kind = Integral
	case types.IsFloating(t):
		f.Kind = Floating
	}
	switch t.Kind() {
	case types.Pointer, types.Class, types.AssocArray:
		f.Kind = PointerLike
	case types.Struct:
		f.Kind = Nested
		f.Inner = Of(t)
	case types.DArray, types.Delegate, types.Vector:
		f.Kind = Other
	}
	return f
}

// Leaves flattens nested structs and array elements into scalar leaves with
// cumulative offsets, in declaration order.
func (a *Aggregate) Leaves() []Leaf {
	var leaves []Leaf
	a.appendLeaves(0, &leaves)
	return leaves
}

func (a *Aggregate) appendLeaves(base int64, leaves *[]Leaf) {
	for _, f := range a.Fields {
		for i := int64(0); i < f.Count; i++ {
			off := base + f.Offset + i*f.Size
			if f.Kind == Nested {
				f.Inner.appendLeaves(off, leaves)
				continue
			}
			*leaves = append(*leaves, Leaf{Offset: off, Kind: f.Kind, Type: f.Elem, Size: f.Size})
		}
	}
}

// HasZeroLengthArray reports whether a zero-length static array appears
// anywhere in the aggregate.
func (a *Aggregate) HasZeroLengthArray() bool {
	for _, f := range a.Fields {
		if f.Array && f.Count == 0 {
			return true
		}
		if f.Kind == Nested && f.Inner.HasZeroLengthArray() {
			return true
		}
	}
	return false
}
