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

// Package ir holds the lowered representation that crosses call boundaries:
// machine-level type descriptors, a run-scoped type cache and a small stack
// memory model the marshaling rewrites operate on.
package ir

import (
	"fmt"
	"strings"
	"sync/atomic"
)

// Kind identifies the shape of a lowered type.
type Kind int

const (
	VoidKind Kind = iota
	IntKind
	FloatKind
	PointerKind
	ArrayKind
	VectorKind
	StructKind
)

// Type is a lowered type. Size is the number of bytes a load or store of the
// type touches; AllocSize adds the tail padding an array element carries.
type Type interface {
	Kind() Kind
	Size() int64
	Align() int64
	String() string
}

// AllocSize is the distance between consecutive elements of type t.
func AllocSize(t Type) int64 {
	return alignTo(t.Size(), t.Align())
}

type VoidType struct{}

func (VoidType) Kind() Kind     { return VoidKind }
func (VoidType) Size() int64    { return 0 }
func (VoidType) Align() int64   { return 1 }
func (VoidType) String() string { return "void" }

// IntType is an integer of arbitrary bit width.
type IntType struct {
	Bits  int
	align int64
}

func (t *IntType) Kind() Kind     { return IntKind }
func (t *IntType) Size() int64    { return int64(t.Bits+7) / 8 }
func (t *IntType) Align() int64   { return t.align }
func (t *IntType) String() string { return fmt.Sprintf("i%d", t.Bits) }

// FloatType is a binary floating point type.
type FloatType struct {
	Name  string
	Bits  int
	size  int64
	align int64
}

func (t *FloatType) Kind() Kind     { return FloatKind }
func (t *FloatType) Size() int64    { return t.size }
func (t *FloatType) Align() int64   { return t.align }
func (t *FloatType) String() string { return t.Name }

// PointerType is a data pointer. Elem may be an opaque named struct.
type PointerType struct {
	Elem Type
	size int64
}

func (t *PointerType) Kind() Kind   { return PointerKind }
func (t *PointerType) Size() int64  { return t.size }
func (t *PointerType) Align() int64 { return t.size }
func (t *PointerType) String() string {
	if s, ok := t.Elem.(*StructType); ok && s.Name != "" {
		return "%" + s.Name + "*"
	}
	return t.Elem.String() + "*"
}

type ArrayType struct {
	Elem Type
	Len  int64
}

func (t *ArrayType) Kind() Kind     { return ArrayKind }
func (t *ArrayType) Size() int64    { return AllocSize(t.Elem) * t.Len }
func (t *ArrayType) Align() int64   { return t.Elem.Align() }
func (t *ArrayType) String() string { return fmt.Sprintf("[%d x %s]", t.Len, t.Elem) }

type VectorType struct {
	Elem Type
	Len  int64
}

func (t *VectorType) Kind() Kind     { return VectorKind }
func (t *VectorType) Size() int64    { return t.Elem.Size() * t.Len }
func (t *VectorType) Align() int64   { return t.Size() }
func (t *VectorType) String() string { return fmt.Sprintf("<%d x %s>", t.Len, t.Elem) }

// StructType is a literal or named struct. A named struct is created opaque
// and gets its body exactly once, so it can be pointed to before it is
// complete.
type StructType struct {
	Name   string
	Handle Handle
	body   atomic.Pointer[structBody]
}

type structBody struct {
	fields  []Type
	offsets []int64
	size    int64
	align   int64
	packed  bool
}

func newBody(packed bool, fields []Type) *structBody {
	b := &structBody{fields: fields, offsets: make([]int64, len(fields)), align: 1, packed: packed}
	var off int64
	for i, f := range fields {
		a := f.Align()
		if packed {
			a = 1
		}
		if a > b.align {
			b.align = a
		}
		off = alignTo(off, a)
		b.offsets[i] = off
		off += AllocSize(f)
	}
	b.size = alignTo(off, b.align)
	return b
}

func (t *StructType) Kind() Kind { return StructKind }

// Opaque reports whether the body has not been set yet.
func (t *StructType) Opaque() bool { return t.body.Load() == nil }

func (t *StructType) mustBody() *structBody {
	b := t.body.Load()
	if b == nil {
		panic(fmt.Sprintf("unreachable: struct %%%s has no body", t.Name))
	}
	return b
}

func (t *StructType) Size() int64        { return t.mustBody().size }
func (t *StructType) Align() int64       { return t.mustBody().align }
func (t *StructType) Fields() []Type     { return t.mustBody().fields }
func (t *StructType) Offsets() []int64   { return t.mustBody().offsets }
func (t *StructType) Packed() bool       { return t.mustBody().packed }
func (t *StructType) Field(i int) Type   { return t.mustBody().fields[i] }
func (t *StructType) NumFields() int     { return len(t.mustBody().fields) }
func (t *StructType) Offset(i int) int64 { return t.mustBody().offsets[i] }

func (t *StructType) String() string {
	if t.Name != "" {
		return "%" + t.Name
	}
	return t.Body()
}

// Body spells out the fields, as in a type definition.
func (t *StructType) Body() string {
	b := t.body.Load()
	if b == nil {
		return "opaque"
	}
	parts := make([]string, len(b.fields))
	for i, f := range b.fields {
		parts[i] = f.String()
	}
	s := "{ " + strings.Join(parts, ", ") + " }"
	if len(parts) == 0 {
		s = "{}"
	}
	if b.packed {
		return "<" + s + ">"
	}
	return s
}

func alignTo(x, a int64) int64 {
	if a <= 1 {
		return x
	}
	return (x + a - 1) / a * a
}
