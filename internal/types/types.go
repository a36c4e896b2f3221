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

// Package types models the source-language types that reach ABI lowering.
// Sizes and alignments are fixed when a type is built, using the Config of
// the target being compiled for.
package types

import (
	"fmt"
	"strings"

	"github.com/smolt/ldcabi/internal/target"
)

// Kind identifies the category of a type.
type Kind int

const (
	Void Kind = iota
	Bool
	Int8
	Uns8
	Int16
	Uns16
	Int32
	Uns32
	Int64
	Uns64
	Int128
	Uns128
	Char
	WChar
	DChar
	Float32
	Float64
	Float80
	Imaginary32
	Imaginary64
	Imaginary80
	Complex32
	Complex64
	Complex80
	Pointer
	Class
	AssocArray
	DArray
	Delegate
	SArray
	Struct
	Enum
	Vector
)

var kindNames = [...]string{
	Void:        "void",
	Bool:        "bool",
	Int8:        "byte",
	Uns8:        "ubyte",
	Int16:       "short",
	Uns16:       "ushort",
	Int32:       "int",
	Uns32:       "uint",
	Int64:       "long",
	Uns64:       "ulong",
	Int128:      "cent",
	Uns128:      "ucent",
	Char:        "char",
	WChar:       "wchar",
	DChar:       "dchar",
	Float32:     "float",
	Float64:     "double",
	Float80:     "real",
	Imaginary32: "ifloat",
	Imaginary64: "idouble",
	Imaginary80: "ireal",
	Complex32:   "cfloat",
	Complex64:   "cdouble",
	Complex80:   "creal",
	Pointer:     "pointer",
	Class:       "class",
	AssocArray:  "aa",
	DArray:      "slice",
	Delegate:    "delegate",
	SArray:      "sarray",
	Struct:      "struct",
	Enum:        "enum",
	Vector:      "vector",
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Type is a source-language type with a resolved size and alignment.
type Type interface {
	Kind() Kind
	Size() int64
	Align() int64
	String() string
}

// Config holds the target-dependent sizes needed to build types.
type Config struct {
	PtrSize   int64
	RealSize  int64
	RealAlign int64
}

// NewConfig returns the type configuration for a resolved target.
func NewConfig(d target.Descriptor) *Config {
	c := &Config{PtrSize: int64(d.WordSize), RealSize: 8, RealAlign: 8}
	switch d.Triple.Arch {
	case target.X86:
		c.RealSize, c.RealAlign = 12, 4
		if d.Triple.IsOSDarwin() {
			c.RealSize, c.RealAlign = 16, 16
		}
	case target.X86_64:
		if !d.Triple.IsOSWindows() {
			c.RealSize, c.RealAlign = 16, 16
		}
	case target.AArch64:
		if !d.Triple.IsOSDarwin() {
			c.RealSize, c.RealAlign = 16, 16
		}
	}
	return c
}

// Basic is a builtin scalar type.
type Basic struct {
	kind  Kind
	size  int64
	align int64
}

func (b *Basic) Kind() Kind      { return b.kind }
func (b *Basic) Size() int64     { return b.size }
func (b *Basic) Align() int64    { return b.align }
func (b *Basic) String() string  { return b.kind.String() }
func (b *Basic) IsComplex() bool { return b.kind >= Complex32 && b.kind <= Complex80 }

// Basic returns the builtin type of kind k.
func (c *Config) Basic(k Kind) *Basic {
	var size int64
	switch k {
	case Void:
		size = 0
	case Bool, Int8, Uns8, Char:
		size = 1
	case Int16, Uns16, WChar:
		size = 2
	case Int32, Uns32, DChar, Float32, Imaginary32:
		size = 4
	case Int64, Uns64, Float64, Imaginary64, Complex32:
		size = 8
	case Int128, Uns128, Complex64:
		size = 16
	case Float80, Imaginary80:
		return &Basic{kind: k, size: c.RealSize, align: c.RealAlign}
	case Complex80:
		return &Basic{kind: k, size: 2 * c.RealSize, align: c.RealAlign}
	default:
		panic(fmt.Sprintf("unreachable: %v is not a basic type", k))
	}
	align := size
	switch k {
	case Complex32:
		align = 4
	case Complex64:
		align = 8
	case Void:
		align = 1
	}
	return &Basic{kind: k, size: size, align: align}
}

// PointerType is a raw pointer.
type PointerType struct {
	Elem Type
	size int64
}

func (p *PointerType) Kind() Kind     { return Pointer }
func (p *PointerType) Size() int64    { return p.size }
func (p *PointerType) Align() int64   { return p.size }
func (p *PointerType) String() string { return p.Elem.String() + "*" }

func (c *Config) Pointer(elem Type) *PointerType {
	return &PointerType{Elem: elem, size: c.PtrSize}
}

// ClassType is a reference to a class instance.
type ClassType struct {
	Name string
	size int64
}

func (t *ClassType) Kind() Kind     { return Class }
func (t *ClassType) Size() int64    { return t.size }
func (t *ClassType) Align() int64   { return t.size }
func (t *ClassType) String() string { return t.Name }

func (c *Config) Class(name string) *ClassType {
	return &ClassType{Name: name, size: c.PtrSize}
}

// AssocArrayType is an associative array handle.
type AssocArrayType struct {
	Key, Value Type
	size       int64
}

func (t *AssocArrayType) Kind() Kind   { return AssocArray }
func (t *AssocArrayType) Size() int64  { return t.size }
func (t *AssocArrayType) Align() int64 { return t.size }
func (t *AssocArrayType) String() string {
	return fmt.Sprintf("%s[%s]", t.Value, t.Key)
}

func (c *Config) AssocArray(key, value Type) *AssocArrayType {
	return &AssocArrayType{Key: key, Value: value, size: c.PtrSize}
}

// DArrayType is a slice: a length and a pointer.
type DArrayType struct {
	Elem Type
	ptr  int64
}

func (t *DArrayType) Kind() Kind     { return DArray }
func (t *DArrayType) Size() int64    { return 2 * t.ptr }
func (t *DArrayType) Align() int64   { return t.ptr }
func (t *DArrayType) String() string { return t.Elem.String() + "[]" }

func (c *Config) DArray(elem Type) *DArrayType {
	return &DArrayType{Elem: elem, ptr: c.PtrSize}
}

// DelegateType is a context pointer paired with a function pointer.
type DelegateType struct {
	ptr int64
}

func (t *DelegateType) Kind() Kind     { return Delegate }
func (t *DelegateType) Size() int64    { return 2 * t.ptr }
func (t *DelegateType) Align() int64   { return t.ptr }
func (t *DelegateType) String() string { return "delegate" }

func (c *Config) Delegate() *DelegateType {
	return &DelegateType{ptr: c.PtrSize}
}

// SArrayType is a fixed-size array.
type SArrayType struct {
	Elem Type
	Len  int64
}

func (t *SArrayType) Kind() Kind     { return SArray }
func (t *SArrayType) Size() int64    { return t.Elem.Size() * t.Len }
func (t *SArrayType) Align() int64   { return t.Elem.Align() }
func (t *SArrayType) String() string { return fmt.Sprintf("%s[%d]", t.Elem, t.Len) }

func (c *Config) SArray(elem Type, n int64) *SArrayType {
	return &SArrayType{Elem: elem, Len: n}
}

// EnumType is a named type over an integral base.
type EnumType struct {
	Name string
	Base Type
}

func (t *EnumType) Kind() Kind     { return Enum }
func (t *EnumType) Size() int64    { return t.Base.Size() }
func (t *EnumType) Align() int64   { return t.Base.Align() }
func (t *EnumType) String() string { return t.Name }

func (c *Config) Enum(name string, base Type) *EnumType {
	return &EnumType{Name: name, Base: base}
}

// VectorType is a SIMD vector.
type VectorType struct {
	Elem Type
	Len  int64
}

func (t *VectorType) Kind() Kind     { return Vector }
func (t *VectorType) Size() int64    { return t.Elem.Size() * t.Len }
func (t *VectorType) Align() int64   { return t.Size() }
func (t *VectorType) String() string { return fmt.Sprintf("__vector(%s[%d])", t.Elem, t.Len) }

func (c *Config) Vector(elem Type, n int64) *VectorType {
	return &VectorType{Elem: elem, Len: n}
}

// ToBase strips enum types down to their base type.
func ToBase(t Type) Type {
	for {
		e, ok := t.(*EnumType)
		if !ok {
			return t
		}
		t = e.Base
	}
}

// IsIntegral reports whether t is an integer, boolean or character type.
func IsIntegral(t Type) bool {
	k := ToBase(t).Kind()
	return k >= Bool && k <= DChar
}

// IsFloating reports whether t is a real, imaginary or complex floating type.
func IsFloating(t Type) bool {
	k := ToBase(t).Kind()
	return k >= Float32 && k <= Complex80
}

// IsComplex reports whether t is a complex floating type.
func IsComplex(t Type) bool {
	k := ToBase(t).Kind()
	return k >= Complex32 && k <= Complex80
}

// IsAggregate reports whether t is a struct or a fixed-size array.
func IsAggregate(t Type) bool {
	k := ToBase(t).Kind()
	return k == Struct || k == SArray
}

// IsPOD reports whether t can be copied bitwise.
func IsPOD(t Type) bool {
	switch t := ToBase(t).(type) {
	case *StructType:
		return !t.NonPOD
	case *SArrayType:
		return IsPOD(t.Elem)
	}
	return true
}

func joinTypes(fields []*Field) string {
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = f.Type.String()
	}
	return strings.Join(parts, ", ")
}

// ComplexPart returns the type of the real and imaginary halves of a
// complex type.
func ComplexPart(t Type) Type {
	b, ok := ToBase(t).(*Basic)
	if !ok || !b.IsComplex() {
		panic(fmt.Sprintf("unreachable: %v is not complex", t))
	}
	return &Basic{kind: Float32 + (b.kind - Complex32), size: b.size / 2, align: b.align}
}
