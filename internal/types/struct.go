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

package types

import "fmt"

// Field is a struct member placed at a byte offset.
type Field struct {
	Name   string
	Type   Type
	Offset int64
}

func NewField(name string, t Type) *Field {
	return &Field{Name: name, Type: t}
}

// StructType is a struct or union. A StructType starts out incomplete so
// self-referential types can point at it before its fields are known.
type StructType struct {
	Name   string
	Fields []*Field
	Union  bool
	NonPOD bool

	size     int64
	align    int64
	complete bool
}

func (s *StructType) Kind() Kind   { return Struct }
func (s *StructType) Size() int64  { return s.size }
func (s *StructType) Align() int64 { return s.align }

func (s *StructType) String() string {
	if s.Name != "" {
		return s.Name
	}
	if s.Union {
		return "union{" + joinTypes(s.Fields) + "}"
	}
	return "struct{" + joinTypes(s.Fields) + "}"
}

// Complete reports whether the struct body has been set.
func (s *StructType) Complete() bool { return s.complete }

// NewStruct returns an incomplete struct named name.
func (c *Config) NewStruct(name string) *StructType {
	return &StructType{Name: name}
}

// StructOf builds a struct with natural C layout.
func (c *Config) StructOf(name string, fields ...*Field) *StructType {
	return c.NewStruct(name).SetFields(fields...)
}

// UnionOf builds a union: every field at offset zero.
func (c *Config) UnionOf(name string, fields ...*Field) *StructType {
	s := c.NewStruct(name)
	s.Union = true
	return s.SetFields(fields...)
}

// SetFields places fields with natural alignment and completes the struct.
// An empty struct occupies one byte.
func (s *StructType) SetFields(fields ...*Field) *StructType {
	var off, align, size int64 = 0, 1, 0
	for _, f := range fields {
		a := f.Type.Align()
		if a > align {
			align = a
		}
		if s.Union {
			f.Offset = 0
			if f.Type.Size() > size {
				size = f.Type.Size()
			}
			continue
		}
		off = alignTo(off, a)
		f.Offset = off
		off += f.Type.Size()
	}
	if !s.Union {
		size = off
	}
	size = alignTo(size, align)
	if size == 0 {
		size = 1
	}
	s.Fields, s.size, s.align, s.complete = fields, size, align, true
	return s
}

// SetLayout completes the struct with offsets already stored in fields, as
// computed by an external layout engine.
func (s *StructType) SetLayout(size, align int64, fields ...*Field) *StructType {
	for _, f := range fields {
		if f.Offset < 0 || f.Offset+f.Type.Size() > size {
			panic(fmt.Sprintf("unreachable: field %s of %s lies outside %d bytes", f.Name, s.Name, size))
		}
	}
	s.Fields, s.size, s.align, s.complete = fields, size, align, true
	return s
}

func alignTo(x, a int64) int64 {
	if a <= 1 {
		return x
	}
	return (x + a - 1) / a * a
}
