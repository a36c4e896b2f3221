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

package ir

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
)

// Slot is a block of stack memory of one function frame.
type Slot struct {
	Name  string
	Type  Type
	Align int64
	Addr  uint64
	Bytes []byte
}

// Value is a first-class value as the image it has in memory. Pointers hold
// the address of a slot of the same frame. Home is set when the value was
// loaded from a slot and still lives there.
type Value struct {
	Type Type
	Bits []byte
	Home *Slot
}

// Frame is the stack frame of one function under construction. Frames are
// not safe for concurrent use.
type Frame struct {
	Name  string
	Ctx   *Context
	Slots []*Slot
	Ops   []string

	next uint64
}

const frameBase = 0x1000

func NewFrame(ctx *Context, name string) *Frame {
	return &Frame{Name: name, Ctx: ctx, next: frameBase}
}

func (f *Frame) emit(format string, args ...any) {
	f.Ops = append(f.Ops, fmt.Sprintf(format, args...))
}

// Alloca reserves zeroed storage for t. An align of 0 means the natural
// alignment of t.
func (f *Frame) Alloca(t Type, align int64, name string) *Slot {
	if align == 0 {
		align = t.Align()
	}
	f.next = uint64(alignTo(int64(f.next), align))
	s := &Slot{
		Name:  fmt.Sprintf("%s.%d", name, len(f.Slots)),
		Type:  t,
		Align: align,
		Addr:  f.next,
		Bytes: make([]byte, AllocSize(t)),
	}
	f.next += uint64(len(s.Bytes))
	if len(s.Bytes) == 0 {
		f.next++
	}
	f.Slots = append(f.Slots, s)
	f.emit("%%%s = alloca %s, align %d", s.Name, t, align)
	return s
}

// Store writes v to the start of dst.
func (f *Frame) Store(v Value, dst *Slot) {
	n := v.Type.Size()
	if n > int64(len(dst.Bytes)) {
		panic(fmt.Sprintf("unreachable: store of %s overflows %%%s", v.Type, dst.Name))
	}
	copy(dst.Bytes[:n], v.Bits)
	f.emit("store %s, %%%s", v.Type, dst.Name)
}

// Load reads a value of type t from the start of src.
func (f *Frame) Load(t Type, src *Slot) Value {
	n := t.Size()
	if n > int64(len(src.Bytes)) {
		panic(fmt.Sprintf("unreachable: load of %s overruns %%%s", t, src.Name))
	}
	f.emit("load %s, %%%s", t, src.Name)
	return Value{Type: t, Bits: bytes.Clone(src.Bytes[:n]), Home: src}
}

// MemCpy copies n bytes from src to dst.
func (f *Frame) MemCpy(dst, src *Slot, n int64) {
	if n > int64(len(dst.Bytes)) || n > int64(len(src.Bytes)) {
		panic(fmt.Sprintf("unreachable: memcpy of %d bytes from %%%s to %%%s", n, src.Name, dst.Name))
	}
	copy(dst.Bytes[:n], src.Bytes[:n])
	f.emit("memcpy %%%s, %%%s, %d", dst.Name, src.Name, n)
}

// AddressOf returns a pointer to s.
func (f *Frame) AddressOf(s *Slot) Value {
	ptr := f.Ctx.Pointer(s.Type)
	bits := make([]byte, ptr.Size())
	f.Ctx.putUint(bits, s.Addr)
	return Value{Type: ptr, Bits: bits}
}

// Deref returns the slot a pointer value points to.
func (f *Frame) Deref(p Value) *Slot {
	if p.Type.Kind() != PointerKind {
		panic(fmt.Sprintf("unreachable: dereferencing %s", p.Type))
	}
	addr := f.Ctx.readUint(p.Bits)
	i := sort.Search(len(f.Slots), func(i int) bool { return f.Slots[i].Addr >= addr })
	if i == len(f.Slots) || f.Slots[i].Addr != addr {
		panic(fmt.Sprintf("unreachable: no slot at %#x in %s", addr, f.Name))
	}
	return f.Slots[i]
}

// Spill stores v into a fresh slot of its own type.
func (f *Frame) Spill(v Value, name string) *Slot {
	s := f.Alloca(v.Type, 0, name)
	f.Store(v, s)
	return s
}

// ConstInt builds an integer value of type t.
func (c *Context) ConstInt(t *IntType, x uint64) Value {
	bits := make([]byte, t.Size())
	c.putUint(bits, x)
	return Value{Type: t, Bits: bits}
}

// ConstFloat builds a float or double value.
func (c *Context) ConstFloat(t *FloatType, x float64) Value {
	bits := make([]byte, t.Size())
	switch t.Bits {
	case 32:
		c.Order.PutUint32(bits, math.Float32bits(float32(x)))
		return Value{Type: t, Bits: bits}
	case 64:
		c.Order.PutUint64(bits, math.Float64bits(x))
		return Value{Type: t, Bits: bits}
	}
	panic(fmt.Sprintf("unreachable: constant of type %s", t))
}

// Undef returns a value of type t with all bits zero.
func (c *Context) Undef(t Type) Value {
	return Value{Type: t, Bits: make([]byte, t.Size())}
}

// putUint writes x into b, truncated or zero extended to len(b) bytes.
func (c *Context) putUint(b []byte, x uint64) {
	var full [8]byte
	c.Order.PutUint64(full[:], x)
	n := len(b)
	if n > 8 {
		n = 8
	}
	if c.Order == binary.BigEndian {
		copy(b[len(b)-n:], full[8-n:])
		return
	}
	copy(b[:n], full[:n])
}

func (c *Context) readUint(b []byte) uint64 {
	var full [8]byte
	n := len(b)
	if n > 8 {
		n = 8
	}
	if c.Order == binary.BigEndian {
		copy(full[8-n:], b[len(b)-n:])
	} else {
		copy(full[:n], b[:n])
	}
	return c.Order.Uint64(full[:])
}

// Uint reads an integer or pointer value.
func (c *Context) Uint(v Value) uint64 { return c.readUint(v.Bits) }
