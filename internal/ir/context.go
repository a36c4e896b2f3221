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
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/smolt/ldcabi/internal/logger"
	"github.com/smolt/ldcabi/internal/target"
	"github.com/smolt/ldcabi/internal/types"
)

// Handle is the stable index of a named struct in a Context.
type Handle int

// Context owns every lowered type built during one compiler run. All
// lookups are construct-once-per-key and safe for concurrent use.
type Context struct {
	Target target.Descriptor
	Types  *types.Config
	Order  binary.ByteOrder

	mu      sync.Mutex
	ints    map[int]*IntType
	floats  map[types.Kind]*FloatType
	arena   []*StructType
	names   map[string]int
	structs map[*types.StructType]*StructType
	cache   map[types.Type]*cached
	named   map[string]*cached
}

type cached struct {
	once sync.Once
	t    Type
}

// NewContext returns an empty type context for the target d.
func NewContext(d target.Descriptor) *Context {
	c := &Context{
		Target:  d,
		Types:   types.NewConfig(d),
		Order:   binary.LittleEndian,
		ints:    make(map[int]*IntType),
		floats:  make(map[types.Kind]*FloatType),
		names:   make(map[string]int),
		structs: make(map[*types.StructType]*StructType),
		cache:   make(map[types.Type]*cached),
		named:   make(map[string]*cached),
	}
	if d.Triple.IsBigEndian() {
		c.Order = binary.BigEndian
	}
	return c
}

func (c *Context) PtrSize() int64 { return int64(c.Target.WordSize) }

func (c *Context) Void() Type { return VoidType{} }

// Int returns the integer type of the given width.
func (c *Context) Int(bits int) *IntType {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t, ok := c.ints[bits]; ok {
		return t
	}
	size := int64(bits+7) / 8
	align := int64(1)
	for align < size && align < 8 {
		align *= 2
	}
	// 32-bit x86 outside Darwin only aligns 64-bit integers to 4 bytes.
	if align == 8 && c.Target.Triple.Arch == target.X86 && !c.Target.Triple.IsOSDarwin() {
		align = 4
	}
	t := &IntType{Bits: bits, align: align}
	c.ints[bits] = t
	return t
}

// SizeT is the integer type as wide as a pointer.
func (c *Context) SizeT() *IntType { return c.Int(int(c.PtrSize() * 8)) }

// Float returns the lowered type of a real floating point kind.
func (c *Context) Float(k types.Kind) *FloatType {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t, ok := c.floats[k]; ok {
		return t
	}
	var t *FloatType
	switch k {
	case types.Float32:
		t = &FloatType{Name: "float", Bits: 32, size: 4, align: 4}
	case types.Float64:
		t = &FloatType{Name: "double", Bits: 64, size: 8, align: 8}
		if c.Target.Triple.Arch == target.X86 && !c.Target.Triple.IsOSDarwin() {
			t.align = 4
		}
	case types.Float80:
		rt := c.Types.Basic(types.Float80)
		switch {
		case c.Target.Triple.IsX86() && rt.Size() > 8:
			t = &FloatType{Name: "x86_fp80", Bits: 80, size: 10, align: rt.Align()}
		case rt.Size() == 16:
			t = &FloatType{Name: "fp128", Bits: 128, size: 16, align: 16}
		default:
			t = &FloatType{Name: "double", Bits: 64, size: 8, align: rt.Align()}
		}
	default:
		panic(fmt.Sprintf("unreachable: %v is not a real type", k))
	}
	c.floats[k] = t
	return t
}

func (c *Context) Pointer(elem Type) *PointerType {
	return &PointerType{Elem: elem, size: c.PtrSize()}
}

// VoidPtr is the untyped data pointer, spelled i8*.
func (c *Context) VoidPtr() *PointerType { return c.Pointer(c.Int(8)) }

func (c *Context) Array(elem Type, n int64) *ArrayType {
	return &ArrayType{Elem: elem, Len: n}
}

func (c *Context) Vector(elem Type, n int64) *VectorType {
	return &VectorType{Elem: elem, Len: n}
}

// Struct returns a literal struct with natural layout.
func (c *Context) Struct(fields ...Type) *StructType {
	s := &StructType{Handle: -1}
	s.body.Store(newBody(false, fields))
	return s
}

// PackedStruct returns a literal struct without padding between fields.
func (c *Context) PackedStruct(fields ...Type) *StructType {
	s := &StructType{Handle: -1}
	s.body.Store(newBody(true, fields))
	return s
}

// Declare adds an opaque named struct to the arena. Names are made unique
// by appending a counter.
func (c *Context) Declare(name string) *StructType {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.declareLocked(name)
}

func (c *Context) declareLocked(name string) *StructType {
	unique := name
	if n, ok := c.names[name]; ok {
		unique = fmt.Sprintf("%s.%d", name, n)
	}
	c.names[name]++
	s := &StructType{Name: unique, Handle: Handle(len(c.arena))}
	c.arena = append(c.arena, s)
	return s
}

// SetBody completes a named struct. A body can only be set once.
func (c *Context) SetBody(s *StructType, packed bool, fields ...Type) {
	if !s.body.CompareAndSwap(nil, newBody(packed, fields)) {
		panic(fmt.Sprintf("unreachable: body of %%%s set twice", s.Name))
	}
}

// Lookup returns the named struct with handle h.
func (c *Context) Lookup(h Handle) *StructType {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.arena[h]
}

// NamedStructs lists the arena in declaration order.
func (c *Context) NamedStructs() []*StructType {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*StructType(nil), c.arena...)
}

func (c *Context) entry(key types.Type) *cached {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.cache[key]
	if !ok {
		e = &cached{}
		c.cache[key] = e
	}
	return e
}

func (c *Context) namedEntry(key string) *cached {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.named[key]
	if !ok {
		e = &cached{}
		c.named[key] = e
	}
	return e
}

// TypeOf maps a frontend type to its lowered type. Results are cached for
// the lifetime of the context.
func (c *Context) TypeOf(t types.Type) Type {
	e := c.entry(t)
	e.once.Do(func() {
		logger.Printf("building type: %s", t)
		e.t = c.build(t)
	})
	return e.t
}

func (c *Context) build(t types.Type) Type {
	switch tt := t.(type) {
	case *types.Basic:
		switch k := tt.Kind(); {
		case k == types.Void:
			return c.Void()
		case types.IsIntegral(tt):
			if k == types.Bool {
				return c.Int(1)
			}
			return c.Int(int(tt.Size() * 8))
		case k >= types.Float32 && k <= types.Float80:
			return c.Float(k)
		case k >= types.Imaginary32 && k <= types.Imaginary80:
			return c.Float(types.Float32 + (k - types.Imaginary32))
		case tt.IsComplex():
			part := c.Float(types.Float32 + (k - types.Complex32))
			return c.Struct(part, part)
		}
	case *types.PointerType:
		return c.Pointer(c.pointee(tt.Elem))
	case *types.ClassType:
		return c.Pointer(c.declareOnce("class."+tt.Name, nil))
	case *types.AssocArrayType:
		return c.VoidPtr()
	case *types.DArrayType:
		return c.Struct(c.SizeT(), c.Pointer(c.pointee(tt.Elem)))
	case *types.DelegateType:
		return c.Struct(c.VoidPtr(), c.VoidPtr())
	case *types.SArrayType:
		return c.Array(c.TypeOf(tt.Elem), tt.Len)
	case *types.VectorType:
		return c.Vector(c.TypeOf(tt.Elem), tt.Len)
	case *types.EnumType:
		return c.TypeOf(tt.Base)
	case *types.StructType:
		s := c.declareOnce("", tt)
		c.setStructBody(s, tt)
		return s
	}
	panic(fmt.Sprintf("unreachable: cannot lower type %s", t))
}

// pointee lowers the target of a pointer without completing structs, so
// self-referential types terminate.
func (c *Context) pointee(t types.Type) Type {
	switch tt := types.ToBase(t).(type) {
	case *types.StructType:
		return c.declareOnce("", tt)
	case *types.Basic:
		if tt.Kind() == types.Void {
			return c.Int(8)
		}
	}
	return c.TypeOf(t)
}

// declareOnce returns the arena struct for a frontend struct, or for a
// name when st is nil, declaring it on first use.
func (c *Context) declareOnce(name string, st *types.StructType) *StructType {
	c.mu.Lock()
	defer c.mu.Unlock()
	if st == nil {
		if i, ok := c.names[name]; ok && i > 0 {
			for _, s := range c.arena {
				if s.Name == name {
					return s
				}
			}
		}
		return c.declareLocked(name)
	}
	if s, ok := c.structs[st]; ok {
		return s
	}
	name = "struct." + st.Name
	if st.Name == "" {
		name = "struct.anon"
	}
	if st.Union {
		name = "union." + st.Name
	}
	s := c.declareLocked(name)
	c.structs[st] = s
	return s
}

// setStructBody lowers the members of st, inserting byte arrays for gaps
// and falling back to a packed struct when a member is under-aligned.
func (c *Context) setStructBody(s *StructType, st *types.StructType) {
	if !s.Opaque() {
		return
	}
	var fields []Type
	var offsets []int64
	if st.Union {
		// the member with the largest size stands in for the union
		var best *types.Field
		for _, f := range st.Fields {
			if best == nil || f.Type.Size() > best.Type.Size() {
				best = f
			}
		}
		if best != nil {
			fields, offsets = []Type{c.TypeOf(best.Type)}, []int64{0}
		}
	} else {
		for _, f := range st.Fields {
			fields = append(fields, c.TypeOf(f.Type))
			offsets = append(offsets, f.Offset)
		}
	}
	packed := false
	for i, f := range fields {
		if offsets[i]%f.Align() != 0 {
			packed = true
		}
	}
	var body []Type
	var off int64
	for i, f := range fields {
		if !packed {
			off = alignTo(off, f.Align())
		}
		if gap := offsets[i] - off; gap > 0 {
			body = append(body, c.Array(c.Int(8), gap))
			off += gap
		}
		body = append(body, f)
		off += AllocSize(f)
	}
	align := int64(1)
	if !packed {
		for _, f := range fields {
			if f.Align() > align {
				align = f.Align()
			}
		}
	}
	if tail := st.Size() - alignTo(off, align); tail > 0 {
		body = append(body, c.Array(c.Int(8), tail))
	}
	c.SetBody(s, packed, body...)
}

// MutexType is the layout of the runtime's critical section object, which
// depends on the target operating system.
func (c *Context) MutexType() Type {
	e := c.namedEntry("mutex")
	e.once.Do(func() {
		t := c.Target.Triple
		switch {
		case t.IsOSWindows():
			// RTL_CRITICAL_SECTION is 24 bytes on 32-bit and 40 on 64-bit.
			rtl := c.Declare("RTL_CRITICAL_SECTION")
			c.SetBody(rtl, false, c.VoidPtr(), c.Int(32), c.Int(32), c.VoidPtr(), c.VoidPtr(), c.VoidPtr())
			mutex := c.Declare("D_CRITICAL_SECTION")
			c.SetBody(mutex, false, c.Pointer(mutex), rtl)
			e.t = mutex
		case t.OS == target.FreeBSD || t.OS == target.NetBSD || t.OS == target.OpenBSD || t.OS == target.DragonFly:
			// pthread_mutex_t is a pointer
			e.t = c.Struct(c.SizeT())
		default:
			fastlock := c.Struct(c.SizeT(), c.Int(32))
			pmutex := c.Struct(c.Int(32), c.Int(32), c.VoidPtr(), c.Int(32), fastlock)
			mutex := c.Declare("D_CRITICAL_SECTION")
			c.SetBody(mutex, false, c.Pointer(mutex), pmutex)
			e.t = mutex
		}
	})
	return e.t
}

// ModuleReferenceType is the node of the linked list of module infos. The
// struct points to itself, so it is declared before its body is set.
func (c *Context) ModuleReferenceType() Type {
	e := c.namedEntry("moduleref")
	e.once.Do(func() {
		st := c.Declare("ModuleReference")
		info := c.declareOnce("ModuleInfo", nil)
		c.SetBody(st, false, c.Pointer(st), c.Pointer(info))
		e.t = st
	})
	return e.t
}
