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
	"strings"

	"github.com/samber/lo"

	"github.com/smolt/ldcabi/internal/ir"
	"github.com/smolt/ldcabi/internal/layout"
	"github.com/smolt/ldcabi/internal/logger"
	"github.com/smolt/ldcabi/internal/types"
)

// Rewrite converts values of a frontend type between their native form and
// the lowered form that crosses a call boundary. The set of rewrites is
// closed; switch over the concrete types below.
type Rewrite interface {
	// Get turns a lowered value back into a native one.
	Get(f *ir.Frame, dty types.Type, v ir.Value) ir.Value
	// GetInto is Get writing the native value to dst.
	GetInto(f *ir.Frame, dty types.Type, v ir.Value, dst *ir.Slot)
	// Put turns a native value into its lowered form.
	Put(f *ir.Frame, dty types.Type, v ir.Value) ir.Value
	// Type is the lowered type of dty.
	Type(ctx *ir.Context, dty types.Type) ir.Type
	String() string

	sealed()
}

// Identity passes values unchanged.
type Identity struct{}

// CompositeToInt reinterprets an aggregate as an integer of the same width.
type CompositeToInt struct{}

// CompositeToArray reinterprets an aggregate as an array of ElemBits wide
// chunks, the last one partially filled. Float selects floating point
// chunks, which land in FP registers.
type CompositeToArray struct {
	ElemBits int
	Float    bool
}

// CompositeToEightbytes reinterprets an aggregate of at most 16 bytes as a
// struct with one field per eightbyte: a double or float where SSE is set,
// an integer elsewhere.
type CompositeToEightbytes struct {
	SSE [2]bool
}

// HFAToArray reinterprets a homogeneous floating point aggregate as an array
// of its element type.
type HFAToArray struct{}

// ImplicitByval passes an aggregate by address with the byval attribute.
// The caller's own storage is used when it is aligned to MinAlign.
type ImplicitByval struct {
	MinAlign int64
}

// ExplicitByval passes a plain pointer to a copy the callee owns.
type ExplicitByval struct {
	MinAlign int64
}

var (
	identity           Rewrite = Identity{}
	compositeToInt     Rewrite = CompositeToInt{}
	compositeToArray32 Rewrite = CompositeToArray{ElemBits: 32}
	compositeToArray64 Rewrite = CompositeToArray{ElemBits: 64}
	sseToArray         Rewrite = CompositeToArray{ElemBits: 64, Float: true}
	hfaToArray         Rewrite = HFAToArray{}
)

func (Identity) sealed()              {}
func (CompositeToInt) sealed()        {}
func (CompositeToArray) sealed()      {}
func (HFAToArray) sealed()            {}
func (CompositeToEightbytes) sealed() {}
func (ImplicitByval) sealed()         {}
func (ExplicitByval) sealed()         {}

func (Identity) String() string       { return "identity" }
func (CompositeToInt) String() string { return "composite->int" }
func (HFAToArray) String() string     { return "hfa->array" }

func (r CompositeToArray) String() string {
	if r.Float {
		return fmt.Sprintf("composite->[f%d]", r.ElemBits)
	}
	return fmt.Sprintf("composite->[i%d]", r.ElemBits)
}

func (r CompositeToEightbytes) String() string {
	classes := lo.Map(r.SSE[:], func(sse bool, _ int) string { return lo.Ternary(sse, "sse", "int") })
	return "composite->{" + strings.Join(classes, ",") + "}"
}

func (r ImplicitByval) String() string { return fmt.Sprintf("implicit-byval(%d)", r.MinAlign) }
func (r ExplicitByval) String() string { return fmt.Sprintf("explicit-byval(%d)", r.MinAlign) }

func (Identity) Get(_ *ir.Frame, _ types.Type, v ir.Value) ir.Value { return v }

func (Identity) GetInto(f *ir.Frame, _ types.Type, v ir.Value, dst *ir.Slot) {
	f.Store(v, dst)
}

func (Identity) Put(_ *ir.Frame, _ types.Type, v ir.Value) ir.Value { return v }

func (Identity) Type(ctx *ir.Context, dty types.Type) ir.Type { return ctx.TypeOf(dty) }

// reinterpretIn converts a lowered value to the native type dty through a
// temporary large enough for both.
func reinterpretIn(f *ir.Frame, dty types.Type, v ir.Value, name string) ir.Value {
	native := f.Ctx.TypeOf(dty)
	tmp := f.Alloca(v.Type, max(v.Type.Align(), native.Align()), name)
	f.Store(v, tmp)
	return f.Load(native, tmp)
}

// reinterpretOut converts a native value to the lowered type lt through a
// temporary of type lt.
func reinterpretOut(f *ir.Frame, lt ir.Type, v ir.Value, name string) ir.Value {
	tmp := f.Alloca(lt, max(lt.Align(), v.Type.Align()), name)
	f.Store(v, tmp)
	return f.Load(lt, tmp)
}

// storePrefix writes the first dty.Size() bytes of the lowered value v to
// dst, leaving bytes past the native size untouched.
func storePrefix(f *ir.Frame, dty types.Type, v ir.Value, dst *ir.Slot, name string) {
	tmp := f.Alloca(v.Type, 0, name)
	f.Store(v, tmp)
	f.MemCpy(dst, tmp, dty.Size())
}

func (CompositeToInt) Get(f *ir.Frame, dty types.Type, v ir.Value) ir.Value {
	logger.Printf("rewriting integer -> %s", dty)
	return reinterpretIn(f, dty, v, ".int_to_composite")
}

func (CompositeToInt) GetInto(f *ir.Frame, dty types.Type, v ir.Value, dst *ir.Slot) {
	logger.Printf("rewriting integer -> %s", dty)
	storePrefix(f, dty, v, dst, ".int_to_composite")
}

func (r CompositeToInt) Put(f *ir.Frame, dty types.Type, v ir.Value) ir.Value {
	logger.Printf("rewriting %s -> integer", dty)
	return reinterpretOut(f, r.Type(f.Ctx, dty), v, ".composite_to_int")
}

func (CompositeToInt) Type(ctx *ir.Context, dty types.Type) ir.Type {
	return ctx.Int(int(dty.Size() * 8))
}

func (r CompositeToArray) Get(f *ir.Frame, dty types.Type, v ir.Value) ir.Value {
	logger.Printf("rewriting %s -> %s", v.Type, dty)
	return reinterpretIn(f, dty, v, ".array_to_composite")
}

func (r CompositeToArray) GetInto(f *ir.Frame, dty types.Type, v ir.Value, dst *ir.Slot) {
	logger.Printf("rewriting %s -> %s", v.Type, dty)
	storePrefix(f, dty, v, dst, ".array_to_composite")
}

func (r CompositeToArray) Put(f *ir.Frame, dty types.Type, v ir.Value) ir.Value {
	lt := r.Type(f.Ctx, dty)
	logger.Printf("rewriting %s -> %s", dty, lt)
	return reinterpretOut(f, lt, v, ".composite_to_array")
}

func (r CompositeToArray) Type(ctx *ir.Context, dty types.Type) ir.Type {
	width := int64(r.ElemBits / 8)
	n := (dty.Size() + width - 1) / width
	var elem ir.Type = ctx.Int(r.ElemBits)
	if r.Float {
		elem = ctx.Float(types.Float64)
		if r.ElemBits == 32 {
			elem = ctx.Float(types.Float32)
		}
	}
	return ctx.Array(elem, n)
}

func (r CompositeToEightbytes) Get(f *ir.Frame, dty types.Type, v ir.Value) ir.Value {
	logger.Printf("rewriting %s -> %s", v.Type, dty)
	return reinterpretIn(f, dty, v, ".eightbytes_to_composite")
}

func (r CompositeToEightbytes) GetInto(f *ir.Frame, dty types.Type, v ir.Value, dst *ir.Slot) {
	logger.Printf("rewriting %s -> %s", v.Type, dty)
	storePrefix(f, dty, v, dst, ".eightbytes_to_composite")
}

func (r CompositeToEightbytes) Put(f *ir.Frame, dty types.Type, v ir.Value) ir.Value {
	lt := r.Type(f.Ctx, dty)
	logger.Printf("rewriting %s -> %s", dty, lt)
	return reinterpretOut(f, lt, v, ".composite_to_eightbytes")
}

// Type narrows the last field to the data left before the tail padding, so
// { double, int } becomes { double, i32 }.
func (r CompositeToEightbytes) Type(ctx *ir.Context, dty types.Type) ir.Type {
	end := lo.Max(lo.Map(layout.Of(dty).Leaves(), func(l layout.Leaf, _ int) int64 { return l.Offset + l.Size }))
	var fields []ir.Type
	for i := int64(0); i < 2 && i*8 < end; i++ {
		width := min(end-i*8, 8)
		switch {
		case !r.SSE[i]:
			fields = append(fields, ctx.Int(int(width*8)))
		case width <= 4:
			fields = append(fields, ctx.Float(types.Float32))
		default:
			fields = append(fields, ctx.Float(types.Float64))
		}
	}
	return ctx.Struct(fields...)
}

func (HFAToArray) Get(f *ir.Frame, dty types.Type, v ir.Value) ir.Value {
	logger.Printf("rewriting %s -> %s", v.Type, dty)
	return reinterpretIn(f, dty, v, ".hfa_to_composite")
}

func (HFAToArray) GetInto(f *ir.Frame, dty types.Type, v ir.Value, dst *ir.Slot) {
	logger.Printf("rewriting %s -> %s", v.Type, dty)
	storePrefix(f, dty, v, dst, ".hfa_to_composite")
}

func (r HFAToArray) Put(f *ir.Frame, dty types.Type, v ir.Value) ir.Value {
	lt := r.Type(f.Ctx, dty)
	logger.Printf("rewriting %s -> %s", dty, lt)
	return reinterpretOut(f, lt, v, ".composite_to_hfa")
}

func (HFAToArray) Type(ctx *ir.Context, dty types.Type) ir.Type {
	h, ok := IsHFA(layout.Of(dty))
	if !ok {
		panic(fmt.Sprintf("unreachable: %s is not a homogeneous float aggregate", dty))
	}
	return ctx.Array(ctx.TypeOf(h.Elem), int64(h.Count))
}

// byvalGet loads the native value the lowered pointer v points to.
func byvalGet(f *ir.Frame, dty types.Type, v ir.Value) ir.Value {
	return f.Load(f.Ctx.TypeOf(dty), f.Deref(v))
}

func byvalGetInto(f *ir.Frame, dty types.Type, v ir.Value, dst *ir.Slot) {
	f.MemCpy(dst, f.Deref(v), dty.Size())
}

func (ImplicitByval) Get(f *ir.Frame, dty types.Type, v ir.Value) ir.Value {
	return byvalGet(f, dty, v)
}

func (ImplicitByval) GetInto(f *ir.Frame, dty types.Type, v ir.Value, dst *ir.Slot) {
	byvalGetInto(f, dty, v, dst)
}

func (r ImplicitByval) Put(f *ir.Frame, dty types.Type, v ir.Value) ir.Value {
	if v.Home != nil && v.Home.Align >= r.MinAlign {
		return f.AddressOf(v.Home)
	}
	logger.Printf("copying %s to %d byte aligned storage", dty, r.MinAlign)
	copyForCallee := f.Alloca(f.Ctx.TypeOf(dty), max(r.MinAlign, dty.Align()), ".implicit_byval")
	f.Store(v, copyForCallee)
	return f.AddressOf(copyForCallee)
}

func (ImplicitByval) Type(ctx *ir.Context, dty types.Type) ir.Type {
	return ctx.Pointer(ctx.TypeOf(dty))
}

func (ExplicitByval) Get(f *ir.Frame, dty types.Type, v ir.Value) ir.Value {
	return byvalGet(f, dty, v)
}

func (ExplicitByval) GetInto(f *ir.Frame, dty types.Type, v ir.Value, dst *ir.Slot) {
	byvalGetInto(f, dty, v, dst)
}

func (r ExplicitByval) Put(f *ir.Frame, dty types.Type, v ir.Value) ir.Value {
	copyForCallee := f.Alloca(f.Ctx.TypeOf(dty), max(r.MinAlign, dty.Align()), ".explicit_byval")
	f.Store(v, copyForCallee)
	return f.AddressOf(copyForCallee)
}

func (ExplicitByval) Type(ctx *ir.Context, dty types.Type) ir.Type {
	return ctx.Pointer(ctx.TypeOf(dty))
}
