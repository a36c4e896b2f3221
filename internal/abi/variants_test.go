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
	"testing"

	"github.com/smolt/ldcabi/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCallingConv(t *testing.T) {
	tests := []struct {
		triple string
		link   types.Linkage
		want   CallConv
	}{
		{"i686-unknown-linux-gnu", types.LinkC, CallC},
		{"i686-unknown-linux-gnu", types.LinkCPP, CallC},
		{"i686-unknown-linux-gnu", types.LinkD, CallX86StdCall},
		{"i686-unknown-linux-gnu", types.LinkWindows, CallX86StdCall},
		{"i686-unknown-linux-gnu", types.LinkSystem, CallC},
		{"i686-pc-windows-msvc", types.LinkSystem, CallX86StdCall},
		{"x86_64-unknown-linux-gnu", types.LinkD, CallC},
		{"x86_64-pc-windows-msvc", types.LinkPascal, CallC},
		{"armv7-unknown-linux-gnueabihf", types.LinkC, CallARMAAPCSVFP},
		{"armv7-unknown-linux-gnueabihf", types.LinkD, CallARMAAPCSVFP},
		{"armv7-unknown-linux-gnueabi", types.LinkD, CallC},
		{"armv7-apple-ios", types.LinkD, CallC},
		{"arm64-apple-ios", types.LinkD, CallC},
		{"powerpc-apple-darwin", types.LinkD, CallFast},
		{"powerpc-apple-darwin", types.LinkC, CallC},
		{"mips-unknown-linux-gnu", types.LinkD, CallC},
	}
	for _, tt := range tests {
		t.Run(tt.triple+"/"+tt.link.String(), func(t *testing.T) {
			a, _ := setup(t, tt.triple)
			assert.Equal(t, tt.want, a.CallingConv(tt.link))
		})
	}
}

func TestCallingConv_UnknownLinkage(t *testing.T) {
	for _, triple := range []string{"i686-unknown-linux-gnu", "x86_64-unknown-linux-gnu", "aarch64-unknown-linux-gnu", "mips-unknown-linux-gnu"} {
		a, _ := setup(t, triple)
		assert.PanicsWithValue(t, "unreachable: unhandled linkage Linkage(99)", func() { a.CallingConv(types.Linkage(99)) })
	}
}

func TestX86(t *testing.T) {
	c := cfg32
	s4 := structOf(c, "S4", c.Basic(types.Int32))
	s3 := structOf(c, "S3", repeat(c.Basic(types.Uns8), 3)...)
	s8 := structOf(c, "S8", c.Basic(types.Int32), c.Basic(types.Float32))
	s12 := structOf(c, "S12", repeat(c.Basic(types.Int32), 3)...)
	cf := c.Basic(types.Complex32)
	tests := []struct {
		triple string
		link   types.Linkage
		result types.Type
		want   bool
	}{
		{"i686-unknown-linux-gnu", types.LinkC, s4, true},
		{"i686-unknown-linux-gnu", types.LinkD, s4, false},
		{"i686-unknown-linux-gnu", types.LinkD, s8, false},
		{"i686-unknown-linux-gnu", types.LinkD, s3, true},
		{"i686-unknown-linux-gnu", types.LinkD, s12, true},
		{"i686-unknown-linux-gnu", types.LinkD, cf, false},
		{"i686-unknown-linux-gnu", types.LinkC, cf, true},
		{"i686-apple-darwin", types.LinkC, s4, false},
		{"i686-apple-darwin", types.LinkC, cf, false},
		{"i686-pc-windows-msvc", types.LinkC, s8, false},
		{"i686-unknown-freebsd", types.LinkC, s12, true},
	}
	for _, tt := range tests {
		t.Run(tt.triple+"/"+tt.link.String()+"/"+tt.result.String(), func(t *testing.T) {
			a, ctx := setup(t, tt.triple)
			sig := &types.Func{Name: "f", Result: tt.result, Linkage: tt.link}
			assert.Equal(t, tt.want, a.ReturnInArg(sig))
			fl := Lower(a, ctx, sig)
			if !tt.want && isAggregate(tt.result) {
				assert.Equal(t, compositeToInt, fl.Ret.Rewrite)
				assert.Equal(t, tt.result.Size(), fl.Ret.LType.Size())
			}
		})
	}

	a, ctx := setup(t, "i686-unknown-linux-gnu")
	fl := Lower(a, ctx, &types.Func{Name: "g", Result: c.Basic(types.Void), Linkage: types.LinkC, Params: params(s12)})
	arg := fl.Args[0]
	assert.Equal(t, ImplicitByval{MinAlign: 4}, arg.Rewrite)
	assert.True(t, arg.Attrs.Has(AttrByVal))
	assert.Equal(t, int64(4), arg.ByValAlign)
	assert.True(t, a.PassByVal(s4))
	assert.False(t, a.PassByVal(c.Basic(types.Int64)))
}

var cfg32 = &types.Config{PtrSize: 4, RealSize: 12, RealAlign: 4}

func TestSysV(t *testing.T) {
	a, ctx := setup(t, "x86_64-unknown-linux-gnu")
	c := ctx.Types
	f32, f64, i32 := c.Basic(types.Float32), c.Basic(types.Float64), c.Basic(types.Int32)
	packed := c.NewStruct("Packed").SetLayout(9, 1,
		&types.Field{Name: "c", Type: c.Basic(types.Int8), Offset: 0},
		&types.Field{Name: "d", Type: f64, Offset: 1})
	tests := []struct {
		name    string
		t       types.Type
		rewrite Rewrite
		ltype   string
		sret    bool
	}{
		{"two doubles", structOf(c, "DD", f64, f64), sseToArray, "[2 x double]", false},
		{"three floats", structOf(c, "FFF", f32, f32, f32), sseToArray, "[2 x double]", false},
		{"three ints", structOf(c, "III", i32, i32, i32), compositeToArray64, "[2 x i64]", false},
		{"int float", structOf(c, "IF", i32, f32), compositeToInt, "i64", false},
		{"pointer", structOf(c, "P", c.Pointer(i32)), compositeToInt, "i64", false},
		{"slice", structOf(c, "Sl", c.DArray(i32)), compositeToArray64, "[2 x i64]", false},
		{"double int", structOf(c, "DI", f64, i32), CompositeToEightbytes{SSE: [2]bool{true, false}}, "{ double, i32 }", false},
		{"double long", structOf(c, "DL", f64, c.Basic(types.Int64)), CompositeToEightbytes{SSE: [2]bool{true, false}}, "{ double, i64 }", false},
		{"pointer double", structOf(c, "PD", c.Pointer(i32), f64), CompositeToEightbytes{SSE: [2]bool{false, true}}, "{ i64, double }", false},
		{"int int double", structOf(c, "IID", i32, i32, f64), CompositeToEightbytes{SSE: [2]bool{false, true}}, "{ i64, double }", false},
		{"long float", structOf(c, "LF", c.Basic(types.Int64), f32), CompositeToEightbytes{SSE: [2]bool{false, true}}, "{ i64, float }", false},
		{"empty array", c.SArray(i32, 0), identity, "[0 x i32]", false},
		{"real", structOf(c, "R", c.Basic(types.Float80)), ImplicitByval{MinAlign: 8}, "%struct.R*", true},
		{"large", structOf(c, "L", repeat(i32, 5)...), ImplicitByval{MinAlign: 8}, "%struct.L*", true},
		{"unaligned", packed, ImplicitByval{MinAlign: 8}, "%struct.Packed*", true},
		{"float array", c.SArray(f32, 4), sseToArray, "[2 x double]", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig := &types.Func{Name: "f", Result: tt.t, Linkage: types.LinkC, Params: params(tt.t)}
			fl := Lower(a, ctx, sig)
			assert.Equal(t, tt.sret, fl.ReturnInArg)
			assert.Equal(t, tt.sret, a.PassByVal(tt.t))
			arg := fl.Args[0]
			assert.Equal(t, tt.rewrite, arg.Rewrite)
			assert.Equal(t, tt.ltype, arg.LType.String())
			if !tt.sret {
				assert.Equal(t, tt.rewrite, fl.Ret.Rewrite)
			}
		})
	}
}

func TestWin64(t *testing.T) {
	a, ctx := setup(t, "x86_64-pc-windows-msvc")
	c := ctx.Types
	i32 := c.Basic(types.Int32)
	s8 := structOf(c, "S8", i32, i32)
	s12 := structOf(c, "S12", i32, i32, i32)
	s2 := structOf(c, "S2", c.Basic(types.Int16))

	fl := Lower(a, ctx, &types.Func{Name: "f", Result: s8, Linkage: types.LinkD, Params: params(s8, s12, s2, c.Basic(types.Complex32))})
	assert.False(t, fl.ReturnInArg)
	assert.False(t, fl.ReverseParams)
	assert.Equal(t, "i64", fl.Ret.LType.String())
	assert.Equal(t, "i64", fl.Args[0].LType.String())

	big := fl.Args[1]
	assert.Equal(t, ExplicitByval{MinAlign: 16}, big.Rewrite)
	assert.Equal(t, PassIndirectByValue, big.Kind)
	assert.False(t, big.Attrs.Has(AttrByVal))
	assert.Equal(t, "%struct.S12*", big.LType.String())

	assert.Equal(t, "i16", fl.Args[2].LType.String())
	assert.Equal(t, "i64", fl.Args[3].LType.String())

	assert.True(t, a.ReturnInArg(&types.Func{Name: "g", Result: s12, Linkage: types.LinkC}))
	assert.True(t, a.PassByVal(s12))
	assert.False(t, a.PassByVal(s8))
}

func TestIOSArm(t *testing.T) {
	a, ctx := setup(t, "armv7-apple-ios")
	require.Equal(t, "aapcs-ios", a.Name())
	c := ctx.Types
	i32 := c.Basic(types.Int32)
	simple := structOf(c, "Simple", i32)
	s8 := structOf(c, "S8", i32, i32)
	huge := structOf(c, "Huge", repeat(i32, 17)...)
	arr := c.SArray(c.Basic(types.Uns8), 5)

	assert.False(t, a.ReturnInArg(&types.Func{Name: "c", Result: simple, Linkage: types.LinkC}))
	assert.True(t, a.ReturnInArg(&types.Func{Name: "d", Result: simple, Linkage: types.LinkD}))
	assert.True(t, a.ReturnInArg(&types.Func{Name: "c8", Result: s8, Linkage: types.LinkC}))
	assert.True(t, a.ReturnInArg(&types.Func{Name: "ca", Result: arr, Linkage: types.LinkC}))

	fl := Lower(a, ctx, &types.Func{Name: "f", Result: c.Basic(types.Void), Linkage: types.LinkC, Params: params(huge, s8, arr)})
	h := fl.Args[0]
	assert.Equal(t, ImplicitByval{MinAlign: 4}, h.Rewrite)
	assert.True(t, h.Attrs.Has(AttrByVal))
	assert.Equal(t, int64(4), h.ByValAlign)
	assert.Equal(t, "[2 x i32]", fl.Args[1].LType.String())
	assert.Nil(t, fl.Args[2].Rewrite)
	assert.True(t, a.PassByVal(huge))
	assert.False(t, a.PassByVal(s8))
}

func TestAPCS_NonPOD(t *testing.T) {
	a, ctx := setup(t, "armv7-unknown-linux-gnueabihf")
	c := ctx.Types
	s := structOf(c, "NonPOD", c.Basic(types.Int32))
	s.NonPOD = true
	assert.True(t, a.ReturnInArg(&types.Func{Name: "f", Result: s, Linkage: types.LinkC}))
	s.NonPOD = false
	assert.False(t, a.ReturnInArg(&types.Func{Name: "f", Result: s, Linkage: types.LinkC}))
	assert.False(t, a.PassByVal(structOf(c, "Big", repeat(c.Basic(types.Int64), 20)...)))
}

func TestAAPCS64(t *testing.T) {
	c := &types.Config{PtrSize: 8, RealSize: 8, RealAlign: 8}
	f64, i64 := c.Basic(types.Float64), c.Basic(types.Int64)
	hfa4 := structOf(c, "HFA4", repeat(f64, 4)...)
	i16 := structOf(c, "I16", i64, i64)
	i24 := structOf(c, "I24", i64, i64, i64)
	tests := []struct {
		triple string
		link   types.Linkage
		result types.Type
		want   bool
	}{
		{"arm64-apple-ios", types.LinkC, hfa4, false},
		{"arm64-apple-ios", types.LinkC, i16, false},
		{"arm64-apple-ios", types.LinkC, i24, true},
		{"arm64-apple-ios", types.LinkD, i16, true},
		{"arm64-apple-ios", types.LinkD, hfa4, true},
		{"arm64-apple-ios", types.LinkD, f64, false},
		{"aarch64-unknown-linux-gnu", types.LinkD, i16, false},
		{"aarch64-unknown-linux-gnu", types.LinkD, i24, true},
		{"aarch64-unknown-linux-gnu", types.LinkC, c.SArray(f64, 2), false},
		{"aarch64-unknown-linux-gnu", types.LinkC, c.SArray(i64, 3), true},
	}
	for _, tt := range tests {
		t.Run(tt.triple+"/"+tt.link.String()+"/"+tt.result.String(), func(t *testing.T) {
			a, _ := setup(t, tt.triple)
			assert.Equal(t, tt.want, a.ReturnInArg(&types.Func{Name: "f", Result: tt.result, Linkage: tt.link}))
		})
	}

	a, ctx := setup(t, "aarch64-unknown-linux-gnu")
	fl := Lower(a, ctx, &types.Func{Name: "h", Result: hfa4, Linkage: types.LinkC, Params: params(hfa4, i16, i24)})
	assert.Nil(t, fl.Ret.Rewrite)
	assert.Equal(t, "[4 x double]", fl.Args[0].LType.String())
	assert.Equal(t, "[2 x i64]", fl.Args[1].LType.String())
	assert.Equal(t, ExplicitByval{MinAlign: 8}, fl.Args[2].Rewrite)
	assert.True(t, a.PassByVal(i24))
	assert.False(t, a.PassByVal(hfa4))

	empty := c.SArray(i64, 0)
	fl = Lower(a, ctx, &types.Func{Name: "e", Result: empty, Linkage: types.LinkC, Params: params(empty)})
	assert.False(t, fl.ReturnInArg)
	assert.Nil(t, fl.Ret.Rewrite)
	assert.Equal(t, "[0 x i64]", fl.Ret.LType.String())
	assert.Nil(t, fl.Args[0].Rewrite)
	assert.Equal(t, "[0 x i64]", fl.Args[0].LType.String())
}

func TestGeneric(t *testing.T) {
	a, ctx := setup(t, "mips-unknown-linux-gnu")
	require.Equal(t, "generic", a.Name())
	c := ctx.Types
	s := structOf(c, "S", c.Basic(types.Int32))
	assert.True(t, a.ReturnInArg(&types.Func{Name: "f", Result: s, Linkage: types.LinkC}))
	assert.True(t, a.ReturnInArg(&types.Func{Name: "f", Result: c.SArray(s, 2), Linkage: types.LinkC}))
	assert.False(t, a.ReturnInArg(&types.Func{Name: "f", Result: c.Basic(types.Int64), Linkage: types.LinkC}))
	assert.False(t, a.PassByVal(s))

	fl := LowerCall(a, ctx, &types.Func{Name: "v", Result: c.Basic(types.Void), Linkage: types.LinkC, Varargs: types.CVariadic, Params: params(s)}, c.Basic(types.Float32))
	assert.Nil(t, fl.Args[0].Rewrite)
	assert.Equal(t, "%struct.S", fl.Args[0].LType.String())
	assert.Nil(t, fl.Extra[0].Rewrite)
}
