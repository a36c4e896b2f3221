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
	"sync"
	"testing"

	"github.com/smolt/ldcabi/internal/target"
	"github.com/smolt/ldcabi/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestContext(triple string) *Context {
	t := target.ParseTriple(triple)
	return NewContext(target.Descriptor{Triple: t, WordSize: t.PointerSize()})
}

func TestTypeOf_Basic(t *testing.T) {
	ctx := newTestContext("x86_64-unknown-linux-gnu")
	cfg := ctx.Types
	tests := []struct {
		dty  types.Type
		want string
		size int64
	}{
		{cfg.Basic(types.Bool), "i1", 1},
		{cfg.Basic(types.Int16), "i16", 2},
		{cfg.Basic(types.DChar), "i32", 4},
		{cfg.Basic(types.Uns128), "i128", 16},
		{cfg.Basic(types.Float64), "double", 8},
		{cfg.Basic(types.Float80), "x86_fp80", 10},
		{cfg.Basic(types.Imaginary32), "float", 4},
		{cfg.Basic(types.Complex64), "{ double, double }", 16},
		{cfg.Pointer(cfg.Basic(types.Void)), "i8*", 8},
		{cfg.DArray(cfg.Basic(types.Char)), "{ i64, i8* }", 16},
		{cfg.Delegate(), "{ i8*, i8* }", 16},
		{cfg.AssocArray(cfg.Basic(types.Int32), cfg.Basic(types.Int32)), "i8*", 8},
		{cfg.SArray(cfg.Basic(types.Float32), 3), "[3 x float]", 12},
		{cfg.Vector(cfg.Basic(types.Float32), 4), "<4 x float>", 16},
		{cfg.Enum("E", cfg.Basic(types.Uns8)), "i8", 1},
		{cfg.Class("Object"), "%class.Object*", 8},
	}
	for _, tt := range tests {
		t.Run(tt.dty.String(), func(t *testing.T) {
			lt := ctx.TypeOf(tt.dty)
			assert.Equal(t, tt.want, lt.String())
			assert.Equal(t, tt.size, lt.Size())
		})
	}
	assert.Equal(t, int64(16), AllocSize(ctx.TypeOf(cfg.Basic(types.Float80))))
}

func TestTypeOf_TargetDependent(t *testing.T) {
	x86 := newTestContext("i686-unknown-linux-gnu")
	assert.Equal(t, int64(4), x86.TypeOf(x86.Types.Basic(types.Float64)).Align())
	assert.Equal(t, int64(4), x86.Int(64).Align())
	assert.Equal(t, "i32", x86.SizeT().String())

	darwin := newTestContext("i686-apple-darwin")
	assert.Equal(t, int64(8), darwin.Int(64).Align())

	aarch64 := newTestContext("aarch64-unknown-linux-gnu")
	assert.Equal(t, "fp128", aarch64.TypeOf(aarch64.Types.Basic(types.Float80)).String())

	ios := newTestContext("arm64-apple-ios")
	assert.Equal(t, "double", ios.TypeOf(ios.Types.Basic(types.Float80)).String())
}

func TestTypeOf_Struct(t *testing.T) {
	ctx := newTestContext("x86_64-unknown-linux-gnu")
	cfg := ctx.Types

	s := cfg.StructOf("S",
		types.NewField("a", cfg.Basic(types.Int8)),
		types.NewField("b", cfg.Basic(types.Int32)),
		types.NewField("c", cfg.Basic(types.Int8)))
	lt := ctx.TypeOf(s)
	require.IsType(t, &StructType{}, lt)
	st := lt.(*StructType)
	assert.Equal(t, "%struct.S", st.String())
	assert.Equal(t, "{ i8, i32, i8 }", st.Body())
	assert.Equal(t, s.Size(), st.Size())
	assert.Same(t, lt, ctx.TypeOf(s))

	// a member at an offset its type does not align to forces a packed body
	p := cfg.NewStruct("P").SetLayout(5, 1,
		&types.Field{Name: "a", Type: cfg.Basic(types.Int8), Offset: 0},
		&types.Field{Name: "b", Type: cfg.Basic(types.Int32), Offset: 1})
	pt := ctx.TypeOf(p).(*StructType)
	assert.True(t, pt.Packed())
	assert.Equal(t, "<{ i8, i32 }>", pt.Body())
	assert.Equal(t, int64(5), pt.Size())

	// explicit gaps become byte arrays
	g := cfg.NewStruct("G").SetLayout(16, 4,
		&types.Field{Name: "a", Type: cfg.Basic(types.Int32), Offset: 0},
		&types.Field{Name: "b", Type: cfg.Basic(types.Int32), Offset: 8})
	assert.Equal(t, "{ i32, [4 x i8], i32, [4 x i8] }", ctx.TypeOf(g).(*StructType).Body())
}

func TestTypeOf_Union(t *testing.T) {
	ctx := newTestContext("x86_64-unknown-linux-gnu")
	cfg := ctx.Types
	u := cfg.UnionOf("U",
		types.NewField("i", cfg.Basic(types.Int32)),
		types.NewField("d", cfg.Basic(types.Float64)))
	ut := ctx.TypeOf(u).(*StructType)
	assert.Equal(t, "%union.U", ut.String())
	assert.Equal(t, "{ double }", ut.Body())
	assert.Equal(t, int64(8), ut.Size())
}

func TestTypeOf_SelfReferential(t *testing.T) {
	ctx := newTestContext("x86_64-unknown-linux-gnu")
	cfg := ctx.Types
	node := cfg.NewStruct("Node")
	node.SetFields(
		types.NewField("val", cfg.Basic(types.Int32)),
		types.NewField("next", cfg.Pointer(node)))

	lt := ctx.TypeOf(node).(*StructType)
	assert.Equal(t, "{ i32, %struct.Node* }", lt.Body())
	next := lt.Field(1).(*PointerType)
	assert.Same(t, lt, next.Elem)
	assert.Same(t, lt, ctx.Lookup(lt.Handle))
}

func TestTypeOf_NameUniquing(t *testing.T) {
	ctx := newTestContext("x86_64-unknown-linux-gnu")
	cfg := ctx.Types
	a := cfg.StructOf("S", types.NewField("a", cfg.Basic(types.Int32)))
	b := cfg.StructOf("S", types.NewField("b", cfg.Basic(types.Int64)))
	assert.Equal(t, "%struct.S", ctx.TypeOf(a).String())
	assert.Equal(t, "%struct.S.1", ctx.TypeOf(b).String())
	assert.Len(t, ctx.NamedStructs(), 2)
}

func TestTypeOf_Concurrent(t *testing.T) {
	ctx := newTestContext("aarch64-unknown-linux-gnu")
	cfg := ctx.Types
	s := cfg.StructOf("S",
		types.NewField("x", cfg.Basic(types.Float32)),
		types.NewField("y", cfg.Basic(types.Float32)))

	const n = 16
	results := make([]Type, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = ctx.TypeOf(s)
		}(i)
	}
	wg.Wait()
	for _, r := range results {
		assert.Same(t, results[0], r)
	}
	assert.Len(t, ctx.NamedStructs(), 1)
}

func TestSetBody_Twice(t *testing.T) {
	ctx := newTestContext("x86_64-unknown-linux-gnu")
	s := ctx.Declare("T")
	assert.True(t, s.Opaque())
	ctx.SetBody(s, false, ctx.Int(32))
	assert.False(t, s.Opaque())
	assert.Panics(t, func() { ctx.SetBody(s, false, ctx.Int(32)) })
}

func TestMutexType(t *testing.T) {
	tests := []struct {
		triple string
		name   string
		size   int64
	}{
		{"x86_64-unknown-linux-gnu", "%D_CRITICAL_SECTION", 48},
		{"i686-unknown-linux-gnu", "%D_CRITICAL_SECTION", 28},
		{"x86_64-pc-windows-msvc", "%D_CRITICAL_SECTION", 48},
		{"i686-pc-windows-msvc", "%D_CRITICAL_SECTION", 28},
		{"x86_64-unknown-freebsd", "{ i64 }", 8},
		{"i686-unknown-openbsd", "{ i32 }", 4},
	}
	for _, tt := range tests {
		t.Run(tt.triple, func(t *testing.T) {
			ctx := newTestContext(tt.triple)
			m := ctx.MutexType()
			assert.Equal(t, tt.name, m.String())
			assert.Equal(t, tt.size, m.Size())
			assert.Same(t, m, ctx.MutexType())
		})
	}
}

func TestMutexType_Windows(t *testing.T) {
	ctx := newTestContext("x86_64-pc-windows-msvc")
	m := ctx.MutexType().(*StructType)
	rtl := m.Field(1).(*StructType)
	assert.Equal(t, "%RTL_CRITICAL_SECTION", rtl.String())
	assert.Equal(t, int64(40), rtl.Size())
	assert.Same(t, m, m.Field(0).(*PointerType).Elem)
}

func TestModuleReferenceType(t *testing.T) {
	ctx := newTestContext("x86_64-unknown-linux-gnu")
	m := ctx.ModuleReferenceType().(*StructType)
	assert.Equal(t, "%ModuleReference", m.String())
	assert.Equal(t, "{ %ModuleReference*, %ModuleInfo* }", m.Body())
	assert.Same(t, m, m.Field(0).(*PointerType).Elem)
	assert.True(t, m.Field(1).(*PointerType).Elem.(*StructType).Opaque())
	assert.Same(t, m, ctx.ModuleReferenceType())
}
