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

package main

import (
	"runtime"
	"strings"
	"testing"

	"github.com/samber/lo"
	"github.com/smolt/ldcabi/internal/abi"
	"github.com/smolt/ldcabi/internal/ir"
	"github.com/smolt/ldcabi/internal/target"
	"github.com/smolt/ldcabi/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"modernc.org/cc/v4"
)

// requireCFrontend returns the host triple, skipping the test when the C
// frontend cannot be configured for the host.
func requireCFrontend(t *testing.T) string {
	t.Helper()
	triple, ok := map[string]string{
		"linux/amd64": "x86_64-unknown-linux-gnu",
		"linux/arm64": "aarch64-unknown-linux-gnu",
	}[runtime.GOOS+"/"+runtime.GOARCH]
	if !ok {
		t.Skipf("no host triple for %s/%s", runtime.GOOS, runtime.GOARCH)
	}
	if _, err := cc.NewConfig(runtime.GOOS, runtime.GOARCH); err != nil {
		t.Skipf("C frontend unavailable: %v", err)
	}
	return triple
}

const testHeader = `
struct point { double x, y; };
struct big { long a, b, c; };
typedef struct node { struct node *next; int v; } node_t;
union num { int i; float f; };

int add(int a, int b);
struct point mid(struct point p, struct point q);
void fill(struct big *out, struct big in, char tag, ...);
node_t *walk(node_t *n);
unsigned short narrow(unsigned char c, float f);
struct big make_big(void);
int pick(union num n);
typedef int callback(int);
void sort(int *base, int (*less)(int, int), int g);
`

func parseTestHeader(t *testing.T, linkage types.Linkage) (target.Descriptor, map[string]*types.Func) {
	triple := requireCFrontend(t)
	d, err := target.Resolve(target.Options{Triple: triple})
	require.NoError(t, err)
	functions, err := NewHeaderUnit("test.h", d, linkage, nil).Parse(strings.NewReader(testHeader))
	require.NoError(t, err)
	assert.Equal(t, []string{"add", "mid", "fill", "walk", "narrow", "make_big", "pick", "sort"},
		lo.Map(functions, func(f *types.Func, _ int) string { return f.Name }))
	return d, lo.KeyBy(functions, func(f *types.Func) string { return f.Name })
}

func TestHeaderUnit_Parse(t *testing.T) {
	_, fns := parseTestHeader(t, types.LinkC)

	add := fns["add"]
	assert.Equal(t, types.LinkC, add.Linkage)
	assert.Equal(t, types.Int32, add.Result.Kind())
	require.Len(t, add.Params, 2)
	assert.Equal(t, "a", add.Params[0].Name)

	mid := fns["mid"]
	point := mid.Result.(*types.StructType)
	assert.Equal(t, "point", point.Name)
	assert.Equal(t, int64(16), point.Size())
	assert.Same(t, point, mid.Params[0].Type)
	assert.Equal(t, int64(8), point.Fields[1].Offset)

	fill := fns["fill"]
	assert.Equal(t, types.CVariadic, fill.Varargs)
	require.Len(t, fill.Params, 3)
	assert.Equal(t, types.Pointer, fill.Params[0].Type.Kind())
	assert.Equal(t, int64(24), fill.Params[1].Type.Size())
	assert.Equal(t, types.Char, fill.Params[2].Type.Kind())

	node := fns["walk"].Result.(*types.PointerType).Elem.(*types.StructType)
	assert.Equal(t, "node", node.Name)
	assert.Same(t, node, node.Fields[0].Type.(*types.PointerType).Elem)

	narrow := fns["narrow"]
	assert.Equal(t, types.Uns16, narrow.Result.Kind())
	assert.Equal(t, types.Uns8, narrow.Params[0].Type.Kind())
	assert.Equal(t, types.Float32, narrow.Params[1].Type.Kind())

	assert.Empty(t, fns["make_big"].Params)

	num := fns["pick"].Params[0].Type.(*types.StructType)
	assert.True(t, num.Union)
	assert.Equal(t, int64(4), num.Size())

	sort := fns["sort"]
	assert.Equal(t, "gv", sort.Params[2].Name)
	assert.Equal(t, types.Void, sort.Params[1].Type.(*types.PointerType).Elem.Kind())
}

func TestHeaderUnit_Lowering(t *testing.T) {
	d, fns := parseTestHeader(t, types.LinkC)
	a := abi.Select(d)
	ctx := ir.NewContext(d)

	assert.True(t, abi.Lower(a, ctx, fns["make_big"]).ReturnInArg)
	assert.False(t, abi.Lower(a, ctx, fns["mid"]).ReturnInArg)

	narrow := abi.Lower(a, ctx, fns["narrow"])
	assert.True(t, narrow.Ret.Attrs.Has(abi.AttrZExt))
	assert.True(t, narrow.Args[0].Attrs.Has(abi.AttrZExt))

	fill := abi.LowerCall(a, ctx, fns["fill"], ctx.Types.Basic(types.Float32))
	require.Len(t, fill.Extra, 1)
	assert.Equal(t, "i32", fill.Extra[0].LType.String())
}

func TestHeaderUnit_DLinkage(t *testing.T) {
	d, fns := parseTestHeader(t, types.LinkD)
	fl := abi.Lower(abi.Select(d), ir.NewContext(d), fns["add"])
	assert.Equal(t, types.LinkD, fns["add"].Linkage)
	assert.True(t, fl.ReverseParams)
}

func TestHeaderUnit_Unsupported(t *testing.T) {
	triple := requireCFrontend(t)
	d, err := target.Resolve(target.Options{Triple: triple})
	require.NoError(t, err)
	_, err = NewHeaderUnit("bits.h", d, types.LinkC, nil).Parse(strings.NewReader(`
struct flags { int a : 3; int b : 5; };
void set(struct flags f);
`))
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "bits.h:3:"))
	assert.Contains(t, err.Error(), "error: unsupported type")
}

func TestCCTarget(t *testing.T) {
	tests := []struct {
		triple string
		goos   string
		goarch string
	}{
		{"x86_64-unknown-linux-gnu", "linux", "amd64"},
		{"i686-pc-windows-msvc", "windows", "386"},
		{"arm64-apple-ios", "darwin", "arm64"},
		{"armv7-unknown-linux-gnueabihf", "linux", "arm"},
		{"mips64el-unknown-linux-gnuabi64", "linux", "mips64le"},
		{"x86_64-unknown-freebsd", "freebsd", "amd64"},
	}
	for _, tt := range tests {
		t.Run(tt.triple, func(t *testing.T) {
			goos, goarch, err := ccTarget(target.ParseTriple(tt.triple))
			require.NoError(t, err)
			assert.Equal(t, tt.goos, goos)
			assert.Equal(t, tt.goarch, goarch)
		})
	}

	_, _, err := ccTarget(target.ParseTriple("powerpc-unknown-linux-gnu"))
	assert.EqualError(t, err, "no C frontend configuration for 'powerpc-unknown-linux-gnu'")
	_, _, err = ccTarget(target.ParseTriple("x86_64-unknown-haiku"))
	assert.Error(t, err)
}

func TestSanitizeAsmParamName(t *testing.T) {
	assert.Equal(t, "gv", sanitizeAsmParamName("g"))
	assert.Equal(t, "sp_", sanitizeAsmParamName("SP"))
	assert.Equal(t, "count", sanitizeAsmParamName("count"))
}
