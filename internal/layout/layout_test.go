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

package layout

import (
	"testing"

	"github.com/smolt/ldcabi/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var cfg = &types.Config{PtrSize: 8, RealSize: 16, RealAlign: 16}

func TestOf_Struct(t *testing.T) {
	inner := cfg.StructOf("Inner",
		types.NewField("x", cfg.Basic(types.Float32)),
		types.NewField("y", cfg.Basic(types.Float32)))
	outer := cfg.StructOf("Outer",
		types.NewField("tag", cfg.Basic(types.Uns8)),
		types.NewField("p", cfg.Pointer(cfg.Basic(types.Void))),
		types.NewField("in", inner),
		types.NewField("arr", cfg.SArray(cfg.SArray(cfg.Basic(types.Int16), 2), 3)),
		types.NewField("s", cfg.DArray(cfg.Basic(types.Char))))

	a := Of(outer)
	require.Len(t, a.Fields, 5)
	assert.Equal(t, int64(56), a.Size)
	assert.Equal(t, int64(8), a.Align)

	assert.Equal(t, Integral, a.Fields[0].Kind)
	assert.Equal(t, PointerLike, a.Fields[1].Kind)
	assert.Equal(t, int64(8), a.Fields[1].Offset)
	assert.Equal(t, Nested, a.Fields[2].Kind)
	require.NotNil(t, a.Fields[2].Inner)
	assert.Equal(t, Floating, a.Fields[2].Inner.Fields[1].Kind)

	arr := a.Fields[3]
	assert.True(t, arr.Array)
	assert.Equal(t, int64(6), arr.Count)
	assert.Equal(t, int64(2), arr.Size)
	assert.Equal(t, Integral, arr.Kind)
	assert.Equal(t, Other, a.Fields[4].Kind)
}

func TestOf_SArray(t *testing.T) {
	a := Of(cfg.SArray(cfg.Basic(types.Float64), 3))
	require.Len(t, a.Fields, 1)
	f := a.Fields[0]
	assert.Equal(t, int64(0), f.Offset)
	assert.Equal(t, Floating, f.Kind)
	assert.Equal(t, int64(3), f.Count)
	assert.Equal(t, int64(24), a.Size)
}

func TestOf_Enum(t *testing.T) {
	e := cfg.Enum("Color", cfg.Basic(types.Uns32))
	s := cfg.StructOf("S", types.NewField("c", e))
	a := Of(s)
	assert.Equal(t, Integral, a.Fields[0].Kind)
}

func TestOf_Panics(t *testing.T) {
	assert.Panics(t, func() { Of(cfg.Basic(types.Int32)) })
	assert.Panics(t, func() { Of(cfg.NewStruct("Incomplete")) })
}

func TestLeaves(t *testing.T) {
	inner := cfg.StructOf("Inner",
		types.NewField("a", cfg.Basic(types.Int32)),
		types.NewField("b", cfg.Basic(types.Float32)))
	s := cfg.StructOf("S",
		types.NewField("x", cfg.Basic(types.Int8)),
		types.NewField("in", cfg.SArray(inner, 2)))

	leaves := Of(s).Leaves()
	require.Len(t, leaves, 5)
	offsets := make([]int64, len(leaves))
	for i, l := range leaves {
		offsets[i] = l.Offset
	}
	assert.Equal(t, []int64{0, 4, 8, 12, 16}, offsets)
	assert.Equal(t, Floating, leaves[4].Kind)
}

func TestHasZeroLengthArray(t *testing.T) {
	empty := cfg.StructOf("E", types.NewField("z", cfg.SArray(cfg.Basic(types.Float32), 0)))
	s := cfg.StructOf("S",
		types.NewField("f", cfg.Basic(types.Float32)),
		types.NewField("e", empty))
	assert.True(t, Of(s).HasZeroLengthArray())
	assert.False(t, Of(cfg.StructOf("T", types.NewField("f", cfg.Basic(types.Float32)))).HasZeroLengthArray())
}
