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
	"testing"

	"github.com/smolt/ldcabi/internal/ir"
	"github.com/smolt/ldcabi/internal/target"
	"github.com/smolt/ldcabi/internal/types"
	"github.com/stretchr/testify/require"
)

func resolve(t *testing.T, triple string) target.Descriptor {
	t.Helper()
	d, err := target.Resolve(target.Options{Triple: triple})
	require.NoError(t, err)
	return d
}

// setup returns the variant and a fresh type context for triple.
func setup(t *testing.T, triple string) (TargetABI, *ir.Context) {
	t.Helper()
	d := resolve(t, triple)
	return Select(d), ir.NewContext(d)
}

// structOf builds a struct with natural layout whose fields are named
// f0, f1, ...
func structOf(cfg *types.Config, name string, fields ...types.Type) *types.StructType {
	fs := make([]*types.Field, len(fields))
	for i, f := range fields {
		fs[i] = types.NewField(fmt.Sprintf("f%d", i), f)
	}
	return cfg.StructOf(name, fs...)
}

func repeat(t types.Type, n int) []types.Type {
	ts := make([]types.Type, n)
	for i := range ts {
		ts[i] = t
	}
	return ts
}

func params(ts ...types.Type) []*types.Param {
	ps := make([]*types.Param, len(ts))
	for i, t := range ts {
		ps[i] = &types.Param{Name: fmt.Sprintf("p%d", i), Type: t}
	}
	return ps
}

// pattern returns a value of the native type of dty filled with distinct
// bytes.
func pattern(ctx *ir.Context, dty types.Type, seed byte) ir.Value {
	lt := ctx.TypeOf(dty)
	bits := make([]byte, lt.Size())
	for i := range bits {
		bits[i] = seed + byte(i)*7 + 1
	}
	return ir.Value{Type: lt, Bits: bits}
}
