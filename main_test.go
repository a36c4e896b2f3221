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
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/smolt/ldcabi/internal/abi"
	"github.com/smolt/ldcabi/internal/ir"
	"github.com/smolt/ldcabi/internal/target"
	"github.com/smolt/ldcabi/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTargetOptions(t *testing.T) {
	cmd := newCommand()
	flags := cmd.PersistentFlags()
	require.NoError(t, flags.Set("mtriple", "armv7-unknown-linux-gnueabihf"))
	require.NoError(t, flags.Set("mattr", "+neon,-vfp2"))
	require.NoError(t, flags.Set("relocation-model", "pic"))
	require.NoError(t, flags.Set("optimize-level", "2"))
	require.NoError(t, flags.Set("float-abi", "softfp"))

	opts, err := targetOptions(cmd)
	require.NoError(t, err)
	assert.Equal(t, "armv7-unknown-linux-gnueabihf", opts.Triple)
	assert.Equal(t, []string{"+neon", "-vfp2"}, opts.Attrs)
	assert.Equal(t, target.RelocPIC, opts.RelocModel)
	assert.Equal(t, target.OptDefault, opts.OptLevel)
	assert.Equal(t, target.FloatABISoftFP, opts.FloatABI)
	assert.Equal(t, target.BitnessNone, opts.Bitness)
}

func TestTargetOptions_Errors(t *testing.T) {
	tests := []struct {
		flags map[string]string
		err   string
	}{
		{map[string]string{"m32": "true", "m64": "true"}, "-m32 and -m64 are mutually exclusive"},
		{map[string]string{"float-abi": "bogus"}, "unknown float ABI 'bogus'"},
		{map[string]string{"relocation-model": "ropi"}, "unknown relocation model 'ropi'"},
		{map[string]string{"code-model": "tiny"}, "unknown code model 'tiny'"},
		{map[string]string{"optimize-level": "5"}, "invalid optimization level -O5"},
	}
	for _, tt := range tests {
		t.Run(tt.err, func(t *testing.T) {
			cmd := newCommand()
			for k, v := range tt.flags {
				require.NoError(t, cmd.PersistentFlags().Set(k, v))
			}
			_, err := targetOptions(cmd)
			assert.EqualError(t, err, tt.err)
		})
	}
}

func TestWriteReport(t *testing.T) {
	d, err := target.Resolve(target.Options{Triple: "aarch64-unknown-linux-gnu"})
	require.NoError(t, err)
	a := abi.Select(d)
	ctx := ir.NewContext(d)
	c := ctx.Types
	f32, i64 := c.Basic(types.Float32), c.Basic(types.Int64)
	pair := c.StructOf("Pair", types.NewField("x", f32), types.NewField("y", f32))
	big := c.StructOf("Big", types.NewField("a", i64), types.NewField("b", i64), types.NewField("c", i64))
	sig := &types.Func{Name: "f", Result: big, Linkage: types.LinkC, Params: []*types.Param{
		{Name: "p0", Type: pair},
		{Name: "p1", Type: c.Basic(types.Int32)},
	}}

	var out strings.Builder
	require.NoError(t, writeReport(&out, d, a, []*abi.FuncLowering{abi.Lower(a, ctx, sig)}))
	report := out.String()
	assert.True(t, strings.HasPrefix(report, "; target aarch64-unknown-linux-gnu"))
	assert.Contains(t, report, "abi aapcs64)")
	assert.Contains(t, report, ";   return: sret\n")
	assert.Contains(t, report, "in R8\n")
	assert.Contains(t, report, ";   p0: rewritten [2 x float] [hfa->array] in F0, F1\n")
	assert.Contains(t, report, ";   p1: direct i32 in R0\n")
	assert.NotContains(t, report, "stack:")
}

func TestRun(t *testing.T) {
	triple := requireCFrontend(t)
	dir := t.TempDir()
	header := filepath.Join(dir, "point.h")
	require.NoError(t, os.WriteFile(header, []byte(`
struct point { double x, y; };
struct point mid(struct point p, struct point q);
int add(int a, int b);
`), 0o644))

	cmd := newCommand()
	require.NoError(t, cmd.PersistentFlags().Set("mtriple", triple))
	var out strings.Builder
	cmd.SetOut(&out)
	require.NoError(t, run(cmd, header))
	assert.Contains(t, out.String(), "@mid(")
	assert.Contains(t, out.String(), "ccc i32 @add(i32, i32)")

	asm := filepath.Join(dir, "point.s")
	require.NoError(t, cmd.PersistentFlags().Set("asm", "true"))
	require.NoError(t, cmd.PersistentFlags().Set("output", asm))
	require.NoError(t, run(cmd, header))
	listing, err := os.ReadFile(asm)
	require.NoError(t, err)
	assert.Contains(t, string(listing), "TEXT ·add(SB), NOSPLIT")
	assert.Contains(t, string(listing), "CALL mid(SB)")
}

func TestRun_UnknownLinkage(t *testing.T) {
	cmd := newCommand()
	require.NoError(t, cmd.PersistentFlags().Set("mtriple", "x86_64-unknown-linux-gnu"))
	require.NoError(t, cmd.PersistentFlags().Set("linkage", "Fortran"))
	assert.EqualError(t, run(cmd, "missing.h"), `unknown linkage "Fortran"`)
}

func TestRun_BadTriple(t *testing.T) {
	cmd := newCommand()
	require.NoError(t, cmd.PersistentFlags().Set("mtriple", "riscv64-unknown-linux-gnu"))
	assert.EqualError(t, run(cmd, "missing.h"), "unable to get target for 'riscv64-unknown-linux-gnu', see -version and -mtriple.")
}
