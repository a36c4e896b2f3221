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
	"fmt"
	"strings"

	"github.com/klauspost/asmfmt"
	"github.com/samber/lo"
	"github.com/smolt/ldcabi/internal/abi"
	"github.com/smolt/ldcabi/internal/ir"
	"github.com/smolt/ldcabi/internal/logger"
	"github.com/smolt/ldcabi/internal/target"
)

// frameArg is a lowered argument in the Go frame of the trampoline.
type frameArg struct {
	name   string
	offset int64
}

// Listing renders Go assembly trampolines that move Go frame arguments
// into the places the target calling convention expects.
type Listing struct {
	Target target.Descriptor
	ABI    abi.TargetABI
}

func (l *Listing) writeHeader(builder *strings.Builder) {
	builder.WriteString("// Code generated by ldcabi. DO NOT EDIT.\n")
	builder.WriteString(fmt.Sprintf("// target: %s (cpu %s, abi %s)\n", l.Target.Triple, l.Target.CPU, l.ABI.Name()))
	builder.WriteRune('\n')
	builder.WriteString("#include \"textflag.h\"\n")
}

// Generate returns the formatted listing for the lowered functions.
func (l *Listing) Generate(lowered []*abi.FuncLowering) ([]byte, error) {
	var builder strings.Builder
	l.writeHeader(&builder)
	d, err := GetDialect(l.Target.Triple.Arch)
	known := err == nil
	if !known {
		logger.Printf("%v, writing placement comments only", err)
	}
	rf := l.ABI.ArgRegisters()
	for _, fl := range lowered {
		builder.WriteRune('\n')
		l.writeFunction(&builder, fl, abi.Place(fl, rf), d, known)
	}
	return asmfmt.Format(strings.NewReader(builder.String()))
}

func (l *Listing) writeFunction(builder *strings.Builder, fl *abi.FuncLowering, p *abi.Placement, d asmDialect, known bool) {
	word := int64(l.Target.WordSize)
	offset := int64(0)
	frame := make([]frameArg, len(p.Locs))
	for i, loc := range p.Locs {
		size := loc.Arg.LType.Size()
		if loc.Stack {
			size = loc.Size
		}
		offset = alignUp(offset, word)
		frame[i] = frameArg{name: strings.TrimPrefix(loc.Arg.Name, "."), offset: offset}
		offset += alignUp(size, word)
	}
	argSize := offset
	retSize := int64(0)
	if fl.Ret.LType.Kind() != ir.VoidKind {
		retSize = alignUp(fl.Ret.LType.Size(), word)
	}

	builder.WriteString(fmt.Sprintf("// %s\n", fl))
	builder.WriteString(fmt.Sprintf("TEXT ·%s(SB), NOSPLIT, $%d-%d\n", fl.Sig.Name, alignUp(p.StackSize, 16), argSize+retSize))
	if !known {
		for i, loc := range p.Locs {
			builder.WriteString(fmt.Sprintf("\t// %s+%d(FP) -> %s\n", frame[i].name, frame[i].offset, loc))
		}
		builder.WriteString("\tRET\n")
		return
	}
	for i, loc := range p.Locs {
		fa := frame[i]
		if loc.Stack {
			for off := int64(0); off < loc.Size; off += d.word {
				builder.WriteString(fmt.Sprintf("\t%s %s_%d+%d(FP), %s\n", d.move, fa.name, off, fa.offset+off, d.scratch))
				builder.WriteString(fmt.Sprintf("\t%s %s, %d(SP)\n", d.move, d.scratch, loc.Offset+off))
			}
			continue
		}
		for k, reg := range loc.Regs {
			off, size := regChunk(loc.Arg.LType, k, len(loc.Regs), d.word)
			move := d.move
			if isFPR(reg) {
				move = lo.Ternary(size == 4, d.moveF32, d.moveF64)
			}
			if k == 0 {
				builder.WriteString(fmt.Sprintf("\t%s %s+%d(FP), %s\n", move, fa.name, fa.offset, reg))
			} else {
				builder.WriteString(fmt.Sprintf("\t%s %s_%d+%d(FP), %s\n", move, fa.name, off, fa.offset+off, reg))
			}
		}
	}
	builder.WriteString(fmt.Sprintf("\tCALL %s(SB)\n", fl.Sig.Name))
	if retSize > 0 && fl.Ret.LType.Size() <= d.word {
		reg, move := d.retGPR, d.move
		if fl.Ret.LType.Kind() == ir.FloatKind && d.retFPR != "" {
			reg = d.retFPR
			move = lo.Ternary(fl.Ret.LType.Size() == 4, d.moveF32, d.moveF64)
		}
		builder.WriteString(fmt.Sprintf("\t%s %s, ret+%d(FP)\n", move, reg, argSize))
	}
	builder.WriteString("\tRET\n")
}

func isFPR(reg string) bool {
	return strings.HasPrefix(reg, "X") || strings.HasPrefix(reg, "F")
}

// regChunk is the offset and width of the k-th of n register pieces of t.
// Struct fields and float array elements each take one register; anything
// else is split into words.
func regChunk(t ir.Type, k, n int, word int64) (int64, int64) {
	switch t := t.(type) {
	case *ir.StructType:
		if t.NumFields() == n {
			return t.Offset(k), t.Field(k).Size()
		}
	case *ir.ArrayType:
		if t.Elem.Kind() == ir.FloatKind && t.Len == int64(n) {
			return int64(k) * t.Elem.Size(), t.Elem.Size()
		}
	}
	if n == 1 {
		return 0, t.Size()
	}
	return int64(k) * word, word
}

func alignUp(x, a int64) int64 {
	if a <= 1 {
		return x
	}
	return (x + a - 1) / a * a
}
