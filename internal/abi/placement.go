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
)

// RegisterFile lists the argument registers of a calling convention, in
// Plan 9 assembler spelling.
type RegisterFile struct {
	GPRs []string
	FPRs []string
	// SRet is the register for the hidden result pointer. Empty means it
	// takes the first general purpose register.
	SRet string
	// StackSlot is the granule of the outgoing argument area.
	StackSlot int64
	// AllOnStack passes every argument in memory.
	AllOnStack bool
	// VarargsOnStack passes the variadic arguments of a call in memory.
	VarargsOnStack bool
	// Positional assigns the n-th argument to the n-th register of its
	// class, consuming the slot in both classes.
	Positional bool
}

// Location is where one lowered argument lives at the call.
type Location struct {
	Arg   *Arg
	Regs  []string
	Stack bool
	// Offset is the byte offset in the outgoing argument area.
	Offset int64
	// Size is the number of bytes the argument occupies on the stack.
	Size int64
}

func (l Location) String() string {
	if !l.Stack && len(l.Regs) == 0 {
		return "none"
	}
	if l.Stack {
		return fmt.Sprintf("%d(SP)", l.Offset)
	}
	return strings.Join(l.Regs, ", ")
}

// Placement assigns every lowered argument of a call to registers or to
// the outgoing argument area.
type Placement struct {
	Locs      []Location
	StackSize int64
}

type regClass int

const (
	classGPR regClass = iota
	classFPR
	// classMixed is a struct of integer and floating point eightbytes,
	// each taking one register of its own class.
	classMixed
	classMemory
)

// Place assigns the lowered arguments of fl, in call order, to the
// registers of rf. An argument either fits entirely into the remaining
// registers of its class or goes to the stack, after which no further
// argument of that class uses registers. Empty arguments take no place.
func Place(fl *FuncLowering, rf RegisterFile) *Placement {
	p := &Placement{}
	word := rf.StackSlot
	if word == 0 {
		word = 8
	}
	nextGPR, nextFPR := 0, 0
	push := func(arg *Arg, size, align int64) {
		off := alignTo(p.StackSize, max(align, word))
		size = alignTo(size, word)
		p.Locs = append(p.Locs, Location{Arg: arg, Stack: true, Offset: off, Size: size})
		p.StackSize = off + size
	}

	for i, arg := range fl.CallArgs() {
		if arg == fl.SRet && rf.SRet != "" {
			p.Locs = append(p.Locs, Location{Arg: arg, Regs: []string{rf.SRet}})
			continue
		}
		if arg.LType.Size() == 0 {
			p.Locs = append(p.Locs, Location{Arg: arg})
			continue
		}
		class, n := classOf(arg, rf, word)
		if rf.AllOnStack || class == classMemory || rf.VarargsOnStack && lo.Contains(fl.Extra, arg) {
			push(arg, memSize(arg), memAlign(arg))
			continue
		}
		if class == classMixed && !rf.Positional {
			sse := lo.Map(arg.LType.(*ir.StructType).Fields(), func(f ir.Type, _ int) bool { return f.Kind() == ir.FloatKind })
			nf := lo.Count(sse, true)
			ng := len(sse) - nf
			if nextGPR+ng > len(rf.GPRs) || nextFPR+nf > len(rf.FPRs) {
				if nextGPR+ng > len(rf.GPRs) {
					nextGPR = len(rf.GPRs)
				}
				if nextFPR+nf > len(rf.FPRs) {
					nextFPR = len(rf.FPRs)
				}
				push(arg, arg.LType.Size(), arg.LType.Align())
				continue
			}
			regs := make([]string, len(sse))
			for k, isFloat := range sse {
				if isFloat {
					regs[k] = rf.FPRs[nextFPR]
					nextFPR++
				} else {
					regs[k] = rf.GPRs[nextGPR]
					nextGPR++
				}
			}
			p.Locs = append(p.Locs, Location{Arg: arg, Regs: regs})
			continue
		}
		if rf.Positional {
			regs := lo.Ternary(class == classFPR, rf.FPRs, rf.GPRs)
			pos := i
			if fl.SRet != nil && rf.SRet != "" {
				pos--
			}
			if n == 1 && pos < len(regs) {
				p.Locs = append(p.Locs, Location{Arg: arg, Regs: []string{regs[pos]}})
			} else {
				push(arg, arg.LType.Size(), arg.LType.Align())
			}
			continue
		}
		regs, next := rf.GPRs, &nextGPR
		if class == classFPR {
			regs, next = rf.FPRs, &nextFPR
		}
		if *next+n <= len(regs) {
			p.Locs = append(p.Locs, Location{Arg: arg, Regs: regs[*next : *next+n]})
			*next += n
			continue
		}
		*next = len(regs)
		push(arg, arg.LType.Size(), arg.LType.Align())
	}
	return p
}

// classOf returns the register class of a lowered argument and the number
// of registers it takes.
func classOf(arg *Arg, rf RegisterFile, word int64) (regClass, int) {
	if arg.Attrs.Has(AttrByVal) {
		return classMemory, 0
	}
	gprs := func(size int64) (regClass, int) {
		return classGPR, int(max(1, (size+word-1)/word))
	}
	fprs := func(n int64) (regClass, int) {
		if len(rf.FPRs) == 0 {
			return gprs(arg.LType.Size())
		}
		return classFPR, int(n)
	}
	switch t := arg.LType.(type) {
	case *ir.FloatType:
		return fprs(1)
	case *ir.VectorType:
		return fprs(1)
	case *ir.ArrayType:
		if t.Elem.Kind() == ir.FloatKind {
			return fprs(t.Len)
		}
	case *ir.StructType:
		if t.Opaque() || t.NumFields() == 0 {
			break
		}
		floats := lo.CountBy(t.Fields(), func(f ir.Type) bool { return f.Kind() == ir.FloatKind })
		switch {
		case floats == t.NumFields():
			return fprs(int64(floats))
		case floats > 0 && len(rf.FPRs) > 0:
			return classMixed, t.NumFields()
		}
	}
	return gprs(arg.LType.Size())
}

func memSize(arg *Arg) int64 {
	if p, ok := arg.LType.(*ir.PointerType); ok && arg.Attrs.Has(AttrByVal) {
		return ir.AllocSize(p.Elem)
	}
	return arg.LType.Size()
}

func memAlign(arg *Arg) int64 {
	if arg.Attrs.Has(AttrByVal) {
		return arg.ByValAlign
	}
	return arg.LType.Align()
}

func alignTo(x, a int64) int64 {
	if a <= 1 {
		return x
	}
	return (x + a - 1) / a * a
}
