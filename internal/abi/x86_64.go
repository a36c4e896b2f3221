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
	"github.com/samber/lo"
	"github.com/smolt/ldcabi/internal/ir"
	"github.com/smolt/ldcabi/internal/layout"
	"github.com/smolt/ldcabi/internal/target"
	"github.com/smolt/ldcabi/internal/types"
)

func init() {
	Register(FamilySysV, newSysVABI)
}

// eightbyteClass is the System V class of one 8-byte chunk of an aggregate.
type eightbyteClass int

const (
	classNone eightbyteClass = iota
	classInteger
	classSSE
	classMemoryEB
)

func mergeClass(a, b eightbyteClass) eightbyteClass {
	switch {
	case a == b:
		return a
	case a == classNone:
		return b
	case b == classNone:
		return a
	case a == classMemoryEB || b == classMemoryEB:
		return classMemoryEB
	case a == classInteger || b == classInteger:
		return classInteger
	}
	return classSSE
}

// classifyEightbytes returns the class of each eightbyte of t. Aggregates
// over 16 bytes, x87 values and unaligned leaves are in memory.
func classifyEightbytes(t types.Type) []eightbyteClass {
	size := t.Size()
	if size > 16 {
		return []eightbyteClass{classMemoryEB}
	}
	classes := make([]eightbyteClass, (size+7)/8)
	for _, leaf := range layout.Of(t).Leaves() {
		c := classInteger
		switch leaf.Kind {
		case layout.Floating:
			c = classSSE
			switch types.ToBase(leaf.Type).Kind() {
			case types.Float80, types.Imaginary80, types.Complex80:
				c = classMemoryEB
			}
		case layout.Other:
			if leaf.Type.Kind() == types.Vector {
				c = classSSE
			}
		}
		if a := leaf.Type.Align(); a > 1 && leaf.Offset%a != 0 {
			c = classMemoryEB
		}
		first, last := leaf.Offset/8, (leaf.Offset+max(leaf.Size, 1)-1)/8
		for i := first; i <= last && i < int64(len(classes)); i++ {
			classes[i] = mergeClass(classes[i], c)
		}
	}
	if lo.Contains(classes, classMemoryEB) {
		return []eightbyteClass{classMemoryEB}
	}
	for i, c := range classes {
		if c == classNone {
			classes[i] = classInteger
		}
	}
	return classes
}

// sysvABI is the System V AMD64 convention used everywhere but Windows.
type sysvABI struct{}

func newSysVABI(target.Descriptor) TargetABI { return &sysvABI{} }

func (a *sysvABI) Name() string { return "x86_64-sysv" }

func (a *sysvABI) CallingConv(link types.Linkage) CallConv {
	switch link {
	case types.LinkC, types.LinkCPP, types.LinkPascal, types.LinkWindows, types.LinkSystem, types.LinkObjC,
		types.LinkD, types.LinkDefault:
		return CallC
	}
	return unhandledLinkage(link)
}

// sysvRewrite picks the rewrite for a by-value aggregate, or nil when it
// has to travel in memory. Empty aggregates pass unchanged and take no
// register.
func sysvRewrite(t types.Type) Rewrite {
	classes := classifyEightbytes(t)
	switch {
	case len(classes) == 0:
		return identity
	case classes[0] == classMemoryEB:
		return nil
	case lo.EveryBy(classes, func(c eightbyteClass) bool { return c == classInteger }):
		if t.Size() <= 8 {
			return compositeToInt
		}
		return compositeToArray64
	case lo.EveryBy(classes, func(c eightbyteClass) bool { return c == classSSE }):
		return sseToArray
	}
	return CompositeToEightbytes{SSE: [2]bool{classes[0] == classSSE, classes[1] == classSSE}}
}

func (a *sysvABI) ReturnInArg(sig *types.Func) bool {
	rt := resultType(sig)
	if rt == nil || !isAggregate(rt) {
		return false
	}
	return !types.IsPOD(rt) || sysvRewrite(rt) == nil
}

func (a *sysvABI) PassByVal(t types.Type) bool {
	return isAggregate(t) && sysvRewrite(t) == nil
}

func (a *sysvABI) RewriteFunctionType(ctx *ir.Context, fl *FuncLowering) {
	if !fl.ReturnInArg && fl.Ret.Kind != PassIndirectByRef && isAggregate(fl.Sig.Result) {
		fl.Ret.SetRewrite(ctx, sysvRewrite(fl.Sig.Result))
	}
	rewriteParams(ctx, fl, a.rewriteArgument)
	reverseForD(fl)
}

func (a *sysvABI) rewriteArgument(ctx *ir.Context, arg *Arg) {
	if !isAggregate(arg.Type) {
		return
	}
	if r := sysvRewrite(arg.Type); r != nil {
		arg.SetRewrite(ctx, r)
		return
	}
	arg.SetRewrite(ctx, ImplicitByval{MinAlign: 8})
}

func (a *sysvABI) RewriteVarargsArgument(ctx *ir.Context, _ *FuncLowering, arg *Arg) {
	rewriteVararg(ctx, arg, a.rewriteArgument)
}

func (a *sysvABI) ArgRegisters() RegisterFile {
	return RegisterFile{
		GPRs:      []string{"DI", "SI", "DX", "CX", "R8", "R9"},
		FPRs:      []string{"X0", "X1", "X2", "X3", "X4", "X5", "X6", "X7"},
		StackSlot: 8,
	}
}
