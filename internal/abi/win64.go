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
	"github.com/smolt/ldcabi/internal/ir"
	"github.com/smolt/ldcabi/internal/target"
	"github.com/smolt/ldcabi/internal/types"
)

func init() {
	Register(FamilyWin64, newWin64ABI)
}

// win64ABI is the Microsoft x64 convention. Aggregates of 1, 2, 4 or 8
// bytes travel as integers, everything else by pointer to a copy.
type win64ABI struct{}

func newWin64ABI(target.Descriptor) TargetABI { return &win64ABI{} }

func (a *win64ABI) Name() string { return "x86_64-win64" }

func (a *win64ABI) CallingConv(link types.Linkage) CallConv {
	switch link {
	case types.LinkC, types.LinkCPP, types.LinkPascal, types.LinkWindows, types.LinkSystem, types.LinkObjC,
		types.LinkD, types.LinkDefault:
		return CallC
	}
	return unhandledLinkage(link)
}

// isWin64Aggregate also covers complex numbers, which Win64 passes like
// two-field structs.
func isWin64Aggregate(t types.Type) bool {
	return isAggregate(t) || types.IsComplex(t)
}

func (a *win64ABI) ReturnInArg(sig *types.Func) bool {
	rt := resultType(sig)
	if rt == nil || !isWin64Aggregate(rt) {
		return false
	}
	return !types.IsPOD(rt) || !canRewriteAsInt(rt)
}

func (a *win64ABI) PassByVal(t types.Type) bool {
	return isWin64Aggregate(t) && !canRewriteAsInt(t)
}

func (a *win64ABI) RewriteFunctionType(ctx *ir.Context, fl *FuncLowering) {
	if !fl.ReturnInArg && fl.Ret.Kind != PassIndirectByRef && isWin64Aggregate(fl.Sig.Result) {
		fl.Ret.SetRewrite(ctx, compositeToInt)
	}
	rewriteParams(ctx, fl, a.rewriteArgument)
}

func (a *win64ABI) rewriteArgument(ctx *ir.Context, arg *Arg) {
	switch {
	case !isWin64Aggregate(arg.Type):
	case canRewriteAsInt(arg.Type):
		arg.SetRewrite(ctx, compositeToInt)
	default:
		arg.SetRewrite(ctx, ExplicitByval{MinAlign: 16})
	}
}

func (a *win64ABI) RewriteVarargsArgument(ctx *ir.Context, _ *FuncLowering, arg *Arg) {
	rewriteVararg(ctx, arg, a.rewriteArgument)
}

func (a *win64ABI) ArgRegisters() RegisterFile {
	return RegisterFile{
		GPRs:       []string{"CX", "DX", "R8", "R9"},
		FPRs:       []string{"X0", "X1", "X2", "X3"},
		StackSlot:  8,
		Positional: true,
	}
}
