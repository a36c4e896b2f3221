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
	Register(FamilyX86, newX86ABI)
}

// x86ABI is the 32-bit x86 convention. Arguments go on the stack; small
// structs come back in EAX/EDX on the systems that allow it.
type x86ABI struct {
	windows bool
	// returnStructsInRegs is false on systems that return every C struct
	// through a hidden pointer.
	returnStructsInRegs bool
}

func newX86ABI(d target.Descriptor) TargetABI {
	t := d.Triple
	return &x86ABI{
		windows:             t.IsOSWindows(),
		returnStructsInRegs: !(t.IsOSLinux() || t.OS == target.Solaris || t.OS == target.NetBSD),
	}
}

func (a *x86ABI) Name() string { return "x86" }

func (a *x86ABI) CallingConv(link types.Linkage) CallConv {
	switch link {
	case types.LinkC, types.LinkCPP, types.LinkObjC:
		return CallC
	case types.LinkD, types.LinkDefault, types.LinkWindows, types.LinkPascal:
		return CallX86StdCall
	case types.LinkSystem:
		if a.windows {
			return CallX86StdCall
		}
		return CallC
	}
	return unhandledLinkage(link)
}

func isExternD(sig *types.Func) bool {
	return (sig.Linkage == types.LinkD || sig.Linkage == types.LinkDefault) && sig.Varargs != types.CVariadic
}

// canRewriteAsInt reports whether t fits one or two integer registers.
func canRewriteAsInt(t types.Type) bool {
	switch t.Size() {
	case 1, 2, 4, 8:
		return true
	}
	return false
}

func (a *x86ABI) ReturnInArg(sig *types.Func) bool {
	rt := resultType(sig)
	if rt == nil {
		return false
	}
	externD := isExternD(sig)
	if types.IsComplex(rt) {
		if externD {
			return false
		}
		return !(rt.Kind() == types.Complex32 && a.returnStructsInRegs)
	}
	if !isAggregate(rt) {
		return false
	}
	if !types.IsPOD(rt) {
		return true
	}
	if !externD && !a.returnStructsInRegs {
		return true
	}
	return !canRewriteAsInt(rt)
}

func (a *x86ABI) PassByVal(t types.Type) bool { return isAggregate(t) }

func (a *x86ABI) RewriteFunctionType(ctx *ir.Context, fl *FuncLowering) {
	if !fl.ReturnInArg && fl.Ret.Kind != PassIndirectByRef && isAggregate(fl.Sig.Result) {
		fl.Ret.SetRewrite(ctx, compositeToInt)
	}
	if !fl.ReturnInArg && fl.Ret.Kind != PassIndirectByRef && types.IsComplex(fl.Sig.Result) && !isExternD(fl.Sig) {
		fl.Ret.SetRewrite(ctx, compositeToInt)
	}
	rewriteParams(ctx, fl, a.rewriteArgument)
	reverseForD(fl)
}

func (a *x86ABI) rewriteArgument(ctx *ir.Context, arg *Arg) {
	if a.PassByVal(arg.Type) {
		arg.SetRewrite(ctx, ImplicitByval{MinAlign: 4})
	}
}

func (a *x86ABI) RewriteVarargsArgument(ctx *ir.Context, _ *FuncLowering, arg *Arg) {
	rewriteVararg(ctx, arg, a.rewriteArgument)
}

func (a *x86ABI) ArgRegisters() RegisterFile {
	return RegisterFile{AllOnStack: true, StackSlot: 4}
}
