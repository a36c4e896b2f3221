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
	Register(FamilyAAPCS64, newAAPCS64ABI)
	Register(FamilyAAPCS64iOS, newIOSArm64ABI)
}

// aapcs64MaxRegAggregate is the largest non-HFA composite passed in
// registers.
const aapcs64MaxRegAggregate = 16

// aapcs64ABI is the AArch64 procedure call standard. Static arrays are
// classified like structs, so float[2] is an HFA.
type aapcs64ABI struct {
	// ios returns every extern(D) composite in memory. Registers returned
	// and spilled to memory would leave padding undefined, which breaks
	// bitwise struct comparison.
	ios bool
}

func newAAPCS64ABI(target.Descriptor) TargetABI { return &aapcs64ABI{} }

func newIOSArm64ABI(target.Descriptor) TargetABI { return &aapcs64ABI{ios: true} }

func (a *aapcs64ABI) Name() string {
	if a.ios {
		return "aapcs64-ios"
	}
	return "aapcs64"
}

func (a *aapcs64ABI) CallingConv(link types.Linkage) CallConv {
	switch link {
	case types.LinkC, types.LinkCPP, types.LinkPascal, types.LinkWindows, types.LinkSystem, types.LinkObjC,
		types.LinkD, types.LinkDefault:
		return CallC
	}
	return unhandledLinkage(link)
}

func (a *aapcs64ABI) ReturnInArg(sig *types.Func) bool {
	rt := resultType(sig)
	if rt == nil || !isAggregate(rt) {
		return false
	}
	if a.ios && (sig.Linkage == types.LinkD || sig.Linkage == types.LinkDefault) {
		return true
	}
	return !types.IsPOD(rt) || a.PassByVal(rt)
}

func (a *aapcs64ABI) PassByVal(t types.Type) bool {
	return isAggregate(t) && t.Size() > aapcs64MaxRegAggregate && !isHFAType(t)
}

func (a *aapcs64ABI) RewriteFunctionType(ctx *ir.Context, fl *FuncLowering) {
	// HFA results stay as they are and come back in v0-v3. Other composites
	// are returned as one integer so they occupy x0-x1.
	rt := fl.Sig.Result
	if !fl.ReturnInArg && fl.Ret.Kind != PassIndirectByRef && isAggregate(rt) && rt.Size() > 0 && !isHFAType(rt) {
		fl.Ret.SetRewrite(ctx, compositeToInt)
	}
	rewriteParams(ctx, fl, a.rewriteArgument)
	reverseForD(fl)
}

func (a *aapcs64ABI) rewriteArgument(ctx *ir.Context, arg *Arg) {
	switch {
	case !isAggregate(arg.Type), arg.Type.Size() == 0:
	case isHFAType(arg.Type):
		arg.SetRewrite(ctx, hfaToArray)
	case a.PassByVal(arg.Type):
		arg.SetRewrite(ctx, ExplicitByval{MinAlign: 8})
	default:
		arg.SetRewrite(ctx, compositeToArray64)
	}
}

func (a *aapcs64ABI) RewriteVarargsArgument(ctx *ir.Context, _ *FuncLowering, arg *Arg) {
	rewriteVararg(ctx, arg, a.rewriteArgument)
}

func (a *aapcs64ABI) ArgRegisters() RegisterFile {
	return RegisterFile{
		GPRs:      []string{"R0", "R1", "R2", "R3", "R4", "R5", "R6", "R7"},
		FPRs:      []string{"F0", "F1", "F2", "F3", "F4", "F5", "F6", "F7"},
		SRet:      "R8",
		StackSlot: 8,
		// Darwin passes every variadic argument in its own stack slot.
		VarargsOnStack: a.ios,
	}
}
