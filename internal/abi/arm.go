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
	Register(FamilyAPCS, newAPCSABI)
	Register(FamilyAAPCSiOS, newIOSArmABI)
}

const armWordSize = 4

// apcsABI is the 32-bit ARM convention outside Darwin. Structs are passed
// as arrays of 32-bit words so they pack into r0-r3 the way C does it.
type apcsABI struct {
	hardFloat bool
}

func newAPCSABI(d target.Descriptor) TargetABI {
	return &apcsABI{hardFloat: d.HardFloat()}
}

func (a *apcsABI) Name() string {
	if a.hardFloat {
		return "apcs-vfp"
	}
	return "apcs"
}

func (a *apcsABI) CallingConv(link types.Linkage) CallConv {
	switch link {
	case types.LinkC, types.LinkCPP, types.LinkPascal, types.LinkWindows, types.LinkSystem, types.LinkObjC,
		types.LinkD, types.LinkDefault:
		if a.hardFloat {
			return CallARMAAPCSVFP
		}
		return CallC
	}
	return unhandledLinkage(link)
}

// armReturnInArg returns composites in memory, except simple integer-like
// structs, which come back in r0. Non-POD structs are always in memory.
func armReturnInArg(sig *types.Func) bool {
	rt := resultType(sig)
	if rt == nil {
		return false
	}
	if !types.IsPOD(rt) {
		return true
	}
	return (isStruct(rt) && !isSimpleType(rt, armWordSize)) || isSArray(rt)
}

func (a *apcsABI) ReturnInArg(sig *types.Func) bool { return armReturnInArg(sig) }

func (a *apcsABI) PassByVal(types.Type) bool { return false }

func (a *apcsABI) RewriteFunctionType(ctx *ir.Context, fl *FuncLowering) {
	rewriteParams(ctx, fl, a.rewriteArgument)
	reverseForD(fl)
}

// rewriteArgument keeps the data layout of a struct when it is spread over
// registers: char[4] in a struct fills r0 instead of r0-r3. Static arrays
// are left alone since the backend may pick an aligned load for them.
func (a *apcsABI) rewriteArgument(ctx *ir.Context, arg *Arg) {
	if isStruct(arg.Type) {
		arg.SetRewrite(ctx, compositeToArray32)
	}
}

func (a *apcsABI) RewriteVarargsArgument(ctx *ir.Context, _ *FuncLowering, arg *Arg) {
	rewriteVararg(ctx, arg, a.rewriteArgument)
}

func (a *apcsABI) ArgRegisters() RegisterFile {
	return armRegisters(a.hardFloat)
}

func armRegisters(hardFloat bool) RegisterFile {
	rf := RegisterFile{GPRs: []string{"R0", "R1", "R2", "R3"}, StackSlot: armWordSize}
	if hardFloat {
		rf.FPRs = []string{"F0", "F1", "F2", "F3", "F4", "F5", "F6", "F7"}
	}
	return rf
}

// iosArmABI is the iOS flavour of APCS. Large structs are passed byval
// with 4-byte alignment, and extern(D) functions return every composite
// in memory.
type iosArmABI struct {
	hardFloat bool
}

func newIOSArmABI(d target.Descriptor) TargetABI {
	return &iosArmABI{hardFloat: d.HardFloat()}
}

func (a *iosArmABI) Name() string { return "aapcs-ios" }

func (a *iosArmABI) CallingConv(link types.Linkage) CallConv {
	switch link {
	case types.LinkC, types.LinkCPP, types.LinkPascal, types.LinkWindows, types.LinkSystem, types.LinkObjC,
		types.LinkD, types.LinkDefault:
		return CallC
	}
	return unhandledLinkage(link)
}

func (a *iosArmABI) ReturnInArg(sig *types.Func) bool {
	rt := resultType(sig)
	if rt != nil && isExternD(sig) && isAggregate(rt) {
		return true
	}
	return armReturnInArg(sig)
}

// iosByvalThreshold is the struct size above which the backend would
// otherwise turn a register array back into a stack copy.
const iosByvalThreshold = 64

func (a *iosArmABI) PassByVal(t types.Type) bool {
	return isStruct(t) && t.Size() > iosByvalThreshold
}

func (a *iosArmABI) RewriteFunctionType(ctx *ir.Context, fl *FuncLowering) {
	rewriteParams(ctx, fl, a.rewriteArgument)
	reverseForD(fl)
}

func (a *iosArmABI) rewriteArgument(ctx *ir.Context, arg *Arg) {
	switch {
	case a.PassByVal(arg.Type):
		arg.SetRewrite(ctx, ImplicitByval{MinAlign: 4})
	case isStruct(arg.Type):
		arg.SetRewrite(ctx, compositeToArray32)
	}
}

func (a *iosArmABI) RewriteVarargsArgument(ctx *ir.Context, _ *FuncLowering, arg *Arg) {
	rewriteVararg(ctx, arg, a.rewriteArgument)
}

func (a *iosArmABI) ArgRegisters() RegisterFile {
	return armRegisters(a.hardFloat)
}
