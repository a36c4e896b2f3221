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

// Package abi decides how function arguments and results cross a call
// boundary on each supported target, and marshals values between their
// native and lowered forms.
package abi

import (
	"fmt"

	"github.com/smolt/ldcabi/internal/ir"
	"github.com/smolt/ldcabi/internal/layout"
	"github.com/smolt/ldcabi/internal/types"
)

// TargetABI is the calling convention of one target family.
type TargetABI interface {
	// Name identifies the variant, e.g. "aapcs64-ios".
	Name() string
	// CallingConv maps a linkage to the backend calling convention. An
	// unknown linkage is a bug in the caller and panics.
	CallingConv(link types.Linkage) CallConv
	// ReturnInArg reports whether the result is written through a hidden
	// pointer supplied by the caller.
	ReturnInArg(sig *types.Func) bool
	// PassByVal reports whether a by-value argument of type t is passed in
	// memory.
	PassByVal(t types.Type) bool
	// RewriteFunctionType attaches rewrites to the return value and to the
	// by-value parameters of fl.
	RewriteFunctionType(ctx *ir.Context, fl *FuncLowering)
	// RewriteVarargsArgument fixes up one variadic argument.
	RewriteVarargsArgument(ctx *ir.Context, fl *FuncLowering, arg *Arg)
	// ArgRegisters is the register file used for placement.
	ArgRegisters() RegisterFile
}

// isAggregate reports whether t is a struct or static array.
func isAggregate(t types.Type) bool { return types.IsAggregate(t) }

func isStruct(t types.Type) bool { return types.ToBase(t).Kind() == types.Struct }

func isSArray(t types.Type) bool { return types.ToBase(t).Kind() == types.SArray }

// resultType returns the base type of the result, or nil when sig returns
// by reference and so never needs a hidden result pointer.
func resultType(sig *types.Func) types.Type {
	if sig.IsRef {
		return nil
	}
	return types.ToBase(sig.Result)
}

// isHFAType reports whether t is an aggregate classified as homogeneous.
func isHFAType(t types.Type) bool {
	if !isAggregate(t) {
		return false
	}
	_, ok := IsHFA(layout.Of(t))
	return ok
}

func isSimpleType(t types.Type, wordSize int64) bool {
	return isStruct(t) && IsSimpleSmall(layout.Of(t), wordSize)
}

// reverseForD marks extern(D) signatures with more than one parameter and
// no C-style variadics as passing their parameters in reverse order.
func reverseForD(fl *FuncLowering) {
	l := fl.Sig.Linkage
	if (l == types.LinkD || l == types.LinkDefault) && fl.Varargs != types.CVariadic && len(fl.Args) > 1 {
		fl.ReverseParams = true
	}
}

// rewriteParams applies rewrite to every by-value parameter.
func rewriteParams(ctx *ir.Context, fl *FuncLowering, rewrite func(*ir.Context, *Arg)) {
	for _, arg := range fl.Args {
		if arg.Kind != PassIndirectByRef {
			rewrite(ctx, arg)
		}
	}
}

// rewriteVararg keeps narrow floats from being promoted to double by
// passing them as integers of the same width. Aggregates get the fixed
// argument rewrite of the variant.
func rewriteVararg(ctx *ir.Context, arg *Arg, rewrite func(*ir.Context, *Arg)) {
	switch types.ToBase(arg.Type).Kind() {
	case types.Float32, types.Imaginary32:
		arg.SetRewrite(ctx, compositeToInt)
	case types.Struct, types.SArray:
		rewrite(ctx, arg)
	}
}

func unhandledLinkage(l types.Linkage) CallConv {
	panic(fmt.Sprintf("unreachable: unhandled linkage %s", l))
}
