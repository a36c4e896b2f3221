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
	"github.com/smolt/ldcabi/internal/logger"
	"github.com/smolt/ldcabi/internal/types"
)

// FuncLowering is the lowered form of one function signature. It is built
// by Lower and not modified afterwards.
type FuncLowering struct {
	Sig      *types.Func
	CallConv CallConv
	Varargs  types.VarargKind

	// Ret is the return value. It has type void when ReturnInArg is set.
	Ret *Arg
	// SRet is the hidden pointer to the result storage, or nil.
	SRet *Arg
	// Args are the declared parameters in declaration order.
	Args []*Arg
	// Extra are the lowered variadic arguments of one call site.
	Extra []*Arg

	ReturnInArg   bool
	ReverseParams bool
}

// shouldExtend returns the extension attribute narrow integers need when
// they are passed in a full register.
func shouldExtend(t types.Type) Attrs {
	switch types.ToBase(t).Kind() {
	case types.Int8, types.Int16:
		return AttrSExt
	case types.Uns8, types.Uns16, types.Char, types.WChar:
		return AttrZExt
	}
	return 0
}

// Lower drives a to lower sig.
func Lower(a TargetABI, ctx *ir.Context, sig *types.Func) *FuncLowering {
	logger.Printf("lowering %s for %s", sig, a.Name())
	fl := &FuncLowering{
		Sig:      sig,
		CallConv: a.CallingConv(sig.Linkage),
		Varargs:  sig.Varargs,
	}

	fl.Ret = &Arg{Name: "result", Type: sig.Result, Kind: PassDirect}
	switch {
	case sig.IsRef:
		fl.Ret.LType = ctx.Pointer(ctx.TypeOf(sig.Result))
		fl.Ret.Kind = PassIndirectByRef
	case a.ReturnInArg(sig):
		fl.ReturnInArg = true
		fl.Ret.LType = ctx.Void()
		fl.SRet = &Arg{
			Name:  ".sret_arg",
			Type:  sig.Result,
			LType: ctx.Pointer(ctx.TypeOf(sig.Result)),
			Kind:  PassIndirectByRef,
			Attrs: AttrSRet | AttrNoAlias,
		}
	default:
		fl.Ret.LType = ctx.TypeOf(sig.Result)
		fl.Ret.Attrs = shouldExtend(sig.Result)
	}

	for i, p := range sig.Params {
		arg := &Arg{Name: p.Name, Type: p.Type}
		if arg.Name == "" {
			arg.Name = fmt.Sprintf("_param_%d", i)
		}
		if p.Ref {
			arg.LType = ctx.Pointer(ctx.TypeOf(p.Type))
			arg.Kind = PassIndirectByRef
		} else {
			arg.LType = ctx.TypeOf(p.Type)
			arg.Kind = PassDirect
			arg.Attrs = shouldExtend(p.Type)
		}
		fl.Args = append(fl.Args, arg)
	}

	a.RewriteFunctionType(ctx, fl)
	return fl
}

// LowerCall lowers sig for a call site that passes extra variadic arguments
// of the given types.
func LowerCall(a TargetABI, ctx *ir.Context, sig *types.Func, extra ...types.Type) *FuncLowering {
	fl := Lower(a, ctx, sig)
	if len(extra) > 0 && sig.Varargs == types.NotVariadic {
		panic(fmt.Sprintf("unreachable: %d variadic arguments passed to %s", len(extra), sig.Name))
	}
	for i, t := range extra {
		arg := &Arg{
			Name:  fmt.Sprintf("_vararg_%d", i),
			Type:  t,
			LType: ctx.TypeOf(t),
			Kind:  PassDirect,
			Attrs: shouldExtend(t),
		}
		a.RewriteVarargsArgument(ctx, fl, arg)
		fl.Extra = append(fl.Extra, arg)
	}
	return fl
}

// CallArgs lists the lowered arguments in the order they are passed: the
// sret pointer first, then the declared parameters, reversed when
// ReverseParams is set, then the variadic arguments.
func (fl *FuncLowering) CallArgs() []*Arg {
	var args []*Arg
	if fl.SRet != nil {
		args = append(args, fl.SRet)
	}
	params := append([]*Arg(nil), fl.Args...)
	if fl.ReverseParams {
		params = lo.Reverse(params)
	}
	args = append(args, params...)
	return append(args, fl.Extra...)
}

// callOrder maps a position in CallArgs, ignoring sret, to the index of
// the declared or variadic argument it carries.
func (fl *FuncLowering) callOrder() []int {
	n := len(fl.Args)
	order := lo.Range(n + len(fl.Extra))
	if fl.ReverseParams {
		lo.Reverse(order[:n])
	}
	return order
}

func (fl *FuncLowering) argAt(i int) *Arg {
	if i < len(fl.Args) {
		return fl.Args[i]
	}
	return fl.Extra[i-len(fl.Args)]
}

// PutArgs marshals native argument values, given in declaration order with
// variadic ones last, into the lowered values of CallArgs. When the result
// is returned in an argument, storage for it is allocated and returned.
func (fl *FuncLowering) PutArgs(f *ir.Frame, values []ir.Value) ([]ir.Value, *ir.Slot) {
	if len(values) != len(fl.Args)+len(fl.Extra) {
		panic(fmt.Sprintf("unreachable: %d values for %d arguments of %s", len(values), len(fl.Args)+len(fl.Extra), fl.Sig.Name))
	}
	var out []ir.Value
	var sret *ir.Slot
	if fl.SRet != nil {
		sret = f.Alloca(f.Ctx.TypeOf(fl.Sig.Result), 0, ".sret_tmp")
		out = append(out, f.AddressOf(sret))
	}
	for _, i := range fl.callOrder() {
		out = append(out, putArg(f, fl.argAt(i), values[i]))
	}
	return out, sret
}

func putArg(f *ir.Frame, arg *Arg, v ir.Value) ir.Value {
	switch {
	case arg.Kind == PassIndirectByRef:
		home := v.Home
		if home == nil {
			home = f.Spill(v, ".ref_tmp")
		}
		return f.AddressOf(home)
	case arg.Rewrite != nil:
		return arg.Rewrite.Put(f, arg.Type, v)
	}
	return v
}

// GetParams reconstitutes the native parameter values at function entry
// from the lowered values in CallArgs order. By-reference parameters are
// loaded from the caller's object. The sret storage is returned as well.
func (fl *FuncLowering) GetParams(f *ir.Frame, lowered []ir.Value) ([]ir.Value, *ir.Slot) {
	var sret *ir.Slot
	if fl.SRet != nil {
		if len(lowered) == 0 {
			panic(fmt.Sprintf("unreachable: missing sret argument of %s", fl.Sig.Name))
		}
		sret = f.Deref(lowered[0])
		lowered = lowered[1:]
	}
	order := fl.callOrder()
	if len(lowered) != len(order) {
		panic(fmt.Sprintf("unreachable: %d lowered values for %d arguments of %s", len(lowered), len(order), fl.Sig.Name))
	}
	natives := make([]ir.Value, len(order))
	for pos, i := range order {
		arg := fl.argAt(i)
		v := lowered[pos]
		switch {
		case arg.Kind == PassIndirectByRef:
			natives[i] = f.Load(f.Ctx.TypeOf(arg.Type), f.Deref(v))
		case arg.Rewrite != nil:
			natives[i] = arg.Rewrite.Get(f, arg.Type, v)
		default:
			natives[i] = v
		}
	}
	return natives, sret
}

// PutResult turns the native result into what the function returns. With
// ReturnInArg the value is stored to sret and a void value is returned.
func (fl *FuncLowering) PutResult(f *ir.Frame, v ir.Value, sret *ir.Slot) ir.Value {
	switch {
	case fl.ReturnInArg:
		f.Store(v, sret)
		return f.Ctx.Undef(f.Ctx.Void())
	case fl.Ret.Rewrite != nil:
		return fl.Ret.Rewrite.Put(f, fl.Sig.Result, v)
	}
	return v
}

// GetResult turns the value a call returned into the native result.
func (fl *FuncLowering) GetResult(f *ir.Frame, ret ir.Value, sret *ir.Slot) ir.Value {
	switch {
	case fl.ReturnInArg:
		return f.Load(f.Ctx.TypeOf(fl.Sig.Result), sret)
	case fl.Ret.Rewrite != nil:
		return fl.Ret.Rewrite.Get(f, fl.Sig.Result, ret)
	}
	return ret
}

// RetStyle describes how the result comes back, for listings.
func (fl *FuncLowering) RetStyle() string {
	switch {
	case fl.ReturnInArg:
		return "sret"
	case fl.Ret.Kind == PassIndirectByRef:
		return "ref"
	case fl.Ret.LType.Kind() == ir.VoidKind:
		return "void"
	case fl.Ret.Rewrite != nil:
		return "rewritten"
	}
	return "direct"
}

func (fl *FuncLowering) String() string {
	args := lo.Map(fl.CallArgs(), func(a *Arg, _ int) string { return a.String() })
	if fl.Varargs == types.CVariadic && len(fl.Extra) == 0 {
		args = append(args, "...")
	}
	return fmt.Sprintf("%s %s @%s(%s)", fl.CallConv, fl.Ret, fl.Sig.Name, strings.Join(args, ", "))
}
