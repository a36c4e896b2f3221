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

	"github.com/smolt/ldcabi/internal/ir"
	"github.com/smolt/ldcabi/internal/types"
)

// PassKind is how an argument crosses the call boundary.
type PassKind int

const (
	// PassDirect passes the value in its natural lowered type.
	PassDirect PassKind = iota
	// PassRewritten passes the value reinterpreted by a rewrite.
	PassRewritten
	// PassIndirectByValue passes the address of a copy.
	PassIndirectByValue
	// PassIndirectByRef passes the address of the caller's object.
	PassIndirectByRef
)

var passKindNames = [...]string{"direct", "rewritten", "byval", "byref"}

func (k PassKind) String() string { return passKindNames[k] }

// Attrs is a set of parameter attributes.
type Attrs uint8

const (
	AttrSExt Attrs = 1 << iota
	AttrZExt
	AttrByVal
	AttrSRet
	AttrNoAlias
)

var attrNames = []struct {
	a    Attrs
	name string
}{
	{AttrSExt, "signext"},
	{AttrZExt, "zeroext"},
	{AttrByVal, "byval"},
	{AttrSRet, "sret"},
	{AttrNoAlias, "noalias"},
}

func (a Attrs) Has(b Attrs) bool { return a&b == b }

func (a Attrs) String() string {
	var parts []string
	for _, n := range attrNames {
		if a.Has(n.a) {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, " ")
}

// CallConv is a backend calling convention identifier. The values match the
// numbering LLVM uses.
type CallConv int

const (
	CallC           CallConv = 0
	CallFast        CallConv = 8
	CallX86StdCall  CallConv = 64
	CallARMAAPCSVFP CallConv = 68
)

func (c CallConv) String() string {
	switch c {
	case CallC:
		return "ccc"
	case CallFast:
		return "fastcc"
	case CallX86StdCall:
		return "x86_stdcallcc"
	case CallARMAAPCSVFP:
		return "arm_aapcs_vfpcc"
	}
	return fmt.Sprintf("cc%d", int(c))
}

// Arg is the lowering of one parameter or of the return value.
type Arg struct {
	Name string
	// Type is the frontend type. For a by-reference argument it is the
	// referenced type, not the pointer.
	Type types.Type
	// LType is the type that crosses the boundary.
	LType   ir.Type
	Kind    PassKind
	Rewrite Rewrite
	Attrs   Attrs
	// ByValAlign is the alignment of the byval copy, when AttrByVal is set.
	ByValAlign int64
}

// IsInMemoryOnly reports whether the value only ever lives in memory on
// both sides of the call.
func (a *Arg) IsInMemoryOnly() bool {
	return a.Kind == PassIndirectByValue || a.Kind == PassIndirectByRef
}

// SetRewrite attaches r to a by-value argument and recomputes its lowered
// type. Byval rewrites make the argument indirect.
func (a *Arg) SetRewrite(ctx *ir.Context, r Rewrite) {
	a.Rewrite = r
	a.LType = r.Type(ctx, a.Type)
	a.Attrs &^= AttrSExt | AttrZExt
	switch r := r.(type) {
	case ImplicitByval:
		a.Kind = PassIndirectByValue
		a.Attrs |= AttrByVal
		a.ByValAlign = max(r.MinAlign, a.Type.Align())
	case ExplicitByval:
		a.Kind = PassIndirectByValue
	case Identity:
		a.Kind = PassDirect
	default:
		a.Kind = PassRewritten
	}
}

func (a *Arg) String() string {
	var b strings.Builder
	b.WriteString(a.LType.String())
	if a.Attrs != 0 {
		b.WriteByte(' ')
		b.WriteString(a.Attrs.String())
		if a.Attrs.Has(AttrByVal) {
			fmt.Fprintf(&b, "(%d)", a.ByValAlign)
		}
	}
	if a.Rewrite != nil {
		fmt.Fprintf(&b, " [%s]", a.Rewrite)
	}
	return b.String()
}
