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
	"io"
	"sort"
	"strings"

	"github.com/smolt/ldcabi/internal/target"
	"github.com/smolt/ldcabi/internal/types"
	"modernc.org/cc/v4"
)

// ccTarget maps a triple to the GOOS/GOARCH pair the C frontend knows.
func ccTarget(t target.Triple) (goos, goarch string, err error) {
	switch {
	case t.IsOSDarwin():
		goos = "darwin"
	case t.IsOSLinux():
		goos = "linux"
	case t.IsOSWindows():
		goos = "windows"
	case t.OS == target.FreeBSD:
		goos = "freebsd"
	case t.OS == target.NetBSD:
		goos = "netbsd"
	case t.OS == target.OpenBSD:
		goos = "openbsd"
	case t.OS == target.Solaris:
		goos = "illumos"
	default:
		return "", "", fmt.Errorf("no C frontend configuration for '%s'", t)
	}
	goarch, ok := map[target.Arch]string{
		target.X86:      "386",
		target.X86_64:   "amd64",
		target.ARM:      "arm",
		target.Thumb:    "arm",
		target.AArch64:  "arm64",
		target.MIPS:     "mips",
		target.MIPSel:   "mipsle",
		target.MIPS64:   "mips64",
		target.MIPS64el: "mips64le",
		target.PPC64:    "ppc64",
		target.PPC64le:  "ppc64le",
		target.RISCV64:  "riscv64",
	}[t.Arch]
	if !ok {
		return "", "", fmt.Errorf("no C frontend configuration for '%s'", t)
	}
	return goos, goarch, nil
}

// HeaderUnit is a C header whose prototypes are lowered for one target.
type HeaderUnit struct {
	Source       string
	IncludePaths []string
	Linkage      types.Linkage
	Target       target.Descriptor

	cfg     *types.Config
	structs map[string]*types.StructType
	anon    map[cc.Type]*types.StructType
}

func NewHeaderUnit(source string, d target.Descriptor, linkage types.Linkage, includePaths []string) *HeaderUnit {
	return &HeaderUnit{
		Source:       source,
		IncludePaths: includePaths,
		Linkage:      linkage,
		Target:       d,
		cfg:          types.NewConfig(d),
		structs:      make(map[string]*types.StructType),
		anon:         make(map[cc.Type]*types.StructType),
	}
}

// prologue provides the <stdint.h> names so headers need not include it.
const prologue = `typedef signed char int8_t;
typedef short int16_t;
typedef int int32_t;
typedef long long int64_t;
typedef unsigned char uint8_t;
typedef unsigned short uint16_t;
typedef unsigned int uint32_t;
typedef unsigned long long uint64_t;
`

// Parse reads the header from r and converts every function declared in
// it, in source order.
func (h *HeaderUnit) Parse(r io.Reader) ([]*types.Func, error) {
	goos, goarch, err := ccTarget(h.Target.Triple)
	if err != nil {
		return nil, err
	}
	cfg, err := cc.NewConfig(goos, goarch)
	if err != nil {
		return nil, err
	}
	if len(h.IncludePaths) > 0 {
		cfg.SysIncludePaths = append(h.IncludePaths, cfg.SysIncludePaths...)
	}
	ast, err := cc.Translate(cfg, []cc.Source{
		{Name: "<predefined>", Value: cfg.Predefined},
		{Name: "<builtin>", Value: cc.Builtin},
		{Name: "<prologue>", Value: prologue},
		{Name: h.Source, Value: r},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse source file %v: %w", h.Source, err)
	}

	type positioned struct {
		line int
		fn   *types.Func
	}
	var functions []positioned
	for tu := ast.TranslationUnit; tu != nil; tu = tu.TranslationUnit {
		ed := tu.ExternalDeclaration
		if ed.Position().Filename != h.Source {
			continue
		}
		var declarators []*cc.Declarator
		switch ed.Case {
		case cc.ExternalDeclarationFuncDef:
			declarators = append(declarators, ed.FunctionDefinition.Declarator)
		case cc.ExternalDeclarationDecl:
			if ed.Declaration.Case != cc.DeclarationDecl {
				continue
			}
			for l := ed.Declaration.InitDeclaratorList; l != nil; l = l.InitDeclaratorList {
				declarators = append(declarators, l.InitDeclarator.Declarator)
			}
		}
		for _, d := range declarators {
			ft, ok := d.Type().(*cc.FunctionType)
			if !ok || d.IsTypename() {
				continue
			}
			fn, err := h.convertFunction(d, ft)
			if err != nil {
				return nil, err
			}
			functions = append(functions, positioned{line: d.Position().Line, fn: fn})
		}
	}
	sort.SliceStable(functions, func(i, j int) bool {
		return functions[i].line < functions[j].line
	})
	result := make([]*types.Func, len(functions))
	for i, f := range functions {
		result[i] = f.fn
	}
	return result, nil
}

// convertFunction turns a C prototype into a signature with the unit's
// linkage.
func (h *HeaderUnit) convertFunction(d *cc.Declarator, ft *cc.FunctionType) (*types.Func, error) {
	result, err := h.convertType(d, ft.Result())
	if err != nil {
		return nil, err
	}
	fn := &types.Func{Name: d.Name(), Result: result, Linkage: h.Linkage}
	if ft.IsVariadic() {
		fn.Varargs = types.CVariadic
	}
	for i, p := range ft.Parameters() {
		// f(void)
		if i == 0 && p.Type().Kind() == cc.Void {
			break
		}
		pt, err := h.convertType(d, p.Type().Decay())
		if err != nil {
			return nil, err
		}
		fn.Params = append(fn.Params, &types.Param{Name: sanitizeAsmParamName(p.Name()), Type: pt})
	}
	return fn, nil
}

func unsupported(n cc.Node, t cc.Type) error {
	position := n.Position()
	return fmt.Errorf("%v:%v:%v: error: unsupported type: %v", position.Filename, position.Line, position.Column, t)
}

// intKind picks the frontend integer kind of a C integer by size.
func intKind(size int64, signed bool) (types.Kind, bool) {
	switch size {
	case 1:
		if signed {
			return types.Int8, true
		}
		return types.Uns8, true
	case 2:
		if signed {
			return types.Int16, true
		}
		return types.Uns16, true
	case 4:
		if signed {
			return types.Int32, true
		}
		return types.Uns32, true
	case 8:
		if signed {
			return types.Int64, true
		}
		return types.Uns64, true
	case 16:
		if signed {
			return types.Int128, true
		}
		return types.Uns128, true
	}
	return 0, false
}

func (h *HeaderUnit) convertType(n cc.Node, t cc.Type) (types.Type, error) {
	c := h.cfg
	switch t.Kind() {
	case cc.Void:
		return c.Basic(types.Void), nil
	case cc.Bool:
		return c.Basic(types.Bool), nil
	case cc.Char:
		return c.Basic(types.Char), nil
	case cc.SChar, cc.Short, cc.Int, cc.Long, cc.LongLong, cc.Int128,
		cc.UChar, cc.UShort, cc.UInt, cc.ULong, cc.ULongLong, cc.UInt128:
		k, ok := intKind(t.Size(), cc.IsSignedInteger(t))
		if !ok {
			return nil, unsupported(n, t)
		}
		return c.Basic(k), nil
	case cc.Float:
		return c.Basic(types.Float32), nil
	case cc.Double:
		return c.Basic(types.Float64), nil
	case cc.LongDouble:
		if t.Size() == 8 {
			return c.Basic(types.Float64), nil
		}
		return c.Basic(types.Float80), nil
	case cc.ComplexFloat:
		return c.Basic(types.Complex32), nil
	case cc.ComplexDouble:
		return c.Basic(types.Complex64), nil
	case cc.ComplexLongDouble:
		return c.Basic(types.Complex80), nil
	case cc.Enum:
		k, ok := intKind(t.Size(), cc.IsSignedInteger(t))
		if !ok {
			return nil, unsupported(n, t)
		}
		name := "enum"
		if td := t.Typedef(); td != nil {
			name = td.Name()
		}
		return c.Enum(name, c.Basic(k)), nil
	case cc.Ptr:
		elem := t.(*cc.PointerType).Elem()
		if elem.Kind() == cc.Function {
			return c.Pointer(c.Basic(types.Void)), nil
		}
		et, err := h.convertType(n, elem)
		if err != nil {
			return nil, err
		}
		return c.Pointer(et), nil
	case cc.Array:
		at := t.(*cc.ArrayType)
		if at.IsVLA() || at.IsIncomplete() {
			return nil, unsupported(n, t)
		}
		et, err := h.convertType(n, at.Elem())
		if err != nil {
			return nil, err
		}
		return c.SArray(et, at.Len()), nil
	case cc.Struct, cc.Union:
		return h.convertAggregate(n, t)
	}
	return nil, unsupported(n, t)
}

// ccAggregate is what struct and union types have in common.
type ccAggregate interface {
	cc.Type
	NumFields() int
	FieldByIndex(int) *cc.Field
}

// convertAggregate converts a struct or union using the C frontend's own
// layout. Tagged types are converted once, so self-referential structs
// resolve to the same incomplete struct while their fields are converted.
func (h *HeaderUnit) convertAggregate(n cc.Node, t cc.Type) (types.Type, error) {
	agg, ok := t.(ccAggregate)
	if !ok || t.IsIncomplete() {
		return nil, unsupported(n, t)
	}
	union := t.Kind() == cc.Union
	var name string
	if st, ok := t.(*cc.StructType); ok {
		tag := st.Tag()
		name = tag.SrcStr()
	}
	if name == "" {
		if td := t.Typedef(); td != nil {
			name = td.Name()
		}
	}
	if name != "" {
		if s, ok := h.structs[name]; ok {
			return s, nil
		}
	} else if s, ok := h.anon[t]; ok {
		return s, nil
	}

	s := h.cfg.NewStruct(name)
	s.Union = union
	if name != "" {
		h.structs[name] = s
	} else {
		h.anon[t] = s
	}
	var fields []*types.Field
	for i := 0; i < agg.NumFields(); i++ {
		f := agg.FieldByIndex(i)
		if f.IsBitfield() {
			return nil, unsupported(n, t)
		}
		if f.IsFlexibleArrayMember() {
			continue
		}
		ft, err := h.convertType(n, f.Type())
		if err != nil {
			return nil, err
		}
		fields = append(fields, &types.Field{Name: f.Name(), Type: ft, Offset: f.Offset()})
	}
	return s.SetLayout(t.Size(), int64(t.Align()), fields...), nil
}

// reservedAsmParamNames are names that conflict with Go's plan9 assembler
// pseudo-registers. In ARM64 (and other arches), "g" refers to the goroutine
// pointer, so a parameter named "g" in "g+8(FP)" is misinterpreted as
// register+offset addressing rather than a symbolic frame reference.
var reservedAsmParamNames = map[string]string{
	"g":  "gv",
	"FP": "fp_",
	"SP": "sp_",
	"SB": "sb_",
	"PC": "pc_",
}

func sanitizeAsmParamName(name string) string {
	if replacement, ok := reservedAsmParamNames[name]; ok {
		return replacement
	}
	return strings.TrimSpace(name)
}
