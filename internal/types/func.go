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

package types

import (
	"fmt"
	"strings"
)

// Linkage is the linkage attribute of a function.
type Linkage int

const (
	LinkDefault Linkage = iota
	LinkD
	LinkC
	LinkCPP
	LinkWindows
	LinkPascal
	LinkSystem
	LinkObjC
)

func (l Linkage) String() string {
	switch l {
	case LinkDefault:
		return "default"
	case LinkD:
		return "D"
	case LinkC:
		return "C"
	case LinkCPP:
		return "C++"
	case LinkWindows:
		return "Windows"
	case LinkPascal:
		return "Pascal"
	case LinkSystem:
		return "System"
	case LinkObjC:
		return "Objective-C"
	}
	return fmt.Sprintf("Linkage(%d)", int(l))
}

// ParseLinkage parses the name used in extern(...) declarations.
func ParseLinkage(s string) (Linkage, error) {
	switch strings.ToLower(s) {
	case "", "default":
		return LinkDefault, nil
	case "d":
		return LinkD, nil
	case "c":
		return LinkC, nil
	case "c++", "cpp":
		return LinkCPP, nil
	case "windows":
		return LinkWindows, nil
	case "pascal":
		return LinkPascal, nil
	case "system":
		return LinkSystem, nil
	case "objective-c", "objc":
		return LinkObjC, nil
	}
	return 0, fmt.Errorf("unknown linkage %q", s)
}

// VarargKind distinguishes C-style from typesafe variadics.
type VarargKind int

const (
	NotVariadic VarargKind = iota
	CVariadic
	DVariadic
)

// Param is a declared function parameter. Ref is set by semantic analysis
// for ref/out/lazy parameters and is never changed by lowering.
type Param struct {
	Name string
	Type Type
	Ref  bool
}

// Func is a function signature.
type Func struct {
	Name    string
	Params  []*Param
	Result  Type
	Linkage Linkage
	Varargs VarargKind
	IsRef   bool
}

func (f *Func) String() string {
	var b strings.Builder
	if f.IsRef {
		b.WriteString("ref ")
	}
	b.WriteString(f.Result.String())
	b.WriteByte(' ')
	b.WriteString(f.Name)
	b.WriteByte('(')
	for i, p := range f.Params {
		if i > 0 {
			b.WriteString(", ")
		}
		if p.Ref {
			b.WriteString("ref ")
		}
		b.WriteString(p.Type.String())
		if p.Name != "" {
			b.WriteByte(' ')
			b.WriteString(p.Name)
		}
	}
	if f.Varargs != NotVariadic {
		if len(f.Params) > 0 {
			b.WriteString(", ")
		}
		b.WriteString("...")
	}
	b.WriteByte(')')
	return b.String()
}
