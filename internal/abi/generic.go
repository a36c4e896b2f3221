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
	Register(FamilyGeneric, newGenericABI)
}

// genericABI is used for targets without a dedicated variant. It rewrites
// nothing and returns every aggregate through a hidden pointer.
type genericABI struct {
	darwin   bool
	wordSize int64
}

func newGenericABI(d target.Descriptor) TargetABI {
	return &genericABI{darwin: d.Triple.IsOSDarwin(), wordSize: int64(d.WordSize)}
}

func (a *genericABI) Name() string {
	if a.darwin {
		return "generic-darwin"
	}
	return "generic"
}

func (a *genericABI) CallingConv(link types.Linkage) CallConv {
	switch link {
	case types.LinkC, types.LinkCPP, types.LinkPascal, types.LinkWindows, types.LinkSystem, types.LinkObjC:
		return CallC
	case types.LinkD, types.LinkDefault:
		if a.darwin {
			return CallFast
		}
		return CallC
	}
	return unhandledLinkage(link)
}

func (a *genericABI) ReturnInArg(sig *types.Func) bool {
	rt := resultType(sig)
	return rt != nil && isAggregate(rt)
}

func (a *genericABI) PassByVal(types.Type) bool { return false }

func (a *genericABI) RewriteFunctionType(*ir.Context, *FuncLowering) {}

func (a *genericABI) RewriteVarargsArgument(*ir.Context, *FuncLowering, *Arg) {}

func (a *genericABI) ArgRegisters() RegisterFile {
	return RegisterFile{AllOnStack: true, StackSlot: a.wordSize}
}
