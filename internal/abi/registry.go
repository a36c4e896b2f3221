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
	"slices"
	"sync"

	"github.com/samber/lo"
	"github.com/smolt/ldcabi/internal/logger"
	"github.com/smolt/ldcabi/internal/target"
)

// Target families with a dedicated variant.
const (
	FamilyX86        = "x86"
	FamilySysV       = "x86_64-sysv"
	FamilyWin64      = "x86_64-win64"
	FamilyAPCS       = "apcs"
	FamilyAAPCSiOS   = "aapcs-ios"
	FamilyAAPCS64    = "aapcs64"
	FamilyAAPCS64iOS = "aapcs64-ios"
	FamilyGeneric    = "generic"
)

// Factory builds the variant of a family for a resolved target.
type Factory func(d target.Descriptor) TargetABI

type instance struct {
	once sync.Once
	abi  TargetABI
}

var (
	registryMu sync.Mutex
	factories  = make(map[string]Factory)
	instances  = make(map[string]*instance)
)

// Register makes a variant available to Select. It is called from init.
func Register(family string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := factories[family]; dup {
		panic(fmt.Sprintf("abi: Register called twice for family %s", family))
	}
	factories[family] = f
}

// Families lists the registered families in sorted order.
func Families() []string {
	registryMu.Lock()
	defer registryMu.Unlock()
	names := lo.Keys(factories)
	slices.Sort(names)
	return names
}

// FamilyOf returns the family that handles d. Architectures without a
// dedicated variant map to the generic one.
func FamilyOf(d target.Descriptor) string {
	t := d.Triple
	switch {
	case t.Arch == target.X86:
		return FamilyX86
	case t.Arch == target.X86_64 && t.IsOSWindows():
		return FamilyWin64
	case t.Arch == target.X86_64:
		return FamilySysV
	case t.IsARM() && t.IsOSDarwin():
		return FamilyAAPCSiOS
	case t.IsARM():
		return FamilyAPCS
	case t.IsAArch64() && t.IsOSDarwin():
		return FamilyAAPCS64iOS
	case t.IsAArch64():
		return FamilyAAPCS64
	}
	return FamilyGeneric
}

// instanceKey distinguishes the target properties a variant depends on
// besides its family.
func instanceKey(family string, d target.Descriptor) string {
	switch family {
	case FamilyAPCS, FamilyAAPCSiOS:
		return fmt.Sprintf("%s/hf=%t", family, d.HardFloat())
	case FamilyGeneric:
		return fmt.Sprintf("%s/darwin=%t/%d", family, d.Triple.IsOSDarwin(), d.WordSize)
	case FamilyX86:
		return fmt.Sprintf("%s/%s", family, d.Triple.OSName)
	}
	return family
}

// Select returns the variant for d. Each variant is built once, on first
// use, and shared by all later callers.
func Select(d target.Descriptor) TargetABI {
	family := FamilyOf(d)
	key := instanceKey(family, d)

	registryMu.Lock()
	f, ok := factories[family]
	if !ok {
		family, key = FamilyGeneric, instanceKey(FamilyGeneric, d)
		f = factories[FamilyGeneric]
	}
	inst, ok := instances[key]
	if !ok {
		inst = &instance{}
		instances[key] = inst
	}
	registryMu.Unlock()

	inst.once.Do(func() {
		logger.Printf("selecting %s ABI for %s", family, d.Triple)
		inst.abi = f(d)
	})
	return inst.abi
}
