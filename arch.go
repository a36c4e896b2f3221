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
	"sort"
	"strings"

	"github.com/samber/lo"
	"github.com/smolt/ldcabi/internal/target"
)

// asmDialect is the Plan 9 spelling of the moves a trampoline needs.
type asmDialect struct {
	word    int64
	move    string
	moveF32 string
	moveF64 string
	scratch string
	// result registers for integer and floating point returns
	retGPR string
	retFPR string
}

// dialects holds the registered assembler dialects
var dialects = map[target.Arch]asmDialect{}

func init() {
	arm := asmDialect{word: 4, move: "MOVW", moveF32: "MOVF", moveF64: "MOVD", scratch: "R12", retGPR: "R0", retFPR: "F0"}
	RegisterDialect(target.X86, asmDialect{word: 4, move: "MOVL", moveF32: "MOVSS", moveF64: "MOVSD", scratch: "AX", retGPR: "AX"})
	RegisterDialect(target.X86_64, asmDialect{word: 8, move: "MOVQ", moveF32: "MOVSS", moveF64: "MOVSD", scratch: "AX", retGPR: "AX", retFPR: "X0"})
	RegisterDialect(target.ARM, arm)
	RegisterDialect(target.Thumb, arm)
	RegisterDialect(target.AArch64, asmDialect{word: 8, move: "MOVD", moveF32: "FMOVS", moveF64: "FMOVD", scratch: "R9", retGPR: "R0", retFPR: "F0"})
}

// RegisterDialect registers the assembler dialect of an architecture
func RegisterDialect(arch target.Arch, d asmDialect) {
	dialects[arch] = d
}

// GetDialect returns the dialect for the given architecture
func GetDialect(arch target.Arch) (asmDialect, error) {
	if d, ok := dialects[arch]; ok {
		return d, nil
	}
	return asmDialect{}, fmt.Errorf("unsupported architecture: %s (available: %s)", arch, strings.Join(ListArchitectures(), ", "))
}

// ListArchitectures returns the sorted names of architectures with a dialect
func ListArchitectures() []string {
	archs := lo.Map(lo.Keys(dialects), func(a target.Arch, _ int) string { return a.String() })
	sort.Strings(archs)
	return archs
}
