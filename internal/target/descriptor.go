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

package target

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
	"github.com/smolt/ldcabi/internal/logger"
)

type RelocModel int

const (
	RelocDefault RelocModel = iota
	RelocStatic
	RelocPIC
	RelocDynamicNoPIC
)

var relocModelNames = []string{"default", "static", "pic", "dynamic-no-pic"}

func (r RelocModel) String() string { return relocModelNames[r] }

// ParseRelocModel parses a -relocation-model value.
func ParseRelocModel(s string) (RelocModel, error) {
	if s == "" {
		return RelocDefault, nil
	}
	for i, name := range relocModelNames {
		if name == s {
			return RelocModel(i), nil
		}
	}
	return RelocDefault, &ConfigError{Msg: fmt.Sprintf("unknown relocation model '%s'", s)}
}

type CodeModel int

const (
	CodeModelDefault CodeModel = iota
	CodeModelSmall
	CodeModelKernel
	CodeModelMedium
	CodeModelLarge
)

var codeModelNames = []string{"default", "small", "kernel", "medium", "large"}

func (c CodeModel) String() string { return codeModelNames[c] }

// ParseCodeModel parses a -code-model value.
func ParseCodeModel(s string) (CodeModel, error) {
	if s == "" {
		return CodeModelDefault, nil
	}
	for i, name := range codeModelNames {
		if name == s {
			return CodeModel(i), nil
		}
	}
	return CodeModelDefault, &ConfigError{Msg: fmt.Sprintf("unknown code model '%s'", s)}
}

// OptLevel is the code generation optimization level, 0 to 3.
type OptLevel int

const (
	OptNone       OptLevel = 0
	OptLess       OptLevel = 1
	OptDefault    OptLevel = 2
	OptAggressive OptLevel = 3
)

// Bitness requests the 32 or 64-bit variant of the default triple.
type Bitness int

const (
	BitnessNone Bitness = iota
	Bitness32
	Bitness64
)

// ParseBitness combines the -m32 and -m64 switches.
func ParseBitness(m32, m64 bool) (Bitness, error) {
	switch {
	case m32 && m64:
		return BitnessNone, &ConfigError{Msg: "-m32 and -m64 are mutually exclusive"}
	case m32:
		return Bitness32, nil
	case m64:
		return Bitness64, nil
	}
	return BitnessNone, nil
}

// Options are the raw target selection switches given by the user.
type Options struct {
	IOSArch            string
	Triple             string
	Arch               string
	CPU                string
	Attrs              []string
	Bitness            Bitness
	FloatABI           FloatABI
	RelocModel         RelocModel
	CodeModel          CodeModel
	OptLevel           OptLevel
	NoFramePointerElim bool
	NoLinkerStripDead  bool
}

// Descriptor is a fully resolved target. It is not modified after Resolve
// returns it.
type Descriptor struct {
	Triple             Triple
	CPU                string
	Features           []string
	FloatABI           FloatABI
	WordSize           int
	RelocModel         RelocModel
	CodeModel          CodeModel
	OptLevel           OptLevel
	NoFramePointerElim bool
	FunctionSections   bool
	DataSections       bool
}

// FeatureString joins the feature flags the way -mattr takes them.
func (d Descriptor) FeatureString() string {
	return strings.Join(d.Features, ",")
}

// HardFloat reports whether floating point values travel in FP registers.
func (d Descriptor) HardFloat() bool {
	return d.FloatABI == FloatABIHard
}

// registeredTargets are the backends known to -march, in -version order.
var registeredTargets = []lo.Tuple2[string, Arch]{
	{A: "x86", B: X86},
	{A: "x86-64", B: X86_64},
	{A: "arm", B: ARM},
	{A: "armeb", B: ARMEB},
	{A: "thumb", B: Thumb},
	{A: "thumbeb", B: ThumbEB},
	{A: "aarch64", B: AArch64},
	{A: "aarch64_be", B: AArch64BE},
	{A: "arm64", B: AArch64},
	{A: "mips", B: MIPS},
	{A: "mipsel", B: MIPSel},
	{A: "mips64", B: MIPS64},
	{A: "mips64el", B: MIPS64el},
	{A: "ppc32", B: PPC},
	{A: "ppc64", B: PPC64},
	{A: "ppc64le", B: PPC64le},
}

// RegisteredTargets lists the names accepted by -march.
func RegisteredTargets() []string {
	return lo.Map(registeredTargets, func(t lo.Tuple2[string, Arch], _ int) string { return t.A })
}

// lookupTarget checks that a backend exists for t, forcing the arch of t
// to the one named by march when given.
func lookupTarget(march string, t *Triple) error {
	if march != "" {
		entry, ok := lo.Find(registeredTargets, func(e lo.Tuple2[string, Arch]) bool { return e.A == march })
		if !ok {
			return &ConfigError{Msg: fmt.Sprintf("invalid target architecture '%s', see -version for a list of supported targets.", march)}
		}
		if entry.B != t.Arch {
			t.SetArch(entry.B)
		}
		return nil
	}
	if !lo.ContainsBy(registeredTargets, func(e lo.Tuple2[string, Arch]) bool { return e.B == t.Arch }) {
		return &ConfigError{Msg: fmt.Sprintf("unable to get target for '%s', see -version and -mtriple.", t)}
	}
	return nil
}

// Host probes, replaceable in tests.
var (
	hostCPUName   = HostCPUName
	hostFeatures  = HostFeatures
	defaultTriple = DefaultTriple
)

// Resolve turns the user's switches into a target descriptor.
func Resolve(opts Options) (Descriptor, error) {
	cpu := opts.CPU
	native := cpu == "native"
	if native {
		cpu = hostCPUName()
		if cpu == genericCPU {
			cpu = ""
		}
	}

	var triple Triple
	if opts.Triple == "" {
		triple = ParseTriple(Normalize(defaultTriple()))
		switch {
		case opts.IOSArch != "":
			triple.SetArchName(opts.IOSArch)
			convertIOSTriple(&triple, cpu)
		case opts.Bitness == Bitness64:
			variant := triple.Get64BitArchVariant()
			if variant.Arch == UnknownArch {
				return Descriptor{}, &ConfigError{Msg: fmt.Sprintf("64 bit arch not available for '%s'", triple)}
			}
			triple = variant
		case opts.Bitness == Bitness32:
			variant := triple.Get32BitArchVariant()
			if variant.Arch == UnknownArch {
				return Descriptor{}, &ConfigError{Msg: fmt.Sprintf("32 bit arch not available for '%s'", triple)}
			}
			triple = variant
		}
	} else {
		triple = ParseTriple(Normalize(opts.Triple))
	}

	if err := lookupTarget(opts.Arch, &triple); err != nil {
		return Descriptor{}, err
	}

	var attrs []string
	if native {
		attrs = append(attrs, hostFeatures()...)
	}
	attrs = append(attrs, opts.Attrs...)
	if triple.IsMIPS() {
		var err error
		if attrs, err = sanitizeMIPSABI(triple, attrs); err != nil {
			return Descriptor{}, err
		}
	}
	// The iOS thumb backend miscompiles NEON code when optimizing.
	if triple.IsiOS() && (triple.Arch == Thumb || triple.Arch == ThumbEB) && opts.OptLevel > OptNone {
		mentionsNeon := lo.ContainsBy(attrs, func(a string) bool { return strings.TrimLeft(a, "+-") == "neon" })
		if !mentionsNeon {
			attrs = append(attrs, "-neon")
		}
	}

	cpu = targetCPU(cpu, triple)
	logger.Printf("targeting '%s' (CPU '%s' with features '%s')", triple, cpu, strings.Join(attrs, ","))

	reloc := opts.RelocModel
	if reloc == RelocDefault && triple.IsOSDarwin() {
		reloc = RelocPIC
	}

	floatABI := opts.FloatABI
	if floatABI == FloatABIDefault {
		if triple.IsARM() {
			floatABI = armFloatABI(triple, ARMArchSuffix(cpu))
		} else {
			floatABI = FloatABIHard
		}
	}

	sections := !opts.NoLinkerStripDead && (triple.IsOSLinux() || triple.IsOSWindows())
	return Descriptor{
		Triple:             triple,
		CPU:                cpu,
		Features:           attrs,
		FloatABI:           floatABI,
		WordSize:           triple.PointerSize(),
		RelocModel:         reloc,
		CodeModel:          opts.CodeModel,
		OptLevel:           opts.OptLevel,
		NoFramePointerElim: opts.NoFramePointerElim,
		FunctionSections:   sections,
		DataSections:       sections,
	}, nil
}
