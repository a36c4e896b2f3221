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
	"strings"
)

// Arch is the architecture component of a target triple.
type Arch int

const (
	UnknownArch Arch = iota
	X86
	X86_64
	ARM
	ARMEB
	Thumb
	ThumbEB
	AArch64
	AArch64BE
	MIPS
	MIPSel
	MIPS64
	MIPS64el
	PPC
	PPC64
	PPC64le
	RISCV32
	RISCV64
)

var archTypeNames = map[Arch]string{
	UnknownArch: "unknown",
	X86:         "i386",
	X86_64:      "x86_64",
	ARM:         "arm",
	ARMEB:       "armeb",
	Thumb:       "thumb",
	ThumbEB:     "thumbeb",
	AArch64:     "aarch64",
	AArch64BE:   "aarch64_be",
	MIPS:        "mips",
	MIPSel:      "mipsel",
	MIPS64:      "mips64",
	MIPS64el:    "mips64el",
	PPC:         "powerpc",
	PPC64:       "powerpc64",
	PPC64le:     "powerpc64le",
	RISCV32:     "riscv32",
	RISCV64:     "riscv64",
}

func (a Arch) String() string { return archTypeNames[a] }

// OS is the operating system component of a target triple.
type OS int

const (
	UnknownOS OS = iota
	Darwin
	MacOSX
	IOS
	Linux
	Win32
	FreeBSD
	NetBSD
	OpenBSD
	DragonFly
	Haiku
	Bitrig
	Solaris
)

// Environment is the environment/ABI component of a target triple.
type Environment int

const (
	UnknownEnvironment Environment = iota
	GNU
	GNUEABI
	GNUEABIHF
	EABI
	EABIHF
	Android
	MSVC
)

// Triple is a parsed target triple. The raw component names are kept so
// version suffixes such as "freebsd10.0" survive a round trip.
type Triple struct {
	ArchName   string
	VendorName string
	OSName     string
	EnvName    string

	Arch Arch
	OS   OS
	Env  Environment
}

// ParseTriple splits s positionally into arch, vendor, os and environment.
func ParseTriple(s string) Triple {
	parts := strings.SplitN(s, "-", 4)
	for len(parts) < 4 {
		parts = append(parts, "")
	}
	t := Triple{ArchName: parts[0], VendorName: parts[1], OSName: parts[2], EnvName: parts[3]}
	t.Arch = parseArch(t.ArchName)
	t.OS = parseOS(t.OSName)
	t.Env = parseEnv(t.EnvName)
	return t
}

// Normalize reorders the components of s into arch-vendor-os[-environment],
// recognizing each component wherever it appears.
func Normalize(s string) string {
	comps := strings.Split(s, "-")
	var slots [4]string
	used := make([]bool, len(comps))
	recognizers := []func(string) bool{
		func(c string) bool { return parseArch(c) != UnknownArch },
		isKnownVendor,
		func(c string) bool { return parseOS(c) != UnknownOS },
		func(c string) bool { return parseEnv(c) != UnknownEnvironment },
	}
	for slot, recognize := range recognizers {
		if slot < len(comps) && !used[slot] && recognize(comps[slot]) {
			slots[slot], used[slot] = comps[slot], true
			continue
		}
		for i, c := range comps {
			if !used[i] && recognize(c) {
				slots[slot], used[i] = c, true
				break
			}
		}
	}
	// Unrecognized components keep their relative order in the free slots.
	next := 0
	for i, c := range comps {
		if used[i] {
			continue
		}
		for next < len(slots) && slots[next] != "" {
			next++
		}
		if next == len(slots) {
			break
		}
		slots[next] = c
		next++
	}
	// cygwin and mingw are operating systems in name only.
	if strings.HasPrefix(slots[2], "mingw") || strings.HasPrefix(slots[2], "cygwin") {
		if slots[3] == "" {
			slots[3] = "gnu"
		}
	}
	for i := 0; i < 3; i++ {
		if slots[i] == "" {
			slots[i] = "unknown"
		}
	}
	if slots[3] == "" {
		return strings.Join(slots[:3], "-")
	}
	return strings.Join(slots[:], "-")
}

// String returns the triple in arch-vendor-os[-env] form.
func (t Triple) String() string {
	s := t.ArchName + "-" + t.VendorName + "-" + t.OSName
	if t.EnvName != "" {
		s += "-" + t.EnvName
	}
	return s
}

// SetArchName replaces the arch component and re-derives the arch type.
func (t *Triple) SetArchName(name string) {
	t.ArchName = name
	t.Arch = parseArch(name)
}

// SetArch replaces the arch component with the canonical name of a.
func (t *Triple) SetArch(a Arch) {
	t.SetArchName(a.String())
}

func (t Triple) IsArch64Bit() bool {
	switch t.Arch {
	case X86_64, AArch64, AArch64BE, MIPS64, MIPS64el, PPC64, PPC64le, RISCV64:
		return true
	}
	return false
}

func (t Triple) IsArch32Bit() bool {
	return t.Arch != UnknownArch && !t.IsArch64Bit()
}

// Get64BitArchVariant returns the 64-bit flavour of t. The result has
// UnknownArch when the architecture has none.
func (t Triple) Get64BitArchVariant() Triple {
	r := t
	switch t.Arch {
	case X86:
		r.SetArch(X86_64)
	case MIPS:
		r.SetArch(MIPS64)
	case MIPSel:
		r.SetArch(MIPS64el)
	case PPC:
		r.SetArch(PPC64)
	case RISCV32:
		r.SetArch(RISCV64)
	default:
		if !t.IsArch64Bit() {
			r.Arch = UnknownArch
		}
	}
	return r
}

// Get32BitArchVariant returns the 32-bit flavour of t. The result has
// UnknownArch when the architecture has none.
func (t Triple) Get32BitArchVariant() Triple {
	r := t
	switch t.Arch {
	case X86_64:
		r.SetArchName("i386")
	case MIPS64:
		r.SetArch(MIPS)
	case MIPS64el:
		r.SetArch(MIPSel)
	case PPC64, PPC64le:
		r.SetArch(PPC)
	case RISCV64:
		r.SetArch(RISCV32)
	default:
		if !t.IsArch32Bit() {
			r.Arch = UnknownArch
		}
	}
	return r
}

func (t Triple) IsOSDarwin() bool {
	return t.OS == Darwin || t.OS == MacOSX || t.OS == IOS
}

func (t Triple) IsiOS() bool              { return t.OS == IOS }
func (t Triple) IsOSBinFormatMachO() bool { return t.IsOSDarwin() }
func (t Triple) IsOSWindows() bool        { return t.OS == Win32 }
func (t Triple) IsOSLinux() bool          { return t.OS == Linux }
func (t Triple) IsOSFreeBSD() bool        { return t.OS == FreeBSD }
func (t Triple) IsLittleEndian() bool     { return !t.IsBigEndian() }
func (t Triple) IsARM() bool {
	return t.Arch == ARM || t.Arch == ARMEB || t.Arch == Thumb || t.Arch == ThumbEB
}
func (t Triple) IsMIPS() bool    { return t.Arch >= MIPS && t.Arch <= MIPS64el }
func (t Triple) IsAArch64() bool { return t.Arch == AArch64 || t.Arch == AArch64BE }
func (t Triple) IsX86() bool     { return t.Arch == X86 || t.Arch == X86_64 }

func (t Triple) IsBigEndian() bool {
	switch t.Arch {
	case ARMEB, ThumbEB, AArch64BE, MIPS, MIPS64, PPC, PPC64:
		return true
	}
	return false
}

// PointerSize is the size of a data pointer in bytes.
func (t Triple) PointerSize() int {
	if t.IsArch64Bit() {
		return 8
	}
	return 4
}

func parseArch(name string) Arch {
	switch name {
	case "i386", "i486", "i586", "i686", "i786", "i886", "i986", "x86":
		return X86
	case "amd64", "x86_64", "x86_64h":
		return X86_64
	case "arm64", "aarch64":
		return AArch64
	case "aarch64_be":
		return AArch64BE
	case "xscale":
		return ARM
	case "xscaleeb":
		return ARMEB
	case "mips", "mipseb", "mipsallegrex":
		return MIPS
	case "mipsel", "mipsallegrexel":
		return MIPSel
	case "mips64", "mips64eb":
		return MIPS64
	case "mips64el":
		return MIPS64el
	case "powerpc", "ppc", "ppc32":
		return PPC
	case "powerpc64", "ppu", "ppc64":
		return PPC64
	case "powerpc64le", "ppc64le":
		return PPC64le
	case "riscv32":
		return RISCV32
	case "riscv64":
		return RISCV64
	}
	switch {
	case strings.HasPrefix(name, "armeb"):
		return ARMEB
	case strings.HasPrefix(name, "thumbeb"):
		return ThumbEB
	case strings.HasPrefix(name, "arm"):
		if strings.HasSuffix(name, "eb") {
			return ARMEB
		}
		return ARM
	case strings.HasPrefix(name, "thumb"):
		if strings.HasSuffix(name, "eb") {
			return ThumbEB
		}
		return Thumb
	}
	return UnknownArch
}

var knownVendors = []string{"apple", "pc", "scei", "bgp", "bgq", "fsl", "ibm", "img", "mti", "nvidia", "unknown"}

func isKnownVendor(name string) bool {
	for _, v := range knownVendors {
		if name == v {
			return true
		}
	}
	return false
}

func parseOS(name string) OS {
	prefixes := []struct {
		prefix string
		os     OS
	}{
		{"darwin", Darwin},
		{"macosx", MacOSX},
		{"ios", IOS},
		{"linux", Linux},
		{"win32", Win32},
		{"windows", Win32},
		{"mingw", Win32},
		{"cygwin", Win32},
		{"freebsd", FreeBSD},
		{"netbsd", NetBSD},
		{"openbsd", OpenBSD},
		{"dragonfly", DragonFly},
		{"haiku", Haiku},
		{"bitrig", Bitrig},
		{"solaris", Solaris},
	}
	for _, p := range prefixes {
		if strings.HasPrefix(name, p.prefix) {
			return p.os
		}
	}
	return UnknownOS
}

func parseEnv(name string) Environment {
	// Longest prefixes first: "gnueabihf" also starts with "gnu".
	prefixes := []struct {
		prefix string
		env    Environment
	}{
		{"gnueabihf", GNUEABIHF},
		{"gnueabi", GNUEABI},
		{"gnu", GNU},
		{"eabihf", EABIHF},
		{"eabi", EABI},
		{"android", Android},
		{"msvc", MSVC},
	}
	for _, p := range prefixes {
		if strings.HasPrefix(name, p.prefix) {
			return p.env
		}
	}
	return UnknownEnvironment
}
