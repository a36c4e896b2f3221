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

// x86TargetCPU selects the default CPU when none was given or detection
// failed.
func x86TargetCPU(t Triple) string {
	// Intel Macs are relatively recent, take advantage of that.
	if t.IsOSDarwin() {
		if t.IsArch64Bit() {
			return "core2"
		}
		return "yonah"
	}

	// Everything else goes to x86-64 in 64-bit mode.
	if t.IsArch64Bit() {
		return "x86-64"
	}

	switch {
	case strings.HasPrefix(t.OSName, "haiku"):
		return "i586"
	case strings.HasPrefix(t.OSName, "openbsd"):
		return "i486"
	case strings.HasPrefix(t.OSName, "bitrig"):
		return "i686"
	case strings.HasPrefix(t.OSName, "freebsd"):
		return "i486"
	case strings.HasPrefix(t.OSName, "netbsd"):
		return "i486"
	}

	// All x86 devices running Android have core2 as their common
	// denominator.
	if t.Env == Android {
		return "core2"
	}

	return "pentium4"
}

// armCPUVersions maps the part of an ARM arch name after "arm"/"thumb" to
// the most base CPU implementing it.
var armCPUVersions = map[string]string{
	"v2": "arm2", "v2a": "arm2",
	"v3": "arm6", "v3m": "arm7m",
	"v4": "strongarm", "v4t": "arm7tdmi",
	"v5": "arm10tdmi", "v5t": "arm10tdmi",
	"v5e": "arm1022e", "v5te": "arm1022e",
	"v5tej": "arm926ej-s",
	"v6":    "arm1136jf-s", "v6k": "arm1136jf-s",
	"v6j": "arm1136j-s",
	"v6z": "arm1176jzf-s", "v6zk": "arm1176jzf-s",
	"v6t2": "arm1156t2-s",
	"v6m":  "cortex-m0", "v6-m": "cortex-m0",
	"v7": "cortex-a8", "v7a": "cortex-a8", "v7-a": "cortex-a8", "v7l": "cortex-a8", "v7-l": "cortex-a8",
	"v7s": "swift", "v7-s": "swift",
	"v7r": "cortex-r4", "v7-r": "cortex-r4",
	"v7m": "cortex-m3", "v7-m": "cortex-m3",
	"v7em": "cortex-m4", "v7e-m": "cortex-m4",
	"v8": "cortex-a53", "v8a": "cortex-a53", "v8-a": "cortex-a53",
}

// armCPUForArch returns the default CPU for the ARM arch named in t.
func armCPUForArch(t Triple) string {
	march := t.ArchName
	switch t.OS {
	case FreeBSD, NetBSD:
		if march == "armv6" {
			return "arm1176jzf-s"
		}
	case Win32:
		return "cortex-a9"
	}

	offset := -1
	switch {
	case strings.HasPrefix(march, "arm"):
		offset = 3
	case strings.HasPrefix(march, "thumb"):
		offset = 5
	}
	if offset >= 0 {
		if strings.HasPrefix(march[offset:], "eb") {
			offset += 2
		}
		version := strings.TrimSuffix(march[offset:], "eb")
		if cpu, ok := armCPUVersions[version]; ok {
			return cpu
		}
	}

	// Fall back to the most base CPU with thumb interworking.
	switch t.OS {
	case FreeBSD, NetBSD:
		switch t.Env {
		case GNUEABIHF, GNUEABI, EABIHF, EABI:
			return "arm926ej-s"
		}
		return "strongarm"
	}
	if t.Env == EABIHF || t.Env == GNUEABIHF {
		return "arm1176jzf-s"
	}
	return "arm7tdmi"
}

// targetCPU returns the name of the target CPU to use given the requested
// CPU and the target triple. An empty result lets the backend decide.
func targetCPU(cpu string, t Triple) string {
	if cpu != "" {
		return cpu
	}
	switch t.Arch {
	case X86, X86_64:
		return x86TargetCPU(t)
	case ARM, Thumb, ARMEB, ThumbEB:
		return armCPUForArch(t)
	}
	// Not specifically modelled: the backend picks its own default.
	return cpu
}

var armArchSuffixes = map[string]string{
	"strongarm": "v4",
	"arm7tdmi":  "v4t", "arm7tdmi-s": "v4t", "arm710t": "v4t",
	"arm720t": "v4t", "arm9": "v4t", "arm9tdmi": "v4t",
	"arm920": "v4t", "arm920t": "v4t", "arm922t": "v4t",
	"arm940t": "v4t", "ep9312": "v4t",
	"arm10tdmi": "v5", "arm1020t": "v5",
	"arm9e": "v5e", "arm926ej-s": "v5e", "arm946e-s": "v5e",
	"arm966e-s": "v5e", "arm968e-s": "v5e", "arm10e": "v5e",
	"arm1020e": "v5e", "arm1022e": "v5e", "xscale": "v5e", "iwmmxt": "v5e",
	"arm1136j-s": "v6", "arm1136jf-s": "v6", "arm1176jz-s": "v6",
	"arm1176jzf-s": "v6", "mpcorenovfp": "v6", "mpcore": "v6",
	"arm1156t2-s": "v6t2", "arm1156t2f-s": "v6t2",
	"cortex-a5": "v7", "cortex-a7": "v7", "cortex-a8": "v7",
	"cortex-a9": "v7", "cortex-a12": "v7", "cortex-a15": "v7",
	"cortex-r4": "v7r", "cortex-r5": "v7r",
	"cortex-m0":    "v6m",
	"cortex-m3":    "v7m",
	"cortex-m4":    "v7em",
	"cortex-a9-mp": "v7f",
	"swift":        "v7s",
	"cortex-a53":   "v8",
	"krait":        "v7",
}

// ARMArchSuffix returns the architecture version implemented by an ARM CPU,
// or "" when the CPU is not known.
func ARMArchSuffix(cpu string) string {
	return armArchSuffixes[cpu]
}

// convertIOSTriple turns armv7 and friends into their thumb equivalents,
// the way Darwin toolchains compute the effective triple.
func convertIOSTriple(t *Triple, cpu string) {
	if !t.IsARM() {
		return
	}
	suffix := ARMArchSuffix(targetCPU(cpu, *t))
	if strings.HasPrefix(suffix, "v6m") || strings.HasPrefix(suffix, "v7m") ||
		strings.HasPrefix(suffix, "v7em") ||
		(strings.HasPrefix(suffix, "v7") && t.IsOSBinFormatMachO()) {
		t.SetArchName("thumb" + suffix)
	}
}
