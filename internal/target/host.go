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
	"runtime"

	"github.com/xyproto/env/v2"
	"golang.org/x/sys/cpu"
)

// genericCPU is what host detection reports when it cannot do better.
const genericCPU = "generic"

// DefaultTripleEnv overrides the host triple as the default target.
const DefaultTripleEnv = "LDCABI_DEFAULT_TRIPLE"

// DefaultTriple returns the triple used when none is given explicitly.
func DefaultTriple() string {
	return env.Str(DefaultTripleEnv, hostTriple())
}

func hostTriple() string {
	var arch string
	switch runtime.GOARCH {
	case "amd64":
		arch = "x86_64"
	case "386":
		arch = "i686"
	case "arm64":
		arch = "aarch64"
		if runtime.GOOS == "darwin" || runtime.GOOS == "ios" {
			arch = "arm64"
		}
	case "arm":
		arch = "armv7"
	case "mips", "mipsle", "mips64", "mips64le":
		arch = map[string]string{"mips": "mips", "mipsle": "mipsel", "mips64": "mips64", "mips64le": "mips64el"}[runtime.GOARCH]
	case "ppc64", "ppc64le":
		arch = "powerpc64" + map[string]string{"ppc64": "", "ppc64le": "le"}[runtime.GOARCH]
	case "riscv64":
		arch = "riscv64"
	default:
		arch = "unknown"
	}
	switch runtime.GOOS {
	case "darwin":
		return arch + "-apple-darwin"
	case "ios":
		return arch + "-apple-ios"
	case "windows":
		return arch + "-pc-windows-msvc"
	case "linux":
		if runtime.GOARCH == "arm" {
			return arch + "-unknown-linux-gnueabihf"
		}
		return arch + "-unknown-linux-gnu"
	default:
		return arch + "-unknown-" + runtime.GOOS
	}
}

// HostCPUName guesses the name of the host CPU from its feature set. It
// returns "generic" when nothing more specific can be said.
func HostCPUName() string {
	switch runtime.GOARCH {
	case "amd64", "386":
		switch {
		case cpu.X86.HasAVX512F && cpu.X86.HasAVX512BW && cpu.X86.HasAVX512VL:
			return "skylake-avx512"
		case cpu.X86.HasAVX2 && cpu.X86.HasBMI2 && cpu.X86.HasFMA:
			return "haswell"
		case cpu.X86.HasAVX:
			return "sandybridge"
		case cpu.X86.HasSSE42 && cpu.X86.HasPOPCNT:
			return "nehalem"
		case cpu.X86.HasSSSE3:
			return "core2"
		}
	case "arm64":
		if runtime.GOOS == "darwin" || runtime.GOOS == "ios" {
			return "cyclone"
		}
		if cpu.ARM64.HasATOMICS && cpu.ARM64.HasASIMDDP {
			return "cortex-a75"
		}
	}
	return genericCPU
}

// HostFeatures lists the features of the host CPU as +name/-name flags.
func HostFeatures() []string {
	flag := func(name string, on bool) string {
		if on {
			return "+" + name
		}
		return "-" + name
	}
	switch runtime.GOARCH {
	case "amd64", "386":
		return []string{
			flag("sse2", cpu.X86.HasSSE2),
			flag("sse3", cpu.X86.HasSSE3),
			flag("ssse3", cpu.X86.HasSSSE3),
			flag("sse4.1", cpu.X86.HasSSE41),
			flag("sse4.2", cpu.X86.HasSSE42),
			flag("popcnt", cpu.X86.HasPOPCNT),
			flag("aes", cpu.X86.HasAES),
			flag("pclmul", cpu.X86.HasPCLMULQDQ),
			flag("avx", cpu.X86.HasAVX),
			flag("avx2", cpu.X86.HasAVX2),
			flag("fma", cpu.X86.HasFMA),
			flag("bmi", cpu.X86.HasBMI1),
			flag("bmi2", cpu.X86.HasBMI2),
			flag("avx512f", cpu.X86.HasAVX512F),
		}
	case "arm64":
		return []string{
			flag("neon", cpu.ARM64.HasASIMD),
			flag("fp-armv8", cpu.ARM64.HasFP),
			flag("crc", cpu.ARM64.HasCRC32),
			flag("crypto", cpu.ARM64.HasAES && cpu.ARM64.HasSHA2),
			flag("lse", cpu.ARM64.HasATOMICS),
		}
	case "arm":
		return []string{
			flag("neon", cpu.ARM.HasNEON),
			flag("vfp3", cpu.ARM.HasVFPv3),
			flag("vfp4", cpu.ARM.HasVFPv4),
			flag("hwdiv-arm", cpu.ARM.HasIDIVA),
		}
	}
	return nil
}
