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

const (
	mipsO32 = 1 << iota
	mipsN32
	mipsN64
	mipsEABI
)

var mipsABIFlags = map[string]uint32{
	"o32":  mipsO32,
	"n32":  mipsN32,
	"n64":  mipsN64,
	"eabi": mipsEABI,
}

// sanitizeMIPSABI folds the ABI selecting flags in attrs into exactly one
// +abi flag, followed by a flag disabling the default ABI if it changed.
func sanitizeMIPSABI(t Triple, attrs []string) ([]string, error) {
	is64Bit := t.Arch == MIPS64 || t.Arch == MIPS64el
	defaultABI := uint32(mipsO32)
	if is64Bit {
		defaultABI = mipsN64
	}
	bits := defaultABI
	out := make([]string, 0, len(attrs)+2)
	for _, attr := range attrs {
		if attr == "" {
			continue
		}
		enabled := attr[0] == '+'
		flag := attr
		if attr[0] == '+' || attr[0] == '-' {
			flag = attr[1:]
		}
		bit, ok := mipsABIFlags[flag]
		if !ok {
			out = append(out, attr)
			continue
		}
		if enabled {
			bits |= bit
		} else {
			bits &^= bit
		}
	}
	switch bits {
	case mipsO32:
		out = append(out, "+o32")
	case mipsN32:
		out = append(out, "+n32")
	case mipsN64:
		out = append(out, "+n64")
	case mipsEABI:
		out = append(out, "+eabi")
	default:
		return nil, &ConfigError{Msg: "Only one ABI argument is supported"}
	}
	if bits != defaultABI {
		if is64Bit {
			out = append(out, "-n64")
		} else {
			out = append(out, "-o32")
		}
	}
	return out, nil
}
