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

	"github.com/smolt/ldcabi/internal/logger"
)

// FloatABI selects how floating point values are passed.
type FloatABI int

const (
	FloatABIDefault FloatABI = iota
	FloatABISoft
	FloatABISoftFP
	FloatABIHard
)

func (f FloatABI) String() string {
	switch f {
	case FloatABIDefault:
		return "default"
	case FloatABISoft:
		return "soft"
	case FloatABISoftFP:
		return "softfp"
	case FloatABIHard:
		return "hard"
	}
	return fmt.Sprintf("FloatABI(%d)", int(f))
}

// ParseFloatABI parses a -float-abi value.
func ParseFloatABI(s string) (FloatABI, error) {
	switch s {
	case "", "default", "unspecified":
		return FloatABIDefault, nil
	case "soft":
		return FloatABISoft, nil
	case "softfp":
		return FloatABISoftFP, nil
	case "hard":
		return FloatABIHard, nil
	}
	return FloatABIDefault, &ConfigError{Msg: fmt.Sprintf("unknown float ABI '%s'", s)}
}

// armFloatABI returns the default float ABI of an ARM target.
func armFloatABI(t Triple, archSuffix string) FloatABI {
	switch t.OS {
	case Darwin, MacOSX, IOS:
		// Darwin defaults to "softfp" for v6 and v7.
		if strings.HasPrefix(archSuffix, "v6") || strings.HasPrefix(archSuffix, "v7") {
			return FloatABISoftFP
		}
		return FloatABISoft
	case FreeBSD:
		return FloatABISoft
	}
	switch t.Env {
	case GNUEABIHF, EABIHF:
		return FloatABIHard
	case GNUEABI, EABI:
		// EABI is always AAPCS, and if it was not marked 'hard', it's softfp.
		return FloatABISoftFP
	case Android:
		if strings.HasPrefix(archSuffix, "v7") {
			return FloatABISoftFP
		}
		return FloatABISoft
	}
	logger.Printf("guessing soft float ABI for '%s'", t)
	return FloatABISoft
}
