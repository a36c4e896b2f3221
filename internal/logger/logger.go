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

// Package logger prints compiler trace output when verbose mode is on.
package logger

import (
	"io"
	"log"
	"os"
	"sync/atomic"
)

var (
	enabled atomic.Bool
	std     = log.New(os.Stderr, "", 0)
)

// SetVerbose turns trace output on or off.
func SetVerbose(on bool) { enabled.Store(on) }

// Enabled reports whether trace output is on.
func Enabled() bool { return enabled.Load() }

// SetOutput redirects trace output.
func SetOutput(w io.Writer) { std.SetOutput(w) }

// Printf writes one trace line.
func Printf(format string, args ...any) {
	if enabled.Load() {
		std.Printf(format, args...)
	}
}
