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
	"io"
	"os"
	"strings"

	"github.com/samber/lo"
	"github.com/smolt/ldcabi/internal/abi"
	"github.com/smolt/ldcabi/internal/ir"
	"github.com/smolt/ldcabi/internal/logger"
	"github.com/smolt/ldcabi/internal/target"
	"github.com/smolt/ldcabi/internal/types"
	"github.com/spf13/cobra"
	"github.com/xyproto/env/v2"
)

// Environment variables providing flag defaults.
const (
	verboseEnv = "LDCABI_VERBOSE"
	cpuEnv     = "LDCABI_CPU"
)

// targetOptions collects the target selection flags into target.Options.
func targetOptions(cmd *cobra.Command) (target.Options, error) {
	flags := cmd.PersistentFlags()
	var opts target.Options
	opts.Triple, _ = flags.GetString("mtriple")
	opts.Arch, _ = flags.GetString("march")
	opts.CPU, _ = flags.GetString("mcpu")
	opts.Attrs, _ = flags.GetStringSlice("mattr")
	opts.IOSArch, _ = flags.GetString("ios-arch")
	opts.NoFramePointerElim, _ = flags.GetBool("disable-fp-elim")
	opts.NoLinkerStripDead, _ = flags.GetBool("disable-linker-strip-dead")

	var err error
	m32, _ := flags.GetBool("m32")
	m64, _ := flags.GetBool("m64")
	if opts.Bitness, err = target.ParseBitness(m32, m64); err != nil {
		return opts, err
	}
	floatABI, _ := flags.GetString("float-abi")
	if opts.FloatABI, err = target.ParseFloatABI(floatABI); err != nil {
		return opts, err
	}
	reloc, _ := flags.GetString("relocation-model")
	if opts.RelocModel, err = target.ParseRelocModel(reloc); err != nil {
		return opts, err
	}
	codeModel, _ := flags.GetString("code-model")
	if opts.CodeModel, err = target.ParseCodeModel(codeModel); err != nil {
		return opts, err
	}
	optLevel, _ := flags.GetInt("optimize-level")
	if optLevel < int(target.OptNone) || optLevel > int(target.OptAggressive) {
		return opts, fmt.Errorf("invalid optimization level -O%d", optLevel)
	}
	opts.OptLevel = target.OptLevel(optLevel)
	return opts, nil
}

// lowerHeader converts the prototypes of source and lowers them for d.
func lowerHeader(source string, d target.Descriptor, linkage types.Linkage, includePaths []string) (abi.TargetABI, []*abi.FuncLowering, error) {
	f, err := os.Open(source)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()
	functions, err := NewHeaderUnit(source, d, linkage, includePaths).Parse(f)
	if err != nil {
		return nil, nil, err
	}
	a := abi.Select(d)
	ctx := ir.NewContext(d)
	lowered := lo.Map(functions, func(fn *types.Func, _ int) *abi.FuncLowering {
		return abi.Lower(a, ctx, fn)
	})
	return a, lowered, nil
}

// writeReport prints each lowered signature with the location of every
// argument.
func writeReport(w io.Writer, d target.Descriptor, a abi.TargetABI, lowered []*abi.FuncLowering) error {
	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("; target %s (cpu '%s', features '%s', abi %s)\n", d.Triple, d.CPU, d.FeatureString(), a.Name()))
	rf := a.ArgRegisters()
	for _, fl := range lowered {
		builder.WriteString(fmt.Sprintf("\n; %s\n%s\n", fl.Sig, fl))
		builder.WriteString(fmt.Sprintf(";   return: %s\n", fl.RetStyle()))
		p := abi.Place(fl, rf)
		for _, loc := range p.Locs {
			arg := loc.Arg
			line := fmt.Sprintf(";   %s: %s %s", strings.TrimPrefix(arg.Name, "."), arg.Kind, arg.LType)
			if arg.Rewrite != nil {
				line += fmt.Sprintf(" [%s]", arg.Rewrite)
			}
			builder.WriteString(fmt.Sprintf("%s in %s\n", line, loc))
		}
		if fl.ReverseParams {
			builder.WriteString(";   parameters reversed\n")
		}
		if p.StackSize > 0 {
			builder.WriteString(fmt.Sprintf(";   stack: %d bytes\n", p.StackSize))
		}
	}
	_, err := io.WriteString(w, builder.String())
	return err
}

var verbose bool

// run resolves the target, lowers the header and writes the result.
func run(cmd *cobra.Command, source string) error {
	logger.SetVerbose(verbose)
	flags := cmd.PersistentFlags()
	opts, err := targetOptions(cmd)
	if err != nil {
		return err
	}
	d, err := target.Resolve(opts)
	if err != nil {
		return err
	}
	linkageName, _ := flags.GetString("linkage")
	linkage, err := types.ParseLinkage(linkageName)
	if err != nil {
		return err
	}
	includePaths, _ := flags.GetStringSlice("include-path")
	a, lowered, err := lowerHeader(source, d, linkage, includePaths)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if output, _ := flags.GetString("output"); output != "" {
		f, err := os.Create(output)
		if err != nil {
			return err
		}
		defer func(f *os.File) {
			if err = f.Close(); err != nil {
				_, _ = fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
		}(f)
		out = f
	}
	if asm, _ := flags.GetBool("asm"); asm {
		bytes, err := (&Listing{Target: d, ABI: a}).Generate(lowered)
		if err != nil {
			return err
		}
		_, err = out.Write(bytes)
		return err
	}
	return writeReport(out, d, a, lowered)
}

func newCommand() *cobra.Command {
	command := &cobra.Command{
		Use:  "ldcabi header [-o output]",
		Args: cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			if err := run(cmd, args[0]); err != nil {
				_, _ = fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
		},
	}
	flags := command.PersistentFlags()
	flags.StringP("mtriple", "t", "", "override target triple")
	flags.String("march", "", "architecture to generate code for (see -version)")
	flags.String("mcpu", env.Str(cpuEnv), "target a specific cpu type (native for the host cpu)")
	flags.StringSliceP("mattr", "m", nil, "target specific attributes (-mattr=+feature,-feature)")
	flags.Bool("m32", false, "32 bit target")
	flags.Bool("m64", false, "64 bit target")
	flags.String("float-abi", "", "ABI/operations to use for floating-point types (default, soft, softfp, hard)")
	flags.String("relocation-model", "", "relocation model (static, pic, dynamic-no-pic)")
	flags.String("code-model", "", "code model (small, kernel, medium, large)")
	flags.IntP("optimize-level", "O", 0, "optimization level")
	flags.Bool("disable-fp-elim", false, "disable frame pointer elimination optimization")
	flags.Bool("disable-linker-strip-dead", false, "do not try to remove unused symbols during linking")
	flags.String("ios-arch", "", "iOS architecture for the default triple (armv7, armv7s, arm64, ...)")
	flags.String("linkage", "C", "linkage of the header's functions (D, C, C++, Windows, Pascal, System, Objective-C)")
	flags.StringSliceP("include-path", "I", nil, "additional include path for C parser")
	flags.Bool("asm", false, "emit Go assembly trampolines instead of a lowering report")
	flags.StringP("output", "o", "", "output file (default stdout)")
	flags.BoolVarP(&verbose, "verbose", "v", env.Bool(verboseEnv), "if set, increase verbosity level")
	return command
}

func main() {
	if err := newCommand().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
