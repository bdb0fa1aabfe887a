package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/wasmlang/compiler"
	"github.com/wasmlang/compiler/internal/config"
)

type compileFlags struct {
	configPath string
	outputPath string
	valueType  string
	pageSize   int
	closures   bool
	optPasses  int
	tailCall   bool
	verbose    bool
}

func compileFlagSet(f *compileFlags) *pflag.FlagSet {
	flags := pflag.NewFlagSet("compile", pflag.ContinueOnError)
	flags.StringVar(&f.configPath, "config", "", "path to a YAML config file (defaults → file → WASMC_ env overrides)")
	flags.StringVar(&f.outputPath, "output", "", "output .wasm path (default: input path with .wasm extension)")
	flags.StringVar(&f.valueType, "value-type", string(config.ValueTypeF64), "primary scalar type: f64 or i32")
	flags.IntVar(&f.pageSize, "page-size", 65536, "bump-allocator page size in bytes")
	flags.BoolVar(&f.closures, "closures", true, "enable closure analysis")
	flags.IntVar(&f.optPasses, "opt-passes", 2, "peephole optimizer pass count")
	flags.BoolVar(&f.tailCall, "tail-call", false, "enable the return_call rewrite")
	flags.BoolVarP(&f.verbose, "verbose", "v", false, "log every pipeline stage at debug level")
	return flags
}

// overrideConfig applies every flag the caller actually set on top of cfg,
// loaded beforehand from defaults/file/env; flags left at their zero value
// never shadow a weaker-precedence source that set something explicit.
func (f *compileFlags) overrideConfig(cfg config.Config, changed *pflag.FlagSet) config.Config {
	if changed.Changed("value-type") {
		cfg.ValueType = config.ValueType(f.valueType)
	}
	if changed.Changed("page-size") {
		cfg.PageSize = f.pageSize
	}
	if changed.Changed("closures") {
		cfg.Closures = f.closures
	}
	if changed.Changed("opt-passes") {
		cfg.OptPasses = f.optPasses
	}
	if changed.Changed("tail-call") {
		cfg.TailCall = f.tailCall
	}
	return cfg
}

func newCompileCmd() *cobra.Command {
	var f compileFlags

	cmd := &cobra.Command{
		Use:   "compile <program.json>",
		Short: "Compile a JSON-encoded ESTree program to a .wasm binary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(f.configPath)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			cfg = f.overrideConfig(cfg, cmd.Flags())

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading %s: %w", args[0], err)
			}

			logger := logrus.New()
			if f.verbose {
				logger.SetLevel(logrus.DebugLevel)
			}

			result, err := compiler.CompileJSON(data, cfg, logger)
			if err != nil {
				return err
			}

			out := f.outputPath
			if out == "" {
				out = strings.TrimSuffix(args[0], filepath.Ext(args[0])) + ".wasm"
			}
			if err := os.WriteFile(out, result.Binary, 0o644); err != nil {
				return fmt.Errorf("writing %s: %w", out, err)
			}

			noColor, _ := cmd.Flags().GetBool("no-color")
			okColor := getColor(noColor, color.FgGreen, color.Bold)
			valueColor := getColor(noColor, color.FgCyan)
			fmt.Fprintf(cmd.OutOrStdout(), "%s wrote %s (%d bytes) in %s\n",
				okColor.Sprint("ok:"), valueColor.Sprint(out), len(result.Binary), result.Report.Total())
			return nil
		},
	}

	cmd.Flags().AddFlagSet(compileFlagSet(&f))
	return cmd
}
