// Package compiler is the public entry point of the ahead-of-time
// compiler: it drives an already-parsed source AST through the
// semantic analyzer, code generator, peephole optimizer and assembler,
// and returns the resulting Wasm binary alongside a per-stage timing
// report.
//
// Producing the AST itself is out of scope (any ESTree-compatible
// parser is acceptable); ast.FromJSON is provided only as a convenience
// for callers whose parser emits ESTree as JSON.
package compiler

import (
	"github.com/sirupsen/logrus"

	"github.com/wasmlang/compiler/ast"
	"github.com/wasmlang/compiler/internal/analyzer"
	"github.com/wasmlang/compiler/internal/assemble"
	"github.com/wasmlang/compiler/internal/codegen"
	"github.com/wasmlang/compiler/internal/config"
	"github.com/wasmlang/compiler/internal/ir"
	"github.com/wasmlang/compiler/internal/optimize"
	"github.com/wasmlang/compiler/internal/telemetry"
)

// Config mirrors the compiler's configuration options. It is a plain
// alias of internal/config.Config so that callers outside this module
// never need to import an internal package to build one.
type Config = config.Config

// DefaultConfig returns the compiler's default configuration.
func DefaultConfig() Config { return config.Default() }

// Result is what a successful Compile returns: the assembled binary and
// the timing report for every stage that ran.
type Result struct {
	Binary []byte
	Report telemetry.Report
}

// Compile runs prog through the full pipeline: analyze, generate,
// optimize, assemble. With cfg.Closures off the analyze stage skips the
// analyzer and hands the generator an empty Info. A nil logger falls
// back to logrus's standard logger, matching telemetry.NewRecorder's
// own default.
//
// Each stage is wrapped in rec.Time, which records its duration and
// logs a failed stage. On failure Compile returns only (nil, err): the
// timings of the stages that did run are not returned.
func Compile(prog *ast.Program, cfg Config, logger logrus.FieldLogger) (*Result, error) {
	rec := telemetry.NewRecorder(logger)

	var info *analyzer.Info
	var mod *ir.Module
	var binary []byte

	if err := rec.Time(telemetry.StageAnalyze, func() error {
		if !cfg.Closures {
			info = &analyzer.Info{Program: &analyzer.Scope{}}
			return nil
		}
		var err error
		info, err = analyzer.Analyze(prog)
		return err
	}); err != nil {
		return nil, err
	}

	if err := rec.Time(telemetry.StageGenerate, func() error {
		var err error
		mod, err = codegen.Generate(prog, info, cfg)
		return err
	}); err != nil {
		return nil, err
	}

	if err := rec.Time(telemetry.StageOptimize, func() error {
		return optimize.Optimize(mod, cfg, rec.Logger)
	}); err != nil {
		return nil, err
	}

	if err := rec.Time(telemetry.StageAssemble, func() error {
		var err error
		binary, err = assemble.Assemble(mod, cfg, rec.Logger)
		return err
	}); err != nil {
		return nil, err
	}

	return &Result{Binary: binary, Report: rec.Report()}, nil
}

// CompileJSON decodes data as a JSON-encoded ESTree program (ast.FromJSON)
// and compiles it, for callers whose upstream parser emits JSON rather
// than handing over an *ast.Program directly.
func CompileJSON(data []byte, cfg Config, logger logrus.FieldLogger) (*Result, error) {
	prog, err := ast.FromJSON(data)
	if err != nil {
		return nil, err
	}
	return Compile(prog, cfg, logger)
}
