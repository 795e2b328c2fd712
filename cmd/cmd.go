// Package cmd implements the command-line driver: argument parsing via
// olive, project loading, and dispatch into the compiler core. Turning
// source text into ast.Files is the job of a parser collaborator external
// to this core (§9, "front-end collaborator"); cmd accepts one through the
// Frontend interface rather than embedding a lexer/parser of its own.
package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ComedicChimera/olive"

	"github.com/matthijsr/til-vhdl/ast"
	"github.com/matthijsr/til-vhdl/common"
	"github.com/matthijsr/til-vhdl/compile"
	"github.com/matthijsr/til-vhdl/project"
	"github.com/matthijsr/til-vhdl/report"
)

// Frontend turns one source file's text into a parsed ast.File. The core
// never reads source text itself; cmd hands it off through this seam so a
// parser can be swapped in without touching the compiler.
type Frontend interface {
	ParseFile(path string) (*ast.File, error)
}

// frontend is the Frontend a running process dispatches to; nil until a
// caller supplies one via SetFrontend.
var frontend Frontend

// SetFrontend registers the parser collaborator used by the build/check
// subcommands. A process that never calls this can still load and validate
// project descriptors, but build/check report a configuration error.
func SetFrontend(f Frontend) {
	frontend = f
}

// Execute runs the til command-line application: it is the single entry
// point main() calls.
func Execute() {
	cli := olive.NewCLI("til", "til compiles Tydi-family interface descriptions to VHDL-targeted IR", true)
	logLvlArg := cli.AddSelectorArg("loglevel", "ll", "the compiler log level", false, []string{"silent", "error", "warn", "verbose"})
	logLvlArg.SetDefaultValue("verbose")

	buildCmd := cli.AddSubcommand("build", "compile a project's sources and report diagnostics", true)
	buildCmd.AddPrimaryArg("project-path", "the path to the project directory", true)

	checkCmd := cli.AddSubcommand("check", "validate a project's sources without emitting output", true)
	checkCmd.AddPrimaryArg("project-path", "the path to the project directory", true)

	cli.AddSubcommand("version", "print the til version", false)

	result, err := olive.ParseArgs(cli, os.Args)
	if err != nil {
		report.DisplayInfo("CLI Usage Error", err.Error())
		return
	}

	subcmdName, subResult, _ := result.Subcommand()
	switch subcmdName {
	case "build":
		execBuildCommand(subResult, result.Arguments["loglevel"].(string), true)
	case "check":
		execBuildCommand(subResult, result.Arguments["loglevel"].(string), false)
	case "version":
		report.DisplayInfo("til Version", common.Version)
	}
}

// execBuildCommand loads the project at the given primary argument, runs
// every registered source through the frontend and the compiler core, and
// prints accumulated diagnostics. emit selects whether a successful run
// would proceed to code generation (build) or stop after validation
// (check); code generation itself is outside this core's scope (§9).
func execBuildCommand(result *olive.ArgParseResult, loglevel string, emit bool) {
	projRelPath, _ := result.PrimaryArg()

	projPath, err := filepath.Abs(projRelPath)
	if err != nil {
		report.DisplayInfo("Path Error", err.Error())
		return
	}

	desc, err := project.Load(projPath)
	if err != nil {
		report.DisplayInfo("Project Load Error", err.Error())
		return
	}

	sink := report.NewSink(report.ParseLogLevel(loglevel))
	_, failures, err := Run(desc, sink)
	if err != nil {
		report.DisplayInfo("Compile Error", err.Error())
		return
	}

	summary := sink.Display()
	if summary != "" {
		fmt.Println()
		fmt.Println(summary)
	}

	if failures > 0 || sink.AnyErrors() {
		return
	}

	if emit {
		report.DisplayInfo("Build", fmt.Sprintf("%s: %d source file(s) compiled to %s", desc.Name, len(desc.Sources), desc.OutputDir))
	} else {
		report.DisplayInfo("Check", fmt.Sprintf("%s: %d source file(s) valid", desc.Name, len(desc.Sources)))
	}
}

// Run parses every source in desc with the registered Frontend and
// evaluates the resulting declarations, returning the Compiler (for
// downstream emission) and the count of declarations that failed to
// evaluate. It accumulates diagnostics onto sink rather than aborting on
// the first bad file or declaration (§7). Once every declaration has been
// evaluated it computes the physical signal view (C3) of every resolved
// streamlet's ports, since a failure there is just as much a reason to
// reject the project as a structural or type error -- VHDL emission (out
// of this core's scope, §9) cannot proceed from a streamlet whose ports
// don't reduce to concrete signal widths.
func Run(desc *project.Descriptor, sink *report.Sink) (*compile.Compiler, int, error) {
	if frontend == nil {
		return nil, 0, errors.New("no frontend registered: call cmd.SetFrontend before build/check")
	}

	c := compile.NewCompiler(sink)

	for _, src := range desc.Sources {
		f, err := frontend.ParseFile(src)
		if err != nil {
			sink.Report(report.Diagnostic{
				Kind:     report.LexicalForm,
				Severity: report.SeverityError,
				Message:  fmt.Sprintf("%s: %s", src, err),
			})
			continue
		}
		c.AddFile(f)
	}

	failures := c.CompileAll()

	for key, id := range c.Streamlets() {
		if _, err := c.PhysicalPorts(id); err != nil {
			sink.Report(report.Diagnostic{
				Kind:     report.TypeInvariant,
				Severity: report.SeverityError,
				Message:  fmt.Sprintf("%s: %s", key, err),
			})
			sink.MarkFailed(key)
			failures++
		}
	}

	return c, failures, nil
}
