package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/dustin/go-humanize"
	slogmulti "github.com/samber/slog-multi"

	"github.com/xplshn/gpl0/pkg/ast"
	"github.com/xplshn/gpl0/pkg/cli"
	"github.com/xplshn/gpl0/pkg/codegen"
	"github.com/xplshn/gpl0/pkg/config"
	"github.com/xplshn/gpl0/pkg/symtab"
	"github.com/xplshn/gpl0/pkg/token"
	"github.com/xplshn/gpl0/pkg/util"
)

func main() {
	app := cli.NewApp("gpl0")
	app.Synopsis = "[options] <program.json>"
	app.Description = "Generates PL/0 stack machine code from a parsed program. The input is the JSON AST written by the parser; the output is the '<index> <opcode> <level> <operand>' listing."
	app.Authors = []string{"xplshn"}
	app.Repository = "<https://github.com/xplshn/gpl0>"
	app.Since = 2025

	var (
		outFile     string
		backendName string
		sourceFile  string
		logLevel    string
		logFile     string
		jobs        int
		dumpSymbols bool
		wall        bool
		quiet       bool
	)

	fs := app.FlagSet
	fs.String(&outFile, "output", "o", "", "Place the output into <file> instead of stdout.", "file")
	fs.String(&backendName, "backend", "b", "listing", "Output format (listing, json).", "backend")
	fs.String(&sourceFile, "source", "s", "", "Source text the AST was parsed from, for diagnostics.", "file")
	fs.String(&logLevel, "log-level", "", "warn", "Minimum level of log records on stderr.", "level")
	fs.String(&logFile, "log-file", "", "", "Also write every log record as JSON to <file>.", "file")
	fs.Int(&jobs, "jobs", "j", 0, "Worker count for -Fparallel (0 means one per CPU).", "n")
	fs.Bool(&dumpSymbols, "dump-symbols", "d", false, "Print the symbol table to stderr.")
	fs.Bool(&wall, "Wall", "", false, "Enable every warning.")
	fs.Bool(&quiet, "quiet", "q", false, "Do not print the summary line.")

	cfg := config.NewConfig()
	warningFlags, featureFlags := cfg.SetupFlagGroups(fs)

	app.Action = func(args []string) error {
		cfg.ApplyFlagGroups(warningFlags, featureFlags, wall)
		if jobs > 0 {
			cfg.Jobs = jobs
		}

		logger, closeLog, err := newLogger(logLevel, logFile)
		if err != nil {
			return fail(util.NewPrinter(os.Stderr), err)
		}
		defer closeLog()
		cfg.Logger = logger

		var files []util.SourceFileRecord
		if sourceFile != "" {
			content, err := os.ReadFile(sourceFile)
			if err != nil {
				return fail(util.NewPrinter(os.Stderr), err)
			}
			files = append(files, util.SourceFileRecord{Name: sourceFile, Content: []rune(string(content))})
		}
		printer := util.NewPrinter(os.Stderr, files...)

		if len(args) != 1 {
			return fail(printer, errors.New("expected exactly one input file"))
		}
		tree, err := readTree(args[0])
		if err != nil {
			return fail(printer, err)
		}
		logger.Info("decoded AST", "file", args[0], "nodes", tree.Len())

		if cfg.IsFeatureEnabled(config.FeatFold) {
			ast.FoldConstants(tree, tree.Root)
		}

		tab, err := symtab.Build(tree)
		if err != nil {
			return fail(printer, err)
		}

		ctx := codegen.NewContext(cfg)
		prog, err := ctx.Generate(tree, tab)
		printer.PrintAll(ctx.Diagnostics())
		if err != nil {
			return fail(printer, err)
		}
		if dumpSymbols {
			fmt.Fprint(os.Stderr, tab)
		}

		backend, err := codegen.SelectBackend(backendName)
		if err != nil {
			return fail(printer, err)
		}
		out, err := backend.Generate(prog, cfg)
		if err != nil {
			return fail(printer, err)
		}
		if outFile == "" {
			_, err = out.WriteTo(os.Stdout)
		} else {
			err = os.WriteFile(outFile, out.Bytes(), 0644)
		}
		if err != nil {
			return fail(printer, err)
		}

		if !quiet {
			fmt.Fprintf(os.Stderr, "gpl0: info: %s instructions, %s functions, %s markers, %s nodes (checksum %016x)\n",
				humanize.Comma(int64(prog.Stats.Instructions)), humanize.Comma(int64(prog.Stats.Functions)),
				humanize.Comma(int64(prog.Stats.Markers)), humanize.Comma(int64(prog.Stats.Nodes)), prog.Checksum())
		}
		return nil
	}

	if err := app.Run(os.Args[1:]); err != nil {
		os.Exit(1)
	}
}

func readTree(path string) (*ast.Tree, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	return ast.Decode(r)
}

// newLogger fans records out to a text handler on stderr and, when path is set, a JSON file.
func newLogger(levelName, path string) (*slog.Logger, func(), error) {
	level := new(slog.LevelVar)
	if err := level.UnmarshalText([]byte(levelName)); err != nil {
		return nil, nil, fmt.Errorf("bad --log-level: %w", err)
	}
	handlers := []slog.Handler{slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})}
	closeFn := func() {}
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return nil, nil, err
		}
		handlers = append(handlers, slog.NewJSONHandler(f, &slog.HandlerOptions{Level: slog.LevelDebug}))
		closeFn = func() { f.Close() }
	}
	return slog.New(slogmulti.Fanout(handlers...)), closeFn, nil
}

// fail prints err as a diagnostic, positioned when the error carries a location.
func fail(printer *util.Printer, err error) error {
	var tok token.Token
	var dup *symtab.DuplicateSymbolError
	var undef *symtab.UndefinedSymbolError
	var bad *ast.MalformedConstructError
	switch {
	case errors.As(err, &dup):
		tok = dup.Pos
	case errors.As(err, &undef):
		tok = undef.Pos
	case errors.As(err, &bad):
		tok = token.Token{Line: bad.Line, Column: bad.Column, Len: 1}
	}
	printer.Print(util.Error(tok, "%v", err))
	return err
}
