package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/xplshn/sqltok/pkg/cli"
	"github.com/xplshn/sqltok/pkg/config"
	"github.com/xplshn/sqltok/pkg/lexer"
	"github.com/xplshn/sqltok/pkg/token"
	"github.com/xplshn/sqltok/pkg/util"
)

const demoQuery = "select * from users where user_id = 100"

// errReported is returned by the action once the failure is already on stderr.
var errReported = errors.New("lexing failed")

type jsonToken struct {
	Value string     `json:"value"`
	Kind  token.Kind `json:"kind"`
	Line  uint       `json:"line"`
	Col   uint       `json:"col"`
	Delim string     `json:"delim,omitempty"`
}

type jsonResult struct {
	Input  string      `json:"input"`
	Hint   string      `json:"hint"`
	Tokens []jsonToken `json:"tokens"`
}

func main() {
	if err := newApp(os.Stdin, os.Stdout, os.Stderr).Run(os.Args[1:]); err != nil {
		os.Exit(1)
	}
}

func newApp(stdin io.Reader, stdout, stderr io.Writer) *cli.App {
	app := cli.NewApp("sqltok")
	app.Synopsis = "[options] [query.sql|-] ..."
	app.Description = "Tokenize SQL queries into keywords, symbols, identifiers, strings and numbers. Queries come from -e, from files, or from stdin with '-'; with no input the demo query is lexed."
	app.Authors = []string{"xplshn"}
	app.Repository = "<https://github.com/xplshn/sqltok>"
	app.Since = 2025
	app.Stdout, app.Stderr = stdout, stderr

	var (
		exprs  []string
		format string
		mode   string
		stats  bool
	)

	fs := app.FlagSet
	fs.List(&exprs, "expr", "e", []string{}, "Lex <query> given on the command line.", "query")
	fs.String(&format, "format", "f", "text", "Output format (text, json).", "format")
	fs.String(&mode, "std", "", "compat", "Lexing mode (compat, strict).", "mode")
	fs.Bool(&stats, "stats", "s", false, "Print token counts, input sizes and timings to stderr.")

	cfg := config.NewConfig()
	groups := cfg.SetupFlagGroups(fs)

	app.Action = func(args []string) error {
		util.SetOutput(stderr)
		fail := func(msg string, a ...any) error {
			util.Print(util.SevError, util.Pos{FileIndex: -1}, msg, a...)
			return errReported
		}

		if err := cfg.ApplyMode(mode); err != nil {
			return fail("%v", err)
		}
		if err := cfg.ProcessFlagString(os.Getenv("SQLTOK_FLAGS")); err != nil {
			return fail("SQLTOK_FLAGS: %v", err)
		}
		if err := cfg.ApplyFlagGroups(groups); err != nil {
			return fail("%v", err)
		}
		if format != "text" && format != "json" {
			return fail("unsupported format '%s'. Supported: 'text', 'json'", format)
		}

		records, err := readInputs(stdin, exprs, args)
		if err != nil {
			return fail("%v", err)
		}
		util.SetSourceFiles(records)

		lx := lexer.NewDefault(cfg)
		results := []jsonResult{}
		failed := false
		for i, rec := range records {
			start := time.Now()
			tokens, err := lx.Tokenize(rec.Content)
			if stats {
				util.Info(app.Name, "%s: %d token(s) from %s in %s", rec.Name, len(tokens), humanize.Bytes(uint64(len(rec.Content))), time.Since(start))
			}

			res := jsonResult{Input: rec.Name, Tokens: []jsonToken{}}
			if err != nil {
				res.Hint = err.Error()
				reportFailure(i, err)
				failed = true
			} else {
				res.Hint = fmt.Sprintf("lexed %d tokens", len(tokens))
				for _, f := range lexer.Check(cfg, tokens) {
					util.Warn(cfg, f.Warning, util.TokenPos(i, f.Token), "%s", f.Message)
				}
				for _, t := range tokens {
					res.Tokens = append(res.Tokens, toJSON(t))
				}
			}

			if format == "text" {
				printText(stdout, res, len(records) > 1)
			} else {
				results = append(results, res)
			}
			if failed {
				break
			}
		}

		if format == "json" {
			out, err := json.MarshalIndent(results, "", "  ")
			if err != nil {
				return fail("could not encode results: %v", err)
			}
			fmt.Fprintln(stdout, string(out))
		}
		if failed {
			return errReported
		}
		return nil
	}
	return app
}

func readInputs(stdin io.Reader, exprs, paths []string) ([]util.SourceFileRecord, error) {
	var records []util.SourceFileRecord
	for i, e := range exprs {
		records = append(records, util.SourceFileRecord{Name: fmt.Sprintf("<expr %d>", i+1), Content: e})
	}
	for _, path := range paths {
		var content []byte
		var err error
		if path == "-" {
			content, err = io.ReadAll(stdin)
			path = "<stdin>"
		} else {
			content, err = os.ReadFile(path)
		}
		if err != nil {
			return nil, fmt.Errorf("could not read '%s': %w", path, err)
		}
		records = append(records, util.SourceFileRecord{Name: path, Content: string(content)})
	}
	if len(records) == 0 {
		records = append(records, util.SourceFileRecord{Name: "<demo>", Content: demoQuery})
	}
	return records, nil
}

func reportFailure(fileIndex int, err error) {
	var lexErr *lexer.Error
	if !errors.As(err, &lexErr) {
		util.Print(util.SevError, util.Pos{FileIndex: -1}, "%v", err)
		return
	}
	pos := util.Pos{FileIndex: fileIndex, Loc: lexErr.Cursor.Loc, Len: 1}
	msg := lexErr.Reason.Error()
	if lexErr.Last != nil {
		msg += fmt.Sprintf(" after `%s`", lexErr.Last.Value)
	}
	util.Print(util.SevError, pos, "%s", msg)
}

func toJSON(t token.Token) jsonToken {
	jt := jsonToken{Value: t.Value, Kind: t.Kind, Line: t.Loc.Line, Col: t.Loc.Col}
	if t.Delim != 0 {
		jt.Delim = string(t.Delim)
	}
	return jt
}

func printText(w io.Writer, res jsonResult, header bool) {
	if header {
		fmt.Fprintf(w, "== %s\n", res.Input)
	}
	fmt.Fprintf(w, "hint: %s\n\n", res.Hint)
	if len(res.Tokens) == 0 {
		return
	}
	width := 0
	for _, t := range res.Tokens {
		width = max(width, len(fmt.Sprintf("%q", t.Value)))
	}
	for _, t := range res.Tokens {
		loc := token.Location{Line: t.Line, Col: t.Col}
		fmt.Fprintf(w, "%-10s %-*s %s\n", t.Kind, width, fmt.Sprintf("%q", t.Value), loc)
	}
	fmt.Fprintln(w, strings.Repeat("-", 20))
}
