package util

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"github.com/xplshn/sqltok/pkg/config"
	"github.com/xplshn/sqltok/pkg/token"
)

type Severity int

const (
	SevError Severity = iota
	SevWarning
	SevNote
)

var severityStyle = map[Severity]struct{ label, color string }{
	SevError:   {"error", "\033[31m"},
	SevWarning: {"warning", "\033[33m"},
	SevNote:    {"note", "\033[36m"},
}

// SourceFileRecord tracks the name and content of a single input.
type SourceFileRecord struct {
	Name    string
	Content string
}

// Pos points into one of the registered sources. Loc is where the caret goes
// and Len is how many bytes the caret underlines.
type Pos struct {
	FileIndex int
	Loc       token.Location
	Len       int
}

// TokenPos places the caret under tok. Token locations sit just past the
// token, so the start is recovered by stepping back over the value; multi
// line tokens fall back to the end location.
func TokenPos(fileIndex int, tok token.Token) Pos {
	n := len(tok.Value)
	if tok.Delim != 0 {
		n += 2 + strings.Count(tok.Value, string(tok.Delim))
	}
	if strings.Contains(tok.Value, "\n") || uint(n) > tok.Loc.Col {
		return Pos{FileIndex: fileIndex, Loc: tok.Loc, Len: 1}
	}
	return Pos{FileIndex: fileIndex, Loc: token.Location{Line: tok.Loc.Line, Col: tok.Loc.Col - uint(n)}, Len: n}
}

var sourceFiles []SourceFileRecord

var output io.Writer = os.Stderr

// SetOutput redirects Print, Warn and Info, os.Stderr by default.
func SetOutput(w io.Writer) { output = w }

// SetSourceFiles stores the inputs so diagnostics can quote them.
func SetSourceFiles(files []SourceFileRecord) {
	sourceFiles = files
}

func fileName(pos Pos) string {
	if pos.FileIndex < 0 || pos.FileIndex >= len(sourceFiles) {
		return "<input>"
	}
	return sourceFiles[pos.FileIndex].Name
}

// sourceLine returns the text of the zero-based line, without its newline.
func sourceLine(content string, line uint) (string, bool) {
	for ; line > 0; line-- {
		i := strings.IndexByte(content, '\n')
		if i < 0 {
			return "", false
		}
		content = content[i+1:]
	}
	if i := strings.IndexByte(content, '\n'); i >= 0 {
		content = content[:i]
	}
	return strings.TrimSuffix(content, "\r"), true
}

// Report writes one diagnostic: the located message, the source line and a
// caret under the offending bytes.
func Report(w io.Writer, sev Severity, pos Pos, msg string, color bool) {
	style := severityStyle[sev]
	label := style.label + ":"
	if color {
		label = style.color + label + "\033[0m"
	}
	fmt.Fprintf(w, "%s:%s: %s %s\n", fileName(pos), pos.Loc, label, msg)

	if pos.FileIndex < 0 || pos.FileIndex >= len(sourceFiles) {
		return
	}
	line, ok := sourceLine(sourceFiles[pos.FileIndex].Content, pos.Loc.Line)
	if !ok {
		return
	}
	fmt.Fprintf(w, "  %s\n", line)

	caret := "^"
	if pos.Len > 1 {
		caret += strings.Repeat("~", pos.Len-1)
	}
	if color {
		caret = "\033[32m" + caret + "\033[0m"
	}
	fmt.Fprintf(w, "  %s%s\n", strings.Repeat(" ", int(pos.Loc.Col)), caret)
}

func colorFor(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Print reports a located diagnostic.
func Print(sev Severity, pos Pos, format string, args ...any) {
	Report(output, sev, pos, fmt.Sprintf(format, args...), colorFor(output))
}

// Warn prints a located warning if the corresponding warning is enabled
func Warn(cfg *config.Config, wt config.Warning, pos Pos, format string, args ...any) {
	if !cfg.IsWarningEnabled(wt) {
		return
	}
	msg := fmt.Sprintf(format, args...) + fmt.Sprintf(" [-W%s]", cfg.Warnings[wt].Name)
	Report(output, SevWarning, pos, msg, colorFor(output))
}

// Info prints an unlocated progress line for the named tool.
func Info(tool, format string, args ...any) {
	fmt.Fprintf(output, "%s: info: %s\n", tool, fmt.Sprintf(format, args...))
}
