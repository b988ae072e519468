package util

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/xplshn/gpl0/pkg/token"
)

type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
	SeverityNote
)

func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityNote:
		return "note"
	}
	return "error"
}

// Diagnostic is one message tied to a source position.
type Diagnostic struct {
	Severity Severity
	Warning  string // flag name for warnings, e.g. "shadow"
	Tok      token.Token
	Msg      string
}

func Warn(warning string, tok token.Token, format string, args ...any) Diagnostic {
	return Diagnostic{Severity: SeverityWarning, Warning: warning, Tok: tok, Msg: fmt.Sprintf(format, args...)}
}

func Error(tok token.Token, format string, args ...any) Diagnostic {
	return Diagnostic{Severity: SeverityError, Tok: tok, Msg: fmt.Sprintf(format, args...)}
}

// SourceFileRecord tracks the name and content of a single source file.
type SourceFileRecord struct {
	Name    string
	Content []rune
}

// Printer renders diagnostics as "file:line:col: error: msg" followed by the source line
// and a caret, when the source is known.
type Printer struct {
	w     io.Writer
	color bool
	files []SourceFileRecord
}

// NewPrinter colors its output only when w is a terminal.
func NewPrinter(w io.Writer, files ...SourceFileRecord) *Printer {
	color := false
	if f, ok := w.(*os.File); ok {
		color = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return &Printer{w: w, color: color, files: files}
}

func (p *Printer) paint(code, s string) string {
	if !p.color {
		return s
	}
	return "\033[" + code + "m" + s + "\033[0m"
}

// location converts a token to a file-specific location
func (p *Printer) location(tok token.Token) string {
	name := "<ast>"
	if tok.FileIndex >= 0 && tok.FileIndex < len(p.files) {
		name = p.files[tok.FileIndex].Name
	}
	return fmt.Sprintf("%s:%d:%d", name, tok.Line, tok.Column)
}

func (p *Printer) Print(d Diagnostic) {
	label := p.paint("31", "error:")
	if d.Severity == SeverityWarning {
		label = p.paint("33", "warning:")
	} else if d.Severity == SeverityNote {
		label = p.paint("36", "note:")
	}
	fmt.Fprintf(p.w, "%s: %s %s", p.location(d.Tok), label, d.Msg)
	if d.Warning != "" {
		fmt.Fprintf(p.w, " [-W%s]", d.Warning)
	}
	fmt.Fprintln(p.w)
	p.printLine(d.Tok)
}

func (p *Printer) PrintAll(ds []Diagnostic) {
	for _, d := range ds {
		p.Print(d)
	}
}

// printLine prints the source line and a caret indicating the position
func (p *Printer) printLine(tok token.Token) {
	if tok.FileIndex < 0 || tok.FileIndex >= len(p.files) || tok.Line <= 0 {
		return
	}
	content := p.files[tok.FileIndex].Content
	lineStart, line := 0, 1
	for i, r := range content {
		if line == tok.Line {
			break
		}
		if r == '\n' {
			line++
			lineStart = i + 1
		}
	}
	if line != tok.Line {
		return
	}
	lineEnd := len(content)
	for i := lineStart; i < len(content); i++ {
		if content[i] == '\n' {
			lineEnd = i
			break
		}
	}

	fmt.Fprintf(p.w, "  %s\n", string(content[lineStart:lineEnd]))
	caret := "^"
	if tok.Len > 1 {
		caret += strings.Repeat("~", tok.Len-1)
	}
	fmt.Fprintf(p.w, "  %s%s\n", strings.Repeat(" ", max(tok.Column-1, 0)), p.paint("32", caret))
}
