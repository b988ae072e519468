package util

import (
	"bytes"
	"strings"
	"testing"

	"github.com/xplshn/gpl0/pkg/token"
)

func TestPrinter(t *testing.T) {
	src := SourceFileRecord{Name: "main.pl0", Content: []rune("var x: Int = 1;\nx = y;\n")}
	var buf bytes.Buffer
	p := NewPrinter(&buf, src)

	p.PrintAll([]Diagnostic{
		Error(token.Token{Line: 2, Column: 5, Len: 1}, "'%s' undefined", "y"),
		Warn("unused", token.Token{Line: 1, Column: 5, Len: 1}, "'x' declared and not used"),
	})
	want := "main.pl0:2:5: error: 'y' undefined\n" +
		"  x = y;\n" +
		"      ^\n" +
		"main.pl0:1:5: warning: 'x' declared and not used [-Wunused]\n" +
		"  var x: Int = 1;\n" +
		"      ^\n"
	if got := buf.String(); got != want {
		t.Errorf("output:\n%s\nwant:\n%s", got, want)
	}
}

func TestPrinterWithoutSource(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf).Print(Error(token.Token{Line: 3, Column: 1}, "boom"))
	if got := buf.String(); got != "<ast>:3:1: error: boom\n" {
		t.Errorf("got %q", got)
	}
}

func TestCaretSpansToken(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, SourceFileRecord{Name: "f", Content: []rune("let total = 0;")})
	p.Print(Warn("shadow", token.Token{Line: 1, Column: 5, Len: 5}, "shadowed"))
	if !strings.Contains(buf.String(), "    ^~~~~\n") {
		t.Errorf("caret line missing:\n%s", buf.String())
	}
}

func TestSeverityString(t *testing.T) {
	for s, want := range map[Severity]string{SeverityError: "error", SeverityWarning: "warning", SeverityNote: "note"} {
		if s.String() != want {
			t.Errorf("%d.String() = %q, want %q", s, s.String(), want)
		}
	}
}
