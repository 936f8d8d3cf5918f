// Package emit renders generated Go source: per-site fragments produced from
// text/template sources, assembled into one formatted file.
package emit

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"text/template"
	"unicode"

	"golang.org/x/tools/imports"

	"github.com/zeusync/ecsgen/internal/codegen/decl"
	"github.com/zeusync/ecsgen/pkg/generic"
)

// Header is the first line of every generated file.
const Header = "// Code generated by ecsgen. DO NOT EDIT."

// RuntimeAlias is the name generated code imports the runtime package under.
const RuntimeAlias = "ecs"

var (
	ErrImportConflict = errors.New("import alias conflict")
	ErrFormat         = errors.New("generated source does not format")
)

// Funcs are the helpers available to every template.
var Funcs = template.FuncMap{
	"export":    decl.ExportName,
	"unexport":  Unexport,
	"join":      strings.Join,
	"quote":     func(s string) string { return fmt.Sprintf("%q", s) },
	"increment": func(i int) int { return i + 1 },
}

// Unexport lower-cases the leading upper-case run of name: "MoveJob" becomes
// "moveJob" and "HTTPJob" becomes "httpJob".
func Unexport(name string) string {
	runes := []rune(name)
	for i := range runes {
		if !unicode.IsUpper(runes[i]) {
			break
		}
		// keep the last capital of a run that starts a new word
		if i > 0 && i+1 < len(runes) && unicode.IsLower(runes[i+1]) {
			break
		}
		runes[i] = unicode.ToLower(runes[i])
	}
	return string(runes)
}

// Parse parses a template with Funcs installed.
func Parse(name, src string) *template.Template {
	return template.Must(template.New(name).Funcs(Funcs).Parse(src))
}

// Fragment is the rendered code of one generator stage for one site.
type Fragment struct {
	Site  string
	Stage string
	Code  string
}

// Execute renders t with data into a fragment.
func Execute(t *template.Template, site, stage string, data any) (Fragment, error) {
	buf := generic.BufferPool.Get()
	defer generic.BufferPool.Put(buf)

	if err := t.Execute(buf, data); err != nil {
		return Fragment{}, fmt.Errorf("%s %s: %w", site, stage, err)
	}
	return Fragment{Site: site, Stage: stage, Code: buf.String()}, nil
}

// Unit is one generated file.
type Unit struct {
	Package   string
	imports   map[string]string
	fragments []Fragment
}

func NewUnit(pkg string) *Unit {
	return &Unit{Package: pkg, imports: make(map[string]string)}
}

// Import records an import under alias. Registering the same alias for another path
// is an error.
func (u *Unit) Import(alias, path string) error {
	if prev, ok := u.imports[alias]; ok && prev != path {
		return fmt.Errorf("%w: %s is both %q and %q", ErrImportConflict, alias, prev, path)
	}
	u.imports[alias] = path
	return nil
}

// Add appends fragments in order.
func (u *Unit) Add(fs ...Fragment) {
	u.fragments = append(u.fragments, fs...)
}

func (u *Unit) Len() int { return len(u.fragments) }

// Source renders the file and formats it.
func (u *Unit) Source(filename string) ([]byte, error) {
	buf := generic.BufferPool.Get()
	defer generic.BufferPool.Put(buf)

	buf.WriteString(Header)
	buf.WriteString("\n\npackage ")
	buf.WriteString(u.Package)
	buf.WriteString("\n")

	if len(u.imports) > 0 {
		aliases := make([]string, 0, len(u.imports))
		for alias := range u.imports {
			aliases = append(aliases, alias)
		}
		slices.Sort(aliases)

		buf.WriteString("\nimport (\n")
		for _, alias := range aliases {
			fmt.Fprintf(buf, "\t%s %q\n", alias, u.imports[alias])
		}
		buf.WriteString(")\n")
	}

	for _, f := range u.fragments {
		buf.WriteString("\n")
		buf.WriteString(f.Code)
	}

	out, err := imports.Process(filename, buf.Bytes(), &imports.Options{
		Comments:   true,
		TabIndent:  true,
		TabWidth:   8,
		FormatOnly: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFormat, err)
	}
	return out, nil
}
