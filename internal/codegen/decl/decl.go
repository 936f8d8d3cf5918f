// Package decl models iteration declarations and loads them from the YAML feed
// produced by the front end.
package decl

import (
	"fmt"
	"go/token"
	"io"
	"os"
	"strings"
	"unicode"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/zeusync/ecsgen/internal/core/models"
)

// Param is one declared access parameter.
type Param struct {
	Name  string    `yaml:"name"`
	Type  string    `yaml:"type"`
	Ref   RefKind   `yaml:"ref,omitempty"`
	Index IndexRole `yaml:"index,omitempty"`
}

// OptionCalls holds the flag lists of every WithOptions call. In YAML a flat list
// is one call and a list of lists is one call per inner list.
type OptionCalls [][]string

func (o *OptionCalls) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*o = OptionCalls{splitFlags(node.Value)}
		return nil
	case yaml.SequenceNode:
	default:
		return fmt.Errorf("%w: with_options must be a list (line %d)", ErrInvalidDeclaration, node.Line)
	}

	nested := len(node.Content) > 0 && node.Content[0].Kind == yaml.SequenceNode
	if !nested {
		var flags []string
		if err := node.Decode(&flags); err != nil {
			return err
		}
		*o = OptionCalls{splitAll(flags)}
		return nil
	}

	var calls [][]string
	if err := node.Decode(&calls); err != nil {
		return err
	}
	for i := range calls {
		calls[i] = splitAll(calls[i])
	}
	*o = calls
	return nil
}

func splitAll(flags []string) []string {
	var out []string
	for _, f := range flags {
		out = append(out, splitFlags(f)...)
	}
	return out
}

func splitFlags(s string) []string {
	var out []string
	for _, f := range strings.Split(s, "|") {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

// Declaration is one iteration declaration site.
type Declaration struct {
	Name       string               `yaml:"name"`
	Access     models.Accessibility `yaml:"access,omitempty"`
	Containers []models.Container   `yaml:"containers,omitempty"`
	TypeParams []string             `yaml:"type_params,omitempty"`
	// ExecuteCount is the number of Execute methods the front end found. Nil means one.
	ExecuteCount *int    `yaml:"execute_count,omitempty"`
	Params       []Param `yaml:"params"`

	WithAll          []string    `yaml:"with_all,omitempty"`
	WithAny          []string    `yaml:"with_any,omitempty"`
	WithNone         []string    `yaml:"with_none,omitempty"`
	WithDisabled     []string    `yaml:"with_disabled,omitempty"`
	WithAbsent       []string    `yaml:"with_absent,omitempty"`
	WithPresent      []string    `yaml:"with_present,omitempty"`
	WithChangeFilter []string    `yaml:"with_change_filter,omitempty"`
	WithOptions      OptionCalls `yaml:"with_options,omitempty"`
	// WithSharedComponentFilter names the shared component types the generated
	// Query entry point accepts filter values for.
	WithSharedComponentFilter []string `yaml:"with_shared_component_filter,omitempty"`
}

// Executes returns the number of Execute methods.
func (d Declaration) Executes() int {
	if d.ExecuteCount == nil {
		return 1
	}
	return *d.ExecuteCount
}

// EffectiveAccess is the least accessible level along the declaration's chain.
func (d Declaration) EffectiveAccess() models.Accessibility {
	return models.EffectiveAccess(d.Access, d.Containers)
}

// Canonical returns a stable encoding of the declaration.
func (d Declaration) Canonical() ([]byte, error) {
	return yaml.Marshal(d)
}

// File is one declaration feed.
type File struct {
	Package string `yaml:"package"`
	// Runtime is the import path of the ecs runtime package.
	Runtime string `yaml:"runtime,omitempty"`
	// Imports maps the aliases used in type GoType spellings to import paths.
	Imports      map[string]string `yaml:"imports,omitempty"`
	Types        []models.TypeInfo `yaml:"types"`
	Declarations []Declaration     `yaml:"declarations"`
}

// Load decodes and validates a declaration feed. Unknown keys are rejected.
func Load(r io.Reader) (*File, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil && err != io.EOF {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDeclaration, err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

func LoadFile(path string) (*File, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()

	f, err := Load(fh)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Validate checks the naming rules the generator relies on. Semantic checks are
// reported as diagnostics by the pipeline.
func (f *File) Validate() error {
	if !token.IsIdentifier(f.Package) {
		return fmt.Errorf("%w: package name %q", ErrInvalidDeclaration, f.Package)
	}
	for alias := range f.Imports {
		if !token.IsIdentifier(alias) {
			return fmt.Errorf("%w: import alias %q", ErrInvalidDeclaration, alias)
		}
	}
	for _, t := range f.Types {
		if !token.IsIdentifier(t.Name) {
			return fmt.Errorf("%w: type name %q", ErrInvalidDeclaration, t.Name)
		}
	}

	names := make(map[string]struct{}, len(f.Declarations))
	for _, d := range f.Declarations {
		if !token.IsExported(d.Name) {
			return fmt.Errorf("%w: declaration name %q must be an exported identifier", ErrInvalidDeclaration, d.Name)
		}
		if _, dup := names[d.Name]; dup {
			return fmt.Errorf("%w: duplicate declaration %q", ErrInvalidDeclaration, d.Name)
		}
		names[d.Name] = struct{}{}

		params := make(map[string]struct{}, len(d.Params))
		for _, p := range d.Params {
			if !token.IsIdentifier(p.Name) || token.IsKeyword(p.Name) {
				return fmt.Errorf("%w: %s: parameter name %q", ErrInvalidDeclaration, d.Name, p.Name)
			}
			// parameters become exported item fields
			field := ExportName(p.Name)
			if _, dup := params[field]; dup {
				return fmt.Errorf("%w: %s: duplicate parameter %q", ErrInvalidDeclaration, d.Name, p.Name)
			}
			params[field] = struct{}{}
		}
	}
	return nil
}

// ExportName upper-cases the first letter of name.
func ExportName(name string) string {
	r, size := utf8.DecodeRuneInString(name)
	return string(unicode.ToUpper(r)) + name[size:]
}

// Universe returns the type universe of the file.
func (f *File) Universe() *models.Universe {
	return models.NewUniverse(f.Types...)
}
