// Package diag collects the structured diagnostics raised while analysing one
// declaration site.
package diag

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

type Severity uint8

const (
	Warning Severity = iota
	Error
)

func (s Severity) String() string {
	if s == Error {
		return "error"
	}
	return "warning"
}

// Code identifies a diagnostic. Codes are grouped by stage: ECS00xx structural,
// ECS01xx parameter legality, ECS02xx query construction.
type Code string

const (
	// Structural
	MultipleExecute Code = "ECS0001"
	GenericDecl     Code = "ECS0002"
	UnknownType     Code = "ECS0003"
	MissingExecute  Code = "ECS0004"

	// Parameter legality
	RefOnWrapper           Code = "ECS0101"
	WrapperNeedsComponent  Code = "ECS0102"
	RefOnTag               Code = "ECS0103"
	UnwrappedBufferElement Code = "ECS0104"
	RefOnAspect            Code = "ECS0105"
	RefOnManaged           Code = "ECS0106"
	RefOnShared            Code = "ECS0107"
	InaccessibleType       Code = "ECS0108"
	DuplicateComponent     Code = "ECS0109"
	EnabledRefNeedsEnable  Code = "ECS0110"
	IndexNotInt            Code = "ECS0111"
	DuplicateIndexRole     Code = "ECS0112"
	RefOnEntity            Code = "ECS0113"
	BufferNeedsElement     Code = "ECS0114"

	// Query construction
	MutuallyExclusive     Code = "ECS0201"
	AbsentIterated        Code = "ECS0202"
	TooManyChangeFilters  Code = "ECS0203"
	TooManySharedFilters  Code = "ECS0204"
	MultipleWithOptions   Code = "ECS0205"
	UnknownModifierType   Code = "ECS0206"
	UnknownOption         Code = "ECS0207"
	SharedFilterNotShared Code = "ECS0208"
)

// Diagnostic is one finding about a declaration site.
type Diagnostic struct {
	Code     Code
	Severity Severity
	Site     string
	// Param names the offending parameter, empty for site-level findings.
	Param   string
	Message string
}

func (d Diagnostic) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s: %s", d.Severity, d.Code, d.Site)
	if d.Param != "" {
		fmt.Fprintf(&sb, " (%s)", d.Param)
	}
	sb.WriteString(": ")
	sb.WriteString(d.Message)
	return sb.String()
}

// List accumulates the diagnostics of one site. The zero value is ready to use.
type List struct {
	Site  string
	items []Diagnostic
}

func NewList(site string) *List {
	return &List{Site: site}
}

func (l *List) add(sev Severity, code Code, param, format string, args []any) {
	l.items = append(l.items, Diagnostic{
		Code:     code,
		Severity: sev,
		Site:     l.Site,
		Param:    param,
		Message:  fmt.Sprintf(format, args...),
	})
}

// Errorf records an error. param may be empty.
func (l *List) Errorf(code Code, param, format string, args ...any) {
	l.add(Error, code, param, format, args)
}

// Warnf records a warning. param may be empty.
func (l *List) Warnf(code Code, param, format string, args ...any) {
	l.add(Warning, code, param, format, args)
}

// Merge appends the diagnostics of other.
func (l *List) Merge(other *List) {
	if other != nil {
		l.items = append(l.items, other.items...)
	}
}

func (l *List) Len() int { return len(l.items) }

func (l *List) All() []Diagnostic { return l.items }

func (l *List) HasErrors() bool {
	for _, d := range l.items {
		if d.Severity == Error {
			return true
		}
	}
	return false
}

func (l *List) Errors() []Diagnostic { return l.filter(Error) }

func (l *List) Warnings() []Diagnostic { return l.filter(Warning) }

func (l *List) filter(sev Severity) []Diagnostic {
	var out []Diagnostic
	for _, d := range l.items {
		if d.Severity == sev {
			out = append(out, d)
		}
	}
	return out
}

// Has reports whether a diagnostic with code was recorded.
func (l *List) Has(code Code) bool {
	for _, d := range l.items {
		if d.Code == code {
			return true
		}
	}
	return false
}

// Err joins every error diagnostic, nil when there is none.
func (l *List) Err() error {
	var errs []error
	for _, d := range l.items {
		if d.Severity == Error {
			errs = append(errs, d)
		}
	}
	return errors.Join(errs...)
}

// Sort orders diagnostics by site, severity (errors first), code and parameter.
func Sort(ds []Diagnostic) {
	sort.SliceStable(ds, func(i, j int) bool {
		a, b := ds[i], ds[j]
		if a.Site != b.Site {
			return a.Site < b.Site
		}
		if a.Severity != b.Severity {
			return a.Severity > b.Severity
		}
		if a.Code != b.Code {
			return a.Code < b.Code
		}
		return a.Param < b.Param
	})
}
