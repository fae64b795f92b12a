package pagecat

import (
	"bytes"
	"crypto/md5"
	_ "embed"
	"encoding/hex"
	"text/template"

	"github.com/pkg/errors"
)

const (
	// GeneratedMarker is the first line of every materialized page. An
	// existing destination that does not start with it is only replaced
	// when overwriting is forced.
	GeneratedMarker = "// Code generated by pagecat. DO NOT EDIT."

	// PageDelimLeft and PageDelimRight are the action delimiters of the page
	// template; the default braces collide with TSX expressions.
	PageDelimLeft  = "[["
	PageDelimRight = "]]"
)

//go:embed templates/page.tsx.tmpl
var pageContents string

// Template is a page template and the options it is executed with. It is
// parsed again on every Execute, so a Template is safe for concurrent use.
type Template struct {
	name     string
	contents string

	leftDelim  string
	rightDelim string

	// hexMD5 is the digest of contents; it prefixes the ID.
	hexMD5 string

	// errMissingKey fails execution on a missing map key instead of
	// printing the zero value.
	errMissingKey bool

	funcMapMerge template.FuncMap
}

// TemplateInput is used as input when creating the template.
type TemplateInput struct {
	// Name is optional and is reported in render errors.
	Name     string
	Contents string

	// ErrMissingKey makes indexing a map with an absent key an execution
	// error.
	ErrMissingKey bool

	// LeftDelim and RightDelim default to "{{" and "}}" when empty.
	LeftDelim  string
	RightDelim string

	// FuncMapMerge adds to or overrides the built-in template functions.
	FuncMapMerge template.FuncMap
}

// NewTemplate creates a new Template.
func NewTemplate(i TemplateInput) *Template {
	sum := md5.Sum([]byte(i.Contents))
	return &Template{
		name:          i.Name,
		contents:      i.Contents,
		leftDelim:     i.LeftDelim,
		rightDelim:    i.RightDelim,
		hexMD5:        hex.EncodeToString(sum[:]),
		errMissingKey: i.ErrMissingKey,
		funcMapMerge:  i.FuncMapMerge,
	}
}

// NewPageTemplate returns the built-in landing page template.
func NewPageTemplate(funcs template.FuncMap) *Template {
	return NewTemplate(TemplateInput{
		Name:          "page.tsx",
		Contents:      pageContents,
		ErrMissingKey: true,
		LeftDelim:     PageDelimLeft,
		RightDelim:    PageDelimRight,
		FuncMapMerge:  funcs,
	})
}

// ID is the content digest, followed by the name when there is one.
func (t *Template) ID() string {
	if t.name != "" {
		return t.hexMD5 + "_" + t.name
	}
	return t.hexMD5
}

// Name returns the name the template was created with.
func (t *Template) Name() string {
	return t.name
}

// Execute parses the template and executes it with data. Nothing is
// returned unless execution completes.
func (t *Template) Execute(data interface{}) ([]byte, error) {
	missingKey := "missingkey=zero"
	if t.errMissingKey {
		missingKey = "missingkey=error"
	}

	tmpl, err := template.New(t.ID()).
		Delims(t.leftDelim, t.rightDelim).
		Funcs(funcMap(&funcMapInput{funcMapMerge: t.funcMapMerge})).
		Option(missingKey).
		Parse(t.contents)
	if err != nil {
		return nil, errors.Wrap(err, "parse")
	}

	var b bytes.Buffer
	if err := tmpl.Execute(&b, data); err != nil {
		return nil, errors.Wrap(err, "execute")
	}

	return b.Bytes(), nil
}
