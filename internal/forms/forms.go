// Package forms describes the HTML forms of the librarian UI as explicit
// field schemas: each field declares its kind, so integer fields are parsed
// as integers because the schema says so, not because of their name.
package forms

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/librarydesk/librarian/internal/validation"
)

// Kind is the input type of a field.
type Kind string

// Field kinds.
const (
	KindText     Kind = "text"
	KindTextarea Kind = "textarea"
	KindInt      Kind = "number"
	KindURL      Kind = "url"
	KindEmail    Kind = "email"
	KindPassword Kind = "password"
)

// Field is one form input.
type Field struct {
	Name        string
	Label       string
	Kind        Kind
	Required    bool
	Placeholder string
	// Min is the lower bound of an int field, if any. It is both rendered
	// and checked.
	Min *int
	// Rules are extra validator tags checked on non-blank submissions.
	Rules string
	// MaxRef names another int field whose current value is rendered as
	// this field's max attribute. It is advisory and never checked on submit.
	MaxRef string
	// Default returns the initial value. Nil means empty.
	Default func(now time.Time) string
}

// Schema is an ordered list of fields.
type Schema struct {
	Name   string
	Fields []Field
}

// Field returns the named field.
func (s Schema) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Values holds raw submitted strings keyed by field name.
type Values map[string]string

// Errors holds per-field messages keyed by field name.
type Errors map[string]string

// Defaults returns the initial values of every field.
func (s Schema) Defaults(now time.Time) Values {
	v := make(Values, len(s.Fields))
	for _, f := range s.Fields {
		if f.Default != nil {
			v[f.Name] = f.Default(now)
		} else {
			v[f.Name] = ""
		}
	}
	return v
}

// Parse reads the schema's fields from a submitted form. Required fields
// must not be blank, int fields must parse as integers, and every
// non-blank value must pass the field's validator rules. The returned
// Values always hold what was submitted so the form can be redisplayed.
func (s Schema) Parse(form url.Values) (Values, Errors) {
	values := make(Values, len(s.Fields))
	var errs Errors

	for _, f := range s.Fields {
		raw := form.Get(f.Name)
		values[f.Name] = raw
		trimmed := strings.TrimSpace(raw)

		msg := ""
		switch {
		case trimmed == "":
			if f.Required {
				msg = "is required"
			}
		case f.Kind == KindInt:
			n, err := strconv.Atoi(trimmed)
			if err != nil {
				msg = "must be a whole number"
				break
			}
			values[f.Name] = strconv.Itoa(n)
			msg = check(n, f.intRules())
		default:
			msg = check(trimmed, f.Rules)
		}

		if msg != "" {
			if errs == nil {
				errs = make(Errors)
			}
			errs[f.Name] = f.Label + " " + msg
		}
	}

	return values, errs
}

var validate = validation.New()

func check(value any, rules string) string {
	if rules == "" {
		return ""
	}
	if msg, ok := validate.Var(value, rules); !ok {
		return msg
	}
	return ""
}

func (f Field) intRules() string {
	if f.Min == nil {
		return f.Rules
	}
	minRule := "min=" + strconv.Itoa(*f.Min)
	if f.Rules == "" {
		return minRule
	}
	return minRule + "," + f.Rules
}

// Int returns the integer value of name, or 0.
func (v Values) Int(name string) int {
	n, _ := strconv.Atoi(strings.TrimSpace(v[name]))
	return n
}

// Text returns the trimmed value of name.
func (v Values) Text(name string) string {
	return strings.TrimSpace(v[name])
}

// Max returns the rendered max attribute of f, or "" when it has none.
func (v Values) Max(f Field) string {
	if f.MaxRef == "" {
		return ""
	}
	return v[f.MaxRef]
}

func intPtr(n int) *int { return &n }

func constant(s string) func(time.Time) string {
	return func(time.Time) string { return s }
}
