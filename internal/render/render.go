// Package render substitutes placeholder variables into stored email
// templates and wraps the result in the branded HTML envelope.
package render

import (
	"bytes"
	_ "embed"
	"fmt"
	"html"
	"html/template"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DefaultBrand is the header and footer brand used when none is configured.
const DefaultBrand = "EduExamPortal"

//go:embed envelope.html.tmpl
var envelopeSource string

var envelope = template.Must(template.New("envelope").Parse(envelopeSource))

// Template is the stored text a render starts from.
type Template struct {
	Subject     string `json:"subject"`
	MainMessage string `json:"main_message"`
}

// Variables are the runtime values substituted into a template. Empty
// optional fields count as unset.
type Variables struct {
	FirstName       string `json:"firstName"`
	LastName        string `json:"lastName"`
	ExamTitle       string `json:"examTitle,omitempty"`
	InstitutionName string `json:"institutionName,omitempty"`
	ExpirationDate  string `json:"expirationDate"`
	InviteURL       string `json:"inviteUrl"`
	InvitedBy       string `json:"invitedBy,omitempty"`
	DepartmentName  string `json:"departmentName,omitempty"`
}

// Email is a finished message ready for a mailer.
type Email struct {
	Subject string `json:"subject"`
	HTML    string `json:"html"`
}

// Tokens lists every recognized placeholder. Order carries no meaning; the
// pattern built from it prefers the longest token at each position.
var Tokens = []string{
	"{{firstName}}",
	"{{lastName}}",
	"{{examTitle}}",
	"{{institutionName}}",
	"{{expirationDate}}",
	"{{inviteUrl}}",
	"{{invitedBy}}",
	"{{departmentName}}",
	"{{teacher_name}}",
	"{{invited_by}}",
	"{{institution_name}}",
	"{{department_name}}",
	"{firstName}",
	"{lastName}",
	"{examTitle}",
	"{institutionName}",
	"{expirationDate}",
	"{inviteUrl}",
	"{invitedBy}",
	"{departmentName}",
	"{teacherName}",
}

var tokenPattern = compileTokens(Tokens)

// compileTokens builds one alternation over tokens in leftmost-longest mode,
// so "{{firstName}}" wins over any shorter token starting at the same place
// regardless of where either sits in the list.
func compileTokens(tokens []string) *regexp.Regexp {
	quoted := make([]string, len(tokens))
	for i, tok := range tokens {
		quoted[i] = regexp.QuoteMeta(tok)
	}
	re := regexp.MustCompile(strings.Join(quoted, "|"))
	re.Longest()
	return re
}

// Renderer produces branded emails. The zero value is not usable; call New.
type Renderer struct {
	brand string
}

// New returns a Renderer that stamps brand into the envelope.
func New(brand string) *Renderer {
	if strings.TrimSpace(brand) == "" {
		brand = DefaultBrand
	}
	return &Renderer{brand: brand}
}

var std = New(DefaultBrand)

// Render renders t with vars using the default brand.
func Render(t Template, vars Variables) (Email, error) {
	return std.Render(t, vars)
}

// Render substitutes vars into t and wraps the body in the envelope.
// Unknown placeholders are left as literal text. Substituted values are
// HTML-escaped in the body; the subject is plain text and is not escaped.
func (r *Renderer) Render(t Template, vars Variables) (Email, error) {
	values := Replacements(vars)

	subject := Substitute(t.Subject, values, false)
	body := Substitute(t.MainMessage, values, true)

	var buf bytes.Buffer
	err := envelope.Execute(&buf, struct {
		Brand     string
		Body      template.HTML
		InviteURL string
	}{
		Brand:     r.brand,
		Body:      template.HTML(body),
		InviteURL: vars.InviteURL,
	})
	if err != nil {
		return Email{}, fmt.Errorf("failed to render envelope: %w", err)
	}
	return Email{Subject: subject, HTML: buf.String()}, nil
}

// Substitute replaces every recognized token in text using values. When
// escape is set, replacement values are HTML-escaped first.
func Substitute(text string, values map[string]string, escape bool) string {
	return tokenPattern.ReplaceAllStringFunc(text, func(tok string) string {
		v, ok := values[tok]
		if !ok {
			return tok
		}
		if escape {
			return html.EscapeString(v)
		}
		return v
	})
}

// Replacements builds the token to value table for vars. Single-brace tokens
// fall back to the empty string, double-brace tokens to a readable default.
func Replacements(vars Variables) map[string]string {
	first := TitleCase(vars.FirstName)
	last := TitleCase(vars.LastName)
	full := first + " " + last
	exam := TitleCase(vars.ExamTitle)

	return map[string]string{
		"{firstName}":       first,
		"{lastName}":        last,
		"{examTitle}":       exam,
		"{institutionName}": vars.InstitutionName,
		"{expirationDate}":  vars.ExpirationDate,
		"{inviteUrl}":       vars.InviteURL,
		"{invitedBy}":       vars.InvitedBy,
		"{departmentName}":  vars.DepartmentName,
		"{teacherName}":     full,

		"{{firstName}}":        first,
		"{{lastName}}":         last,
		"{{examTitle}}":        exam,
		"{{institutionName}}":  or(vars.InstitutionName, "institution_name"),
		"{{expirationDate}}":   vars.ExpirationDate,
		"{{inviteUrl}}":        vars.InviteURL,
		"{{invitedBy}}":        or(vars.InvitedBy, "invited_by"),
		"{{departmentName}}":   or(vars.DepartmentName, "department_name"),
		"{{teacher_name}}":     full,
		"{{invited_by}}":       or(vars.InvitedBy, "Admin"),
		"{{institution_name}}": or(vars.InstitutionName, "Our Institution"),
		"{{department_name}}":  or(vars.DepartmentName, "Not assigned"),
	}
}

func or(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

// TitleCase upper-cases the first letter of every space-separated word and
// lower-cases the rest, so "mARY  o'neil" becomes "Mary  O'neil".
func TitleCase(s string) string {
	if s == "" {
		return ""
	}
	// cases.Caser keeps state and must not be shared between goroutines.
	upper := cases.Upper(language.Und)
	lower := cases.Lower(language.Und)

	words := strings.Split(s, " ")
	for i, w := range words {
		if w == "" {
			continue
		}
		head, rest := splitFirstRune(w)
		words[i] = upper.String(head) + lower.String(rest)
	}
	return strings.Join(words, " ")
}

func splitFirstRune(s string) (string, string) {
	for i := range s {
		if i > 0 {
			return s[:i], s[i:]
		}
	}
	return s, ""
}
