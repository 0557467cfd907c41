package documents

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// FieldError is one violated rule, addressed by its JSON path.
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
	Param string `json:"param,omitempty"`
}

func (e FieldError) String() string {
	if e.Param == "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Rule)
	}
	return fmt.Sprintf("%s: %s=%s", e.Field, e.Rule, e.Param)
}

// ValidationError lists every schema violation in a document.
type ValidationError struct {
	Document string       `json:"document"`
	Fields   []FieldError `json:"fields"`
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 1 {
		return fmt.Sprintf("%s failed validation: %s", e.Document, e.Fields[0])
	}
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.String()
	}
	return fmt.Sprintf("%s failed validation (%d errors): %s", e.Document, len(e.Fields), strings.Join(parts, "; "))
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func instance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// Validate checks a CV or CoverLetter against its schema and returns a
// *ValidationError naming every failing field.
func Validate(doc any) error {
	err := instance().Struct(doc)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validation failed: %w", err)
	}

	out := &ValidationError{Document: documentName(doc)}
	for _, fe := range verrs {
		out.Fields = append(out.Fields, FieldError{
			Field: trimRoot(fe.Namespace()),
			Rule:  fe.Tag(),
			Param: fe.Param(),
		})
	}
	return out
}

func documentName(doc any) string {
	switch doc.(type) {
	case CV, *CV:
		return "CV"
	case CoverLetter, *CoverLetter:
		return "cover letter"
	}
	return fmt.Sprintf("%T", doc)
}

// trimRoot turns "CV.experience[0].role" into "experience[0].role".
func trimRoot(ns string) string {
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}
