package jobspec

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/fulmenhq/gofulmen/schema"

	schemasassets "github.com/fcmeyer/slurmhelper/internal/assets/schemas"
)

// ErrValidationFailed is wrapped by every ValidationErrors.
var ErrValidationFailed = errors.New("job spec validation failed")

// ValidationError is one schema violation at a JSON pointer such as "/job_time".
type ValidationError struct {
	Path    string
	Message string
}

func (e ValidationError) Error() string {
	if e.Path == "" {
		return e.Message
	}
	return e.Path + ": " + e.Message
}

// ValidationErrors lists the violations of one spec document.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 1 {
		return e[0].Error()
	}
	msgs := make([]string, 0, len(e)+1)
	msgs = append(msgs, fmt.Sprintf("job spec has %d errors:", len(e)))
	for _, v := range e {
		msgs = append(msgs, v.Error())
	}
	return strings.Join(msgs, "\n  - ")
}

func (e ValidationErrors) Unwrap() error {
	return ErrValidationFailed
}

// specValidator compiles the embedded schema on first use.
var specValidator = sync.OnceValues(func() (*schema.Validator, error) {
	if len(schemasassets.JobSpecSchema) == 0 {
		return nil, errors.New("embedded job-spec schema is empty")
	}
	v, err := schema.NewValidator(schemasassets.JobSpecSchema)
	if err != nil {
		return nil, fmt.Errorf("compile job spec schema: %w", err)
	}
	return v, nil
})

// ValidateRaw checks a spec, already converted to JSON, against the embedded
// schema. Unknown properties are rejected.
func ValidateRaw(jsonData []byte) error {
	v, err := specValidator()
	if err != nil {
		return err
	}
	diags, err := v.ValidateJSON(jsonData)
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}

	var problems ValidationErrors
	for _, d := range diags {
		if d.Severity != schema.SeverityError {
			continue
		}
		problems = append(problems, ValidationError{Path: d.Pointer, Message: d.Message})
	}
	if problems == nil {
		return nil
	}
	return problems
}
