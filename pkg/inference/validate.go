package inference

import (
	"fmt"
	"path/filepath"
	"slices"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/fcmeyer/slurmhelper/pkg/jobdb"
	"github.com/fcmeyer/slurmhelper/pkg/tmpl"
)

// OutputRule locates a job's expected outputs: a glob (Expr) evaluated in
// the directory Root/Subject... . All parts are {field} templates.
type OutputRule struct {
	Root    string
	Subject []string
	Expr    string
}

// OutputValidator checks that succeeded jobs actually produced output.
type OutputValidator struct {
	root    *tmpl.BraceTemplate
	subject []*tmpl.BraceTemplate
	expr    *tmpl.BraceTemplate
}

// NewOutputValidator compiles rule.
func NewOutputValidator(rule OutputRule) (*OutputValidator, error) {
	if rule.Expr == "" {
		return nil, fmt.Errorf("output_path_subject_expr is required for output validation")
	}
	v := &OutputValidator{}
	var err error
	if v.root, err = tmpl.CompileBrace(rule.Root); err != nil {
		return nil, fmt.Errorf("output_path: %w", err)
	}
	for i, s := range rule.Subject {
		t, err := tmpl.CompileBrace(s)
		if err != nil {
			return nil, fmt.Errorf("output_path_subject[%d]: %w", i, err)
		}
		v.subject = append(v.subject, t)
	}
	if v.expr, err = tmpl.CompileBrace(rule.Expr); err != nil {
		return nil, fmt.Errorf("output_path_subject_expr: %w", err)
	}
	return v, nil
}

// Pattern resolves the output glob for job.
func (v *OutputValidator) Pattern(job jobdb.Descriptor) (string, error) {
	fields := job.Fields()
	root, err := v.root.Apply(fields)
	if err != nil {
		return "", err
	}
	parts := []string{root}
	for _, s := range v.subject {
		p, err := s.Apply(fields)
		if err != nil {
			return "", err
		}
		parts = append(parts, p)
	}
	expr, err := v.expr.Apply(fields)
	if err != nil {
		return "", err
	}
	parts = append(parts, expr)
	return filepath.Join(parts...), nil
}

// Apply sets Valid on each outcome: a job is valid when it succeeded and its
// output glob matches at least one file. outcomes and jobs must be parallel.
func (v *OutputValidator) Apply(jobs []jobdb.Descriptor, outcomes []Outcome) error {
	if len(jobs) != len(outcomes) {
		return fmt.Errorf("output validation: %d jobs but %d outcomes", len(jobs), len(outcomes))
	}
	for i, job := range jobs {
		pattern, err := v.Pattern(job)
		if err != nil {
			return fmt.Errorf("job %s: %w", job.JobID, err)
		}
		matches, err := doublestar.FilepathGlob(pattern)
		if err != nil {
			return fmt.Errorf("job %s: bad output pattern %q: %w", job.JobID, pattern, err)
		}
		valid := outcomes[i].Succeeded && len(matches) > 0
		outcomes[i].Valid = &valid
	}
	return nil
}

// PartitionValidity returns the order ids of validated outcomes whose
// Valid flag is true and false respectively, each sorted ascending.
func PartitionValidity(outcomes []Outcome) (valid, invalid []int64) {
	for _, o := range outcomes {
		if o.Valid == nil {
			continue
		}
		if *o.Valid {
			valid = append(valid, o.OrderID)
		} else {
			invalid = append(invalid, o.OrderID)
		}
	}
	slices.Sort(valid)
	slices.Sort(invalid)
	return valid, invalid
}
