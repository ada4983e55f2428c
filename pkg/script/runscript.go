package script

import (
	"fmt"

	"github.com/fcmeyer/slurmhelper/pkg/jobdb"
	"github.com/fcmeyer/slurmhelper/pkg/tmpl"
)

// RunScripts renders per-job run scripts from a {field} template.
type RunScripts struct {
	t *tmpl.BraceTemplate
}

// NewRunScripts compiles the run_script template.
func NewRunScripts(template string) (*RunScripts, error) {
	if template == "" {
		return nil, fmt.Errorf("run_script is empty")
	}
	t, err := tmpl.CompileBrace(template)
	if err != nil {
		return nil, fmt.Errorf("run_script: %w", err)
	}
	return &RunScripts{t: t}, nil
}

// Fields lists the placeholders the template needs.
func (r *RunScripts) Fields() []string {
	return r.t.Fields()
}

// Render resolves the template against job. A field that neither the row,
// the global settings nor the derived ids provide is an error naming it.
func (r *RunScripts) Render(job jobdb.Descriptor) (string, error) {
	out, err := r.t.Apply(job.Fields())
	if err != nil {
		return "", fmt.Errorf("job %s: %w", job.JobID, err)
	}
	return out, nil
}

// Missing returns the template fields job does not provide.
func (r *RunScripts) Missing(job jobdb.Descriptor) []string {
	fields := job.Fields()
	var missing []string
	for _, f := range r.t.Fields() {
		if _, ok := fields[f]; !ok {
			missing = append(missing, f)
		}
	}
	return missing
}
