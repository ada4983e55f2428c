// Package schemasassets provides embedded JSON schemas for standalone binary behavior.
//
// Schemas are embedded at compile time so spec validation works regardless of
// the working directory or installation location.
package schemasassets

import _ "embed"

// JobSpecSchema is the embedded job-spec JSON schema.
//
//go:embed job-spec.schema.json
var JobSpecSchema []byte
