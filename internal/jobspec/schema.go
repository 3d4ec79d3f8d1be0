// SPDX-License-Identifier: MPL-2.0

package jobspec

import (
	"bytes"
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const schemaResource = "jobspec.schema.json"

//go:embed jobspec.schema.json
var schemaJSON string

var (
	compileOnce    sync.Once
	compiledSchema *jsonschema.Schema
	compileErr     error
)

// SchemaViolation describes a single structural problem in a job spec.
type SchemaViolation struct {
	// Path is the JSON pointer of the offending value (e.g., "/targets/1").
	Path    string
	Message string
}

// String formats the violation for display.
func (v SchemaViolation) String() string {
	if v.Path == "" {
		return v.Message
	}
	return v.Path + ": " + v.Message
}

func schema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(strings.NewReader(schemaJSON))
		if err != nil {
			compileErr = fmt.Errorf("internal error: parse job spec schema: %w", err)
			return
		}
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(schemaResource, doc); err != nil {
			compileErr = fmt.Errorf("internal error: add job spec schema: %w", err)
			return
		}
		compiledSchema, compileErr = compiler.Compile(schemaResource)
	})
	return compiledSchema, compileErr
}

// validateSchema checks the canonical document against the embedded schema.
// Only field types are checked here; enumerated values are resolved by Parse
// so their errors can name the accepted alternatives.
func validateSchema(doc []byte) error {
	sch, err := schema()
	if err != nil {
		return err
	}

	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(doc))
	if err != nil {
		return fmt.Errorf("decode job spec: %w", err)
	}

	if err := sch.Validate(inst); err != nil {
		verr, ok := err.(*jsonschema.ValidationError)
		if !ok {
			return err
		}
		return &InvalidJobSpecError{Violations: collectViolations(verr)}
	}
	return nil
}

// collectViolations flattens the validation error tree into leaf violations.
func collectViolations(verr *jsonschema.ValidationError) []SchemaViolation {
	return appendViolations(nil, verr, message.NewPrinter(language.English))
}

func appendViolations(out []SchemaViolation, verr *jsonschema.ValidationError, p *message.Printer) []SchemaViolation {
	if len(verr.Causes) == 0 {
		return append(out, SchemaViolation{
			Path:    instancePointer(verr.InstanceLocation),
			Message: verr.ErrorKind.LocalizedString(p),
		})
	}
	for _, cause := range verr.Causes {
		out = appendViolations(out, cause, p)
	}
	return out
}

func instancePointer(location []string) string {
	if len(location) == 0 {
		return ""
	}
	return "/" + strings.Join(location, "/")
}
