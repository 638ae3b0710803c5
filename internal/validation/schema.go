// Package validation checks study documents and comparison payloads against
// embedded JSON Schemas before they are decoded.
package validation

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gopkg.in/yaml.v3"
)

//go:embed schemas/study.schema.json
var studySchemaJSON string

//go:embed schemas/comparisons.schema.json
var comparisonsSchemaJSON string

var defaultPrinter = message.NewPrinter(language.English)

var (
	studySchema       *jsonschema.Schema
	comparisonsSchema *jsonschema.Schema
)

func init() {
	studySchema = mustCompileSchema(studySchemaJSON, "study.schema.json")
	comparisonsSchema = mustCompileSchema(comparisonsSchemaJSON, "comparisons.schema.json")
}

func mustCompileSchema(raw string, name string) *jsonschema.Schema {
	var schemaDoc any
	if err := json.Unmarshal([]byte(raw), &schemaDoc); err != nil {
		panic(fmt.Sprintf("failed to parse embedded %s: %v", name, err))
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, schemaDoc); err != nil {
		panic(fmt.Sprintf("failed to add %s resource: %v", name, err))
	}

	sch, err := compiler.Compile(name)
	if err != nil {
		panic(fmt.Sprintf("failed to compile %s: %v", name, err))
	}
	return sch
}

// ParseStudy parses a YAML or JSON study document and validates it. The
// generic document is returned for decoding when there are no errors.
func ParseStudy(data []byte) (any, []string) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, []string{fmt.Sprintf("YAML parse error: %v", err)}
	}
	doc = normalize(doc)
	if errs := validateAgainstSchema(studySchema, doc); len(errs) > 0 {
		return nil, errs
	}
	return doc, nil
}

// ValidateComparisons validates a decoded JSON comparison upsert body.
func ValidateComparisons(doc any) []string {
	return validateAgainstSchema(comparisonsSchema, doc)
}

// ValidateComparisonsBytes decodes and validates a JSON comparison upsert body.
func ValidateComparisonsBytes(data []byte) []string {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return []string{fmt.Sprintf("JSON parse error: %v", err)}
	}
	return ValidateComparisons(doc)
}

func validateAgainstSchema(schema *jsonschema.Schema, instance any) []string {
	err := schema.Validate(instance)
	if err == nil {
		return nil
	}
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return []string{fmt.Sprintf("schema: %v", err)}
	}
	var errs []string
	collectSchemaErrors(ve, &errs)
	return errs
}

func collectSchemaErrors(ve *jsonschema.ValidationError, errs *[]string) {
	if len(ve.Causes) == 0 {
		loc := "/"
		if len(ve.InstanceLocation) > 0 {
			loc = "/" + strings.Join(ve.InstanceLocation, "/")
		}
		*errs = append(*errs, fmt.Sprintf("%s: %s", loc, ve.ErrorKind.LocalizedString(defaultPrinter)))
		return
	}
	for _, c := range ve.Causes {
		collectSchemaErrors(c, errs)
	}
}

// normalize rewrites yaml.v3 output into JSON-compatible values: maps with
// non-string keys are stringified so the validator can walk them.
func normalize(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, v2 := range val {
			out[k] = normalize(v2)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, v2 := range val {
			out[fmt.Sprint(k)] = normalize(v2)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, v2 := range val {
			out[i] = normalize(v2)
		}
		return out
	default:
		return val
	}
}
