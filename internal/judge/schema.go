package judge

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// The verdict schema is strict: fixed fields, fixed enumerations, no
// additional properties. Anything the judging capability returns that does
// not conform routes the adjudication onto the fallback path.
const verdictSchema = `{
	"type": "object",
	"properties": {
		"agreement_reached": {"type": "boolean"},
		"agreed_terms": {
			"oneOf": [
				{
					"type": "object",
					"properties": {"price": {"type": "number"}},
					"required": ["price"],
					"additionalProperties": false
				},
				{"type": "null"}
			]
		},
		"winner": {"type": "string", "enum": ["A", "B", "Both", "Neither"]},
		"rationale": {"type": "string"},
		"satisfaction_a": {"type": "string", "enum": ["high", "medium", "low"]},
		"satisfaction_b": {"type": "string", "enum": ["high", "medium", "low"]}
	},
	"required": ["agreement_reached", "agreed_terms", "winner", "rationale", "satisfaction_a", "satisfaction_b"],
	"additionalProperties": false
}`

const quickSchema = `{
	"type": "object",
	"properties": {
		"agreement_reached": {"type": "boolean"},
		"agreed_price": {"type": ["number", "null"]},
		"agent_a_offer": {"type": ["number", "null"]},
		"agent_b_offer": {"type": ["number", "null"]},
		"explanation": {"type": "string"}
	},
	"required": ["agreement_reached", "agreed_price", "agent_a_offer", "agent_b_offer", "explanation"],
	"additionalProperties": false
}`

var (
	verdictSchemaLoader = gojsonschema.NewStringLoader(verdictSchema)
	quickSchemaLoader   = gojsonschema.NewStringLoader(quickSchema)
)

// validateSchema checks a raw JSON document against a schema loader and
// returns a descriptive error on the first violation.
func validateSchema(schema gojsonschema.JSONLoader, raw string) error {
	result, err := gojsonschema.Validate(schema, gojsonschema.NewStringLoader(raw))
	if err != nil {
		return fmt.Errorf("validate: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("schema violation: %s", strings.Join(msgs, "; "))
	}
	return nil
}

// stripFences removes a markdown code fence if the model wrapped its JSON in
// one despite instructions.
func stripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
