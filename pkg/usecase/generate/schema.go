package generate

import (
	"github.com/google/jsonschema-go/jsonschema"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/genai"
)

var (
	minChoices = 2
	minIndex   = 0.0
)

// quizContentSchema describes the content of a quiz item
var quizContentSchema = &jsonschema.Schema{
	Type:     "object",
	Required: []string{"question", "choices", "answerIndex"},
	Properties: map[string]*jsonschema.Schema{
		"question": {Type: "string", Description: "Question shown to the learner"},
		"choices": {
			Type:        "array",
			Description: "Answer choices in display order",
			MinItems:    &minChoices,
			Items:       &jsonschema.Schema{Type: "string"},
		},
		"answerIndex": {
			Type:        "number",
			Description: "Zero-based index of the correct choice",
			Minimum:     &minIndex,
		},
	},
}

// itemListSchema describes the reply as a whole
var itemListSchema = &jsonschema.Schema{
	Type: "array",
	Items: &jsonschema.Schema{
		Type:     "object",
		Required: []string{"type", "difficulty", "content"},
		Properties: map[string]*jsonschema.Schema{
			"type": {
				Type: "string",
				Enum: []any{"flashcard", "quiz", "exercise", "cloze"},
			},
			"difficulty": {
				Type: "string",
				Enum: []any{"easy", "medium", "hard"},
			},
			"content": {
				Type:        "object",
				Description: "Item body; quiz items carry question, choices and answerIndex",
				Properties: map[string]*jsonschema.Schema{
					"front":       {Type: "string"},
					"back":        {Type: "string"},
					"question":    {Type: "string"},
					"choices":     {Type: "array", Items: &jsonschema.Schema{Type: "string"}},
					"answerIndex": {Type: "integer"},
					"prompt":      {Type: "string"},
					"solution":    {Type: "string"},
					"text":        {Type: "string"},
					"answer":      {Type: "string"},
				},
			},
		},
	},
}

// convertJSONSchemaToGenai converts JSON Schema to Gemini genai.Schema
func convertJSONSchemaToGenai(schema *jsonschema.Schema) (*genai.Schema, error) {
	if schema == nil {
		return nil, nil
	}

	genaiSchema := &genai.Schema{
		Description: schema.Description,
		Required:    schema.Required,
	}

	switch schema.Type {
	case "object":
		genaiSchema.Type = genai.TypeObject
	case "string":
		genaiSchema.Type = genai.TypeString
	case "number":
		genaiSchema.Type = genai.TypeNumber
	case "integer":
		genaiSchema.Type = genai.TypeInteger
	case "boolean":
		genaiSchema.Type = genai.TypeBoolean
	case "array":
		genaiSchema.Type = genai.TypeArray
	default:
		if schema.Type != "" {
			return nil, goerr.New("unsupported schema type", goerr.V("type", schema.Type))
		}
	}

	for _, v := range schema.Enum {
		if s, ok := v.(string); ok {
			genaiSchema.Enum = append(genaiSchema.Enum, s)
		}
	}

	if len(schema.Properties) > 0 {
		genaiSchema.Properties = make(map[string]*genai.Schema, len(schema.Properties))
		for name, propSchema := range schema.Properties {
			converted, err := convertJSONSchemaToGenai(propSchema)
			if err != nil {
				return nil, goerr.Wrap(err, "failed to convert property schema", goerr.V("property", name))
			}
			genaiSchema.Properties[name] = converted
		}
	}

	if schema.Items != nil {
		converted, err := convertJSONSchemaToGenai(schema.Items)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to convert items schema")
		}
		genaiSchema.Items = converted
	}

	return genaiSchema, nil
}
