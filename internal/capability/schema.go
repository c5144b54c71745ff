package capability

import (
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const (
	capIntent    = "classify_intent"
	capExtract   = "extract"
	capCompare   = "compare"
	capRelated   = "find_related"
	capUpdate    = "resolve_update_target"
	capSummarize = "summarize"
)

var schemaSources = map[string]string{
	capIntent: `{
		"type": "object",
		"required": ["intent"],
		"properties": {"intent": {"type": "string"}}
	}`,
	capExtract: `{
		"type": "object",
		"required": ["title", "summary", "tag", "confidence"],
		"properties": {
			"title": {"type": "string"},
			"summary": {"type": "string"},
			"tag": {"type": "string"},
			"confidence": {"type": "integer", "minimum": 0, "maximum": 100},
			"reason": {"type": "string"}
		}
	}`,
	capCompare: `{
		"type": "object",
		"required": ["is_similar", "score", "matched_ordinal"],
		"properties": {
			"is_similar": {"type": "boolean"},
			"score": {"type": "integer", "minimum": 0, "maximum": 100},
			"matched_ordinal": {"type": "integer", "minimum": 0}
		}
	}`,
	capRelated: `{
		"type": "object",
		"required": ["related_decisions", "rationale"],
		"properties": {
			"related_decisions": {
				"type": "array",
				"items": {
					"type": "object",
					"required": ["ordinal", "title"],
					"properties": {
						"ordinal": {"type": "integer"},
						"title": {"type": "string"},
						"summary": {"type": "string"}
					}
				}
			},
			"rationale": {"type": "string"}
		}
	}`,
	capUpdate: `{
		"type": "object",
		"required": ["decision_id", "changes", "confidence"],
		"properties": {
			"decision_id": {"type": "string"},
			"changes": {
				"type": "object",
				"properties": {
					"title": {"type": "string"},
					"summary": {"type": "string"},
					"tag": {"type": "string"}
				},
				"additionalProperties": false
			},
			"confidence": {"type": "integer", "minimum": 0, "maximum": 100},
			"error": {"type": "string"}
		}
	}`,
	capSummarize: `{
		"type": "object",
		"required": ["overview", "open_points", "decisions_made", "next_steps", "confidence"],
		"properties": {
			"overview": {"type": "string"},
			"open_points": {"type": "array", "items": {"type": "string"}},
			"decisions_made": {"type": "array", "items": {"type": "string"}},
			"next_steps": {"type": "array", "items": {"type": "string"}},
			"confidence": {"type": "integer", "minimum": 0, "maximum": 100},
			"error": {"type": "string"}
		}
	}`,
}

type schemas struct {
	compiled map[string]*jsonschema.Schema
}

func compileSchemas() (*schemas, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020

	s := &schemas{compiled: make(map[string]*jsonschema.Schema, len(schemaSources))}
	for name, src := range schemaSources {
		url := fmt.Sprintf("https://decisiond.schemas.local/capability/%s.schema.json", name)
		if err := c.AddResource(url, strings.NewReader(src)); err != nil {
			return nil, fmt.Errorf("capability schema %s load failed: %w", name, err)
		}
		compiled, err := c.Compile(url)
		if err != nil {
			return nil, fmt.Errorf("capability schema %s compile failed: %w", name, err)
		}
		s.compiled[name] = compiled
	}
	return s, nil
}

func (s *schemas) validate(name string, doc any) error {
	schema, ok := s.compiled[name]
	if !ok {
		return fmt.Errorf("no schema for %s", name)
	}
	return schema.Validate(doc)
}
