// Package entity declares the structured memory types the extraction
// pipeline classifies knowledge into. Each type carries a salience score
// (1-10) that drives progressive disclosure during retrieval.
package entity

// Type names known to the extractor.
const (
	TypeFact       = "Fact"
	TypeDecision   = "Decision"
	TypeFailure    = "Failure"
	TypeReflection = "Reflection"
)

// Template describes one memory type as a declarative extraction target:
// a name, a prompt-facing description, the type-specific attribute schema,
// and the salience assigned when the extractor does not set one.
type Template struct {
	Name            string
	Description     string
	Fields          map[string]interface{}
	DefaultSalience int
}

// Templates returns the four extraction targets in their fixed order.
// Decisions, failures and reflections outrank routine facts absent any
// other signal.
func Templates() []Template {
	return []Template{
		{
			Name:            TypeFact,
			Description:     "A discrete factual memory: preferences, attributes, observations.",
			Fields:          map[string]interface{}{},
			DefaultSalience: 5,
		},
		{
			Name:        TypeDecision,
			Description: "A decision with its reasoning trail, capturing why rather than just what.",
			Fields: map[string]interface{}{
				"reasoning": map[string]interface{}{
					"type":        "string",
					"description": "Why this decision was made.",
				},
				"alternatives": map[string]interface{}{
					"type":        "array",
					"items":       map[string]interface{}{"type": "string"},
					"description": "Other options that were considered.",
				},
				"outcome": map[string]interface{}{
					"type":        "string",
					"description": "Result: pending | success | failure | revised",
				},
			},
			DefaultSalience: 8,
		},
		{
			Name:        TypeFailure,
			Description: "Something that went wrong, recorded so the mistake is not repeated.",
			Fields: map[string]interface{}{
				"root_cause": map[string]interface{}{
					"type":        "string",
					"description": "What caused the failure.",
				},
				"prevention": map[string]interface{}{
					"type":        "string",
					"description": "How to prevent this in the future.",
				},
				"severity": map[string]interface{}{
					"type":        "integer",
					"minimum":     1,
					"maximum":     10,
					"description": "How bad it was, from minor inconvenience (1) to data loss (10).",
				},
			},
			DefaultSalience: 9,
		},
		{
			Name:        TypeReflection,
			Description: "A lesson learned or pattern recognized across experiences.",
			Fields: map[string]interface{}{
				"pattern": map[string]interface{}{
					"type":        "string",
					"description": "The recurring pattern or lesson.",
				},
			},
			DefaultSalience: 9,
		},
	}
}

// DefaultSalience returns the default salience for a type name. Types the
// extractor invents fall back to the routine-fact default.
func DefaultSalience(typeName string) int {
	for _, tpl := range Templates() {
		if tpl.Name == typeName {
			return tpl.DefaultSalience
		}
	}
	return 5
}

// ClampSalience bounds a salience score to the 1-10 scale.
func ClampSalience(v int) int {
	if v < 1 {
		return 1
	}
	if v > 10 {
		return 10
	}
	return v
}

// Normalize applies type defaults to extracted attributes and returns the
// effective salience. A nil extracted salience takes the type default; any
// provided value is clamped. Decision outcomes default to "pending" and
// Failure severity to 7 when the extractor left them empty. The input map
// is not mutated.
func Normalize(typeName string, extractedSalience *int, attrs map[string]interface{}) (int, map[string]interface{}) {
	normalized := make(map[string]interface{}, len(attrs))
	for k, v := range attrs {
		normalized[k] = v
	}

	salience := DefaultSalience(typeName)
	if extractedSalience != nil {
		salience = ClampSalience(*extractedSalience)
	}

	switch typeName {
	case TypeDecision:
		if s, _ := normalized["outcome"].(string); s == "" {
			normalized["outcome"] = "pending"
		}
	case TypeFailure:
		switch sev := normalized["severity"].(type) {
		case nil:
			normalized["severity"] = 7
		case float64:
			// JSON numbers decode as float64.
			normalized["severity"] = ClampSalience(int(sev))
		case int:
			normalized["severity"] = ClampSalience(sev)
		}
	}

	return salience, normalized
}
