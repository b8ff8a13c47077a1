package graph

import "time"

// Episode is one ingested unit of raw text, timestamped and scoped to a
// partition. Raw content is stored so recall can return the original
// context alongside extracted knowledge.
type Episode struct {
	UUID              string    `json:"uuid"`
	Name              string    `json:"name"`
	Content           string    `json:"content"`
	Source            string    `json:"source"`
	SourceDescription string    `json:"source_description,omitempty"`
	GroupID           string    `json:"group_id"`
	SessionID         string    `json:"session_id,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	ValidAt           time.Time `json:"valid_at"`
}

// EntityNode is an extracted entity. Type names one of the structured
// memory templates; type-specific attributes are stored flat on the node.
type EntityNode struct {
	UUID          string                 `json:"uuid"`
	Name          string                 `json:"name"`
	GroupID       string                 `json:"group_id"`
	Type          string                 `json:"type"`
	Summary       string                 `json:"summary,omitempty"`
	Salience      *int                   `json:"salience,omitempty"`
	Attributes    map[string]interface{} `json:"attributes,omitempty"`
	NameEmbedding []float32              `json:"-"`
	CreatedAt     time.Time              `json:"created_at"`
}

// EntityEdge is a temporal fact edge between two entities. A nil InvalidAt
// means the fact is still considered current.
type EntityEdge struct {
	UUID           string     `json:"uuid"`
	Name           string     `json:"name"`
	Fact           string     `json:"fact"`
	GroupID        string     `json:"group_id"`
	SourceUUID     string     `json:"source_uuid"`
	TargetUUID     string     `json:"target_uuid"`
	SourceSalience *int       `json:"-"`
	TargetSalience *int       `json:"-"`
	FactEmbedding  []float32  `json:"-"`
	Episodes       []string   `json:"episodes,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	ValidAt        *time.Time `json:"valid_at,omitempty"`
	InvalidAt      *time.Time `json:"invalid_at,omitempty"`
}

// Community is a cluster summary node. This service only reads communities;
// building them happens out of band.
type Community struct {
	UUID    string `json:"uuid"`
	Name    string `json:"name"`
	Summary string `json:"summary,omitempty"`
	GroupID string `json:"group_id"`
}

// Salience returns the edge's endpoint salience when either side carries
// one, source side winning. Nil when neither endpoint is a typed memory.
func (e EntityEdge) Salience() *int {
	if e.SourceSalience != nil {
		return e.SourceSalience
	}
	return e.TargetSalience
}
