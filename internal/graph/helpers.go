package graph

import (
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Record and property-map accessors. The driver returns Cypher integers as
// int64, datetimes as time.Time, and lists as []interface{}.

func getString(record *neo4j.Record, key, defaultValue string) string {
	val, ok := record.Get(key)
	if !ok {
		return defaultValue
	}
	if str, ok := val.(string); ok {
		return str
	}
	return defaultValue
}

func getTime(record *neo4j.Record, key string, defaultValue time.Time) time.Time {
	val, ok := record.Get(key)
	if !ok {
		return defaultValue
	}
	if t, ok := val.(time.Time); ok {
		return t
	}
	return defaultValue
}

func getOptionalTime(record *neo4j.Record, key string) *time.Time {
	val, ok := record.Get(key)
	if !ok {
		return nil
	}
	if t, ok := val.(time.Time); ok {
		return &t
	}
	return nil
}

func getOptionalInt(record *neo4j.Record, key string) *int {
	val, ok := record.Get(key)
	if !ok {
		return nil
	}
	return intPointer(val)
}

func getStringSlice(record *neo4j.Record, key string) []string {
	val, ok := record.Get(key)
	if !ok {
		return nil
	}
	items, ok := val.([]interface{})
	if !ok {
		return nil
	}
	strs := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			strs = append(strs, s)
		}
	}
	return strs
}

func getFloat32Slice(record *neo4j.Record, key string) []float32 {
	val, ok := record.Get(key)
	if !ok {
		return nil
	}
	items, ok := val.([]interface{})
	if !ok {
		return nil
	}
	vec := make([]float32, 0, len(items))
	for _, item := range items {
		if f, ok := item.(float64); ok {
			vec = append(vec, float32(f))
		}
	}
	return vec
}

func getFloat32SliceFromMap(m map[string]interface{}, key string) []float32 {
	items, ok := m[key].([]interface{})
	if !ok {
		return nil
	}
	vec := make([]float32, 0, len(items))
	for _, item := range items {
		if f, ok := item.(float64); ok {
			vec = append(vec, float32(f))
		}
	}
	return vec
}

func getStringFromMap(m map[string]interface{}, key, defaultValue string) string {
	if str, ok := m[key].(string); ok {
		return str
	}
	return defaultValue
}

func getTimeFromMap(m map[string]interface{}, key string, defaultValue time.Time) time.Time {
	if t, ok := m[key].(time.Time); ok {
		return t
	}
	return defaultValue
}

func getOptionalIntFromMap(m map[string]interface{}, key string) *int {
	val, ok := m[key]
	if !ok {
		return nil
	}
	return intPointer(val)
}

func intPointer(val interface{}) *int {
	switch n := val.(type) {
	case int64:
		v := int(n)
		return &v
	case int:
		v := n
		return &v
	case float64:
		v := int(n)
		return &v
	}
	return nil
}

// float64Slice converts an embedding for storage: the driver serializes
// []float64 list properties but not []float32.
func float64Slice(vec []float32) []float64 {
	if vec == nil {
		return nil
	}
	out := make([]float64, len(vec))
	for i, v := range vec {
		out[i] = float64(v)
	}
	return out
}
