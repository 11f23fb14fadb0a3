package graph

import "strconv"

// Reference is a directed edge: Source's serialized data holds a pointer to Target.
// Target may name an object that has no row (dangling reference).
type Reference struct {
	Source       int64  `json:"source" yaml:"source"`
	Target       int64  `json:"target" yaml:"target"`
	PropertyPath string `json:"property_path,omitempty" yaml:"property_path,omitempty"` // 引用所在字段, 如 m_Materials.Array[0]
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}
