package graph

// FileKind distinguishes physical containers from the serialized units inside them
type FileKind string

const (
	FileKindContainer      FileKind = "container"
	FileKindSerializedFile FileKind = "serialized_file"
)

// File represents a container on disk or one serialized unit inside it
type File struct {
	ID       int64    `json:"id" yaml:"id"`
	Path     string   `json:"path" yaml:"path"`
	Kind     FileKind `json:"kind" yaml:"kind"`
	ParentID int64    `json:"parent_id,omitempty" yaml:"parent_id,omitempty"` // 所属容器, 0 表示无
	Size     int64    `json:"size" yaml:"size"`
	CRC32    *uint32  `json:"crc32,omitempty" yaml:"crc32,omitempty"` // 仅在启用完整性校验时计算
}

// Object is a single addressable asset instance. Type is an open-ended
// Unity class name such as "Texture2D"; no per-type modelling is done.
type Object struct {
	ID     int64  `json:"id" yaml:"id"`
	FileID int64  `json:"file_id" yaml:"file_id"`
	PathID int64  `json:"path_id" yaml:"path_id"` // 序列化文件内的本地 ID
	Type   string `json:"type" yaml:"type"`
	Name   string `json:"name,omitempty" yaml:"name,omitempty"`
	Size   int64  `json:"size" yaml:"size"`
}

// Label renders the object as `[id] Type "name"` for reports.
func (o *Object) Label() string {
	if o == nil {
		return "<nil>"
	}
	if o.Name == "" {
		return "[" + itoa(o.ID) + "] " + o.Type
	}
	return "[" + itoa(o.ID) + "] " + o.Type + " \"" + o.Name + "\""
}
