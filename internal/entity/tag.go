package entity

type TagType string

const (
	TagAuthor TagType = "AUTHOR"
	TagGenre  TagType = "GENRE"
)

var TagTypes = []TagType{TagAuthor, TagGenre}

func (t TagType) Valid() bool {
	for _, tagType := range TagTypes {
		if t == tagType {
			return true
		}
	}
	return false
}

// Tag is a shared (type, name) label. Tags live in a global registry and are
// attached to books many-to-many; (type, name) is unique.
type Tag struct {
	ID   string  `json:"-"`
	Type TagType `json:"type"`
	Name string  `json:"name"`
}

// Same reports whether two tags carry the same (type, name) key.
func (t Tag) Same(other Tag) bool {
	return t.Type == other.Type && t.Name == other.Name
}
