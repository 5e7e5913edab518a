package domain

import "errors"

var (
	// ErrUnknownDepartment is returned when a department has no entry in the permission table.
	ErrUnknownDepartment = errors.New("unknown department")
	// ErrMalformedChunkFile is returned for chunk files that are not a JSON array of chunks.
	ErrMalformedChunkFile = errors.New("malformed chunk file")
	// ErrNotPrepared is returned by embedders used before Prepare.
	ErrNotPrepared = errors.New("embedder not prepared")
)

// AdminRole can see every department.
const AdminRole = "God_Tier_Admins"

// GeneralDepartment is visible to every known role.
const GeneralDepartment = "general"

// Chunk is a heading-delimited unit of document content.
// Empty heading fields mean the heading is absent.
type Chunk struct {
	Section       string
	Subsection    string
	Subsubsection string
	Content       []string
}

// Headings returns the non-empty heading fields, outermost first.
func (c Chunk) Headings() []string {
	out := make([]string, 0, 3)
	for _, h := range []string{c.Section, c.Subsection, c.Subsubsection} {
		if h != "" {
			out = append(out, h)
		}
	}
	return out
}

// Metadata keys written by the tagger.
const (
	MetaChunkID      = "chunk_id"
	MetaSource       = "source"
	MetaSection      = "section"
	MetaSubHierarchy = "sub_hierarchy"
	MetaDepartment   = "department"
	MetaAllowedRoles = "allowed_roles"
	RoleFlagPrefix   = "role_"
)

// Metadata is the flat key/value map stored next to every record.
// Values are strings or booleans; keys with nil values are never stored.
type Metadata map[string]any

// RoleFlag returns the metadata key marking a record visible to role.
func RoleFlag(role string) string { return RoleFlagPrefix + role }

// HasRole reports whether the record carries a truthy role flag for role.
func (m Metadata) HasRole(role string) bool {
	v, ok := m[RoleFlag(role)]
	if !ok {
		return false
	}
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return t == "true" || t == "True"
	case float64:
		return t != 0
	case int:
		return t != 0
	}
	return false
}

// String returns the string value at key or def when missing or empty.
func (m Metadata) String(key, def string) string {
	if s, ok := m[key].(string); ok && s != "" {
		return s
	}
	return def
}

func (m Metadata) Source() string       { return m.String(MetaSource, "unknown") }
func (m Metadata) Section() string      { return m.String(MetaSection, "N/A") }
func (m Metadata) SubHierarchy() string { return m.String(MetaSubHierarchy, "N/A") }
func (m Metadata) Department() string   { return m.String(MetaDepartment, "N/A") }

// Compact drops nil-valued keys.
func (m Metadata) Compact() Metadata {
	out := make(Metadata, len(m))
	for k, v := range m {
		if v == nil {
			continue
		}
		out[k] = v
	}
	return out
}

// TaggedRecord is a chunk ready to be stored in the oracle.
type TaggedRecord struct {
	ID       string
	Text     string
	Metadata Metadata
}

// Candidate is a single oracle hit. Smaller distance is more relevant.
type Candidate struct {
	ID       string
	Text     string
	Metadata Metadata
	Distance float64
}
