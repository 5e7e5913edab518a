// Package tagger stamps segmented chunks with identity and role-visibility metadata.
package tagger

import (
	"fmt"
	"path/filepath"
	"strings"

	"rolerag/internal/domain"
	"rolerag/internal/roles"
)

const codeFence = "```"

// Tagger turns chunks into records ready for the oracle.
type Tagger struct {
	table *roles.Table
}

func New(table *roles.Table) *Tagger {
	if table == nil {
		table = roles.Default()
	}
	return &Tagger{table: table}
}

// Tag builds the record for the chunk at position index of sourceFile.
// It fails with domain.ErrUnknownDepartment when department is not in the table.
func (t *Tagger) Tag(chunk domain.Chunk, department, sourceFile string, index int) (domain.TaggedRecord, error) {
	allowed, err := t.table.MustAllowed(department)
	if err != nil {
		return domain.TaggedRecord{}, err
	}

	id := RecordID(department, sourceFile, index)
	meta := domain.Metadata{
		domain.MetaChunkID:      id,
		domain.MetaSource:       filepath.Base(sourceFile),
		domain.MetaDepartment:   department,
		domain.MetaAllowedRoles: strings.Join(allowed, ","),
	}
	if chunk.Section != "" {
		meta[domain.MetaSection] = chunk.Section
	}
	if sub := SubHierarchy(chunk); sub != "" {
		meta[domain.MetaSubHierarchy] = sub
	}
	for _, r := range allowed {
		meta[domain.RoleFlag(r)] = true
	}

	return domain.TaggedRecord{
		ID:       id,
		Text:     Text(chunk),
		Metadata: meta.Compact(),
	}, nil
}

// TagAll tags every chunk of one source file. The first failure aborts the file.
func (t *Tagger) TagAll(chunks []domain.Chunk, department, sourceFile string) ([]domain.TaggedRecord, error) {
	out := make([]domain.TaggedRecord, 0, len(chunks))
	for i, c := range chunks {
		rec, err := t.Tag(c, department, sourceFile, i)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// RecordID formats "{department}_{source without extension}_{index}".
func RecordID(department, sourceFile string, index int) string {
	base := filepath.Base(sourceFile)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return fmt.Sprintf("%s_%s_%d", department, stem, index)
}

// Text joins the cleaned content lines, falling back to the headings.
func Text(chunk domain.Chunk) string {
	clean := make([]string, 0, len(chunk.Content))
	for _, raw := range chunk.Content {
		s := strings.TrimSpace(raw)
		if s == "" || s == codeFence || strings.Contains(s, "---") {
			continue
		}
		clean = append(clean, s)
	}
	if len(clean) > 0 {
		return strings.Join(clean, " ")
	}
	return strings.Join(chunk.Headings(), " ")
}

// SubHierarchy joins subsection and subsubsection with " > " when both exist.
func SubHierarchy(chunk domain.Chunk) string {
	switch {
	case chunk.Subsection != "" && chunk.Subsubsection != "":
		return chunk.Subsection + " > " + chunk.Subsubsection
	case chunk.Subsection != "":
		return chunk.Subsection
	default:
		return chunk.Subsubsection
	}
}
