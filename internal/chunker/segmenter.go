package chunker

import (
	"os"
	"strings"
	"unicode"

	"rolerag/internal/domain"
)

// State is the position of the segmenter inside the heading hierarchy.
type State int

const (
	NoSection State = iota
	InSection
	InSubsection
	InSubsubsection
)

func (s State) String() string {
	switch s {
	case NoSection:
		return "NoSection"
	case InSection:
		return "InSection"
	case InSubsection:
		return "InSubsection"
	case InSubsubsection:
		return "InSubsubsection"
	}
	return "unknown"
}

// Segmenter splits loosely structured markdown into heading-labeled chunks.
// A Segmenter is stateless between calls; each Segment call runs its own machine.
type Segmenter struct{}

func NewSegmenter() *Segmenter { return &Segmenter{} }

// Segment parses text into chunks in document order.
func (s *Segmenter) Segment(text string) []domain.Chunk {
	lines := splitLines(text)
	m := &machine{}
	for i, line := range lines {
		next, hasNext := "", false
		if i+1 < len(lines) {
			next, hasNext = lines[i+1], true
		}
		m.feed(line, next, hasNext)
	}
	m.flush()
	return m.out
}

// SegmentFile reads a markdown file and segments it.
func (s *Segmenter) SegmentFile(path string) ([]domain.Chunk, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return s.Segment(string(data)), nil
}

// machine holds the hierarchy fields and the pending content buffer.
type machine struct {
	state         State
	section       string
	subsection    string
	subsubsection string
	buf           []string
	out           []domain.Chunk
}

func (m *machine) feed(line, next string, hasNext bool) {
	if title, ok := sectionHeading(line); ok {
		m.enterSection(title)
		return
	}
	if hasNext {
		if title, ok := colonHeading(line, next); ok {
			m.enterSubsection(title)
			return
		}
	}
	if title, ok := prefixHeading(line, "## "); ok {
		m.enterSubsection(title)
		return
	}
	if title, ok := prefixHeading(line, "### "); ok {
		m.enterSubsubsection(title)
		return
	}
	// Content before the first section heading is never kept.
	if m.state == NoSection {
		return
	}
	content := strings.TrimRightFunc(line, unicode.IsSpace)
	if isSeparator(content) {
		return
	}
	m.buf = append(m.buf, content)
}

func (m *machine) enterSection(title string) {
	m.flush()
	m.section = title
	m.subsection = ""
	m.subsubsection = ""
	m.state = InSection
}

func (m *machine) enterSubsection(title string) {
	m.flush()
	m.subsection = title
	m.subsubsection = ""
	if m.state != NoSection {
		m.state = InSubsection
	}
}

func (m *machine) enterSubsubsection(title string) {
	m.flush()
	m.subsubsection = title
	if m.state != NoSection {
		m.state = InSubsubsection
	}
}

func (m *machine) flush() {
	defer func() { m.buf = nil }()
	if m.state == NoSection || m.section == "" {
		return
	}
	kept := make([]string, 0, len(m.buf))
	for _, ln := range m.buf {
		if !isSeparator(ln) {
			kept = append(kept, ln)
		}
	}
	if len(kept) == 0 {
		return
	}
	m.out = append(m.out, domain.Chunk{
		Section:       m.section,
		Subsection:    m.subsection,
		Subsubsection: m.subsubsection,
		Content:       kept,
	})
}

// splitLines splits like a line reader: terminators stay attached to their
// line and a trailing terminator does not produce an extra empty line.
func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	lines := strings.SplitAfter(text, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

func sectionHeading(line string) (string, bool) {
	return prefixHeading(line, "# ")
}

func prefixHeading(line, prefix string) (string, bool) {
	s := strings.TrimSpace(line)
	if !strings.HasPrefix(s, prefix) {
		return "", false
	}
	title := s[len(prefix):]
	return title, title != ""
}

// colonHeading matches "Title:" followed by a dashed underline.
func colonHeading(line, next string) (string, bool) {
	s := strings.TrimRightFunc(line, unicode.IsSpace)
	if !strings.HasSuffix(s, ":") || !strings.HasPrefix(strings.TrimSpace(next), "---") {
		return "", false
	}
	title := strings.TrimSpace(strings.TrimSuffix(s, ":"))
	return title, title != ""
}

const separatorRunes = "-_=*—─"

func isSeparator(line string) bool {
	s := strings.TrimSpace(line)
	if len([]rune(s)) < 3 {
		return false
	}
	for _, r := range s {
		if !strings.ContainsRune(separatorRunes, r) {
			return false
		}
	}
	return true
}
