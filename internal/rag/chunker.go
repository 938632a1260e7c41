// Package rag implements the knowledge-base ingestion pipeline and the
// retrieval-augmented question answering engine on top of it.
package rag

import "strings"

// Chunking defaults, tuned for ticket text where a section rarely
// exceeds a few hundred words.
const (
	DefaultChunkSize    = 800
	DefaultChunkOverlap = 150
)

// ChunkText splits text into character-bounded chunks with overlap so
// sentences straddling a boundary appear in both neighbours. Chunk
// boundaries prefer whitespace near the limit to avoid cutting words.
func ChunkText(text string, size, overlap int) []string {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = DefaultChunkOverlap
		if overlap >= size {
			overlap = size / 4
		}
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	runes := []rune(text)
	if len(runes) <= size {
		return []string{text}
	}

	var chunks []string
	start := 0
	for start < len(runes) {
		end := start + size
		if end >= len(runes) {
			end = len(runes)
		} else {
			end = breakNearWhitespace(runes, start, end)
		}

		chunk := strings.TrimSpace(string(runes[start:end]))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		if end == len(runes) {
			break
		}
		// A whitespace break can pull end back close to (or before)
		// start+overlap; always move forward so large overlaps never
		// stall or walk backwards.
		if next := end - overlap; next > start {
			start = next
		} else {
			start = end
		}
	}
	return chunks
}

// breakNearWhitespace walks back from end looking for a whitespace
// boundary, bailing out after a short window so pathological inputs
// without spaces still chunk.
func breakNearWhitespace(runes []rune, start, end int) int {
	const window = 80
	for i := end; i > end-window && i > start+1; i-- {
		if isSpace(runes[i-1]) {
			return i
		}
	}
	return end
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\n' || r == '\t' || r == '\r'
}

// ChunkTicket splits a rendered ticket file into chunks aligned with
// its sections. The header block and each DESCRIPTION / COMMENTS /
// heading section become separate units, so a retrieved chunk carries
// a coherent piece of the ticket rather than an arbitrary slice.
// Sections longer than size fall back to ChunkText.
func ChunkTicket(content string, size, overlap int) []string {
	if size <= 0 {
		size = DefaultChunkSize
	}

	sections := splitSections(content)

	var chunks []string
	for _, section := range sections {
		section = strings.TrimSpace(section)
		if section == "" {
			continue
		}
		if len([]rune(section)) <= size {
			chunks = append(chunks, section)
			continue
		}
		chunks = append(chunks, ChunkText(section, size, overlap)...)
	}
	return chunks
}

// splitSections cuts the ticket text at section markers, keeping the
// marker line with the text that follows it.
func splitSections(content string) []string {
	lines := strings.Split(content, "\n")

	var (
		sections []string
		current  strings.Builder
	)
	flush := func() {
		if current.Len() > 0 {
			sections = append(sections, current.String())
			current.Reset()
		}
	}

	for _, line := range lines {
		if isSectionMarker(line) {
			flush()
		}
		current.WriteString(line)
		current.WriteByte('\n')
	}
	flush()
	return sections
}

func isSectionMarker(line string) bool {
	trimmed := strings.TrimSpace(line)
	switch {
	case strings.HasPrefix(trimmed, "DESCRIPTION:"),
		strings.HasPrefix(trimmed, "COMMENTS:"),
		strings.HasPrefix(trimmed, "### "),
		strings.HasPrefix(trimmed, "## "):
		return true
	}
	return false
}
