package jira

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// RenderTicket produces the Markdown ticket file body: a block of
// header lines followed by DESCRIPTION and COMMENTS sections. The
// header lines double as metadata for downstream ingestion.
func RenderTicket(t *Ticket) string {
	var b strings.Builder

	writeHeaderLine(&b, "JIRA TICKET", t.Key)
	writeHeaderLine(&b, "TITLE", t.Title)
	writeHeaderLine(&b, "TYPE", t.Type)
	writeHeaderLine(&b, "STATUS", t.Status)
	writeHeaderLine(&b, "PRIORITY", t.Priority)
	writeHeaderLine(&b, "ASSIGNEE", t.Assignee)
	writeHeaderLine(&b, "REPORTER", t.Reporter)
	writeHeaderLine(&b, "CREATED", t.Created)
	writeHeaderLine(&b, "UPDATED", t.Updated)
	writeHeaderLine(&b, "RESOLUTION", t.Resolution)
	writeHeaderLine(&b, "LABELS", strings.Join(t.Labels, ", "))
	writeHeaderLine(&b, "COMPONENTS", strings.Join(t.Components, ", "))
	writeHeaderLine(&b, "FIX VERSIONS", strings.Join(t.FixVersions, ", "))
	writeHeaderLine(&b, "PARENT", t.Parent)

	if t.Environment != "" {
		b.WriteString("\nENVIRONMENT:\n")
		b.WriteString(t.Environment)
		b.WriteString("\n")
	}

	b.WriteString("\nDESCRIPTION:\n")
	if t.Description != "" {
		b.WriteString(t.Description)
		b.WriteString("\n")
	}

	if len(t.Related) > 0 {
		b.WriteString("\nRELATED TICKETS:\n")
		for _, section := range relatedSections(t.Related) {
			fmt.Fprintf(&b, "\n### %s\n", section.name)
			for _, rel := range section.issues {
				fmt.Fprintf(&b, "- %s (%s)\n", rel.Key, rel.Relationship)
			}
		}
	}

	if len(t.Subtasks) > 0 {
		b.WriteString("\nSUBTASKS:\n")
		for _, st := range t.Subtasks {
			fmt.Fprintf(&b, "- %s\n", st.Key)
		}
	}

	if len(t.Attachments) > 0 {
		b.WriteString("\nATTACHMENTS:\n")
		for _, a := range t.Attachments {
			fmt.Fprintf(&b, "- %s (%d bytes)\n", a.Name, a.Size)
		}
	}

	b.WriteString("\nCOMMENTS:\n")
	for _, c := range t.Comments {
		fmt.Fprintf(&b, "\n### Comment by %s (%s)\n%s\n", c.Author, c.Created, c.Body)
	}

	return b.String()
}

func writeHeaderLine(b *strings.Builder, key, value string) {
	if value == "" {
		return
	}
	b.WriteString(key)
	b.WriteString(": ")
	b.WriteString(value)
	b.WriteString("\n")
}

type relatedSection struct {
	name   string
	issues []RelatedIssue
}

// relatedSections groups issue links by their link-type name, keeping
// the order sections first appear in.
func relatedSections(related []RelatedIssue) []relatedSection {
	var sections []relatedSection
	index := make(map[string]int)
	for _, rel := range related {
		name := rel.Section
		if name == "" {
			name = "Related Issues"
		}
		i, ok := index[name]
		if !ok {
			i = len(sections)
			index[name] = i
			sections = append(sections, relatedSection{name: name})
		}
		sections[i].issues = append(sections[i].issues, rel)
	}
	return sections
}

// WriteTicket renders the ticket into dir as <KEY>.txt, replacing any
// previous file for the same ticket. The write goes through a temp
// file so readers never observe a partial ticket.
func WriteTicket(dir string, t *Ticket) (string, error) {
	if t == nil || t.Key == "" {
		return "", fmt.Errorf("ticket key is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating output directory: %w", err)
	}

	path := filepath.Join(dir, t.Key+".txt")
	tmp, err := os.CreateTemp(dir, "."+t.Key+"-*.tmp")
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(RenderTicket(t)); err != nil {
		tmp.Close()
		return "", fmt.Errorf("writing ticket %s: %w", t.Key, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("replacing %s: %w", path, err)
	}
	return path, nil
}
