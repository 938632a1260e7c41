package rag

import (
	"bufio"
	"strings"
)

// TicketHeader holds the metadata lines at the top of a rendered
// ticket file.
type TicketHeader struct {
	TicketID string
	Title    string
	Type     string
	Status   string
	Priority string
	Assignee string
	Reporter string
}

// headerPrefixes maps header line prefixes to field setters. Parsing
// stops at the first non-header, non-blank line so ticket bodies that
// happen to contain a "STATUS:" line are left alone.
var headerPrefixes = map[string]func(*TicketHeader, string){
	"JIRA TICKET:": func(h *TicketHeader, v string) { h.TicketID = v },
	"TITLE:":       func(h *TicketHeader, v string) { h.Title = v },
	"TYPE:":        func(h *TicketHeader, v string) { h.Type = v },
	"STATUS:":      func(h *TicketHeader, v string) { h.Status = v },
	"PRIORITY:":    func(h *TicketHeader, v string) { h.Priority = v },
	"ASSIGNEE:":    func(h *TicketHeader, v string) { h.Assignee = v },
	"REPORTER:":    func(h *TicketHeader, v string) { h.Reporter = v },
}

// ParseTicketHeader extracts the metadata header from a ticket file's
// content. Missing fields stay empty; the function never fails, since
// ingestion should tolerate hand-edited files.
func ParseTicketHeader(content string) TicketHeader {
	var header TicketHeader

	scanner := bufio.NewScanner(strings.NewReader(content))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "=") {
			continue
		}

		matched := false
		for prefix, set := range headerPrefixes {
			if strings.HasPrefix(line, prefix) {
				set(&header, strings.TrimSpace(strings.TrimPrefix(line, prefix)))
				matched = true
				break
			}
		}
		if !matched {
			break
		}
	}
	return header
}
