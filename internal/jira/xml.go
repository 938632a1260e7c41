package jira

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"
	"time"
)

// The XML issue view wraps a single issue in an RSS envelope.
type exportDoc struct {
	XMLName xml.Name    `xml:"rss"`
	Item    *exportItem `xml:"channel>item"`
}

type exportItem struct {
	Key         string             `xml:"key"`
	Summary     string             `xml:"summary"`
	Type        string             `xml:"type"`
	Priority    string             `xml:"priority"`
	Status      string             `xml:"status"`
	Resolution  string             `xml:"resolution"`
	Assignee    string             `xml:"assignee"`
	Reporter    string             `xml:"reporter"`
	Created     string             `xml:"created"`
	Updated     string             `xml:"updated"`
	Description string             `xml:"description"`
	Environment string             `xml:"environment"`
	Parent      string             `xml:"parent"`
	Labels      []string           `xml:"labels>label"`
	Components  []string           `xml:"component"`
	FixVersions []string           `xml:"fixVersion"`
	LinkTypes   []exportLinkType   `xml:"issuelinks>issuelinktype"`
	Subtasks    []exportSubtask    `xml:"subtasks>subtask"`
	Comments    []exportComment    `xml:"comments>comment"`
	Attachments []exportAttachment `xml:"attachments>attachment"`
}

type exportLinkType struct {
	Name    string           `xml:"name"`
	Inward  *exportLinkGroup `xml:"inwardlinks"`
	Outward *exportLinkGroup `xml:"outwardlinks"`
}

type exportLinkGroup struct {
	Description string   `xml:"description,attr"`
	Keys        []string `xml:"issuelink>issuekey"`
}

type exportSubtask struct {
	ID   string `xml:"id,attr"`
	Text string `xml:",chardata"`
}

type exportComment struct {
	Author  string `xml:"author,attr"`
	Created string `xml:"created,attr"`
	Body    string `xml:",chardata"`
}

type exportAttachment struct {
	Name string `xml:"name,attr"`
	Size int64  `xml:"size,attr"`
}

// ParseTicket decodes a JIRA XML issue export. HTML-bearing fields
// (description, environment, comment bodies) come out as Markdown and
// timestamps as ISO 8601.
func ParseTicket(r io.Reader) (*Ticket, error) {
	var doc exportDoc
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decoding issue XML: %w", err)
	}
	if doc.Item == nil {
		return nil, fmt.Errorf("no issue found in XML export")
	}
	item := doc.Item

	ticket := &Ticket{
		Key:         strings.TrimSpace(item.Key),
		Title:       strings.TrimSpace(item.Summary),
		Type:        strings.TrimSpace(item.Type),
		Status:      strings.TrimSpace(item.Status),
		Priority:    strings.TrimSpace(item.Priority),
		Assignee:    strings.TrimSpace(item.Assignee),
		Reporter:    strings.TrimSpace(item.Reporter),
		Created:     toISO8601(item.Created),
		Updated:     toISO8601(item.Updated),
		Resolution:  strings.TrimSpace(item.Resolution),
		Environment: HTMLToMarkdown(item.Environment),
		Description: HTMLToMarkdown(item.Description),
		Parent:      strings.TrimSpace(item.Parent),
		Labels:      trimAll(item.Labels),
		Components:  trimAll(item.Components),
		FixVersions: trimAll(item.FixVersions),
	}

	for _, lt := range item.LinkTypes {
		ticket.Related = append(ticket.Related, linksFromGroup(lt.Name, lt.Inward)...)
		ticket.Related = append(ticket.Related, linksFromGroup(lt.Name, lt.Outward)...)
	}

	for _, st := range item.Subtasks {
		key := strings.TrimSpace(st.Text)
		if key == "" {
			continue
		}
		ticket.Subtasks = append(ticket.Subtasks, Subtask{Key: key})
	}

	for _, a := range item.Attachments {
		name := strings.TrimSpace(a.Name)
		if name == "" {
			continue
		}
		ticket.Attachments = append(ticket.Attachments, Attachment{Name: name, Size: a.Size})
	}

	for _, c := range item.Comments {
		ticket.Comments = append(ticket.Comments, Comment{
			Author:  strings.TrimSpace(c.Author),
			Created: toISO8601(c.Created),
			Body:    HTMLToMarkdown(c.Body),
		})
	}

	return ticket, nil
}

func linksFromGroup(section string, group *exportLinkGroup) []RelatedIssue {
	if group == nil {
		return nil
	}
	relationship := strings.TrimSpace(group.Description)
	if relationship == "" {
		relationship = "relates to"
	}
	if section == "" {
		section = "Related Issues"
	}

	var related []RelatedIssue
	for _, key := range group.Keys {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		related = append(related, RelatedIssue{
			Key:          key,
			Relationship: relationship,
			Section:      section,
		})
	}
	return related
}

func trimAll(values []string) []string {
	var out []string
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// dateLayouts pairs the timestamp formats JIRA emits with the ISO 8601
// layout to render them in. Zone-less inputs stay zone-less.
var dateLayouts = []struct {
	parse  string
	output string
}{
	{"Mon, 2 Jan 2006 15:04:05 -0700", "2006-01-02T15:04:05-07:00"},
	{"2006-01-02T15:04:05.000-0700", "2006-01-02T15:04:05-07:00"},
	{"2006-01-02T15:04:05-0700", "2006-01-02T15:04:05-07:00"},
	{"2006-01-02 15:04:05", "2006-01-02T15:04:05"},
	{"2006-01-02T15:04:05", "2006-01-02T15:04:05"},
}

// toISO8601 converts a JIRA timestamp to ISO 8601. Unparseable values
// pass through unchanged rather than being dropped.
func toISO8601(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout.parse, value); err == nil {
			return t.Format(layout.output)
		}
	}
	return value
}
