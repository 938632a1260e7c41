// Package jira fetches issues from a JIRA server's XML export and
// renders them as Markdown ticket files for the knowledge base.
//
// The XML issue view (/si/jira.issueviews:issue-xml/<KEY>/<KEY>.xml) is
// used instead of scraping issue pages: it is stable across JIRA skins
// and returns structured fields.
package jira

// Ticket is a fully extracted JIRA issue.
type Ticket struct {
	Key         string
	Title       string
	Type        string
	Status      string
	Priority    string
	Assignee    string
	Reporter    string
	Created     string // ISO 8601
	Updated     string // ISO 8601
	Resolution  string
	Environment string
	Description string
	Parent      string
	Labels      []string
	Components  []string
	FixVersions []string
	Related     []RelatedIssue
	Subtasks    []Subtask
	Comments    []Comment
	Attachments []Attachment
}

// RelatedIssue is one end of an issue link.
type RelatedIssue struct {
	Key          string
	Relationship string // e.g. "is cloned by", "relates to"
	Section      string // issuelinktype name, e.g. "Cloners"
}

// Subtask is a child issue reference. The XML export carries only the
// subtask key, not its summary.
type Subtask struct {
	Key string
}

// Comment is a single issue comment with its body already converted
// to Markdown.
type Comment struct {
	Author  string
	Created string // ISO 8601
	Body    string
}

// Attachment is a file attached to an issue. Only the metadata is
// captured; attachment bodies are never downloaded.
type Attachment struct {
	Name string
	Size int64 // bytes
}
