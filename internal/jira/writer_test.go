package jira

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func demoTicket() *Ticket {
	return &Ticket{
		Key:         "DEMO-42",
		Title:       "Login page broken",
		Type:        "Bug",
		Status:      "In Progress",
		Priority:    "Critical",
		Assignee:    "John Doe",
		Reporter:    "Operations",
		Created:     "2025-06-19T15:01:03+07:00",
		Updated:     "2025-06-20T09:30:00+07:00",
		Resolution:  "Unresolved",
		Description: "The login page returns a **500 error** after deploy.",
		Labels:      []string{"auth", "regression"},
		Components:  []string{"Web"},
		Related: []RelatedIssue{
			{Key: "DEMO-50", Relationship: "is cloned by", Section: "Cloners"},
			{Key: "DEMO-12", Relationship: "relates to", Section: "Related Issues"},
		},
		Subtasks:    []Subtask{{Key: "DEMO-60"}},
		Attachments: []Attachment{{Name: "stacktrace.log", Size: 2048}},
		Comments:    []Comment{
			{Author: "jdoe", Created: "2025-06-19T16:00:00+07:00", Body: "Rolled back, issue persists."},
		},
	}
}

func TestRenderTicket(t *testing.T) {
	out := RenderTicket(demoTicket())

	t.Run("header lines", func(t *testing.T) {
		lines := strings.Split(out, "\n")
		assert.Equal(t, "JIRA TICKET: DEMO-42", lines[0])
		assert.Equal(t, "TITLE: Login page broken", lines[1])
		assert.Equal(t, "TYPE: Bug", lines[2])
		assert.Equal(t, "STATUS: In Progress", lines[3])
		assert.Equal(t, "PRIORITY: Critical", lines[4])
		assert.Equal(t, "ASSIGNEE: John Doe", lines[5])
		assert.Equal(t, "REPORTER: Operations", lines[6])
		assert.Contains(t, out, "CREATED: 2025-06-19T15:01:03+07:00")
		assert.Contains(t, out, "LABELS: auth, regression")
	})

	t.Run("sections", func(t *testing.T) {
		assert.Contains(t, out, "\nDESCRIPTION:\nThe login page returns a **500 error** after deploy.")
		assert.Contains(t, out, "\nRELATED TICKETS:\n")
		assert.Contains(t, out, "### Cloners\n- DEMO-50 (is cloned by)")
		assert.Contains(t, out, "### Related Issues\n- DEMO-12 (relates to)")
		assert.Contains(t, out, "\nSUBTASKS:\n- DEMO-60")
		assert.Contains(t, out, "\nATTACHMENTS:\n- stacktrace.log (2048 bytes)")
		assert.Contains(t, out, "### Comment by jdoe (2025-06-19T16:00:00+07:00)\nRolled back, issue persists.")
	})

	t.Run("empty fields omitted", func(t *testing.T) {
		minimal := RenderTicket(&Ticket{Key: "DEMO-1", Title: "x"})
		assert.NotContains(t, minimal, "ASSIGNEE:")
		assert.NotContains(t, minimal, "LABELS:")
		assert.NotContains(t, minimal, "RELATED TICKETS:")
		assert.Contains(t, minimal, "DESCRIPTION:")
		assert.Contains(t, minimal, "COMMENTS:")
	})
}

func TestWriteTicket(t *testing.T) {
	t.Run("writes and overwrites", func(t *testing.T) {
		dir := t.TempDir()
		ticket := demoTicket()

		path, err := WriteTicket(dir, ticket)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, "DEMO-42.txt"), path)

		ticket.Status = "Closed"
		_, err = WriteTicket(dir, ticket)
		require.NoError(t, err)

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), "STATUS: Closed")
		assert.NotContains(t, string(data), "STATUS: In Progress")

		// No temp files left behind.
		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		assert.Len(t, entries, 1)
	})

	t.Run("creates output directory", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "data", "jira")
		_, err := WriteTicket(dir, demoTicket())
		require.NoError(t, err)
	})

	t.Run("missing key", func(t *testing.T) {
		_, err := WriteTicket(t.TempDir(), &Ticket{})
		assert.Error(t, err)
	})
}
