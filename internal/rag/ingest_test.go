package rag

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhuanvd/rag-demo/internal/knowledge"
	"github.com/nhuanvd/rag-demo/internal/log"
)

// memStore records ingested documents keyed by source file.
type memStore struct {
	docs       map[string][]knowledge.Document
	deleted    []string
	addErr     error
	deleteErr  error
	addCalls   int
	searchHits []knowledge.Result
	searchErr  error
	count      int
	countErr   error
}

func newMemStore() *memStore {
	return &memStore{docs: make(map[string][]knowledge.Document)}
}

func (m *memStore) AddBatch(_ context.Context, docs []knowledge.Document) error {
	m.addCalls++
	if m.addErr != nil {
		return m.addErr
	}
	for _, d := range docs {
		src := d.Metadata[knowledge.MetaSource]
		m.docs[src] = append(m.docs[src], d)
	}
	return nil
}

func (m *memStore) DeleteBySource(_ context.Context, sourceFile string) (int64, error) {
	if m.deleteErr != nil {
		return 0, m.deleteErr
	}
	m.deleted = append(m.deleted, sourceFile)
	n := int64(len(m.docs[sourceFile]))
	delete(m.docs, sourceFile)
	return n, nil
}

func (m *memStore) Search(_ context.Context, _ string, _ ...knowledge.SearchOption) ([]knowledge.Result, error) {
	return m.searchHits, m.searchErr
}

func (m *memStore) Count(_ context.Context, _ map[string]string) (int, error) {
	return m.count, m.countErr
}

func writeTicketFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const sampleTicket = `JIRA TICKET: DEMO-3
TITLE: Export hangs
TYPE: Bug
STATUS: Open
PRIORITY: Major

DESCRIPTION:
The nightly export hangs when the queue is empty.
`

func TestIngestFile(t *testing.T) {
	t.Run("stores chunks with ticket metadata", func(t *testing.T) {
		dir := t.TempDir()
		path := writeTicketFile(t, dir, "DEMO-3.txt", sampleTicket)
		store := newMemStore()
		ing, err := NewIngestor(store, log.NewNop(), 800, 150)
		require.NoError(t, err)

		n, err := ing.IngestFile(context.Background(), path)
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		docs := store.docs["DEMO-3.txt"]
		require.Len(t, docs, 2)
		assert.Equal(t, "DEMO-3", docs[0].Metadata[knowledge.MetaTicketID])
		assert.Equal(t, "Bug", docs[0].Metadata[knowledge.MetaTicketType])
		assert.Equal(t, "Major", docs[0].Metadata[knowledge.MetaPriority])
		assert.Equal(t, "Open", docs[0].Metadata[knowledge.MetaStatus])
		assert.Equal(t, knowledge.SourceTypeTicket, docs[0].Metadata[knowledge.MetaSourceType])
		assert.Equal(t, []string{"DEMO-3.txt"}, store.deleted)
	})

	t.Run("chunk IDs are stable across runs", func(t *testing.T) {
		dir := t.TempDir()
		path := writeTicketFile(t, dir, "DEMO-3.txt", sampleTicket)
		store := newMemStore()
		ing, err := NewIngestor(store, log.NewNop(), 800, 150)
		require.NoError(t, err)

		_, err = ing.IngestFile(context.Background(), path)
		require.NoError(t, err)
		first := store.docs["DEMO-3.txt"][0].ID

		_, err = ing.IngestFile(context.Background(), path)
		require.NoError(t, err)
		assert.Equal(t, first, store.docs["DEMO-3.txt"][0].ID)
	})

	t.Run("ticket id falls back to filename", func(t *testing.T) {
		dir := t.TempDir()
		path := writeTicketFile(t, dir, "DEMO-9.txt", "DESCRIPTION:\nno header here\n")
		store := newMemStore()
		ing, err := NewIngestor(store, log.NewNop(), 800, 150)
		require.NoError(t, err)

		_, err = ing.IngestFile(context.Background(), path)
		require.NoError(t, err)
		assert.Equal(t, "DEMO-9", store.docs["DEMO-9.txt"][0].Metadata[knowledge.MetaTicketID])
	})

	t.Run("empty file", func(t *testing.T) {
		dir := t.TempDir()
		path := writeTicketFile(t, dir, "DEMO-0.txt", "  \n")
		ing, err := NewIngestor(newMemStore(), log.NewNop(), 800, 150)
		require.NoError(t, err)

		_, err = ing.IngestFile(context.Background(), path)
		assert.ErrorContains(t, err, "empty")
	})

	t.Run("store failure", func(t *testing.T) {
		dir := t.TempDir()
		path := writeTicketFile(t, dir, "DEMO-3.txt", sampleTicket)
		store := newMemStore()
		store.addErr = fmt.Errorf("db unavailable")
		ing, err := NewIngestor(store, log.NewNop(), 800, 150)
		require.NoError(t, err)

		_, err = ing.IngestFile(context.Background(), path)
		assert.ErrorContains(t, err, "storing chunks")
	})
}

func TestIngestDir(t *testing.T) {
	t.Run("processes txt files only", func(t *testing.T) {
		dir := t.TempDir()
		writeTicketFile(t, dir, "DEMO-1.txt", sampleTicket)
		writeTicketFile(t, dir, "DEMO-2.txt", sampleTicket)
		writeTicketFile(t, dir, "notes.md", "ignored")
		store := newMemStore()
		ing, err := NewIngestor(store, log.NewNop(), 800, 150)
		require.NoError(t, err)

		stats, err := ing.IngestDir(context.Background(), dir)
		require.NoError(t, err)
		assert.Equal(t, 2, stats.FilesProcessed)
		assert.Equal(t, 1, stats.FilesSkipped)
		assert.Equal(t, 0, stats.FilesFailed)
		assert.Equal(t, 4, stats.Chunks)
	})

	t.Run("file failure does not abort the run", func(t *testing.T) {
		dir := t.TempDir()
		writeTicketFile(t, dir, "DEMO-1.txt", sampleTicket)
		writeTicketFile(t, dir, "DEMO-2.txt", "")
		ing, err := NewIngestor(newMemStore(), log.NewNop(), 800, 150)
		require.NoError(t, err)

		stats, err := ing.IngestDir(context.Background(), dir)
		require.NoError(t, err)
		assert.Equal(t, 1, stats.FilesProcessed)
		assert.Equal(t, 1, stats.FilesFailed)
	})

	t.Run("missing directory", func(t *testing.T) {
		ing, err := NewIngestor(newMemStore(), log.NewNop(), 800, 150)
		require.NoError(t, err)

		_, err = ing.IngestDir(context.Background(), filepath.Join(t.TempDir(), "absent"))
		assert.Error(t, err)
	})
}
