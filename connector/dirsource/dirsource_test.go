package dirsource

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/corpus/connector"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func collectKeys(t *testing.T, conn connector.Connector) []string {
	t.Helper()
	var keys []string
	for item, err := range conn.Items(context.Background()) {
		require.NoError(t, err)
		keys = append(keys, conn.ItemKey(item))
	}
	return keys
}

func TestSetupRequiresDirectory(t *testing.T) {
	conn := New("docs", filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, conn.Setup(context.Background()))

	root := t.TempDir()
	conn = New("docs", root)
	assert.NoError(t, conn.Setup(context.Background()))
}

func TestItemsEnumeratesDocumentFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.md", "# A\n\nbody")
	writeFile(t, root, "nested/b.txt", "body")
	writeFile(t, root, "ignored.png", "binary")

	conn := New("docs", root)
	keys := collectKeys(t, conn)
	assert.ElementsMatch(t, []string{"a.md", "nested/b.txt"}, keys)

	// Enumeration is restartable: a second walk yields the same items.
	assert.ElementsMatch(t, keys, collectKeys(t, conn))
}

func TestProcessExtractsMarkdownTitle(t *testing.T) {
	root := t.TempDir()
	body := strings.Repeat("A perfectly reasonable paragraph of document text. ", 3)
	writeFile(t, root, "post.md", "# The Title\n\n"+body)

	conn := New("docs", root)
	record, err := conn.Process(context.Background(), "post.md")
	require.NoError(t, err)

	assert.Equal(t, "The Title", record.Title)
	assert.NotContains(t, record.Text, "# The Title")
	assert.Contains(t, record.Text, body)
	assert.True(t, strings.HasPrefix(record.URL, "file://"))
	assert.False(t, record.DatePublished.IsZero())
}

func TestProcessFallsBackToFileName(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "my-plain_notes.txt", "no heading here")

	conn := New("docs", root)
	record, err := conn.Process(context.Background(), "my-plain_notes.txt")
	require.NoError(t, err)

	assert.Equal(t, "my plain notes", record.Title)
	assert.Equal(t, "no heading here", record.Text)
}

func TestProcessMissingFile(t *testing.T) {
	conn := New("docs", t.TempDir())
	_, err := conn.Process(context.Background(), "gone.md")
	assert.Error(t, err)
}
