package journal

import (
	"bufio"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestJournal(t *testing.T) (*Journal, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "wal.log")
	j, err := Open(path, 50, 3600, 1<<30)
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j, path
}

func TestAppendAndFlushWritesToDisk(t *testing.T) {
	j, path := openTestJournal(t)
	require.NoError(t, j.AppendLine("SET foo bar"))
	require.NoError(t, j.Flush())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "SET foo bar\n", string(data))
}

func TestReplayAppliesEveryWellFormedLine(t *testing.T) {
	j, _ := openTestJournal(t)
	require.NoError(t, j.AppendLine("SET a 1"))
	require.NoError(t, j.AppendLine("SET b 2"))
	require.NoError(t, j.AppendLine("DEL a"))
	require.NoError(t, j.Flush())

	var lines []string
	require.NoError(t, j.Replay(func(line string) { lines = append(lines, line) }))
	assert.Equal(t, []string{"SET a 1", "SET b 2", "DEL a"}, lines)
}

func TestReplayOnMissingFileIsNotAnError(t *testing.T) {
	dir := t.TempDir()
	j, err := Open(filepath.Join(dir, "wal.log"), 50, 3600, 1<<30)
	require.NoError(t, err)
	defer j.Close()

	require.NoError(t, os.Remove(filepath.Join(dir, "wal.log")))
	var calls int
	require.NoError(t, j.Replay(func(string) { calls++ }))
	assert.Equal(t, 0, calls)
}

func TestCompactReplacesJournalWithDumpContents(t *testing.T) {
	j, path := openTestJournal(t)
	require.NoError(t, j.AppendLine("SET a 1"))
	require.NoError(t, j.AppendLine("SET a 2"))
	require.NoError(t, j.Flush())

	err := j.Compact(func(w *bufio.Writer) error {
		_, err := w.WriteString("SET a 2\n")
		return err
	})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "SET a 2\n", string(data))

	require.NoError(t, j.AppendLine("SET b 3"))
	require.NoError(t, j.Flush())
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "SET a 2\nSET b 3\n", string(data), "journal must remain appendable after compaction")
}

func TestCompactAbortsCleanlyOnDumpFailure(t *testing.T) {
	j, path := openTestJournal(t)
	require.NoError(t, j.AppendLine("SET a 1"))
	require.NoError(t, j.Flush())

	err := j.Compact(func(w *bufio.Writer) error {
		return assertErr{"dump exploded"}
	})
	assert.Error(t, err)

	data, readErr := os.ReadFile(path)
	require.NoError(t, readErr)
	assert.Equal(t, "SET a 1\n", string(data), "failed compaction must not touch the live journal")
}

type assertErr struct{ msg string }

func (e assertErr) Error() string { return e.msg }
