package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testFixtures = `
- className: GameScore
  objectId: xWMyZ4YEGZ
  fields:
    name: alice
    score: 10
- className: GameScore
  fields:
    name: bob
    score: 5
    tags:
      - casual
      - weekend
`

// setupFixtures writes a fixture file and pins it into a fresh database,
// returning the database path.
func setupFixtures(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")
	fixturePath := filepath.Join(dir, "fixtures.yaml")
	require.NoError(t, os.WriteFile(fixturePath, []byte(testFixtures), 0o644))

	rootOpts := &RootOptions{DBPath: dbPath, Format: "text"}
	cmd := NewPinCommand(rootOpts)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"scores", fixturePath})
	require.NoError(t, cmd.Execute())
	return dbPath
}

func TestPinAndClasses(t *testing.T) {
	dbPath := setupFixtures(t)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{DBPath: dbPath, Format: "json"}
	cmd := NewClassesCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{})
	require.NoError(t, cmd.Execute())

	var doc map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, []any{"GameScore"}, doc["classes"])
	assert.Equal(t, []any{"scores"}, doc["groups"])
}

func TestGetByIdentity(t *testing.T) {
	dbPath := setupFixtures(t)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{DBPath: dbPath, Format: "json"}
	cmd := NewGetCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"GameScore", "xWMyZ4YEGZ"})
	require.NoError(t, cmd.Execute())

	var doc map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, "alice", doc["name"])
	assert.Equal(t, 10.0, doc["score"])
	assert.Equal(t, "xWMyZ4YEGZ", doc["objectId"])
}

func TestGetMissingIdentityFails(t *testing.T) {
	dbPath := setupFixtures(t)

	rootOpts := &RootOptions{DBPath: dbPath, Format: "text"}
	cmd := NewGetCommand(rootOpts)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"GameScore", "no-such-id"})
	assert.Error(t, cmd.Execute())
}

func TestQueryWithWhere(t *testing.T) {
	dbPath := setupFixtures(t)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{DBPath: dbPath, Format: "json"}
	cmd := NewQueryCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"GameScore", "--where", `{"score":{"$gt":7}}`})
	require.NoError(t, cmd.Execute())

	var docs []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &docs))
	require.Len(t, docs, 1)
	assert.Equal(t, "alice", docs[0]["name"])
}

func TestQueryOrderAndLimit(t *testing.T) {
	dbPath := setupFixtures(t)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{DBPath: dbPath, Format: "json"}
	cmd := NewQueryCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"GameScore", "--order", "-score", "--limit", "1"})
	require.NoError(t, cmd.Execute())

	var docs []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &docs))
	require.Len(t, docs, 1)
	assert.Equal(t, "alice", docs[0]["name"])
}

func TestQueryCount(t *testing.T) {
	dbPath := setupFixtures(t)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{DBPath: dbPath, Format: "text"}
	cmd := NewQueryCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"GameScore", "--count"})
	require.NoError(t, cmd.Execute())
	assert.Equal(t, "2\n", buf.String())
}

func TestQueryInvalidWhereFails(t *testing.T) {
	dbPath := setupFixtures(t)

	rootOpts := &RootOptions{DBPath: dbPath, Format: "text"}
	cmd := NewQueryCommand(rootOpts)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"GameScore", "--where", `{"score":{"$bogus":1}}`})
	assert.Error(t, cmd.Execute())
}

func TestUnpinRemovesGroup(t *testing.T) {
	dbPath := setupFixtures(t)

	rootOpts := &RootOptions{DBPath: dbPath, Format: "text"}
	unpin := NewUnpinCommand(rootOpts)
	unpin.SetOut(&bytes.Buffer{})
	unpin.SetArgs([]string{"scores"})
	require.NoError(t, unpin.Execute())

	buf := &bytes.Buffer{}
	count := NewQueryCommand(rootOpts)
	count.SetOut(buf)
	count.SetArgs([]string{"GameScore", "--count"})
	require.NoError(t, count.Execute())
	assert.Equal(t, "0\n", buf.String())
}

func TestRootRejectsInvalidFormat(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--format", "xml", "classes"})
	assert.Error(t, cmd.Execute())
}

func TestIsValidFormat(t *testing.T) {
	assert.True(t, isValidFormat("text"))
	assert.True(t, isValidFormat("json"))
	assert.False(t, isValidFormat("yaml"))
}
