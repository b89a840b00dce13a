package cli

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"groundchat/internal/tui"
)

func TestReport_ExitCodes(t *testing.T) {
	var buf bytes.Buffer
	assert.Equal(t, 0, report(nil, &buf))
	assert.Empty(t, buf.String())

	assert.Equal(t, 1, report(fmt.Errorf("ingest: %w", errors.New("no documents")), &buf))
	assert.Equal(t, "error: ingest: no documents\n", buf.String())

	buf.Reset()
	assert.Equal(t, 2, report(&exitError{code: 2, err: errors.New(tui.UnavailableMessage)}, &buf))
	assert.Equal(t, tui.UnavailableMessage+"\n", buf.String())
}

type recordCloser struct {
	closed *[]string
	name   string
	err    error
}

func (r recordCloser) Close() error {
	*r.closed = append(*r.closed, r.name)
	return r.err
}

func TestClosers_ClosesEveryOneInOrder(t *testing.T) {
	var closed []string
	boom := errors.New("boom")
	err := closers{recordCloser{&closed, "index", boom}, recordCloser{&closed, "log", nil}}.Close()
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"index", "log"}, closed)
}

func TestIngestCommand_ReturnsErrors(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte("vector_store:\n  type: sqlite\n  sqlite:\n    path: "+filepath.Join(dir, "index.db")+"\n"), 0o644))
	t.Cleanup(func() { cfgPath, topK = "", 0 })

	RootCmd.SetArgs([]string{"ingest", "-c", p, filepath.Join(dir, "missing.txt")})
	err := RootCmd.Execute()
	require.Error(t, err)
	assert.ErrorContains(t, err, "ingest")
	assert.Equal(t, 1, report(err, &bytes.Buffer{}))
}
