package journal

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMirror struct {
	records []*CycleRecord
}

func (f *fakeMirror) MirrorCycle(rec *CycleRecord) {
	f.records = append(f.records, rec)
}

func newTestWriter(t *testing.T) *Writer {
	t.Helper()
	dir := t.TempDir()
	w := NewWriter(dir)
	w.nowFn = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }
	return w
}

func TestWriteCycleWritesFileAndNumbersSequentially(t *testing.T) {
	w := newTestWriter(t)

	path1, err := w.WriteCycle(&CycleRecord{ModelID: "m1", Success: true})
	require.NoError(t, err)
	path2, err := w.WriteCycle(&CycleRecord{ModelID: "m1", Success: true})
	require.NoError(t, err)

	assert.FileExists(t, path1)
	assert.FileExists(t, path2)
	assert.NotEqual(t, path1, path2)
}

func TestWriteCycleRejectsNilRecord(t *testing.T) {
	w := newTestWriter(t)
	_, err := w.WriteCycle(nil)
	assert.Error(t, err)
}

func TestWriteCycleForwardsToMirrorOnSuccess(t *testing.T) {
	w := newTestWriter(t)
	mirror := &fakeMirror{}
	w.SetMirror(mirror)

	_, err := w.WriteCycle(&CycleRecord{ModelID: "m1", Pass: "buy", Success: true})
	require.NoError(t, err)

	require.Len(t, mirror.records, 1)
	assert.Equal(t, "m1", mirror.records[0].ModelID)
	assert.Equal(t, 1, mirror.records[0].CycleNumber)
}

func TestWriteCycleWithoutMirrorStillSucceeds(t *testing.T) {
	w := newTestWriter(t)
	_, err := w.WriteCycle(&CycleRecord{ModelID: "m1", Success: true})
	assert.NoError(t, err)
}

func TestWriteCycleSetsTimestampWhenZero(t *testing.T) {
	w := newTestWriter(t)
	rec := &CycleRecord{ModelID: "m1"}
	path, err := w.WriteCycle(rec)
	require.NoError(t, err)
	assert.False(t, rec.Timestamp.IsZero())
	assert.Contains(t, filepath.Base(path), "20260101_000000")
}

func TestNewWriterCreatesMissingDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "journal")
	w := NewWriter(dir)
	_, err := w.WriteCycle(&CycleRecord{ModelID: "m1"})
	require.NoError(t, err)
	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
