package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadSourceBatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "batch.json")
	payload := `[
		{
			"source_name": "listennotes",
			"source_native_id": "ln-1",
			"attributes": {"title": "The Compiler Hour", "feed_url": "https://example.com/feed", "episode_count": 120}
		},
		{
			"source_name": "podcastindex",
			"source_native_id": "pi-9",
			"attributes": {"title": "The Compiler Hour", "feed_url": "https://example.com/feed/"}
		}
	]`
	require.NoError(t, os.WriteFile(path, []byte(payload), 0644))

	records, err := readSourceBatch(path)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "listennotes", records[0].SourceName)
	assert.Equal(t, "ln-1", records[0].SourceNativeID)
	assert.Equal(t, "The Compiler Hour", records[0].StringAttr("title"))
	assert.EqualValues(t, 120, records[0].Attributes["episode_count"])
}

func TestReadSourceBatchMissingFile(t *testing.T) {
	_, err := readSourceBatch(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestReadSourceBatchMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	_, err := readSourceBatch(path)
	assert.Error(t, err)
}
