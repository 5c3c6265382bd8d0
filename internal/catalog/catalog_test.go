// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package catalog

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/article-bot/pkg/types"
)

func testCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := Open(filepath.Join(t.TempDir(), "nested", DefaultFile))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	clock := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	c.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return c
}

func ref(id, title string) types.ArticleRef {
	return types.ArticleRef{
		UploadID: id,
		FileName: id + ".pdf",
		Title:    title,
		TEIPath:  "/tmp/" + id + ".grobid.tei.xml",
	}
}

func TestRecordAndList(t *testing.T) {
	c := testCatalog(t)
	ctx := context.Background()

	require.NoError(t, c.Record(ctx, "1", ref("a", "Attention Is All You Need")))
	require.NoError(t, c.Record(ctx, "2", ref("b", "Deep Residual Learning")))

	entries, err := c.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "b", entries[0].UploadID)
	assert.Equal(t, "a", entries[1].UploadID)
	assert.Equal(t, "1", entries[1].Session)
	assert.Equal(t, "a.pdf", entries[1].FileName)
	assert.Nil(t, entries[1].SummarizedAt)
	assert.False(t, entries[1].CreatedAt.IsZero())

	entries, err = c.List(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestRecord_Upsert(t *testing.T) {
	c := testCatalog(t)
	ctx := context.Background()

	require.NoError(t, c.Record(ctx, "1", ref("a", "")))
	require.NoError(t, c.Record(ctx, "1", ref("a", "Late Title")))

	entries, err := c.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Late Title", entries[0].Title)
}

func TestSaveSummary(t *testing.T) {
	c := testCatalog(t)
	ctx := context.Background()

	require.NoError(t, c.Record(ctx, "1", ref("a", "Attention")))
	require.NoError(t, c.SaveSummary(ctx, "a", "Título: Attention\nPanorama: transformers"))

	entries, err := c.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Summary, "transformers")
	require.NotNil(t, entries[0].SummarizedAt)

	assert.Error(t, c.SaveSummary(ctx, "missing", "x"))
}

func TestSearch(t *testing.T) {
	c := testCatalog(t)
	ctx := context.Background()

	require.NoError(t, c.Record(ctx, "1", ref("a", "Attention Is All You Need")))
	require.NoError(t, c.Record(ctx, "1", ref("b", "Deep Residual Learning")))
	require.NoError(t, c.SaveSummary(ctx, "b", "Panorama: redes residuais para visão computacional"))

	got, err := c.Search(ctx, "attention", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].UploadID)

	got, err = c.Search(ctx, "residuais", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "b", got[0].UploadID)

	got, err = c.Search(ctx, `"unbalanced OR`, 10)
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = c.Search(ctx, "  ", 10)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFile)
	c, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, c.Record(context.Background(), "1", ref("a", "Attention")))
	fts := c.FullText()
	require.NoError(t, c.Close())

	c, err = Open(path)
	require.NoError(t, err)
	defer c.Close()
	assert.Equal(t, fts, c.FullText())

	entries, err := c.List(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
