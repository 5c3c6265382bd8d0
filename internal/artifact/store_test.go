// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package artifact

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleTEI = `<?xml version="1.0" encoding="UTF-8"?>
<TEI xmlns="http://www.tei-c.org/ns/1.0">
  <teiHeader>
    <fileDesc>
      <titleStmt><title level="a" type="main">Attention Is All You Need</title></titleStmt>
    </fileDesc>
    <profileDesc><abstract><p>We propose the Transformer.</p></abstract></profileDesc>
  </teiHeader>
  <text><body><div><head>Introduction</head><p>Recurrent models are slow.</p></div></body></text>
</TEI>`

func TestBeginUpload(t *testing.T) {
	s := NewStore(t.TempDir())
	s.now = func() time.Time { return time.Date(2026, 3, 1, 12, 30, 45, 123, time.UTC) }

	job, err := s.BeginUpload("42", "paper.pdf")
	require.NoError(t, err)

	assert.Equal(t, "42", job.Session)
	assert.Equal(t, "paper.pdf", job.FileName)
	assert.Equal(t, filepath.Join(job.Dir, "paper.pdf"), job.SourcePath)
	assert.True(t, strings.HasPrefix(filepath.Base(job.Dir), "input_20260301_123045.000000123_"))
	info, err := os.Stat(job.Dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestBeginUpload_StripsPathComponents(t *testing.T) {
	s := NewStore(t.TempDir())

	job, err := s.BeginUpload("1", "../../etc/evil.pdf")
	require.NoError(t, err)
	assert.Equal(t, "evil.pdf", job.FileName)
	assert.Equal(t, job.Dir, filepath.Dir(job.SourcePath))

	_, err = s.BeginUpload("1", "")
	assert.Error(t, err)
}

func TestBeginUpload_ConcurrentUploadsGetDistinctDirs(t *testing.T) {
	s := NewStore(t.TempDir())
	fixed := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	const n = 16
	dirs := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			job, err := s.BeginUpload("session", "paper.pdf")
			if err == nil {
				dirs[i] = job.Dir
			}
		}(i)
	}
	wg.Wait()

	seen := map[string]bool{}
	for _, d := range dirs {
		require.NotEmpty(t, d)
		assert.False(t, seen[d], "duplicate directory %s", d)
		seen[d] = true
	}
}

func TestSaveIncoming(t *testing.T) {
	s := NewStore(t.TempDir())
	job, err := s.BeginUpload("1", "paper.pdf")
	require.NoError(t, err)

	n, err := s.SaveIncoming(strings.NewReader("%PDF-1.7 body"), job.SourcePath)
	require.NoError(t, err)
	assert.Equal(t, int64(13), n)

	data, err := os.ReadFile(job.SourcePath)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.7 body", string(data))

	entries, err := os.ReadDir(job.Dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file must not remain")
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("connection reset") }

func TestSaveIncoming_FailureLeavesNoFile(t *testing.T) {
	s := NewStore(t.TempDir())
	job, err := s.BeginUpload("1", "paper.pdf")
	require.NoError(t, err)

	_, err = s.SaveIncoming(failingReader{}, job.SourcePath)
	require.Error(t, err)

	entries, err := os.ReadDir(job.Dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestExtractedName(t *testing.T) {
	tests := map[string]string{
		"paper.pdf":          "paper.grobid.tei.xml",
		"Paper.PDF":          "Paper.grobid.tei.xml",
		"my.paper.v2.pdf":    "my.paper.v2.grobid.tei.xml",
		"dir/nested/doc.pdf": "doc.grobid.tei.xml",
	}
	for in, want := range tests {
		assert.Equal(t, want, ExtractedName(in), in)
	}
}

func TestLocateExtracted(t *testing.T) {
	s := NewStore(t.TempDir())
	job, err := s.BeginUpload("1", "paper.pdf")
	require.NoError(t, err)

	path, ok := s.LocateExtracted(job.Dir, job.FileName)
	assert.False(t, ok)
	assert.Equal(t, filepath.Join(job.Dir, "paper.grobid.tei.xml"), path)

	require.NoError(t, os.WriteFile(path, []byte(sampleTEI), 0o644))
	path, ok = s.LocateExtracted(job.Dir, job.FileName)
	assert.True(t, ok)

	text, err := s.ReadExtracted(path)
	require.NoError(t, err)
	assert.Contains(t, text, "Attention Is All You Need")
}

func TestManifestRoundTrip(t *testing.T) {
	s := NewStore(t.TempDir())
	job, err := s.BeginUpload("99", "paper.pdf")
	require.NoError(t, err)
	job.Extracted = filepath.Join(job.Dir, "paper.grobid.tei.xml")

	require.NoError(t, s.WriteManifest(job))
	got, err := ReadManifest(job.Dir)
	require.NoError(t, err)
	assert.Equal(t, job.ID, got.ID)
	assert.Equal(t, job.Session, got.Session)
	assert.Equal(t, job.Extracted, got.Extracted)
}

func TestWriteDigest(t *testing.T) {
	s := NewStore(t.TempDir())
	job, err := s.BeginUpload("1", "paper.pdf")
	require.NoError(t, err)
	teiPath := filepath.Join(job.Dir, ExtractedName(job.FileName))
	require.NoError(t, os.WriteFile(teiPath, []byte(sampleTEI), 0o644))

	digestPath, _, err := s.WriteDigest(teiPath)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(job.Dir, "paper.json"), digestPath)

	data, err := os.ReadFile(digestPath)
	require.NoError(t, err)
	var d Digest
	require.NoError(t, json.Unmarshal(data, &d))
	assert.Equal(t, "paper.grobid.tei.xml", d.Source)
}

func TestWriteDigest_MissingFile(t *testing.T) {
	s := NewStore(t.TempDir())
	_, _, err := s.WriteDigest(filepath.Join(t.TempDir(), "nope.grobid.tei.xml"))
	assert.Error(t, err)
}
