// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package artifact manages the per-upload working directories: the incoming
// PDF, the TEI XML written by GROBID, and the files derived from it.
package artifact

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/article-bot/pkg/types"
)

const (
	// DefaultRoot is the directory under which upload directories are created.
	DefaultRoot = "resources"

	// TEISuffix replaces the ".pdf" extension in GROBID output file names.
	TEISuffix = ".grobid.tei.xml"

	// DigestSuffix replaces the ".pdf" extension of the JSON digest.
	DigestSuffix = ".json"

	manifestFile = "job.yaml"
	dirLayout    = "20060102_150405.000000000"
)

// Store creates isolated working directories under a root directory.
type Store struct {
	root string
	now  func() time.Time
}

// NewStore returns a Store rooted at root (DefaultRoot when empty).
func NewStore(root string) *Store {
	if root == "" {
		root = DefaultRoot
	}
	return &Store{root: root, now: time.Now}
}

// Root returns the directory under which uploads are created.
func (s *Store) Root() string { return s.root }

// BeginUpload creates a fresh directory for one upload and returns the job
// with the destination path of the source file. The directory name combines
// a nanosecond timestamp with a random suffix so that concurrent uploads
// never share a directory. Creating an existing directory is not an error.
func (s *Store) BeginUpload(session, fileName string) (types.UploadJob, error) {
	name := cleanFileName(fileName)
	if name == "" {
		return types.UploadJob{}, fmt.Errorf("invalid upload file name %q", fileName)
	}

	created := s.now()
	id := created.UTC().Format(dirLayout) + "_" + uuid.NewString()[:8]
	dir := filepath.Join(s.root, "input_"+id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return types.UploadJob{}, fmt.Errorf("creating upload directory %s: %w", dir, err)
	}

	return types.UploadJob{
		ID:         id,
		Session:    session,
		Dir:        dir,
		FileName:   name,
		SourcePath: filepath.Join(dir, name),
		CreatedAt:  created,
	}, nil
}

// SaveIncoming writes r to destPath through a temporary file that is renamed
// on success, so a partial download never looks like a complete PDF.
func (s *Store) SaveIncoming(r io.Reader, destPath string) (int64, error) {
	tmp, err := os.CreateTemp(filepath.Dir(destPath), ".incoming-*")
	if err != nil {
		return 0, fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	n, err := io.Copy(tmp, r)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmpPath)
		return n, fmt.Errorf("writing %s: %w", destPath, err)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return n, fmt.Errorf("renaming to %s: %w", destPath, err)
	}
	return n, nil
}

// ExtractedName derives the GROBID output name from a source file name by
// replacing its extension with TEISuffix ("paper.pdf" -> "paper.grobid.tei.xml").
func ExtractedName(fileName string) string {
	return replaceExt(filepath.Base(fileName), TEISuffix)
}

// LocateExtracted returns the expected TEI path for fileName in dir and
// whether a regular file exists there.
func (s *Store) LocateExtracted(dir, fileName string) (string, bool) {
	path := filepath.Join(dir, ExtractedName(fileName))
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return path, false
	}
	return path, true
}

// ReadExtracted returns the content of an extracted artifact as text.
func (s *Store) ReadExtracted(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading extracted artifact %s: %w", path, err)
	}
	return string(data), nil
}

// WriteManifest records the job as job.yaml inside its directory.
func (s *Store) WriteManifest(job types.UploadJob) error {
	data, err := yaml.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshaling manifest: %w", err)
	}
	return os.WriteFile(filepath.Join(job.Dir, manifestFile), data, 0o644)
}

// ReadManifest loads the job.yaml of an upload directory.
func ReadManifest(dir string) (types.UploadJob, error) {
	var job types.UploadJob
	data, err := os.ReadFile(filepath.Join(dir, manifestFile))
	if err != nil {
		return job, fmt.Errorf("reading manifest: %w", err)
	}
	if err := yaml.Unmarshal(data, &job); err != nil {
		return job, fmt.Errorf("parsing manifest: %w", err)
	}
	return job, nil
}

// cleanFileName strips directory components so an uploaded name cannot
// escape its working directory.
func cleanFileName(name string) string {
	name = strings.TrimSpace(strings.ReplaceAll(name, "\\", "/"))
	name = filepath.Base(name)
	if name == "." || name == ".." || name == "/" {
		return ""
	}
	return name
}

func replaceExt(name, suffix string) string {
	return strings.TrimSuffix(name, filepath.Ext(name)) + suffix
}
