// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package artifact

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/miku/grobidclient/tei"
)

// Digest is a plain-text extract of a TEI document: title, abstract and
// body without the XML markup. It leaves out the header metadata and the
// bibliography, so answer providers get the TEI file itself.
type Digest struct {
	Title    string `json:"title"`
	Abstract string `json:"abstract,omitempty"`
	Body     string `json:"body"`
	Source   string `json:"source"`
}

// ParseTEI reads a GROBID TEI file into a Digest.
func ParseTEI(teiPath string) (Digest, error) {
	f, err := os.Open(teiPath)
	if err != nil {
		return Digest{}, fmt.Errorf("opening TEI %s: %w", teiPath, err)
	}
	defer f.Close()

	doc, err := tei.ParseDocument(f)
	if err != nil {
		return Digest{}, fmt.Errorf("parsing TEI %s: %w", teiPath, err)
	}

	return Digest{
		Title:    normalizeSpace(string(doc.Header.Title)),
		Abstract: strings.TrimSpace(string(doc.Abstract)),
		Body:     strings.TrimSpace(string(doc.Body)),
		Source:   filepath.Base(teiPath),
	}, nil
}

// WriteDigest converts the TEI file into its JSON digest, written next to it
// with DigestSuffix. It returns the digest path and the article title.
func (s *Store) WriteDigest(teiPath string) (string, string, error) {
	d, err := ParseTEI(teiPath)
	if err != nil {
		return "", "", err
	}

	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return "", "", fmt.Errorf("marshaling digest: %w", err)
	}

	name := strings.TrimSuffix(filepath.Base(teiPath), TEISuffix) + DigestSuffix
	path := filepath.Join(filepath.Dir(teiPath), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", "", fmt.Errorf("writing digest %s: %w", path, err)
	}
	return path, d.Title, nil
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
