// Package document manages uploaded documents and assembles their
// combined text for the reasoning worker.
package document

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// MaxDocumentBytes caps the size of a single uploaded document.
const MaxDocumentBytes = 10 << 20

// ErrNotFound is returned when a document id is unknown.
var ErrNotFound = fmt.Errorf("document not found")

// Document is one uploaded text document.
type Document struct {
	ID         string    `json:"id"`
	Filename   string    `json:"filename"`
	Content    string    `json:"-"`
	CharCount  int       `json:"char_count"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// Store keeps uploaded documents in memory and mirrors their content to
// an uploads directory on disk.
type Store struct {
	mu   sync.RWMutex
	docs map[string]*Document
	dir  string
}

// NewStore creates a document store backed by the given directory. The
// directory is created if missing and previously uploaded files are
// reloaded from it.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir: %w", err)
	}
	s := &Store{docs: make(map[string]*Document), dir: dir}
	if err := s.reload(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) reload() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("failed to read upload dir: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		// Stored as <id>_<filename>.
		idx := strings.Index(name, "_")
		if idx <= 0 {
			continue
		}
		path := filepath.Join(s.dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read document %s: %w", name, err)
		}
		info, err := entry.Info()
		if err != nil {
			return fmt.Errorf("failed to stat document %s: %w", name, err)
		}
		content := string(data)
		s.docs[name[:idx]] = &Document{
			ID:         name[:idx],
			Filename:   name[idx+1:],
			Content:    content,
			CharCount:  len([]rune(content)),
			UploadedAt: info.ModTime().UTC(),
		}
	}
	return nil
}

// Save registers a document and writes it to the uploads directory. The
// id is derived from the content so re-uploading the same bytes yields
// the same document.
func (s *Store) Save(filename, content string) (*Document, error) {
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("document is empty")
	}
	if len(content) > MaxDocumentBytes {
		return nil, fmt.Errorf("document exceeds %d bytes", MaxDocumentBytes)
	}

	sum := sha256.Sum256([]byte(content))
	id := hex.EncodeToString(sum[:])[:16]
	doc := &Document{
		ID:         id,
		Filename:   sanitizeFilename(filename),
		Content:    content,
		CharCount:  len([]rune(content)),
		UploadedAt: time.Now().UTC(),
	}

	path := filepath.Join(s.dir, doc.ID+"_"+doc.Filename)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return nil, fmt.Errorf("failed to persist document: %w", err)
	}

	s.mu.Lock()
	s.docs[doc.ID] = doc
	s.mu.Unlock()
	return doc, nil
}

// Get returns the document with the given id.
func (s *Store) Get(id string) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return doc, nil
}

// Exists reports whether every id names a known document, returning the
// first unknown id otherwise.
func (s *Store) Exists(ids []string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range ids {
		if _, ok := s.docs[id]; !ok {
			return id, false
		}
	}
	return "", true
}

// List returns all documents sorted by upload time, newest first.
func (s *Store) List() []*Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Document, 0, len(s.docs))
	for _, doc := range s.docs {
		out = append(out, doc)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UploadedAt.After(out[j].UploadedAt)
	})
	return out
}

// Delete removes a document from the store and from disk.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	doc, ok := s.docs[id]
	if ok {
		delete(s.docs, id)
	}
	s.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	path := filepath.Join(s.dir, doc.ID+"_"+doc.Filename)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove document file: %w", err)
	}
	return nil
}

// CombinedContext concatenates the named documents with per-document
// headers, in the order given.
func (s *Store) CombinedContext(ids []string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var b strings.Builder
	for i, id := range ids {
		doc, ok := s.docs[id]
		if !ok {
			return "", fmt.Errorf("document not found: %s", id)
		}
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "=== Document: %s ===\n\n%s", doc.Filename, doc.Content)
	}
	return b.String(), nil
}

// TotalChars sums the character counts of the named documents. Unknown
// ids contribute nothing.
func (s *Store) TotalChars(ids []string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := 0
	for _, id := range ids {
		if doc, ok := s.docs[id]; ok {
			total += doc.CharCount
		}
	}
	return total
}

// sanitizeFilename strips path components and characters that would be
// unsafe in the uploads directory.
func sanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == '-' || r == '_' || r == ' ':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	out := strings.TrimSpace(b.String())
	if out == "" || out == "." || out == ".." {
		out = "document.txt"
	}
	return out
}
