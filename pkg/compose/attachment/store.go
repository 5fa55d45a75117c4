// Package attachment tracks the files a user has attached to a message,
// including per-file validation errors.
package attachment

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Default intake limits.
const (
	DefaultMaxFiles = 10
	DefaultMaxBytes = 25 * 1024 * 1024
)

// allowedTypes spans images, PDFs, office documents, plain text and common
// archives.
var allowedTypes = map[string]struct{}{
	"image/jpeg": {},
	"image/png":  {},
	"image/gif":  {},
	"image/webp": {},

	"application/pdf":    {},
	"application/msword": {},
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": {},
	"application/vnd.ms-excel": {},
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": {},
	"application/vnd.ms-powerpoint":                                     {},
	"application/vnd.openxmlformats-officedocument.presentationml.presentation": {},

	"text/plain": {},
	"text/csv":   {},

	"application/zip":              {},
	"application/x-rar-compressed": {},
	"application/x-7z-compressed":  {},
}

// TypeAllowed reports whether contentType is on the attachment allowlist.
func TypeAllowed(contentType string) bool {
	_, ok := allowedTypes[contentType]
	return ok
}

// File is one attachment entry.  A File carrying a non-empty Error is shown
// to the user but never transmitted.
type File struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Size        int64  `json:"size"`
	ContentType string `json:"contentType"`
	Error       string `json:"error,omitempty"`

	Data []byte `json:"-"`
}

// Valid reports whether this file may be submitted.
func (f *File) Valid() bool {
	return f.Error == ""
}

// Candidate is a file offered for intake.
type Candidate struct {
	Name        string
	ContentType string
	Data        []byte
}

// Rejected describes a file the transport refused before it reached the
// store, ex: for exceeding the hard upload ceiling.
type Rejected struct {
	Name   string
	Reason string
}

// ChangeFunc receives the error-free file list after every store mutation.
type ChangeFunc func(valid []*File)

// Store holds a bounded list of attachment files for one composer session.
// It is not goroutine safe; the owning session serializes access.
type Store struct {
	maxFiles int
	maxBytes int64
	files    []*File
	onChange ChangeFunc
}

// NewStore creates a Store with the given limits.  Zero limits select the
// defaults.
func NewStore(maxFiles int, maxBytes int64, onChange ChangeFunc) *Store {
	if maxFiles <= 0 {
		maxFiles = DefaultMaxFiles
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if onChange == nil {
		onChange = func([]*File) {}
	}
	return &Store{maxFiles: maxFiles, maxBytes: maxBytes, onChange: onChange}
}

// Intake processes candidate files in arrival order.  Oversized or
// disallowed candidates become error entries; once the store is full,
// further candidates are dropped without an entry.  Transport-rejected
// files are logged only, they never entered the list.  The valid file list
// is emitted once all candidates are processed.
func (s *Store) Intake(candidates []Candidate, rejected []Rejected) {
	for _, r := range rejected {
		log.Warn().Str("module", "attachment").Str("name", r.Name).Str("reason", r.Reason).
			Msg("File rejected before intake")
	}
	for _, c := range candidates {
		if len(s.files) >= s.maxFiles {
			log.Debug().Str("module", "attachment").Str("name", c.Name).
				Int("max", s.maxFiles).Msg("Store full, dropping candidate")
			continue
		}
		f := &File{
			ID:          uuid.NewString(),
			Name:        c.Name,
			Size:        int64(len(c.Data)),
			ContentType: c.ContentType,
			Data:        c.Data,
		}
		switch {
		case f.Size > s.maxBytes:
			f.Error = fmt.Sprintf("File too large (max %s)", sizeLabel(s.maxBytes))
			f.Data = nil
		case !TypeAllowed(c.ContentType):
			f.Error = "File type not allowed"
			f.Data = nil
		}
		s.files = append(s.files, f)
	}
	s.emit()
}

// Remove deletes the entry with the given ID and emits the new list.
// Unknown IDs are a no-op.
func (s *Store) Remove(id string) bool {
	for i, f := range s.files {
		if f.ID == id {
			s.files = append(s.files[:i], s.files[i+1:]...)
			s.emit()
			return true
		}
	}
	return false
}

// Clear empties the store, used when a submission resets the composer.
func (s *Store) Clear() {
	s.files = nil
	s.emit()
}

// ValidFiles returns the entries with no error, in intake order.
func (s *Store) ValidFiles() []*File {
	valid := make([]*File, 0, len(s.files))
	for _, f := range s.files {
		if f.Valid() {
			valid = append(valid, f)
		}
	}
	return valid
}

// All returns every entry including errored ones, for display.
func (s *Store) All() []*File {
	return append([]*File(nil), s.files...)
}

func (s *Store) emit() {
	s.onChange(s.ValidFiles())
}

// sizeLabel renders a byte limit for error messages; limits under a whole
// megabyte fall back to KB so they never read as 0MB.
func sizeLabel(n int64) string {
	const mb = 1024 * 1024
	switch {
	case n >= mb && n%mb == 0:
		return fmt.Sprintf("%dMB", n/mb)
	case n >= mb:
		return fmt.Sprintf("%.1fMB", float64(n)/mb)
	default:
		return fmt.Sprintf("%dKB", (n+1023)/1024)
	}
}
