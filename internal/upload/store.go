// Package upload stores item photos on disk under timestamp-prefixed names.
package upload

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// PublicPrefix is the URL path stored images are served under.
const PublicPrefix = "/uploads/"

// Store writes processed images into Dir.
type Store struct {
	Dir string
	now func() time.Time
}

// New creates the upload directory if needed.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating upload directory: %w", err)
	}
	return &Store{Dir: dir, now: time.Now}, nil
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// baseName turns a client filename into a short, path-free stem.
func baseName(original string) string {
	name := filepath.Base(strings.ReplaceAll(original, `\`, "/"))
	name = strings.TrimSuffix(name, filepath.Ext(name))
	name = strings.Trim(unsafeChars.ReplaceAllString(name, "_"), "._-")
	if len(name) > 64 {
		name = name[:64]
	}
	if name == "" {
		name = "image"
	}
	return name
}

// Save normalizes the image read from r and writes it as
// <unix millis>_<name>.jpg. If that file already exists a random suffix is
// added instead of overwriting. It returns the stored path (Dir joined with
// the file name), which is what items reference.
func (s *Store) Save(originalName string, r io.Reader) (string, error) {
	data, err := normalize(r)
	if err != nil {
		return "", err
	}

	prefix := strconv.FormatInt(s.now().UnixMilli(), 10) + "_" + baseName(originalName)
	candidates := []string{prefix + ".jpg", prefix + "_" + uuid.NewString()[:8] + ".jpg"}

	for _, name := range candidates {
		path := filepath.Join(s.Dir, name)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("creating image file: %w", err)
		}
		if _, err := f.Write(data); err != nil {
			f.Close()
			os.Remove(path)
			return "", fmt.Errorf("writing image file: %w", err)
		}
		if err := f.Close(); err != nil {
			os.Remove(path)
			return "", fmt.Errorf("closing image file: %w", err)
		}
		return path, nil
	}
	return "", fmt.Errorf("image file name %s is taken", prefix)
}

// URL returns the public reference for a file written by Save.
func (s *Store) URL(file string) string {
	return PublicPrefix + filepath.Base(file)
}

// Resolve maps a public reference back to its file in Dir. Only the last
// element of ref is used, so the result never leaves Dir.
func (s *Store) Resolve(ref string) string {
	return filepath.Join(s.Dir, path.Base(ref))
}

// Handler serves stored images. Directory listings are not exposed.
func (s *Store) Handler() http.Handler {
	files := http.StripPrefix(PublicPrefix, http.FileServer(http.Dir(s.Dir)))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("X-Content-Type-Options", "nosniff")
		files.ServeHTTP(w, r)
	})
}

// Remove deletes a stored image. A file that is already gone is not an
// error; paths outside Dir are refused.
func (s *Store) Remove(file string) error {
	if file == "" {
		return nil
	}
	rel, err := filepath.Rel(s.Dir, filepath.Clean(file))
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") || filepath.IsAbs(rel) {
		return fmt.Errorf("refusing to remove %q outside upload directory", file)
	}

	err = os.Remove(filepath.Join(s.Dir, rel))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing image file: %w", err)
	}
	return nil
}
