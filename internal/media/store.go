// Package media stores uploaded files under a room-scoped directory tree and
// serves them back with byte-range support for seeking and late joins.
package media

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrDisallowedType is returned for uploads whose extension is not on the
// allow-list.
var ErrDisallowedType = errors.New("only mp4/webm/ogg allowed")

// ErrNotFound is returned when a requested file does not exist under the
// room's directory.
var ErrNotFound = errors.New("media file not found")

var allowedExtensions = map[string]bool{
	".mp4":  true,
	".webm": true,
	".ogg":  true,
}

// Store keeps media files under root, one subdirectory per room.
type Store struct {
	root string
}

// NewStore returns a store rooted at dir. The directory is created lazily
// per room.
func NewStore(dir string) *Store {
	return &Store{root: dir}
}

// EnsureRoomDir creates the storage directory for a room.
func (s *Store) EnsureRoomDir(roomID string) error {
	dir, err := s.roomDir(roomID)
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0o755)
}

// Save validates and stores an uploaded file, replacing any previous file of
// the same name. The stored name is the base name of the client-supplied one
// with any path components stripped. Returns the stored file name.
func (s *Store) Save(roomID, fileName string, src io.Reader) (string, error) {
	name := filepath.Base(filepath.Clean(fileName))
	if name == "." || name == string(filepath.Separator) || name == "" {
		return "", fmt.Errorf("invalid file name %q", fileName)
	}
	if !allowedExtensions[strings.ToLower(filepath.Ext(name))] {
		return "", ErrDisallowedType
	}

	if err := s.EnsureRoomDir(roomID); err != nil {
		return "", fmt.Errorf("creating room dir: %w", err)
	}
	dir, err := s.roomDir(roomID)
	if err != nil {
		return "", err
	}

	dst, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return "", fmt.Errorf("creating media file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return "", fmt.Errorf("writing media file: %w", err)
	}
	return name, nil
}

// Open resolves a room-scoped file and returns it with its size.
// Missing files map to ErrNotFound.
func (s *Store) Open(roomID, fileName string) (*os.File, int64, error) {
	dir, err := s.roomDir(roomID)
	if err != nil {
		return nil, 0, err
	}
	name := filepath.Base(filepath.Clean(fileName))
	if name != fileName || name == "." || name == ".." {
		return nil, 0, fmt.Errorf("invalid file name %q", fileName)
	}

	f, err := os.Open(filepath.Join(dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, ErrNotFound
		}
		return nil, 0, err
	}
	info, err := f.Stat()
	if err != nil || info.IsDir() {
		f.Close()
		return nil, 0, ErrNotFound
	}
	return f, info.Size(), nil
}

// roomDir rejects room ids carrying path components so a crafted id can
// never escape the storage root.
func (s *Store) roomDir(roomID string) (string, error) {
	if roomID == "" || filepath.Base(filepath.Clean(roomID)) != roomID || roomID == "." || roomID == ".." {
		return "", fmt.Errorf("invalid room id %q", roomID)
	}
	return filepath.Join(s.root, roomID), nil
}
