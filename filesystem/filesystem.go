package filesystem

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"strings"
)

var (
	ErrFileNotFound = fmt.Errorf("filesystem: file not found")
	ErrInvalidPath  = fmt.Errorf("filesystem: invalid path")
	ErrIsDirectory  = fmt.Errorf("filesystem: path is a directory")
)

const DefaultContentType = "application/octet-stream"

// Filesystem resolves request paths against a root directory. Paths are
// URL style ("/styles.css") and can never escape the root.
type Filesystem interface {
	ReadFile(path string) ([]byte, error)
	FileSize(path string) (int64, error)
	FileExists(path string) (bool, error)
	CopyFile(path string, w io.Writer) (int64, error)
	ContentType(path string) string
}

type localFileSystem struct {
	root string
}

func NewLocalFileSystem(root string) Filesystem {
	return &localFileSystem{root: root}
}

func (filesystem *localFileSystem) resolve(path string) (string, error) {
	if path == "" || strings.ContainsRune(path, 0) {
		return "", ErrInvalidPath
	}

	// Cleaning a rooted path drops every leading "..".
	cleaned := filepath.Clean("/" + filepath.FromSlash(path))
	full := filepath.Join(filesystem.root, cleaned)

	rel, err := filepath.Rel(filesystem.root, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", ErrInvalidPath
	}

	return full, nil
}

func (filesystem *localFileSystem) stat(path string) (string, os.FileInfo, error) {
	full, err := filesystem.resolve(path)
	if err != nil {
		return "", nil, err
	}

	info, err := os.Stat(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return "", nil, err
	}
	if info.IsDir() {
		return "", nil, fmt.Errorf("%w: %s", ErrIsDirectory, path)
	}

	return full, info, nil
}

func (filesystem *localFileSystem) ReadFile(path string) ([]byte, error) {
	full, _, err := filesystem.stat(path)
	if err != nil {
		return nil, err
	}

	return os.ReadFile(full)
}

func (filesystem *localFileSystem) FileSize(path string) (int64, error) {
	_, info, err := filesystem.stat(path)
	if err != nil {
		return 0, err
	}

	return info.Size(), nil
}

func (filesystem *localFileSystem) FileExists(path string) (bool, error) {
	_, _, err := filesystem.stat(path)
	if err != nil {
		if errors.Is(err, ErrFileNotFound) || errors.Is(err, ErrIsDirectory) {
			return false, nil
		}
		return false, err
	}

	return true, nil
}

// CopyFile streams the file at path into w.
func (filesystem *localFileSystem) CopyFile(path string, w io.Writer) (int64, error) {
	full, _, err := filesystem.stat(path)
	if err != nil {
		return 0, err
	}

	file, err := os.Open(full)
	if err != nil {
		return 0, err
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			slog.Error("closing file error", "path", full, "error", closeErr)
		}
	}()

	return io.Copy(w, file)
}

// ContentType guesses the MIME type from the extension.
func (filesystem *localFileSystem) ContentType(path string) string {
	if contentType := mime.TypeByExtension(filepath.Ext(path)); contentType != "" {
		return contentType
	}
	return DefaultContentType
}
