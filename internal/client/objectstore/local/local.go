package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/beanbocchi/parcel/internal/client/objectstore"
)

type ClientImpl struct {
	root string
}

type LocalConfig struct {
	// Root is the base directory where objects are stored on disk (e.g., ./uploads)
	Root string
}

func NewClient(cfg LocalConfig) (*ClientImpl, error) {
	if cfg.Root == "" {
		return nil, fmt.Errorf("local root is required")
	}
	if err := os.MkdirAll(cfg.Root, 0o755); err != nil {
		return nil, fmt.Errorf("create root: %w", err)
	}
	return &ClientImpl{root: cfg.Root}, nil
}

// fullPath resolves key under root. Keys that would escape the root are rejected.
func (c *ClientImpl) fullPath(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if key == "" || clean == "." || filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid key %q", key)
	}
	return filepath.Join(c.root, clean), nil
}

func (c *ClientImpl) Upload(ctx context.Context, key string, content io.Reader) error {
	path, err := c.fullPath(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}

	//! Write to temp file first, then rename for filesystem atomicity because mid-write crash will leave a partial file.
	f, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	tmpPath := f.Name()

	if _, err := io.Copy(f, content); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write file: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename file: %w", err)
	}

	return nil
}

func (c *ClientImpl) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	path, err := c.fullPath(key)
	if err != nil {
		return nil, objectstore.ErrNotFound
	}

	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, objectstore.ErrNotFound
		}
		return nil, fmt.Errorf("open file: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("stat file: %w", err)
	}
	if info.IsDir() {
		file.Close()
		return nil, objectstore.ErrNotFound
	}

	return file, nil
}

func (c *ClientImpl) Delete(ctx context.Context, key string) error {
	path, err := c.fullPath(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove file: %w", err)
	}
	return nil
}
