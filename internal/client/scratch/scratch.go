// Package scratch keeps the chunks of in-progress uploads on local disk.
//
// Every session owns one directory under the root, named by its id. The
// directory is the session record: a session exists exactly as long as its
// directory does. Completion and abort first rename the directory to a
// tombstone, which is atomic, so only one of them can win and late chunk
// writes observe the session as gone.
package scratch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrChunkTooLarge   = errors.New("chunk too large")
	ErrInvalidIndex    = errors.New("invalid chunk index")
)

// chtimes is swapped in tests.
var chtimes = os.Chtimes

const (
	chunkPrefix = "chunk-"
	claimPrefix = ".claimed-"
	tmpSuffix   = ".tmp"
)

type Config struct {
	// Root is the directory holding one sub-directory per session (e.g., ./temp_uploads)
	Root string
}

type Store struct {
	root string
}

// Chunk is a committed chunk file.
type Chunk struct {
	Index int
	Size  int64
	Path  string
}

func New(cfg Config) (*Store, error) {
	if cfg.Root == "" {
		return nil, fmt.Errorf("scratch root is required")
	}
	if err := os.MkdirAll(cfg.Root, 0o755); err != nil {
		return nil, fmt.Errorf("create root: %w", err)
	}
	return &Store{root: cfg.Root}, nil
}

// Root returns the scratch root directory.
func (s *Store) Root() string {
	return s.root
}

// validID only accepts canonical UUIDs so an id can never name a path outside the root.
func validID(id string) bool {
	u, err := uuid.Parse(id)
	return err == nil && u.String() == id
}

func (s *Store) sessionPath(id string) string {
	return filepath.Join(s.root, id)
}

func (s *Store) claimedPath(id string) string {
	return filepath.Join(s.root, claimPrefix+id)
}

func chunkName(index int) string {
	return chunkPrefix + strconv.Itoa(index)
}

// parseChunkName returns the index embedded in a committed chunk file name.
func parseChunkName(name string) (int, bool) {
	if !strings.HasPrefix(name, chunkPrefix) || strings.HasSuffix(name, tmpSuffix) {
		return 0, false
	}
	index, err := strconv.Atoi(strings.TrimPrefix(name, chunkPrefix))
	if err != nil || index < 0 {
		return 0, false
	}
	return index, true
}

// Create allocates the scratch directory of a new session.
func (s *Store) Create(ctx context.Context, id string) error {
	if !validID(id) {
		return fmt.Errorf("invalid session id %q", id)
	}
	if err := os.Mkdir(s.sessionPath(id), 0o755); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	return nil
}

// Exists reports whether the session is live (initialized and not yet claimed).
func (s *Store) Exists(ctx context.Context, id string) bool {
	if !validID(id) {
		return false
	}
	info, err := os.Stat(s.sessionPath(id))
	return err == nil && info.IsDir()
}

// WriteChunk stores the chunk at index, replacing any previous chunk at that index.
// At most maxSize bytes are accepted; a larger payload fails with ErrChunkTooLarge
// and leaves nothing behind.
func (s *Store) WriteChunk(ctx context.Context, id string, index int, content io.Reader, maxSize int64) (int64, error) {
	if index < 0 {
		return 0, ErrInvalidIndex
	}
	if !s.Exists(ctx, id) {
		return 0, ErrSessionNotFound
	}
	dir := s.sessionPath(id)

	//! Write to a unique temp file first, then rename, so concurrent writers never share a file
	//! and a rejected payload never becomes a visible chunk.
	f, err := os.CreateTemp(dir, chunkName(index)+"-*"+tmpSuffix)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, ErrSessionNotFound
		}
		return 0, fmt.Errorf("create temp chunk: %w", err)
	}
	tmpPath := f.Name()

	n, err := io.Copy(f, io.LimitReader(content, maxSize+1))
	if err != nil {
		f.Close()
		os.Remove(tmpPath)
		return 0, fmt.Errorf("write chunk: %w", err)
	}
	if n > maxSize {
		f.Close()
		os.Remove(tmpPath)
		return 0, ErrChunkTooLarge
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("close chunk: %w", err)
	}

	if err := os.Rename(tmpPath, filepath.Join(dir, chunkName(index))); err != nil {
		os.Remove(tmpPath)
		if errors.Is(err, fs.ErrNotExist) {
			// The session was claimed while this chunk was in flight.
			return 0, ErrSessionNotFound
		}
		return 0, fmt.Errorf("commit chunk: %w", err)
	}

	return n, nil
}

// Chunks lists the committed chunks of a live session sorted by index.
func (s *Store) Chunks(ctx context.Context, id string) ([]Chunk, error) {
	if !validID(id) {
		return nil, ErrSessionNotFound
	}
	chunks, err := listChunks(s.sessionPath(id))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrSessionNotFound
	}
	return chunks, err
}

func listChunks(dir string) ([]Chunk, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	chunks := make([]Chunk, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		index, ok := parseChunkName(entry.Name())
		if !ok {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("stat chunk: %w", err)
		}
		chunks = append(chunks, Chunk{
			Index: index,
			Size:  info.Size(),
			Path:  filepath.Join(dir, entry.Name()),
		})
	}

	sort.Slice(chunks, func(i, j int) bool { return chunks[i].Index < chunks[j].Index })
	return chunks, nil
}

// Claim takes exclusive ownership of a live session by renaming its directory
// to a tombstone. The caller must Remove or Release the claim.
func (s *Store) Claim(ctx context.Context, id string) (*Claim, error) {
	if !validID(id) {
		return nil, ErrSessionNotFound
	}

	claimed := s.claimedPath(id)
	if err := os.Rename(s.sessionPath(id), claimed); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("claim session: %w", err)
	}

	// rename does not bump the directory's own mtime, the sweeper relies on it.
	now := time.Now()
	if err := chtimes(claimed, now, now); err != nil {
		if rbErr := os.Rename(claimed, s.sessionPath(id)); rbErr != nil {
			return nil, errors.Join(fmt.Errorf("touch claimed session: %w", err), fmt.Errorf("release session: %w", rbErr))
		}
		return nil, fmt.Errorf("touch claimed session: %w", err)
	}

	return &Claim{store: s, id: id, dir: claimed}, nil
}

// Remove deletes a session outright.
func (s *Store) Remove(ctx context.Context, id string) error {
	claim, err := s.Claim(ctx, id)
	if err != nil {
		return err
	}
	return claim.Remove()
}

// Sweep removes sessions and stale tombstones whose directory has not been
// modified since cutoff. It returns the ids it removed.
func (s *Store) Sweep(ctx context.Context, cutoff time.Time) ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("read scratch root: %w", err)
	}

	var removed []string
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if !entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}

		name := entry.Name()
		if id, ok := strings.CutPrefix(name, claimPrefix); ok {
			if !validID(id) {
				continue
			}
			if err := os.RemoveAll(filepath.Join(s.root, name)); err != nil {
				return removed, fmt.Errorf("remove tombstone %s: %w", id, err)
			}
			removed = append(removed, id)
			continue
		}

		if !validID(name) {
			continue
		}
		if err := s.Remove(ctx, name); err != nil {
			if errors.Is(err, ErrSessionNotFound) {
				continue
			}
			return removed, fmt.Errorf("remove session %s: %w", name, err)
		}
		removed = append(removed, name)
	}

	return removed, nil
}

// Claim is a session exclusively held for completion or removal.
type Claim struct {
	store *Store
	id    string
	dir   string
}

func (c *Claim) ID() string {
	return c.id
}

// Chunks lists the committed chunks of the claimed session sorted by index.
func (c *Claim) Chunks() ([]Chunk, error) {
	chunks, err := listChunks(c.dir)
	if err != nil {
		return nil, fmt.Errorf("list chunks: %w", err)
	}
	return chunks, nil
}

// Release gives the session back, leaving its chunks untouched.
func (c *Claim) Release() error {
	if err := os.Rename(c.dir, c.store.sessionPath(c.id)); err != nil {
		return fmt.Errorf("release session: %w", err)
	}
	return nil
}

// Remove deletes the claimed session and all of its chunks.
func (c *Claim) Remove() error {
	if err := os.RemoveAll(c.dir); err != nil {
		return fmt.Errorf("remove session: %w", err)
	}
	return nil
}
