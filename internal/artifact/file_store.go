package artifact

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"sync"
)

const latestFile = "latest"

var versionFile = regexp.MustCompile(`^model_v(\d+)\.art\.zst$`)

// FileStore keeps artifacts in a directory as model_vN.art.zst with a
// model_vN.meta.json sidecar. The latest file names the current version.
// Versions older than the newest Keep are pruned after every Save.
type FileStore struct {
	dir    string
	keep   int
	logger *slog.Logger
	mu     sync.Mutex
}

// NewFileStore creates dir if needed. keep <= 0 disables pruning.
func NewFileStore(dir string, keep int, logger *slog.Logger) (*FileStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("artifact dir: %w", err)
	}
	return &FileStore{dir: dir, keep: keep, logger: logger}, nil
}

func (s *FileStore) blobPath(v int) string {
	return filepath.Join(s.dir, fmt.Sprintf("model_v%d.art.zst", v))
}

func (s *FileStore) metaPath(v int) string {
	return filepath.Join(s.dir, fmt.Sprintf("model_v%d.meta.json", v))
}

func (s *FileStore) Save(_ context.Context, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	versions, err := s.versions()
	if err != nil {
		return err
	}
	rec.Version = 1
	if len(versions) > 0 {
		rec.Version = versions[len(versions)-1] + 1
	}
	meta, err := json.Marshal(metaOnly(rec))
	if err != nil {
		return err
	}
	if err := writeAtomic(s.blobPath(rec.Version), rec.Blob); err != nil {
		return err
	}
	if err := writeAtomic(s.metaPath(rec.Version), meta); err != nil {
		return err
	}
	if err := writeAtomic(filepath.Join(s.dir, latestFile), []byte(strconv.Itoa(rec.Version)+"\n")); err != nil {
		return err
	}
	s.logger.Info("artifact saved", "version", rec.Version, "path", s.blobPath(rec.Version), "bytes", len(rec.Blob))
	s.prune(append(versions, rec.Version))
	return nil
}

func (s *FileStore) Get(_ context.Context, version int) (*Record, error) {
	return s.read(version, true)
}

func (s *FileStore) Latest(_ context.Context) (*Record, error) {
	b, err := os.ReadFile(filepath.Join(s.dir, latestFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	v, err := strconv.Atoi(strings.TrimSpace(string(b)))
	if err != nil {
		return nil, fmt.Errorf("%w: latest pointer %q", ErrCorrupt, b)
	}
	return s.read(v, true)
}

func (s *FileStore) List(_ context.Context) ([]Record, error) {
	versions, err := s.versions()
	if err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(versions))
	for i := len(versions) - 1; i >= 0; i-- {
		r, err := s.read(versions[i], false)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, nil
}

func (s *FileStore) Ping(context.Context) error {
	_, err := os.Stat(s.dir)
	return err
}

func (s *FileStore) read(version int, withBlob bool) (*Record, error) {
	meta, err := os.ReadFile(s.metaPath(version))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var r Record
	if err := json.Unmarshal(meta, &r); err != nil {
		return nil, fmt.Errorf("%w: version %d metadata: %v", ErrCorrupt, version, err)
	}
	if withBlob {
		if r.Blob, err = os.ReadFile(s.blobPath(version)); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, ErrNotFound
			}
			return nil, err
		}
	}
	return &r, nil
}

// versions lists stored versions in ascending order.
func (s *FileStore) versions() ([]int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	var out []int
	for _, e := range entries {
		m := versionFile.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		v, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		out = append(out, v)
	}
	slices.Sort(out)
	return out, nil
}

// prune removes all but the newest keep versions. Failures are logged.
func (s *FileStore) prune(versions []int) {
	if s.keep <= 0 || len(versions) <= s.keep {
		return
	}
	for _, v := range versions[:len(versions)-s.keep] {
		for _, p := range []string{s.blobPath(v), s.metaPath(v)} {
			if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
				s.logger.Warn("artifact prune failed", "path", p, "error", err)
			}
		}
		s.logger.Info("artifact pruned", "version", v)
	}
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
