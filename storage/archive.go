package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"voting-ledger/log"
)

const archiveTimeFormat = "20060102150405" // YYYYMMDDhhmmss

// Archive keeps the most recent exports in a directory, named
// chain_<timestamp>.json, or chain_<timestamp>_<n>.json for the n-th
// further export within the same second.
type Archive struct {
	dir   string
	keep  int
	now   func() time.Time
	mutex sync.Mutex
}

type chainFile struct {
	path      string
	timestamp time.Time
	seq       int
}

// NewArchive creates dir if needed. keep <= 0 keeps every export.
func NewArchive(dir string, keep int) (*Archive, error) {
	absPath, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}
	if err := os.MkdirAll(absPath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return &Archive{dir: absPath, keep: keep, now: time.Now}, nil
}

func (a *Archive) Dir() string { return a.dir }

// Save writes exp under a timestamped name and prunes old exports.
func (a *Archive) Save(exp *Export) (string, error) {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	now := a.now().UTC()
	if exp.ExportedAt.IsZero() {
		exp.ExportedAt = now
	}
	path, err := a.freePath(now)
	if err != nil {
		return "", err
	}
	if err := WriteChain(path, exp); err != nil {
		return "", err
	}
	log.Infow("chain exported", "path", path, "blocks", len(exp.Blocks))

	if err := a.cleanup(); err != nil {
		log.Warnf("failed to cleanup old exports: %v", err)
	}
	return path, nil
}

// Latest returns the path of the newest export, or "" if there is none.
func (a *Archive) Latest() (string, error) {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	files, err := a.list()
	if err != nil {
		return "", err
	}
	if len(files) == 0 {
		return "", nil
	}
	return files[len(files)-1].path, nil
}

// freePath returns the first export name for now that is not taken yet.
func (a *Archive) freePath(now time.Time) (string, error) {
	stamp := now.Format(archiveTimeFormat)
	path := filepath.Join(a.dir, fmt.Sprintf("chain_%s.json", stamp))
	for seq := 1; ; seq++ {
		_, err := os.Stat(path)
		if os.IsNotExist(err) {
			return path, nil
		}
		if err != nil {
			return "", fmt.Errorf("failed to check %s: %w", path, err)
		}
		path = filepath.Join(a.dir, fmt.Sprintf("chain_%s_%d.json", stamp, seq))
	}
}

// list returns the exports sorted oldest first. Files whose name does not
// carry a valid timestamp are ignored.
func (a *Archive) list() ([]chainFile, error) {
	matches, err := filepath.Glob(filepath.Join(a.dir, "chain_*.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	var files []chainFile
	for _, file := range matches {
		base := filepath.Base(file)
		stamp := strings.TrimSuffix(strings.TrimPrefix(base, "chain_"), ".json")
		seq := 0
		if i := strings.IndexByte(stamp, '_'); i >= 0 {
			n, err := strconv.Atoi(stamp[i+1:])
			if err != nil || n < 1 {
				log.Debugf("ignoring %s: invalid sequence number", base)
				continue
			}
			stamp, seq = stamp[:i], n
		}
		ts, err := time.Parse(archiveTimeFormat, stamp)
		if err != nil {
			log.Debugf("ignoring %s: invalid timestamp: %v", base, err)
			continue
		}
		files = append(files, chainFile{path: file, timestamp: ts, seq: seq})
	}
	sort.Slice(files, func(i, j int) bool {
		if !files[i].timestamp.Equal(files[j].timestamp) {
			return files[i].timestamp.Before(files[j].timestamp)
		}
		return files[i].seq < files[j].seq
	})
	return files, nil
}

func (a *Archive) cleanup() error {
	if a.keep <= 0 {
		return nil
	}
	files, err := a.list()
	if err != nil {
		return err
	}
	for i := 0; i < len(files)-a.keep; i++ {
		if err := os.Remove(files[i].path); err != nil {
			log.Warnf("failed to remove old export %s: %v", files[i].path, err)
			continue
		}
		log.Debugf("removed old export %s", files[i].path)
	}
	return nil
}
