// Package scratch implements the per-job scratch store (C1): a
// directory tree under a configured root where each stage's
// intermediate artifacts (images, audio clips, video segments) are
// written atomically and can later be promoted or discarded as a
// whole.
package scratch

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/yungbote/novelvideo/internal/pipeline/pipeerr"
	"github.com/yungbote/novelvideo/internal/platform/logger"
)

// Store roots every job's scratch directory under Root. Writes are
// made atomic by writing to a temp file in the same subtree and
// renaming into place, so a crash mid-write never leaves a partial
// file visible under its final name.
type Store struct {
	Root string
	log  *logger.Logger
}

func NewStore(root string, log *logger.Logger) *Store {
	return &Store{Root: root, log: log}
}

// JobDir is a handle scoped to one job's subtree of the store.
type JobDir struct {
	store *Store
	jobID uuid.UUID
	path  string
}

func (s *Store) ForJob(jobID uuid.UUID) (*JobDir, error) {
	path := filepath.Join(s.Root, jobID.String())
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, pipeerr.NewStorage("scratch", "create job scratch dir", err)
	}
	return &JobDir{store: s, jobID: jobID, path: path}, nil
}

// Path returns the job subdirectory's absolute path.
func (j *JobDir) Path() string { return j.path }

// Sub ensures and returns a named subdirectory of the job's scratch
// dir, e.g. "images", "audio", "clips".
func (j *JobDir) Sub(name string) (string, error) {
	p := filepath.Join(j.path, name)
	if err := os.MkdirAll(p, 0o755); err != nil {
		return "", pipeerr.NewStorage("scratch", fmt.Sprintf("create scratch subdir %q", name), err)
	}
	return p, nil
}

// WriteAtomic writes data to name (relative to sub, which is created
// if needed) via a temp file in the same directory, fsyncs it, then
// renames it into place. Returns the final absolute path.
func (j *JobDir) WriteAtomic(sub, name string, data []byte) (string, error) {
	dir, err := j.Sub(sub)
	if err != nil {
		return "", err
	}
	final := filepath.Join(dir, name)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return "", pipeerr.NewStorage("scratch", "create temp file", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", pipeerr.NewStorage("scratch", "write temp file", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return "", pipeerr.NewStorage("scratch", "fsync temp file", err)
	}
	if err := tmp.Close(); err != nil {
		return "", pipeerr.NewStorage("scratch", "close temp file", err)
	}
	if err := os.Rename(tmpPath, final); err != nil {
		return "", pipeerr.NewStorage("scratch", "rename temp file into place", err)
	}
	return final, nil
}

// WriteAtomicNamed computes a content-addressed filename (sha256 of
// data, first 16 hex chars, per the media tooling's convention) with
// the given extension and writes it atomically.
func (j *JobDir) WriteAtomicNamed(sub string, data []byte, ext string) (string, error) {
	sum := sha256.Sum256(data)
	name := hex.EncodeToString(sum[:])[:16] + ext
	return j.WriteAtomic(sub, name, data)
}

// Promote moves a finished artifact out of job scratch into destPath.
// It tries os.Rename first; if that fails (e.g. destPath is on a
// different filesystem) it falls back to copy+fsync+rename, which
// leaves the source file in place.
func (j *JobDir) Promote(srcPath, destPath string) error {
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return pipeerr.NewStorage("scratch", "create destination dir", err)
	}
	if sameVolume(srcPath, destPath) {
		if err := os.Rename(srcPath, destPath); err == nil {
			return nil
		}
	}
	return copyThenSync(srcPath, destPath)
}

func sameVolume(a, b string) bool {
	return filepath.VolumeName(a) == filepath.VolumeName(b)
}

func copyThenSync(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return pipeerr.NewStorage("scratch", "open promote source", err)
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".tmp-promote-*")
	if err != nil {
		return pipeerr.NewStorage("scratch", "create promote temp file", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		return pipeerr.NewStorage("scratch", "copy promote data", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return pipeerr.NewStorage("scratch", "fsync promote temp file", err)
	}
	if err := tmp.Close(); err != nil {
		return pipeerr.NewStorage("scratch", "close promote temp file", err)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		return pipeerr.NewStorage("scratch", "rename promote temp file into place", err)
	}
	return nil
}

// Cleanup removes the job's entire scratch subtree. Callers decide
// whether to invoke this on failure based on Options.RetainScratchOnFailure.
func (s *Store) Cleanup(jobID uuid.UUID) error {
	path := filepath.Join(s.Root, jobID.String())
	if err := os.RemoveAll(path); err != nil {
		return pipeerr.NewStorage("scratch", "cleanup job scratch dir", err)
	}
	if s.log != nil {
		s.log.Debug("scratch cleaned up", "job_id", jobID.String())
	}
	return nil
}
