package upload

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"syscall"
	"time"

	"github.com/bytedance/sonic"
	"github.com/moyoez/dropzone-go/tool"
	"github.com/moyoez/dropzone-go/types"
)

const (
	// MetadataDirName is the reserved directory below the upload root holding session records.
	MetadataDirName = ".metadata"
	sessionExt      = ".meta"
	tempMarker      = ".tmp-"
)

var uploadIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,127}$`)

// SessionStore is the durable CRUD surface for upload sessions.
type SessionStore interface {
	Create(ctx context.Context, session *types.UploadSession) error
	Read(ctx context.Context, uploadID string) (*types.UploadSession, error)
	Update(ctx context.Context, session *types.UploadSession) error
	Delete(ctx context.Context, uploadID string) error
	ListAll(ctx context.Context) ([]*types.UploadSession, error)
}

// FileSessionStore keeps one JSON document per upload in a directory. Every write goes to a
// temp file that is fsynced and then linked or renamed into place, so readers never observe
// a half-written record.
type FileSessionStore struct {
	dir  string
	link func(oldname, newname string) error
}

var _ SessionStore = (*FileSessionStore)(nil)

func NewFileSessionStore(dir string) (*FileSessionStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}
	return &FileSessionStore{dir: dir, link: os.Link}, nil
}

// Dir returns the directory holding the session records.
func (s *FileSessionStore) Dir() string {
	return s.dir
}

func (s *FileSessionStore) recordPath(uploadID string) (string, bool) {
	if !uploadIDPattern.MatchString(uploadID) {
		return "", false
	}
	return filepath.Join(s.dir, uploadID+sessionExt), true
}

func (s *FileSessionStore) writeTemp(uploadID string, session *types.UploadSession) (string, error) {
	data, err := sonic.Marshal(session)
	if err != nil {
		return "", fmt.Errorf("encode session %s: %w", uploadID, err)
	}
	f, err := os.CreateTemp(s.dir, uploadID+sessionExt+tempMarker+"*")
	if err != nil {
		return "", err
	}
	tmp := f.Name()
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return "", err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return "", err
	}
	return tmp, nil
}

// Create persists a new session and fails with ErrSessionExists if the id is taken.
func (s *FileSessionStore) Create(_ context.Context, session *types.UploadSession) error {
	final, ok := s.recordPath(session.UploadId)
	if !ok {
		return fmt.Errorf("invalid upload id %q", session.UploadId)
	}
	tmp, err := s.writeTemp(session.UploadId, session)
	if err != nil {
		return err
	}
	defer os.Remove(tmp)
	// link fails if final exists, which gives create-if-absent without a lock
	err = s.link(tmp, final)
	if linkUnsupported(err) {
		err = reserveAndReplace(tmp, final)
	}
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return ErrSessionExists
		}
		return fmt.Errorf("publish session %s: %w", session.UploadId, err)
	}
	return nil
}

// linkUnsupported reports whether err means the filesystem has no hard links (FAT, exFAT,
// some network and FUSE mounts).
func linkUnsupported(err error) bool {
	return errors.Is(err, syscall.EPERM) ||
		errors.Is(err, syscall.ENOTSUP) ||
		errors.Is(err, syscall.EOPNOTSUPP) ||
		errors.Is(err, syscall.EXDEV) ||
		errors.Is(err, syscall.ENOSYS)
}

// reserveAndReplace claims final with an exclusive create and then renames tmp over it.
// Until the rename lands, readers see an empty record and treat it as corrupt.
func reserveAndReplace(tmp, final string) error {
	f, err := os.OpenFile(final, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	f.Close()
	if err := os.Rename(tmp, final); err != nil {
		os.Remove(final)
		return err
	}
	return nil
}

// Read returns ErrNotFound when no record exists; a missing record is the normal state
// after finalize or cancel.
func (s *FileSessionStore) Read(_ context.Context, uploadID string) (*types.UploadSession, error) {
	p, ok := s.recordPath(uploadID)
	if !ok {
		return nil, ErrNotFound
	}
	return readRecord(p)
}

func readRecord(p string) (*types.UploadSession, error) {
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var session types.UploadSession
	if err := sonic.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("%w %s: %v", ErrCorruptSession, filepath.Base(p), err)
	}
	if session.UploadId == "" {
		return nil, fmt.Errorf("%w %s: missing uploadId", ErrCorruptSession, filepath.Base(p))
	}
	return &session, nil
}

// Update atomically replaces the stored record; the last writer wins.
func (s *FileSessionStore) Update(_ context.Context, session *types.UploadSession) error {
	final, ok := s.recordPath(session.UploadId)
	if !ok {
		return fmt.Errorf("invalid upload id %q", session.UploadId)
	}
	tmp, err := s.writeTemp(session.UploadId, session)
	if err != nil {
		return err
	}
	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace session %s: %w", session.UploadId, err)
	}
	return nil
}

// Delete removes the record. A missing record is not an error.
func (s *FileSessionStore) Delete(_ context.Context, uploadID string) error {
	p, ok := s.recordPath(uploadID)
	if !ok {
		return nil
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// ListAll returns every readable session. Corrupt or unreadable records are logged and skipped.
func (s *FileSessionStore) ListAll(ctx context.Context) ([]*types.UploadSession, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	sessions := make([]*types.UploadSession, 0, len(entries))
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return sessions, err
		}
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, sessionExt) {
			continue
		}
		session, err := readRecord(filepath.Join(s.dir, name))
		if err != nil {
			if !errors.Is(err, ErrNotFound) {
				tool.DefaultLogger.Warnf("[SessionStore] Skipping unreadable record %s: %v", name, err)
			}
			continue
		}
		sessions = append(sessions, session)
	}
	return sessions, nil
}

// SweepTemp removes temp files left by writes interrupted before their rename.
func (s *FileSessionStore) SweepTemp(cutoff time.Time) int {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		tool.DefaultLogger.Warnf("[SessionStore] Failed to list %s: %v", s.dir, err)
		return 0
	}
	removed := 0
	for _, entry := range entries {
		if !strings.Contains(entry.Name(), tempMarker) {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, entry.Name())); err == nil {
			removed++
		}
	}
	return removed
}
