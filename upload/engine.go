package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/moyoez/dropzone-go/tool"
	"github.com/moyoez/dropzone-go/types"
)

// PartialSuffix marks a file that is still receiving chunks.
const PartialSuffix = ".partial"

// Notifier receives finalized and cancelled uploads. Implementations must return promptly
// and handle their own failures; the engine never waits on delivery.
type Notifier interface {
	NotifyUploadComplete(relativePath string, size int64)
	NotifyUploadCancelled(relativePath string)
}

type EngineConfig struct {
	Root              string
	MaxFileSize       int64    // bytes, 0 disables the check
	AllowedExtensions []string // lowercase with leading dot, empty allows everything
}

// InitResult describes a newly initiated upload.
type InitResult struct {
	UploadID  string
	Path      string // resolved path relative to the root
	BatchID   string
	Completed bool // zero-byte files are finalized during init
}

// ChunkResult is the progress after an accepted chunk.
type ChunkResult struct {
	BytesReceived int64
	Progress      int
	Completed     bool
}

// Engine drives uploads from init through chunk ingestion to the final rename.
type Engine struct {
	root        string
	maxFileSize int64
	allowed     []string
	store       SessionStore
	batches     *BatchTracker
	resolver    *Resolver
	notifier    Notifier
	locks       *keyedMutex
	now         func() time.Time
	newID       func() string
}

func NewEngine(cfg EngineConfig, store SessionStore, batches *BatchTracker, notifier Notifier) (*Engine, error) {
	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("resolve upload root: %w", err)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create upload root: %w", err)
	}
	return &Engine{
		root:        root,
		maxFileSize: cfg.MaxFileSize,
		allowed:     tool.NormalizeExtensions(cfg.AllowedExtensions),
		store:       store,
		batches:     batches,
		resolver:    NewResolver(root, MetadataDirName, batches),
		notifier:    notifier,
		locks:       newKeyedMutex(),
		now:         time.Now,
		newID:       tool.GenerateRandomUUID,
	}, nil
}

// Root returns the absolute upload root.
func (e *Engine) Root() string {
	return e.root
}

func (e *Engine) extensionAllowed(name string) bool {
	if len(e.allowed) == 0 {
		return true
	}
	return slices.Contains(e.allowed, strings.ToLower(filepath.Ext(name)))
}

// Init validates the request, reserves a unique target and persists a new session.
// Client input problems come back as *RejectError before anything touches the disk.
func (e *Engine) Init(ctx context.Context, rawPath string, size int64, batchID string) (*InitResult, error) {
	if size < 0 {
		return nil, reject(ReasonInvalidSize, "size must not be negative: %d", size)
	}
	if e.maxFileSize > 0 && size > e.maxFileSize {
		re := reject(ReasonFileTooLarge, "declared size %d exceeds limit %d", size, e.maxFileSize)
		re.Limit = e.maxFileSize
		return nil, re
	}
	switch {
	case batchID == "":
		batchID = tool.GenerateBatchID()
	case !ValidBatchID(batchID):
		return nil, reject(ReasonInvalidBatchID, "batch id %q is malformed", batchID)
	}
	segs, err := SanitizePath(rawPath)
	if err != nil {
		return nil, err
	}
	if name := segs[len(segs)-1]; !e.extensionAllowed(name) {
		re := reject(ReasonExtensionNotAllowed, "file type %q is not allowed", filepath.Ext(name))
		re.Allowed = slices.Clone(e.allowed)
		return nil, re
	}
	e.batches.Touch(batchID)
	uploadID := e.newID()

	if size == 0 {
		res, err := e.resolver.Resolve(rawPath, batchID, func(target string) error {
			// an in-flight upload owns this name until its partial file is renamed
			if _, err := os.Lstat(target + PartialSuffix); err == nil {
				return fs.ErrExist
			}
			return createExclusive(target)
		})
		if err != nil {
			return nil, err
		}
		tool.DefaultLogger.Infof("[Init] Created empty file %s (batch %s)", res.Relative, batchID)
		e.notify(res.Relative, 0)
		return &InitResult{UploadID: uploadID, Path: res.Relative, BatchID: batchID, Completed: true}, nil
	}

	res, err := e.resolver.Resolve(rawPath, batchID, func(target string) error {
		return createExclusive(target + PartialSuffix)
	})
	if err != nil {
		return nil, err
	}
	now := e.now()
	session := &types.UploadSession{
		UploadId:     uploadID,
		OriginalPath: res.Original,
		TargetPath:   res.Target,
		PartialPath:  res.Target + PartialSuffix,
		RelativePath: res.Relative,
		ExpectedSize: size,
		BatchId:      batchID,
		State:        types.UploadStateInit,
		CreatedAt:    now,
		LastActivity: now,
	}
	if err := e.store.Create(ctx, session); err != nil {
		removeQuiet(session.PartialPath)
		return nil, fmt.Errorf("persist session: %w", err)
	}
	tool.DefaultLogger.Infof("[Init] Upload %s -> %s (%d bytes, batch %s)", uploadID, res.Relative, size, batchID)
	return &InitResult{UploadID: uploadID, Path: res.Relative, BatchID: batchID}, nil
}

// AppendChunk appends data to the upload's partial file. Bytes past the declared size are
// dropped. The record is persisted before the final rename so a crash mid-finalize leaves
// a session the janitor can finish. ErrNotFound means the upload is gone, most likely
// because it already completed.
func (e *Engine) AppendChunk(ctx context.Context, uploadID string, data io.Reader) (*ChunkResult, error) {
	unlock := e.locks.Lock(uploadID)
	defer unlock()

	session, err := e.store.Read(ctx, uploadID)
	if err != nil {
		return nil, err
	}
	e.batches.Touch(session.BatchId)

	if session.Complete() {
		// replayed final chunk; nothing to append
		if err := e.finalize(ctx, session); err != nil {
			tool.DefaultLogger.Errorf("[Chunk] Finalize retry for %s failed: %v", uploadID, err)
		}
		return &ChunkResult{BytesReceived: session.BytesReceived, Progress: 100, Completed: true}, nil
	}

	remaining := session.ExpectedSize - session.BytesReceived
	n, err := e.appendPartial(ctx, session, io.LimitReader(data, remaining))
	if err != nil {
		return nil, fmt.Errorf("append chunk to %s: %w", uploadID, err)
	}
	if extra, _ := io.CopyN(io.Discard, data, 1); extra > 0 {
		tool.DefaultLogger.Warnf("[Chunk] Upload %s sent more than the declared %d bytes; excess dropped", uploadID, session.ExpectedSize)
	}

	session.BytesReceived += n
	session.LastActivity = e.now()
	session.State = types.UploadStateReceiving
	if session.Complete() {
		session.State = types.UploadStateFinalizing
	}
	if err := e.store.Update(ctx, session); err != nil {
		return nil, fmt.Errorf("persist progress for %s: %w", uploadID, err)
	}
	tool.DefaultLogger.Debugf("[Chunk] Upload %s: %d/%d bytes", uploadID, session.BytesReceived, session.ExpectedSize)

	if session.Complete() {
		if err := e.finalize(ctx, session); err != nil {
			// bytes are durable; the client still gets a success-shaped reply
			tool.DefaultLogger.Errorf("[Chunk] Upload %s received fully but finalize failed: %v", uploadID, err)
		}
	}
	return &ChunkResult{
		BytesReceived: session.BytesReceived,
		Progress:      session.Progress(),
		Completed:     session.Complete(),
	}, nil
}

// appendPartial writes r at offset BytesReceived. Bytes beyond that offset were never
// acknowledged (a failed write or a crash before the record update) and are cut first.
// On failure the file is cut back so a retry of the same chunk is safe.
func (e *Engine) appendPartial(ctx context.Context, session *types.UploadSession, r io.Reader) (int64, error) {
	f, err := os.OpenFile(session.PartialPath, os.O_WRONLY|os.O_CREATE, 0o644)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err := f.Close(); err != nil {
			tool.DefaultLogger.Errorf("Failed to close file: %v", err)
		}
	}()

	info, err := f.Stat()
	if err != nil {
		return 0, err
	}
	acked := session.BytesReceived
	switch {
	case info.Size() < acked:
		return 0, fmt.Errorf("%w: %s has %d bytes, session says %d", ErrPartialMismatch, session.PartialPath, info.Size(), acked)
	case info.Size() > acked:
		tool.DefaultLogger.Warnf("[Chunk] Discarding %d unacknowledged bytes from %s", info.Size()-acked, session.PartialPath)
		if err := f.Truncate(acked); err != nil {
			return 0, err
		}
	}
	if _, err := f.Seek(acked, io.SeekStart); err != nil {
		return 0, err
	}

	n, err := tool.CopyWithContext(ctx, f, r)
	if err == nil {
		err = f.Sync()
	}
	if err != nil {
		if terr := f.Truncate(acked); terr != nil {
			tool.DefaultLogger.Errorf("[Chunk] Failed to roll back %s: %v", session.PartialPath, terr)
		}
		return 0, err
	}
	return n, nil
}

// finalize renames the partial file into place and removes the session. A missing partial
// means an earlier attempt already renamed it. Any other rename failure keeps both the
// record and the partial file for manual recovery.
func (e *Engine) finalize(ctx context.Context, session *types.UploadSession) error {
	if err := os.Rename(session.PartialPath, session.TargetPath); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			tool.DefaultLogger.Errorf("[Finalize] Rename %s -> %s failed, keeping session %s and partial file for recovery: %v",
				session.PartialPath, session.TargetPath, session.UploadId, err)
			return err
		}
		tool.DefaultLogger.Warnf("[Finalize] Partial file for %s already gone, treating as finalized", session.UploadId)
		if err := e.store.Delete(ctx, session.UploadId); err != nil {
			tool.DefaultLogger.Errorf("[Finalize] Failed to delete session %s: %v", session.UploadId, err)
		}
		return nil
	}
	session.State = types.UploadStateDone
	if err := e.store.Delete(ctx, session.UploadId); err != nil {
		tool.DefaultLogger.Errorf("[Finalize] Failed to delete session %s: %v", session.UploadId, err)
	}
	tool.DefaultLogger.Infof("[Finalize] Upload %s completed: %s (%d bytes)", session.UploadId, session.RelativePath, session.ExpectedSize)
	e.notify(session.RelativePath, session.ExpectedSize)
	return nil
}

// Cancel removes the partial file and the session. It is best-effort and idempotent;
// the return value only reports whether a session existed.
func (e *Engine) Cancel(ctx context.Context, uploadID string) bool {
	unlock := e.locks.Lock(uploadID)
	defer unlock()

	session, err := e.store.Read(ctx, uploadID)
	if errors.Is(err, ErrNotFound) {
		tool.DefaultLogger.Debugf("[Cancel] Upload %s not found, nothing to cancel", uploadID)
		return false
	}
	if err != nil {
		tool.DefaultLogger.Warnf("[Cancel] Session %s unreadable, removing record only: %v", uploadID, err)
	} else {
		removeQuiet(session.PartialPath)
		session.State = types.UploadStateCancelled
	}
	if err := e.store.Delete(ctx, uploadID); err != nil {
		tool.DefaultLogger.Errorf("[Cancel] Failed to delete session %s: %v", uploadID, err)
	}
	tool.DefaultLogger.Infof("[Cancel] Upload %s cancelled", uploadID)
	if session != nil && e.notifier != nil {
		e.notifier.NotifyUploadCancelled(session.RelativePath)
	}
	return true
}

// SweepStale removes sessions idle since before cutoff together with their partial files.
// Sessions that already hold every byte are finalized instead, so a failed rename is
// retried rather than discarded.
func (e *Engine) SweepStale(ctx context.Context, cutoff time.Time) (int, error) {
	sessions, err := e.store.ListAll(ctx)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, s := range sessions {
		if !s.LastActivity.Before(cutoff) {
			continue
		}
		if e.sweepOne(ctx, s.UploadId, cutoff) {
			removed++
		}
	}
	return removed, nil
}

func (e *Engine) sweepOne(ctx context.Context, uploadID string, cutoff time.Time) bool {
	unlock := e.locks.Lock(uploadID)
	defer unlock()

	// re-read under the lock; a chunk may have arrived since the listing
	session, err := e.store.Read(ctx, uploadID)
	if err != nil || !session.LastActivity.Before(cutoff) {
		return false
	}
	if session.Complete() {
		if err := e.finalize(ctx, session); err != nil {
			return false
		}
		return true
	}
	removeQuiet(session.PartialPath)
	if err := e.store.Delete(ctx, uploadID); err != nil {
		tool.DefaultLogger.Errorf("[Janitor] Failed to delete session %s: %v", uploadID, err)
		return false
	}
	tool.DefaultLogger.Infof("[Janitor] Removed stale upload %s (%s, %d/%d bytes, idle since %s)",
		uploadID, session.RelativePath, session.BytesReceived, session.ExpectedSize,
		session.LastActivity.Format(time.RFC3339))
	return true
}

// ActiveUploads returns the number of durable sessions.
func (e *Engine) ActiveUploads(ctx context.Context) int {
	sessions, err := e.store.ListAll(ctx)
	if err != nil {
		return 0
	}
	return len(sessions)
}

func (e *Engine) notify(relativePath string, size int64) {
	if e.notifier == nil {
		return
	}
	e.notifier.NotifyUploadComplete(relativePath, size)
}

func createExclusive(p string) error {
	f, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	return f.Close()
}

func removeQuiet(p string) {
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		tool.DefaultLogger.Warnf("Failed to remove %s: %v", p, err)
	}
}
