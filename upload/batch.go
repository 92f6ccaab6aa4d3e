package upload

import (
	"regexp"
	"sync"
	"time"

	"github.com/moyoez/dropzone-go/tool"
)

var batchIDPattern = regexp.MustCompile(`^\d+-[a-z0-9]{9}$`)

// ValidBatchID reports whether id has the "<timestamp>-<9 alphanumerics>" shape.
func ValidBatchID(id string) bool {
	return batchIDPattern.MatchString(id)
}

type batchEntry struct {
	mu           sync.Mutex // guards folders; held while a folder is created
	lastActivity time.Time
	folders      map[string]string // client folder name -> folder chosen on disk
}

// BatchTracker owns the in-memory batch table: activity timestamps and the per-batch
// folder remappings. Nothing here is durable; forgetting a batch only forgets its remappings.
type BatchTracker struct {
	mu      sync.Mutex
	batches map[string]*batchEntry
	timeout time.Duration
	now     func() time.Time
}

func NewBatchTracker(timeout time.Duration) *BatchTracker {
	return &BatchTracker{
		batches: make(map[string]*batchEntry),
		timeout: timeout,
		now:     time.Now,
	}
}

func (t *BatchTracker) entry(batchID string) *batchEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.batches[batchID]
	if !ok {
		e = &batchEntry{folders: make(map[string]string)}
		t.batches[batchID] = e
	}
	e.lastActivity = t.now()
	return e
}

// Touch records activity for batchID, creating the entry if needed.
func (t *BatchTracker) Touch(batchID string) {
	if batchID == "" {
		return
	}
	t.entry(batchID)
}

// ResolveFolder returns the on-disk folder name used for folder within batchID.
// The first caller for a (batch, folder) pair decides: create is invoked with candidates
// "folder", "folder (1)", "folder (2)", ... until it succeeds; create must return an error
// matching fs.ErrExist to move on to the next candidate. Later callers get the recorded name.
func (t *BatchTracker) ResolveFolder(batchID, folder string, create func(candidate string) error) (string, error) {
	e := t.entry(batchID)
	e.mu.Lock()
	defer e.mu.Unlock()
	if chosen, ok := e.folders[folder]; ok {
		return chosen, nil
	}
	chosen, err := firstFreeName(folder, folderName, create)
	if err != nil {
		return "", err
	}
	e.folders[folder] = chosen
	if chosen != folder {
		tool.DefaultLogger.Infof("[Batch] Folder %q renamed to %q for batch %s", folder, chosen, batchID)
	}
	return chosen, nil
}

// Sweep drops batches untouched for longer than the timeout and returns how many were removed.
func (t *BatchTracker) Sweep() int {
	cutoff := t.now().Add(-t.timeout)
	t.mu.Lock()
	defer t.mu.Unlock()
	removed := 0
	for id, e := range t.batches {
		if e.lastActivity.Before(cutoff) {
			delete(t.batches, id)
			removed++
		}
	}
	if removed > 0 {
		tool.DefaultLogger.Debugf("[Batch] Dropped %d inactive batches", removed)
	}
	return removed
}

// Len returns the number of tracked batches.
func (t *BatchTracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.batches)
}
