package upload

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"syscall"
	"unicode/utf8"

	"github.com/moyoez/dropzone-go/tool"
)

// maxNameAttempts bounds the collision numbering so a pathological directory cannot spin forever.
const maxNameAttempts = 10000

// maxSegmentBytes keeps a segment under the usual 255-byte NAME_MAX even after a
// " (9999)" collision number and the partial suffix are appended.
const maxSegmentBytes = 255 - len(" (9999)") - len(PartialSuffix)

// Resolver turns client paths into collision-free locations below root.
type Resolver struct {
	root     string
	reserved string // first-segment name clients may not use (the session store directory)
	batches  *BatchTracker
}

func NewResolver(root, reserved string, batches *BatchTracker) *Resolver {
	return &Resolver{root: root, reserved: reserved, batches: batches}
}

// Resolution is the outcome of Resolve.
type Resolution struct {
	Original string   // sanitized client path, "/"-separated
	Segments []string // sanitized segments after folder remapping
	Target   string   // absolute target path
	Relative string   // Target relative to root, "/"-separated
}

// SanitizePath normalizes raw into safe "/"-separated segments relative to the upload root.
// Traversal segments are dropped rather than resolved upward.
func SanitizePath(raw string) ([]string, error) {
	p := strings.ReplaceAll(raw, "\\", "/")
	p = path.Clean("/" + p)
	var segs []string
	for _, seg := range strings.Split(p, "/") {
		seg = sanitizeSegment(seg)
		if seg == "" || seg == "." || seg == ".." {
			continue
		}
		segs = append(segs, seg)
	}
	if len(segs) == 0 {
		return nil, reject(ReasonInvalidPath, "path %q has no usable name", raw)
	}
	return segs, nil
}

func sanitizeSegment(seg string) string {
	seg = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		switch r {
		case '<', '>', ':', '"', '|', '?', '*':
			return -1
		}
		return r
	}, seg)
	seg = strings.TrimSpace(seg)
	// Windows silently drops trailing dots, which would make "a." and "a" collide.
	return truncateSegment(strings.TrimRight(seg, ". "))
}

// truncateSegment cuts seg to maxSegmentBytes on a rune boundary, keeping a short extension.
func truncateSegment(seg string) string {
	if len(seg) <= maxSegmentBytes {
		return seg
	}
	ext := path.Ext(seg)
	if len(ext) > maxSegmentBytes/4 {
		ext = ""
	}
	base := seg[:len(seg)-len(ext)]
	limit := maxSegmentBytes - len(ext)
	for limit > 0 && !utf8.RuneStart(base[limit]) {
		limit--
	}
	return strings.TrimRight(base[:limit], ". ") + ext
}

// Resolve maps raw to a unique target. Folder uploads share one remapped top-level folder
// per batch. claim is called with each candidate target until it returns nil; it must
// atomically reserve the candidate and return an error matching fs.ErrExist when taken.
func (r *Resolver) Resolve(raw, batchID string, claim func(target string) error) (*Resolution, error) {
	segs, err := SanitizePath(raw)
	if err != nil {
		return nil, err
	}
	if r.reserved != "" && strings.EqualFold(segs[0], r.reserved) {
		return nil, reject(ReasonInvalidPath, "path %q uses a reserved name", raw)
	}
	res := &Resolution{Original: strings.Join(segs, "/")}

	if len(segs) > 1 {
		chosen, err := r.batches.ResolveFolder(batchID, segs[0], func(candidate string) error {
			return os.Mkdir(filepath.Join(r.root, candidate), 0o755)
		})
		if err != nil {
			if errors.Is(err, syscall.ENAMETOOLONG) {
				return nil, reject(ReasonInvalidPath, "path %q is too long", raw)
			}
			return nil, fmt.Errorf("resolve folder %q: %w", segs[0], err)
		}
		segs[0] = chosen
	}

	dir := filepath.Join(append([]string{r.root}, segs[:len(segs)-1]...)...)
	name := segs[len(segs)-1]
	chosenName, err := firstFreeName(name, tool.NumberedName, func(candidate string) error {
		target := filepath.Join(dir, candidate)
		if _, err := os.Lstat(target); err == nil {
			return fs.ErrExist
		}
		return claimWithParents(dir, target, claim)
	})
	if err != nil {
		if errors.Is(err, syscall.ENAMETOOLONG) {
			return nil, reject(ReasonInvalidPath, "path %q is too long", raw)
		}
		return nil, fmt.Errorf("resolve file %q: %w", res.Original, err)
	}
	segs[len(segs)-1] = chosenName
	res.Segments = segs
	res.Target = filepath.Join(dir, chosenName)
	res.Relative = strings.Join(segs, "/")
	return res, nil
}

// claimWithParents makes sure dir exists before claiming. The janitor may prune an empty
// folder between creation and claim, so a missing parent is retried a few times.
func claimWithParents(dir, target string, claim func(string) error) error {
	var err error
	for range 3 {
		if err = os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
		err = claim(target)
		if !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return err
}

func folderName(name string, n int) string {
	if n <= 0 {
		return name
	}
	return fmt.Sprintf("%s (%d)", name, n)
}

// firstFreeName tries name, then name(1), name(2), ... as produced by namer,
// until try succeeds. Only fs.ErrExist moves on to the next name; other errors are returned.
func firstFreeName(name string, namer func(string, int) string, try func(candidate string) error) (string, error) {
	for n := 0; n < maxNameAttempts; n++ {
		candidate := namer(name, n)
		err := try(candidate)
		if err == nil {
			return candidate, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", err
		}
	}
	return "", fmt.Errorf("no free name for %q after %d attempts", name, maxNameAttempts)
}
