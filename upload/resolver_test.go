package upload

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"
)

func TestSanitizePath(t *testing.T) {
	tests := []struct {
		raw  string
		want []string
	}{
		{"report.pdf", []string{"report.pdf"}},
		{"../../etc/passwd", []string{"etc", "passwd"}},
		{"/abs/x.txt", []string{"abs", "x.txt"}},
		{`win\dir\file.txt`, []string{"win", "dir", "file.txt"}},
		{"a/./b/../c.txt", []string{"a", "c.txt"}},
		{"we<ird>:na|me?.txt", []string{"weirdname.txt"}},
		{"  spaced.  /name. ", []string{"spaced", "name"}},
		{"tab\tname.txt", []string{"tabname.txt"}},
	}
	for _, tt := range tests {
		got, err := SanitizePath(tt.raw)
		require.NoError(t, err, tt.raw)
		require.Equal(t, tt.want, got, tt.raw)
	}

	for _, raw := range []string{"", "..", "../..", "/", "???", " . "} {
		_, err := SanitizePath(raw)
		re, ok := AsReject(err)
		require.True(t, ok, raw)
		require.Equal(t, ReasonInvalidPath, re.Reason)
	}
}

func TestSanitizePathCapsLongSegments(t *testing.T) {
	segs, err := SanitizePath(strings.Repeat("x", 250) + ".txt")
	require.NoError(t, err)
	require.Len(t, segs, 1)
	require.Len(t, segs[0], maxSegmentBytes)
	require.True(t, strings.HasSuffix(segs[0], ".txt"))

	// multi-byte runes are never split
	segs, err = SanitizePath(strings.Repeat("é", 200) + ".txt")
	require.NoError(t, err)
	require.LessOrEqual(t, len(segs[0]), maxSegmentBytes)
	require.True(t, utf8.ValidString(segs[0]))
	require.True(t, strings.HasSuffix(segs[0], ".txt"))

	segs, err = SanitizePath(strings.Repeat("d", 300) + "/a.txt")
	require.NoError(t, err)
	require.Len(t, segs[0], maxSegmentBytes)
	require.Equal(t, "a.txt", segs[1])
}

func newTestResolver(t *testing.T) (*Resolver, string) {
	t.Helper()
	root := t.TempDir()
	return NewResolver(root, MetadataDirName, NewBatchTracker(0)), root
}

func TestResolveNumbersFileCollisions(t *testing.T) {
	r, root := newTestResolver(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "a (1).txt"), []byte("x"), 0o644))

	res, err := r.Resolve("a.txt", "1-aaaaaaaaa", createExclusive)
	require.NoError(t, err)
	require.Equal(t, "a (2).txt", res.Relative)
	require.Equal(t, filepath.Join(root, "a (2).txt"), res.Target)
	require.Equal(t, "a.txt", res.Original)

	res, err = r.Resolve(".env", "1-aaaaaaaaa", createExclusive)
	require.NoError(t, err)
	require.Equal(t, ".env", res.Relative)
	res, err = r.Resolve(".env", "1-aaaaaaaaa", createExclusive)
	require.NoError(t, err)
	require.Equal(t, ".env (1)", res.Relative)
}

func TestResolveFolderRemapSharedWithinBatch(t *testing.T) {
	r, root := newTestResolver(t)
	require.NoError(t, os.Mkdir(filepath.Join(root, "photos"), 0o755))

	first, err := r.Resolve("photos/a.jpg", "1-batchaaaa", createExclusive)
	require.NoError(t, err)
	second, err := r.Resolve("photos/deep/b.jpg", "1-batchaaaa", createExclusive)
	require.NoError(t, err)
	require.Equal(t, "photos (1)/a.jpg", first.Relative)
	require.Equal(t, "photos (1)/deep/b.jpg", second.Relative)
	require.Equal(t, []string{"photos (1)", "deep", "b.jpg"}, second.Segments)

	// a fresh folder keeps its name for the first batch that uses it
	fresh, err := r.Resolve("music/c.mp3", "1-batchaaaa", createExclusive)
	require.NoError(t, err)
	require.Equal(t, "music/c.mp3", fresh.Relative)

	other, err := r.Resolve("music/c.mp3", "2-batchbbbb", createExclusive)
	require.NoError(t, err)
	require.Equal(t, "music (1)/c.mp3", other.Relative)

	info, err := os.Stat(filepath.Join(root, "photos (1)", "deep"))
	require.NoError(t, err)
	require.True(t, info.IsDir())
}

func TestResolveFolderCollidesWithFile(t *testing.T) {
	r, root := newTestResolver(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "docs"), []byte("plain file"), 0o644))

	res, err := r.Resolve("docs/readme.md", "1-aaaaaaaaa", createExclusive)
	require.NoError(t, err)
	require.Equal(t, "docs (1)/readme.md", res.Relative)
}

func TestResolveRejectsReservedName(t *testing.T) {
	r, _ := newTestResolver(t)
	_, err := r.Resolve(".METADATA/evil.meta", "1-aaaaaaaaa", createExclusive)
	re, ok := AsReject(err)
	require.True(t, ok)
	require.Equal(t, ReasonInvalidPath, re.Reason)
}
