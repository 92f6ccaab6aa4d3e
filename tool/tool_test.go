package tool

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/moyoez/dropzone-go/types"
	"github.com/stretchr/testify/require"
)

func TestNumberedName(t *testing.T) {
	tests := []struct {
		name string
		n    int
		want string
	}{
		{"report.pdf", 0, "report.pdf"},
		{"report.pdf", 1, "report (1).pdf"},
		{"archive.tar.gz", 2, "archive.tar (2).gz"},
		{"README", 3, "README (3)"},
		{".env", 1, ".env (1)"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, NumberedName(tt.name, tt.n))
	}
}

func TestGenerateBatchID(t *testing.T) {
	seen := make(map[string]struct{})
	for range 100 {
		id := GenerateBatchID()
		prefix, suffix, ok := strings.Cut(id, "-")
		require.True(t, ok, id)
		require.NotEmpty(t, prefix)
		require.Len(t, suffix, BatchSuffixLen)
		require.Equal(t, strings.ToLower(suffix), suffix)
		seen[id] = struct{}{}
	}
	require.Greater(t, len(seen), 90)
}

func TestGenerateBatchIDUsesWholeAlphabet(t *testing.T) {
	counts := make(map[rune]int)
	for range 2000 {
		_, suffix, _ := strings.Cut(GenerateBatchID(), "-")
		for _, r := range suffix {
			require.Contains(t, batchSuffixAlphabet, string(r))
			counts[r]++
		}
	}
	require.Len(t, counts, len(batchSuffixAlphabet))
}

func TestCopyWithContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var dst bytes.Buffer
	n, err := CopyWithContext(ctx, &dst, strings.NewReader("data"))
	require.ErrorIs(t, err, context.Canceled)
	require.Zero(t, n)

	n, err = CopyWithContext(context.Background(), &dst, strings.NewReader("data"))
	require.NoError(t, err)
	require.Equal(t, int64(4), n)
	require.Equal(t, "data", dst.String())
}

func TestLoadOrCreateTLSCert(t *testing.T) {
	var cfg types.AppConfig
	cert, generated, err := LoadOrCreateTLSCert(&cfg)
	require.NoError(t, err)
	require.True(t, generated)
	require.NotEmpty(t, cert.Certificate)
	require.Contains(t, cfg.CertPEM, "BEGIN CERTIFICATE")
	require.Contains(t, cfg.KeyPEM, "BEGIN EC PRIVATE KEY")

	again, generated, err := LoadOrCreateTLSCert(&cfg)
	require.NoError(t, err)
	require.False(t, generated)
	require.Equal(t, cert.Certificate[0], again.Certificate[0])

	cfg.CertPEM = "garbage"
	_, generated, err = LoadOrCreateTLSCert(&cfg)
	require.NoError(t, err)
	require.True(t, generated)
}
