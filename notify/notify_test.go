package notify

import (
	"encoding/binary"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/moyoez/dropzone-go/types"
	"github.com/stretchr/testify/require"
)

func TestFormatSize(t *testing.T) {
	tests := map[int64]string{
		0:                      "0 B",
		1023:                   "1023 B",
		1024:                   "1.0 KB",
		1536:                   "1.5 KB",
		5 * 1024 * 1024:        "5.0 MB",
		3 * 1024 * 1024 * 1024: "3.0 GB",
	}
	for in, want := range tests {
		require.Equal(t, want, FormatSize(in), in)
	}
}

func TestCommandArgs(t *testing.T) {
	vars := placeholders("photos/a b.jpg", 2048, "New file uploaded a b.jpg (2.0 KB)")
	args := CommandArgs("apprise -t {filename} -b {message} tgram://token/{size}", vars)
	require.Equal(t, []string{
		"apprise", "-t", "a b.jpg", "-b", "New file uploaded a b.jpg (2.0 KB)", "tgram://token/2.0 KB",
	}, args)
	require.Empty(t, CommandArgs("   ", vars))
}

type fakeHub struct {
	mu  sync.Mutex
	got []*types.Notification
}

func (h *fakeHub) Broadcast(n *types.Notification) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.got = append(h.got, n)
}

func TestDispatcherBroadcastsToHub(t *testing.T) {
	hub := &fakeHub{}
	d := NewDispatcher(DispatcherConfig{Message: "got {filename} ({size})"}, hub)
	d.NotifyUploadComplete("docs/report.pdf", 10)
	d.Wait()

	require.Len(t, hub.got, 1)
	n := hub.got[0]
	require.Equal(t, types.NotifyTypeUploadComplete, n.Type)
	require.Equal(t, "got report.pdf (10 B)", n.Message)
	require.Equal(t, "docs/report.pdf", n.Data["path"])
	require.Equal(t, int64(10), n.Data["size"])
}

func TestDispatcherBroadcastsCancellation(t *testing.T) {
	hub := &fakeHub{}
	dir := t.TempDir()
	d := NewDispatcher(DispatcherConfig{Command: "touch " + filepath.Join(dir, "{filename}.done")}, hub)
	d.NotifyUploadCancelled("docs/report.pdf")
	d.Wait()

	require.Len(t, hub.got, 1)
	require.Equal(t, types.NotifyTypeUploadCancelled, hub.got[0].Type)
	require.Equal(t, "docs/report.pdf", hub.got[0].Data["path"])
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries, "the command only runs for completed uploads")
}

func TestDispatcherDisabled(t *testing.T) {
	hub := &fakeHub{}
	d := NewDispatcher(DispatcherConfig{Disabled: true}, hub)
	d.NotifyUploadComplete("a.txt", 1)
	d.Wait()
	require.Empty(t, hub.got)
}

func TestDispatcherRunsCommand(t *testing.T) {
	dir := t.TempDir()
	d := NewDispatcher(DispatcherConfig{Command: "touch " + filepath.Join(dir, "{filename}.done")}, nil)
	d.NotifyUploadComplete("nested/a.txt", 3)
	d.Wait()

	_, err := os.Stat(filepath.Join(dir, "a.txt.done"))
	require.NoError(t, err)
}

func TestSendNotificationOverUnixSocket(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "n.sock")
	ln, err := net.Listen("unix", socketPath)
	require.NoError(t, err)
	defer ln.Close()

	received := make(chan []byte, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		var length [4]byte
		if _, err := io.ReadFull(conn, length[:]); err != nil {
			return
		}
		payload := make([]byte, binary.LittleEndian.Uint32(length[:]))
		if _, err := io.ReadFull(conn, payload); err != nil {
			return
		}
		received <- payload
		conn.Write([]byte(`{"ok":true}`))
	}()

	require.NoError(t, SendNotification(UploadCompleteNotification("a.txt", 5, "hello"), socketPath))

	var got types.Notification
	require.NoError(t, sonic.Unmarshal(<-received, &got))
	require.Equal(t, types.NotifyTypeUploadComplete, got.Type)
	require.Equal(t, "hello", got.Message)
	require.Equal(t, "a.txt", got.Data["path"])
}

func TestSendNotificationMissingSocket(t *testing.T) {
	err := SendNotification(&types.Notification{Type: types.NotifyTypeUploadCancelled}, filepath.Join(t.TempDir(), "absent.sock"))
	require.Error(t, err)
}
