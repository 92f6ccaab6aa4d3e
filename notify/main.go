package notify

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/bytedance/sonic"
	"github.com/moyoez/dropzone-go/tool"
	"github.com/moyoez/dropzone-go/types"
)

// NotifyWriteChunkSize is the chunk size when writing payload to Unix socket (avoid large single write).
const NotifyWriteChunkSize = 32 * 1024 // 32KB

// MaxNotifyPathLen truncates long relative paths so the payload stays bounded.
const MaxNotifyPathLen = 256

var (
	// DefaultUnixSocketPath is used when SendNotification gets an empty path
	DefaultUnixSocketPath = "/tmp/dropzone-notify.sock"
	// UnixSocketTimeout is the timeout for Unix socket operations
	UnixSocketTimeout = 3 * time.Second
)

// SendNotification sends notification via Unix Domain Socket.
// Frame: 4-byte little-endian length, then the JSON payload. The listener answers with
// an optional JSON object; a non-empty "error" field fails the call.
func SendNotification(notification *types.Notification, socketPath string) error {
	if socketPath == "" {
		socketPath = DefaultUnixSocketPath
	}
	if _, err := os.Stat(socketPath); os.IsNotExist(err) {
		return fmt.Errorf("unix socket not found: %s", socketPath)
	}

	var payload []byte
	var err error
	if notification != nil {
		payload, err = sonic.Marshal(notification)
		if err != nil {
			return fmt.Errorf("failed to serialize notification data: %v", err)
		}
	} else {
		payload = []byte("{}")
	}
	if len(payload) > NotifyWriteChunkSize {
		return fmt.Errorf("notification payload too large: %d bytes (max %d)", len(payload), NotifyWriteChunkSize)
	}

	conn, err := net.DialTimeout("unix", socketPath, UnixSocketTimeout)
	if err != nil {
		return fmt.Errorf("failed to connect to Unix socket %s: %v", socketPath, err)
	}
	defer func() {
		if err := conn.Close(); err != nil {
			tool.DefaultLogger.Errorf("Failed to close Unix socket connection: %v", err)
		}
	}()

	if err := conn.SetWriteDeadline(time.Now().Add(UnixSocketTimeout)); err != nil {
		tool.DefaultLogger.Errorf("Failed to set write deadline: %v", err)
	}
	lengthBuf := make([]byte, 4)
	binary.LittleEndian.PutUint32(lengthBuf, uint32(len(payload)))
	if _, err := conn.Write(lengthBuf); err != nil {
		return fmt.Errorf("failed to write length to Unix socket: %v", err)
	}
	tool.DefaultLogger.Debugf("Sending notification to Unix socket (len=%d): %s", len(payload), payload)
	for off := 0; off < len(payload); {
		nw, err := conn.Write(payload[off:])
		if err != nil {
			return fmt.Errorf("failed to write payload to Unix socket: %v", err)
		}
		off += nw
	}

	if err := conn.SetReadDeadline(time.Now().Add(UnixSocketTimeout)); err != nil {
		tool.DefaultLogger.Errorf("Failed to set read deadline: %v", err)
	}
	buf := make([]byte, 4096)
	n, err := conn.Read(buf)
	if err != nil && err != io.EOF {
		return fmt.Errorf("failed to read response from Unix socket: %v", err)
	}
	if n > 0 {
		var response map[string]any
		if err := sonic.Unmarshal(buf[:n], &response); err != nil {
			tool.DefaultLogger.Debugf("Unix socket response (raw): %s", buf[:n])
		} else if errMsg, ok := response["error"].(string); ok && errMsg != "" {
			return fmt.Errorf("server returned error: %s", errMsg)
		}
	}

	if notification != nil {
		tool.DefaultLogger.Infof("[UnixSocket] Notification sent: %s - %s", notification.Type, notification.Title)
	}
	return nil
}

// UploadCompleteNotification builds the event sent when a file lands in the upload root.
func UploadCompleteNotification(relativePath string, size int64, message string) *types.Notification {
	if len(relativePath) > MaxNotifyPathLen {
		relativePath = relativePath[:MaxNotifyPathLen] + "..."
	}
	return &types.Notification{
		Type:    types.NotifyTypeUploadComplete,
		Title:   "Upload Completed",
		Message: message,
		Data: map[string]any{
			"path":      relativePath,
			"size":      size,
			"sizeHuman": FormatSize(size),
		},
	}
}

// UploadCancelledNotification builds the event sent when a client abandons an upload.
func UploadCancelledNotification(relativePath string) *types.Notification {
	if len(relativePath) > MaxNotifyPathLen {
		relativePath = relativePath[:MaxNotifyPathLen] + "..."
	}
	return &types.Notification{
		Type:    types.NotifyTypeUploadCancelled,
		Title:   "Upload Cancelled",
		Message: "Upload cancelled " + relativePath,
		Data:    map[string]any{"path": relativePath},
	}
}

// FormatSize renders n bytes as "512 B", "1.5 KB", "3.2 GB".
func FormatSize(n int64) string {
	if n < 1024 {
		return fmt.Sprintf("%d B", n)
	}
	units := []string{"KB", "MB", "GB", "TB", "PB"}
	v := float64(n) / 1024
	i := 0
	for v >= 1024 && i < len(units)-1 {
		v /= 1024
		i++
	}
	return fmt.Sprintf("%.1f %s", v, units[i])
}
