package notify

import (
	"context"
	"os/exec"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/moyoez/dropzone-go/tool"
	"github.com/moyoez/dropzone-go/types"
)

const defaultCommandTimeout = 30 * time.Second

// Hub receives notifications for live clients (the websocket hub).
type Hub interface {
	Broadcast(notification *types.Notification)
}

// DispatcherConfig selects the delivery channels.
type DispatcherConfig struct {
	SocketPath     string // unix socket listener; empty disables
	Command        string // external command; {filename}, {size} and {message} are substituted per argument
	Message        string // message template, same placeholders
	CommandTimeout time.Duration
	Disabled       bool
}

// Dispatcher fans upload events out to the configured channels. The external command
// only runs for completed uploads.
// Delivery happens in the background; failures are logged and never reach the uploader.
type Dispatcher struct {
	cfg DispatcherConfig
	hub Hub
	wg  sync.WaitGroup
}

// NewDispatcher returns a dispatcher. hub may be nil.
func NewDispatcher(cfg DispatcherConfig, hub Hub) *Dispatcher {
	if cfg.CommandTimeout <= 0 {
		cfg.CommandTimeout = defaultCommandTimeout
	}
	return &Dispatcher{cfg: cfg, hub: hub}
}

// NotifyUploadComplete returns immediately.
func (d *Dispatcher) NotifyUploadComplete(relativePath string, size int64) {
	if d.cfg.Disabled {
		return
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.deliver(relativePath, size)
	}()
}

// NotifyUploadCancelled returns immediately.
func (d *Dispatcher) NotifyUploadCancelled(relativePath string) {
	if d.cfg.Disabled {
		return
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.publish(UploadCancelledNotification(relativePath))
	}()
}

// Wait blocks until every pending delivery has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) deliver(relativePath string, size int64) {
	vars := placeholders(relativePath, size, "")
	message := expand(d.cfg.Message, vars)
	if message == "" {
		message = "New file uploaded " + relativePath + " (" + FormatSize(size) + ")"
	}
	vars["{message}"] = message
	d.publish(UploadCompleteNotification(relativePath, size, message))
	if d.cfg.Command != "" {
		if err := d.runCommand(vars); err != nil {
			tool.DefaultLogger.Warnf("[Notify] Command failed: %v", err)
		}
	}
}

func (d *Dispatcher) publish(notification *types.Notification) {
	if d.hub != nil {
		d.hub.Broadcast(notification)
	}
	if d.cfg.SocketPath != "" {
		if err := SendNotification(notification, d.cfg.SocketPath); err != nil {
			tool.DefaultLogger.Warnf("[Notify] Unix socket delivery failed: %v", err)
		}
	}
}

func (d *Dispatcher) runCommand(vars map[string]string) error {
	args := CommandArgs(d.cfg.Command, vars)
	if len(args) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.CommandTimeout)
	defer cancel()
	out, err := exec.CommandContext(ctx, args[0], args[1:]...).CombinedOutput()
	if err != nil {
		if len(out) > 0 {
			tool.DefaultLogger.Debugf("[Notify] Command output: %s", out)
		}
		return err
	}
	tool.DefaultLogger.Debugf("[Notify] Command %s finished", args[0])
	return nil
}

// CommandArgs splits command on whitespace and substitutes placeholders inside each
// argument. No shell is involved, so uploaded file names cannot inject arguments.
func CommandArgs(command string, vars map[string]string) []string {
	fields := strings.Fields(command)
	for i, f := range fields {
		fields[i] = expand(f, vars)
	}
	return fields
}

func placeholders(relativePath string, size int64, message string) map[string]string {
	return map[string]string{
		"{filename}": path.Base(relativePath),
		"{path}":     relativePath,
		"{size}":     FormatSize(size),
		"{message}":  message,
	}
}

func expand(s string, vars map[string]string) string {
	if s == "" || !strings.Contains(s, "{") {
		return s
	}
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, k, v)
	}
	return strings.NewReplacer(pairs...).Replace(s)
}
