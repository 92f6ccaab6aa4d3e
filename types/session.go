package types

import (
	"math"
	"time"
)

// UploadState is the lifecycle position of an upload session.
type UploadState string

const (
	UploadStateInit       UploadState = "INIT"
	UploadStateReceiving  UploadState = "RECEIVING"
	UploadStateFinalizing UploadState = "FINALIZING"
	UploadStateDone       UploadState = "DONE"
	UploadStateCancelled  UploadState = "CANCELLED"
)

// UploadSession is the durable record of one in-progress upload.
type UploadSession struct {
	UploadId      string      `json:"uploadId"`
	OriginalPath  string      `json:"originalPath"`
	TargetPath    string      `json:"targetPath"`
	PartialPath   string      `json:"partialPath"`
	RelativePath  string      `json:"relativePath"` // TargetPath relative to the upload root
	ExpectedSize  int64       `json:"expectedSize"`
	BytesReceived int64       `json:"bytesReceived"`
	BatchId       string      `json:"batchId"`
	State         UploadState `json:"state"`
	CreatedAt     time.Time   `json:"createdAt"`
	LastActivity  time.Time   `json:"lastActivity"`
}

// Complete reports whether every declared byte has been received.
func (s *UploadSession) Complete() bool {
	return s.BytesReceived >= s.ExpectedSize
}

// Progress returns the rounded completion percentage, capped at 100.
func (s *UploadSession) Progress() int {
	if s.ExpectedSize <= 0 {
		return 100
	}
	p := int(math.Round(float64(s.BytesReceived) / float64(s.ExpectedSize) * 100))
	if p > 100 {
		return 100
	}
	return p
}
