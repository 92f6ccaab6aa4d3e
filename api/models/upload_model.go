package models

import (
	"errors"
	"math"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/moyoez/dropzone-go/types"
)

// BatchHeader carries the client's batch id; it wins over the body field.
const BatchHeader = "X-Batch-ID"

var (
	ErrMissingFilename = errors.New("filename is required")
	ErrMissingFileSize = errors.New("fileSize is required")
	ErrInvalidFileSize = errors.New("fileSize must be a whole number of bytes")
)

// ParseInitUploadRequest decodes and checks the init body.
func ParseInitUploadRequest(body []byte) (*types.InitUploadRequest, error) {
	var req types.InitUploadRequest
	if err := sonic.Unmarshal(body, &req); err != nil {
		if badFileSize(body) {
			return nil, ErrInvalidFileSize
		}
		return nil, err
	}
	req.Filename = strings.TrimSpace(req.Filename)
	if req.Filename == "" {
		return nil, ErrMissingFilename
	}
	if req.FileSize == nil {
		return nil, ErrMissingFileSize
	}
	return &req, nil
}

// badFileSize reports whether body is a JSON object whose fileSize is not an integer.
func badFileSize(body []byte) bool {
	var fields map[string]any
	if sonic.Unmarshal(body, &fields) != nil {
		return false
	}
	size, ok := fields["fileSize"]
	if !ok || size == nil {
		return false
	}
	f, isNum := size.(float64)
	return !isNum || f != math.Trunc(f) || math.Abs(f) >= math.MaxInt64
}
