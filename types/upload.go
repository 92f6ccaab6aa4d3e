package types

// InitUploadRequest is the body of POST /api/upload/init.
// Filename may carry folder segments ("photos/2024/a.jpg").
type InitUploadRequest struct {
	Filename string `json:"filename"`
	FileSize *int64 `json:"fileSize"`
	BatchId  string `json:"batchId,omitempty"` // X-Batch-ID header takes precedence
}

type InitUploadResponse struct {
	UploadId  string `json:"uploadId"`
	Path      string `json:"path"`
	BatchId   string `json:"batchId"`
	Completed bool   `json:"completed"`
}

type ChunkResponse struct {
	BytesReceived int64 `json:"bytesReceived"`
	Progress      int   `json:"progress"`
	Completed     bool  `json:"completed"`
}
