package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/moyoez/dropzone-go/api/models"
	"github.com/moyoez/dropzone-go/tool"
	"github.com/moyoez/dropzone-go/types"
	"github.com/moyoez/dropzone-go/upload"
)

// CodeUploadNotFound tells the client the handle is gone, usually because the upload completed.
// CodeChunkTooLarge means the request body passed the per-chunk cap; nothing was kept.
const (
	CodeUploadNotFound = "upload_not_found"
	CodeChunkTooLarge  = "chunk_too_large"
)

type UploadController struct {
	engine *upload.Engine
}

func NewUploadController(engine *upload.Engine) *UploadController {
	return &UploadController{engine: engine}
}

// HandleInit declares a new upload.
// POST /api/upload/init {"filename": "docs/report.pdf", "fileSize": 10, "batchId": "..."}
func (ctrl *UploadController) HandleInit(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, tool.FastReturnError("Failed to read request body"))
		return
	}
	req, err := models.ParseInitUploadRequest(body)
	switch {
	case errors.Is(err, models.ErrMissingFilename):
		writeReject(c, &upload.RejectError{Reason: upload.ReasonInvalidPath, Message: err.Error()})
		return
	case errors.Is(err, models.ErrMissingFileSize), errors.Is(err, models.ErrInvalidFileSize):
		writeReject(c, &upload.RejectError{Reason: upload.ReasonInvalidSize, Message: err.Error()})
		return
	case err != nil:
		tool.DefaultLogger.Debugf("[Init] Invalid body: %v", err)
		c.JSON(http.StatusBadRequest, tool.FastReturnError("Invalid request body"))
		return
	}

	batchID := c.GetHeader(models.BatchHeader)
	if batchID == "" {
		batchID = req.BatchId
	}
	res, err := ctrl.engine.Init(c.Request.Context(), req.Filename, *req.FileSize, batchID)
	if err != nil {
		if re, ok := upload.AsReject(err); ok {
			tool.DefaultLogger.Infof("[Init] Rejected %q from %s: %v", req.Filename, c.ClientIP(), re)
			writeReject(c, re)
			return
		}
		tool.DefaultLogger.Errorf("[Init] Failed for %q: %v", req.Filename, err)
		c.JSON(http.StatusInternalServerError, tool.FastReturnError("Failed to initialize upload"))
		return
	}
	c.JSON(http.StatusOK, types.InitUploadResponse{
		UploadId:  res.UploadID,
		Path:      res.Path,
		BatchId:   res.BatchID,
		Completed: res.Completed,
	})
}

// HandleChunk appends the raw request body to the upload.
// POST /api/upload/chunk/:uploadId
func (ctrl *UploadController) HandleChunk(c *gin.Context) {
	uploadID := c.Param("uploadId")
	res, err := ctrl.engine.AppendChunk(c.Request.Context(), uploadID, c.Request.Body)
	if err != nil {
		if errors.Is(err, upload.ErrNotFound) {
			c.JSON(http.StatusNotFound, tool.FastReturnErrorWithData("Upload not found", map[string]any{
				"code": CodeUploadNotFound,
			}))
			return
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, tool.FastReturnErrorWithData("Chunk too large", map[string]any{
				"code":  CodeChunkTooLarge,
				"limit": tooLarge.Limit,
			}))
			return
		}
		tool.DefaultLogger.Errorf("[Chunk] Upload %s failed: %v", uploadID, err)
		c.JSON(http.StatusInternalServerError, tool.FastReturnError("Failed to store chunk, retry"))
		return
	}
	c.JSON(http.StatusOK, types.ChunkResponse{
		BytesReceived: res.BytesReceived,
		Progress:      res.Progress,
		Completed:     res.Completed,
	})
}

func writeReject(c *gin.Context, re *upload.RejectError) {
	status := http.StatusBadRequest
	data := map[string]any{"code": string(re.Reason)}
	if re.Reason == upload.ReasonFileTooLarge {
		status = http.StatusRequestEntityTooLarge
		data["limit"] = re.Limit
	}
	if len(re.Allowed) > 0 {
		data["allowed"] = re.Allowed
	}
	c.JSON(status, tool.FastReturnErrorWithData(re.Message, data))
}
