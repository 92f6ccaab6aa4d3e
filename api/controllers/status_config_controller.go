package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/moyoez/dropzone-go/api/models"
	"github.com/moyoez/dropzone-go/tool"
	"github.com/moyoez/dropzone-go/types"
	"github.com/moyoez/dropzone-go/upload"
)

type StatusController struct {
	engine  *upload.Engine
	batches *upload.BatchTracker
}

func NewStatusController(engine *upload.Engine, batches *upload.BatchTracker) *StatusController {
	return &StatusController{engine: engine, batches: batches}
}

// UserStatus returns server status for the local UI.
// GET /api/self/v1/status
func (ctrl *StatusController) UserStatus(c *gin.Context) {
	cfg := tool.GetCurrentConfig()
	c.JSON(http.StatusOK, types.StatusResponse{
		Running:         true,
		ActiveUploads:   ctrl.engine.ActiveUploads(c.Request.Context()),
		ActiveBatches:   ctrl.batches.Len(),
		MaxFileSize:     cfg.MaxFileSizeBytes(),
		NotifyWSEnabled: models.GetNotifyHub() != nil,
	})
}

// UserConfigGet returns the effective config. The PIN itself is never echoed.
// GET /api/self/v1/config
func UserConfigGet(c *gin.Context) {
	cfg := tool.GetCurrentConfig()
	exts := cfg.AllowedExtensions
	if exts == nil {
		exts = []string{}
	}
	c.JSON(http.StatusOK, types.ConfigResponse{
		Port:                   cfg.Port,
		UploadDir:              cfg.UploadDir,
		MaxFileSizeMB:          cfg.MaxFileSizeMB,
		MaxChunkSizeMB:         cfg.MaxChunkSizeMB,
		AllowedExtensions:      exts,
		StaleTimeoutMinutes:    cfg.StaleTimeoutMinutes,
		BatchTimeoutMinutes:    cfg.BatchTimeoutMinutes,
		JanitorIntervalMinutes: cfg.JanitorIntervalMinutes,
		PinEnabled:             cfg.Pin != "",
		InitRatePerMinute:      cfg.InitRatePerMinute,
		NotifyWebsocket:        cfg.NotifyWebsocket,
		PublicURL:              cfg.PublicURL,
		Protocol:               cfg.Protocol,
	})
}
