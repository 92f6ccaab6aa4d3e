package types

// ConfigResponse is the JSON shape for GET /api/self/v1/config.
type ConfigResponse struct {
	Port                   int      `json:"port"`
	UploadDir              string   `json:"upload_dir"`
	MaxFileSizeMB          int64    `json:"max_file_size_mb"`
	MaxChunkSizeMB         int64    `json:"max_chunk_size_mb"`
	AllowedExtensions      []string `json:"allowed_extensions"`
	StaleTimeoutMinutes    int      `json:"stale_timeout_minutes"`
	BatchTimeoutMinutes    int      `json:"batch_timeout_minutes"`
	JanitorIntervalMinutes int      `json:"janitor_interval_minutes"`
	PinEnabled             bool     `json:"pin_enabled"`
	InitRatePerMinute      int      `json:"init_rate_per_minute"`
	NotifyWebsocket        bool     `json:"notify_websocket"`
	PublicURL              string   `json:"public_url"`
	Protocol               string   `json:"protocol"`
}

// StatusResponse is the JSON shape for GET /api/self/v1/status.
type StatusResponse struct {
	Running         bool  `json:"running"`
	ActiveUploads   int   `json:"active_uploads"`
	ActiveBatches   int   `json:"active_batches"`
	MaxFileSize     int64 `json:"max_file_size"`
	NotifyWSEnabled bool  `json:"notify_ws_enabled"`
}
