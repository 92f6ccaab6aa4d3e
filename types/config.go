package types

// AppConfig represents the application configuration loaded from config file
type AppConfig struct {
	Port                   int      `yaml:"port"`
	UploadDir              string   `yaml:"uploadDir"`
	MaxFileSizeMB          int64    `yaml:"maxFileSizeMB"`
	MaxChunkSizeMB         int64    `yaml:"maxChunkSizeMB"`              // cap on one chunk request body
	AllowedExtensions      []string `yaml:"allowedExtensions,omitempty"` // empty means every extension is accepted
	StaleTimeoutMinutes    int      `yaml:"staleTimeoutMinutes"`
	BatchTimeoutMinutes    int      `yaml:"batchTimeoutMinutes"`
	JanitorIntervalMinutes int      `yaml:"janitorIntervalMinutes"`
	Pin                    string   `yaml:"pin,omitempty"`
	InitRatePerMinute      int      `yaml:"initRatePerMinute"`
	InitRateBurst          int      `yaml:"initRateBurst"`
	NotifySocket           string   `yaml:"notifySocket,omitempty"`
	NotifyCommand          string   `yaml:"notifyCommand,omitempty"` // e.g. "apprise -b {message} tgram://..."
	NotifyMessage          string   `yaml:"notifyMessage,omitempty"`
	NotifyWebsocket        bool     `yaml:"notifyWebsocket"`
	PublicURL              string   `yaml:"publicUrl,omitempty"`
	Protocol               string   `yaml:"protocol"` // http or https
	CertPEM                string   `yaml:"certPEM,omitempty"`
	KeyPEM                 string   `yaml:"keyPEM,omitempty"`
}

// MaxFileSizeBytes converts the configured megabyte limit to bytes.
func (c AppConfig) MaxFileSizeBytes() int64 {
	return c.MaxFileSizeMB * 1024 * 1024
}

// MaxChunkSizeBytes converts the configured chunk limit to bytes.
func (c AppConfig) MaxChunkSizeBytes() int64 {
	return c.MaxChunkSizeMB * 1024 * 1024
}

// Config holds runtime overrides from CLI flags
type Config struct {
	Log              string
	UseConfigPath    string
	UseUploadDir     string
	UsePort          int
	UsePin           string
	UseMaxFileSizeMB int64
	UseHttps         bool
	SkipNotify       bool // if true, no notification is delivered on finalize.
}
