package tool

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/moyoez/dropzone-go/types"
)

var (
	ConfigPath    = "config.yaml" // be aware that it can be changed, default to ./config.yaml
	CurrentConfig types.AppConfig
)

func DefaultConfig() types.AppConfig {
	return types.AppConfig{
		Port:                   3000,
		UploadDir:              "uploads",
		MaxFileSizeMB:          1024,
		MaxChunkSizeMB:         100,
		AllowedExtensions:      nil,
		StaleTimeoutMinutes:    30,
		BatchTimeoutMinutes:    30,
		JanitorIntervalMinutes: 5,
		InitRatePerMinute:      60,
		InitRateBurst:          20,
		NotifyMessage:          "New file uploaded {filename} ({size})",
		NotifyWebsocket:        true,
		Protocol:               "http",
	}
}

func LoadConfig(path string) (types.AppConfig, error) {
	if path == "" {
		path = ConfigPath
	}
	ConfigPath = path

	cfg := DefaultConfig()

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			if writeErr := writeDefaultConfig(path, cfg); writeErr != nil {
				return cfg, fmt.Errorf("config file not found, and failed to generate default config: %v", writeErr)
			}
			DefaultLogger.Infof("Created new config file: %s", path)
			CurrentConfig = cfg
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config file: %v", err)
	}
	if info.IsDir() {
		return cfg, fmt.Errorf("config file path is a directory: %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %v", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file: %v", err)
	}
	if err := normalizeConfig(&cfg); err != nil {
		return cfg, err
	}

	CurrentConfig = cfg
	return cfg, nil
}

// normalizeConfig fills zero values with defaults and rejects values the server cannot run with.
func normalizeConfig(cfg *types.AppConfig) error {
	def := DefaultConfig()
	if cfg.Port == 0 {
		cfg.Port = def.Port
	}
	if strings.TrimSpace(cfg.UploadDir) == "" {
		cfg.UploadDir = def.UploadDir
	}
	if cfg.MaxFileSizeMB < 0 {
		return fmt.Errorf("maxFileSizeMB must not be negative: %d", cfg.MaxFileSizeMB)
	}
	if cfg.MaxFileSizeMB == 0 {
		cfg.MaxFileSizeMB = def.MaxFileSizeMB
	}
	if cfg.MaxChunkSizeMB <= 0 {
		cfg.MaxChunkSizeMB = def.MaxChunkSizeMB
	}
	if cfg.StaleTimeoutMinutes <= 0 {
		cfg.StaleTimeoutMinutes = def.StaleTimeoutMinutes
	}
	if cfg.BatchTimeoutMinutes <= 0 {
		cfg.BatchTimeoutMinutes = def.BatchTimeoutMinutes
	}
	if cfg.JanitorIntervalMinutes <= 0 {
		cfg.JanitorIntervalMinutes = def.JanitorIntervalMinutes
	}
	if cfg.InitRateBurst <= 0 {
		cfg.InitRateBurst = def.InitRateBurst
	}
	if cfg.NotifyMessage == "" {
		cfg.NotifyMessage = def.NotifyMessage
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Protocol)) {
	case "", "http":
		cfg.Protocol = "http"
	case "https":
		cfg.Protocol = "https"
	default:
		return fmt.Errorf("protocol must be http or https: %q", cfg.Protocol)
	}
	cfg.AllowedExtensions = NormalizeExtensions(cfg.AllowedExtensions)
	return nil
}

// NormalizeExtensions lowercases entries and makes sure each starts with a dot.
func NormalizeExtensions(exts []string) []string {
	if len(exts) == 0 {
		return nil
	}
	out := make([]string, 0, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		out = append(out, ext)
	}
	return out
}

func writeDefaultConfig(path string, cfg types.AppConfig) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func GetCurrentConfig() *types.AppConfig {
	return &CurrentConfig
}

// PersistAppConfig writes cfg to ConfigPath and makes it current. Used to store a generated certificate.
func PersistAppConfig(cfg *types.AppConfig) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	tmp := ConfigPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	if err := os.Rename(tmp, ConfigPath); err != nil {
		os.Remove(tmp)
		return err
	}
	CurrentConfig = *cfg
	return nil
}
