package tool

import (
	"flag"

	"github.com/moyoez/dropzone-go/types"
)

// SetFlags parses CLI flags and returns the override config.
func SetFlags() types.Config {
	var cfg types.Config
	flag.StringVar(&cfg.Log, "log", "", "log mode: dev|prod|none")
	flag.StringVar(&cfg.UseConfigPath, "useConfigPath", "", "override config file path")
	flag.StringVar(&cfg.UseUploadDir, "useUploadDir", "", "override upload directory")
	flag.IntVar(&cfg.UsePort, "usePort", 0, "override listen port")
	flag.StringVar(&cfg.UsePin, "usePin", "", "require this PIN for upload endpoints")
	flag.Int64Var(&cfg.UseMaxFileSizeMB, "useMaxFileSizeMB", 0, "override maximum file size in MB")
	flag.BoolVar(&cfg.UseHttps, "useHttps", false, "serve over HTTPS with a self-signed certificate")
	flag.BoolVar(&cfg.SkipNotify, "skipNotify", false, "if true, do not send finalize notifications")
	flag.Parse()
	return cfg
}

// ApplyFlagOverrides merges non-zero CLI flags into the loaded config and makes the result current.
func ApplyFlagOverrides(appCfg *types.AppConfig, flags types.Config) {
	if flags.UseUploadDir != "" {
		appCfg.UploadDir = flags.UseUploadDir
	}
	if flags.UsePort > 0 {
		appCfg.Port = flags.UsePort
	}
	if flags.UsePin != "" {
		appCfg.Pin = flags.UsePin
	}
	if flags.UseMaxFileSizeMB > 0 {
		appCfg.MaxFileSizeMB = flags.UseMaxFileSizeMB
	}
	if flags.UseHttps {
		appCfg.Protocol = "https"
	}
	CurrentConfig = *appCfg
}
