package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// FileConfig mirrors Settings for config files.
// Zero values mean "unspecified" and leave the lower layer untouched; pointer
// fields are used where zero is a meaningful value.
type FileConfig struct {
	Addr                  string   `json:"addr" yaml:"addr" toml:"addr"`
	VLMBaseURL            string   `json:"vlm_base_url" yaml:"vlm_base_url" toml:"vlm_base_url"`
	VLMModelName          string   `json:"vlm_model_name" yaml:"vlm_model_name" toml:"vlm_model_name"`
	VLMAPIKey             string   `json:"vlm_api_key" yaml:"vlm_api_key" toml:"vlm_api_key"`
	VLMTimeoutSeconds     float64  `json:"vlm_timeout" yaml:"vlm_timeout" toml:"vlm_timeout"`
	VLMMaxRetries         *int     `json:"vlm_max_retries" yaml:"vlm_max_retries" toml:"vlm_max_retries"`
	MaxConcurrentRequests int      `json:"max_concurrent_requests" yaml:"max_concurrent_requests" toml:"max_concurrent_requests"`
	QueueTimeoutSeconds   float64  `json:"queue_timeout" yaml:"queue_timeout" toml:"queue_timeout"`
	DetectMIME            *bool    `json:"vlm_detect_mime" yaml:"vlm_detect_mime" toml:"vlm_detect_mime"`
	RequestTimeoutSeconds float64  `json:"request_timeout" yaml:"request_timeout" toml:"request_timeout"`
	MaxUploadMB           int      `json:"max_upload_mb" yaml:"max_upload_mb" toml:"max_upload_mb"`
	CORSAllowedOrigins    []string `json:"cors_allowed_origins" yaml:"cors_allowed_origins" toml:"cors_allowed_origins"`
	LogLevel              string   `json:"log_level" yaml:"log_level" toml:"log_level"`
	LogJSON               *bool    `json:"log_json" yaml:"log_json" toml:"log_json"`
	NATSURL               string   `json:"nats_url" yaml:"nats_url" toml:"nats_url"`
	NATSSubject           string   `json:"nats_subject" yaml:"nats_subject" toml:"nats_subject"`
	NATSQueue             string   `json:"nats_queue" yaml:"nats_queue" toml:"nats_queue"`
}

// LoadFile reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func LoadFile(path string) (FileConfig, error) {
	var fc FileConfig
	if path == "" {
		return fc, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse %s: %w", path, err)
		}
	case ".json":
		if err := json.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse %s: %w", path, err)
		}
	case ".toml":
		if err := toml.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		return fc, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return fc, nil
}

// apply overlays the specified file values onto s.
func (fc FileConfig) apply(s *Settings) {
	if fc.Addr != "" {
		s.Addr = fc.Addr
	}
	if fc.VLMBaseURL != "" {
		s.VLMBaseURL = fc.VLMBaseURL
	}
	if fc.VLMModelName != "" {
		s.VLMModelName = fc.VLMModelName
	}
	if fc.VLMAPIKey != "" {
		s.VLMAPIKey = fc.VLMAPIKey
	}
	if fc.VLMTimeoutSeconds != 0 {
		s.VLMTimeout = seconds(fc.VLMTimeoutSeconds)
	}
	if fc.VLMMaxRetries != nil {
		s.VLMMaxRetries = *fc.VLMMaxRetries
	}
	if fc.MaxConcurrentRequests != 0 {
		s.MaxConcurrentRequests = fc.MaxConcurrentRequests
	}
	if fc.QueueTimeoutSeconds != 0 {
		s.QueueTimeout = seconds(fc.QueueTimeoutSeconds)
	}
	if fc.DetectMIME != nil {
		s.DetectMIME = *fc.DetectMIME
	}
	if fc.RequestTimeoutSeconds != 0 {
		s.RequestTimeout = seconds(fc.RequestTimeoutSeconds)
	}
	if fc.MaxUploadMB != 0 {
		s.MaxUploadBytes = int64(fc.MaxUploadMB) << 20
	}
	if len(fc.CORSAllowedOrigins) > 0 {
		s.CORSAllowedOrigins = append([]string(nil), fc.CORSAllowedOrigins...)
	}
	if fc.LogLevel != "" {
		s.LogLevel = fc.LogLevel
	}
	if fc.LogJSON != nil {
		s.LogJSON = *fc.LogJSON
	}
	if fc.NATSURL != "" {
		s.NATSURL = fc.NATSURL
	}
	if fc.NATSSubject != "" {
		s.NATSSubject = fc.NATSSubject
	}
	if fc.NATSQueue != "" {
		s.NATSQueue = fc.NATSQueue
	}
}
