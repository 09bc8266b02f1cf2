package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// CaptureConfig represents the tunable parameters of the capture daemon.
// All fields are pointers so a JSON file can set any subset; the Get*
// methods supply defaults for fields left nil, so partial configs are
// safe.
type CaptureConfig struct {
	// Serial link params
	BaudRate    *int    `json:"baud_rate,omitempty"`
	ReadTimeout *string `json:"read_timeout,omitempty"` // duration string like "0s"

	// Event log params
	SegmentBytes *int `json:"segment_bytes,omitempty"`
	RetainSealed *int `json:"retain_sealed,omitempty"`

	// Archiver params
	ArchiveInterval *string `json:"archive_interval,omitempty"` // duration string like "30s"
}

// Helper functions to create pointers
func ptrInt(v int) *int          { return &v }
func ptrString(v string) *string { return &v }

// EmptyCaptureConfig returns a CaptureConfig with all fields set to nil.
func EmptyCaptureConfig() *CaptureConfig {
	return &CaptureConfig{}
}

// LoadCaptureConfig loads a CaptureConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
func LoadCaptureConfig(path string) (*CaptureConfig, error) {
	// Validate the config file path.
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse JSON into empty config. The Get* methods provide fallback
	// defaults for any fields not specified in the JSON.
	cfg := EmptyCaptureConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *CaptureConfig) Validate() error {
	// Validate BaudRate if set
	if c.BaudRate != nil && *c.BaudRate <= 0 {
		return fmt.Errorf("baud_rate must be positive, got %d", *c.BaudRate)
	}

	// Validate SegmentBytes if set. 512 is the event log's floor; below
	// that a worst-case record cannot fit in an empty segment.
	if c.SegmentBytes != nil && *c.SegmentBytes < 512 {
		return fmt.Errorf("segment_bytes must be at least 512, got %d", *c.SegmentBytes)
	}

	// Validate RetainSealed if set
	if c.RetainSealed != nil && *c.RetainSealed < 1 {
		return fmt.Errorf("retain_sealed must be at least 1, got %d", *c.RetainSealed)
	}

	// Validate ArchiveInterval can be parsed if set
	if c.ArchiveInterval != nil && *c.ArchiveInterval != "" {
		d, err := time.ParseDuration(*c.ArchiveInterval)
		if err != nil {
			return fmt.Errorf("invalid archive_interval '%s': %w", *c.ArchiveInterval, err)
		}
		if d <= 0 {
			return fmt.Errorf("archive_interval must be positive, got %s", d)
		}
	}

	// Validate ReadTimeout can be parsed if set
	if c.ReadTimeout != nil && *c.ReadTimeout != "" {
		d, err := time.ParseDuration(*c.ReadTimeout)
		if err != nil {
			return fmt.Errorf("invalid read_timeout '%s': %w", *c.ReadTimeout, err)
		}
		if d < 0 {
			return fmt.Errorf("read_timeout must be non-negative, got %s", d)
		}
	}

	return nil
}

// GetBaudRate returns the baud_rate value or the default.
func (c *CaptureConfig) GetBaudRate() int {
	if c.BaudRate == nil {
		return 9600 // default, the PMS family ships at 9600 8N1
	}
	return *c.BaudRate
}

// GetSegmentBytes returns the segment_bytes value or the default.
func (c *CaptureConfig) GetSegmentBytes() int {
	if c.SegmentBytes == nil {
		return 4096 // default
	}
	return *c.SegmentBytes
}

// GetRetainSealed returns the retain_sealed value or the default.
func (c *CaptureConfig) GetRetainSealed() int {
	if c.RetainSealed == nil {
		return 16 // default
	}
	return *c.RetainSealed
}

// GetArchiveInterval parses and returns the ArchiveInterval as a time.Duration.
func (c *CaptureConfig) GetArchiveInterval() time.Duration {
	if c.ArchiveInterval == nil || *c.ArchiveInterval == "" {
		return 30 * time.Second // default
	}
	d, err := time.ParseDuration(*c.ArchiveInterval)
	if err != nil {
		return 30 * time.Second // default on parse error
	}
	return d
}

// GetReadTimeout parses and returns the ReadTimeout as a time.Duration.
// Zero means serial reads block indefinitely.
func (c *CaptureConfig) GetReadTimeout() time.Duration {
	if c.ReadTimeout == nil || *c.ReadTimeout == "" {
		return 0 // default: block
	}
	d, err := time.ParseDuration(*c.ReadTimeout)
	if err != nil {
		return 0 // default on parse error
	}
	return d
}
