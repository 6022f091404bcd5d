// Package config provides configuration structures and loading for imagebatch.
package config

import "time"

// Config represents the complete application configuration.
type Config struct {
	Store      StoreConfig       `yaml:"store" mapstructure:"store"`
	Processing ProcessingConfig  `yaml:"processing" mapstructure:"processing"`
	Operations OperationSettings `yaml:"operations" mapstructure:"operations"`
	Logging    LoggingConfig     `yaml:"logging" mapstructure:"logging"`
}

// StoreConfig describes the image-set database.
type StoreConfig struct {
	Driver          string `yaml:"driver" mapstructure:"driver"` // sqlite or mysql
	Path            string `yaml:"path" mapstructure:"path"`     // sqlite database file
	ImageRoot       string `yaml:"image_root" mapstructure:"image_root"`
	Table           string `yaml:"table" mapstructure:"table"`
	Host            string `yaml:"host" mapstructure:"host"`
	Port            int    `yaml:"port" mapstructure:"port"`
	User            string `yaml:"user" mapstructure:"user"`
	Password        string `yaml:"password" mapstructure:"password"`
	Database        string `yaml:"database" mapstructure:"database"`
	TLS             string `yaml:"tls" mapstructure:"tls"` // disable, preferred, required
	MaxConnections  int    `yaml:"max_connections" mapstructure:"max_connections"`
	BatchDeleteSize int    `yaml:"batch_delete_size" mapstructure:"batch_delete_size"`
}

// ProcessingConfig controls how a run reports progress and orders records.
type ProcessingConfig struct {
	ProgressIntervalMs int    `yaml:"progress_interval_ms" mapstructure:"progress_interval_ms"`
	BackoffMs          int    `yaml:"backoff_ms" mapstructure:"backoff_ms"`
	OrderBy            string `yaml:"order_by" mapstructure:"order_by"` // id, date_time, path
}

// ProgressInterval returns the minimum time between progress reports.
func (p ProcessingConfig) ProgressInterval() time.Duration {
	return time.Duration(p.ProgressIntervalMs) * time.Millisecond
}

// Backoff returns the pause taken after each emitted progress report.
func (p ProcessingConfig) Backoff() time.Duration {
	return time.Duration(p.BackoffMs) * time.Millisecond
}

// OperationSettings holds the remembered per-operation settings. A copy is
// handed to each session; nothing here is process-wide state.
type OperationSettings struct {
	Dark     DarkSettings    `yaml:"dark" mapstructure:"dark"`
	Episodes EpisodeSettings `yaml:"episodes" mapstructure:"episodes"`
	GUID     GUIDSettings    `yaml:"guid" mapstructure:"guid"`
	Delete   DeleteSettings  `yaml:"delete" mapstructure:"delete"`
}

// DarkSettings configures dark-image classification.
type DarkSettings struct {
	Field          string  `yaml:"field" mapstructure:"field"`
	PixelThreshold int     `yaml:"pixel_threshold" mapstructure:"pixel_threshold"` // 0-255 luminance
	PixelRatio     float64 `yaml:"pixel_ratio" mapstructure:"pixel_ratio"`         // 0-1
	SampleStride   int     `yaml:"sample_stride" mapstructure:"sample_stride"`
}

// EpisodeSettings configures episode population.
type EpisodeSettings struct {
	Field            string  `yaml:"field" mapstructure:"field"`
	ThresholdMinutes float64 `yaml:"threshold_minutes" mapstructure:"threshold_minutes"`
	IncludeEpisodeID bool    `yaml:"include_episode_id" mapstructure:"include_episode_id"`
	IncludeSequence  bool    `yaml:"include_sequence" mapstructure:"include_sequence"`
}

// Threshold returns the maximum gap between two files of one episode.
func (e EpisodeSettings) Threshold() time.Duration {
	return time.Duration(e.ThresholdMinutes * float64(time.Minute))
}

// GUIDSettings configures GUID population.
type GUIDSettings struct {
	Field string `yaml:"field" mapstructure:"field"`
}

// DeleteSettings configures file/data deletion.
type DeleteSettings struct {
	DeleteFiles bool `yaml:"delete_files" mapstructure:"delete_files"`
	DeleteData  bool `yaml:"delete_data" mapstructure:"delete_data"`
	BackupFiles bool `yaml:"backup_files" mapstructure:"backup_files"`
}

// LoggingConfig represents logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`   // debug, info, warn, error
	Format string `yaml:"format" mapstructure:"format"` // json or text
	Output string `yaml:"output" mapstructure:"output"` // stdout, stderr, or file path
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		Store: StoreConfig{
			Driver:          "sqlite",
			Table:           "file_data",
			Port:            3306,
			TLS:             "preferred",
			MaxConnections:  4,
			BatchDeleteSize: 500,
		},
		Processing: ProcessingConfig{
			ProgressIntervalMs: 100,
			BackoffMs:          25,
			OrderBy:            "id",
		},
		Operations: DefaultOperationSettings(),
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}

// DefaultOperationSettings returns the factory settings for every operation.
func DefaultOperationSettings() OperationSettings {
	return OperationSettings{
		Dark: DarkSettings{
			Field:          "dark",
			PixelThreshold: 60,
			PixelRatio:     0.9,
			SampleStride:   20,
		},
		Episodes: EpisodeSettings{
			Field:            "episode",
			ThresholdMinutes: 2,
			IncludeEpisodeID: true,
			IncludeSequence:  true,
		},
		GUID: GUIDSettings{
			Field: "guid",
		},
		Delete: DeleteSettings{
			DeleteFiles: true,
			DeleteData:  false,
			BackupFiles: true,
		},
	}
}
