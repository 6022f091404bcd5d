package config

import (
	"fmt"
	"strings"

	"github.com/dbsmedya/imagebatch/internal/sqlutil"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("validation failed:\n  - %s", strings.Join(msgs, "\n  - "))
}

// Validate checks the configuration for required fields and valid values.
func (c *Config) Validate() error {
	var errors ValidationErrors

	errors = append(errors, c.validateStore()...)
	errors = append(errors, c.validateProcessing()...)
	errors = append(errors, c.validateOperations()...)
	errors = append(errors, c.validateLogging()...)

	if len(errors) > 0 {
		return errors
	}
	return nil
}

func (c *Config) validateStore() ValidationErrors {
	var errors ValidationErrors
	s := &c.Store

	switch s.Driver {
	case "sqlite", "":
		if s.Path == "" {
			errors = append(errors, ValidationError{
				Field:   "store.path",
				Message: "path is required for the sqlite driver",
			})
		}
	case "mysql":
		if s.Host == "" {
			errors = append(errors, ValidationError{
				Field:   "store.host",
				Message: "host is required for the mysql driver",
			})
		}
		if s.Port <= 0 || s.Port > 65535 {
			errors = append(errors, ValidationError{
				Field:   "store.port",
				Message: "port must be between 1 and 65535",
			})
		}
		if s.User == "" {
			errors = append(errors, ValidationError{
				Field:   "store.user",
				Message: "user is required for the mysql driver",
			})
		}
		if s.Database == "" {
			errors = append(errors, ValidationError{
				Field:   "store.database",
				Message: "database name is required for the mysql driver",
			})
		}
		// the run lock pins one pooled connection for the whole run
		if s.MaxConnections == 1 {
			errors = append(errors, ValidationError{
				Field:   "store.max_connections",
				Message: "max_connections must be 0 (unlimited) or at least 2 for the mysql driver",
			})
		}
		validTLS := map[string]bool{"disable": true, "preferred": true, "required": true, "": true}
		if !validTLS[s.TLS] {
			errors = append(errors, ValidationError{
				Field:   "store.tls",
				Message: "tls must be 'disable', 'preferred', or 'required'",
			})
		}
	default:
		errors = append(errors, ValidationError{
			Field:   "store.driver",
			Message: "driver must be 'sqlite' or 'mysql'",
		})
	}

	if !sqlutil.IsValidIdentifier(s.Table) {
		errors = append(errors, ValidationError{
			Field:   "store.table",
			Message: "table must contain only letters, digits and underscores",
		})
	}

	if s.MaxConnections < 0 {
		errors = append(errors, ValidationError{
			Field:   "store.max_connections",
			Message: "max_connections cannot be negative",
		})
	}

	if s.BatchDeleteSize <= 0 {
		errors = append(errors, ValidationError{
			Field:   "store.batch_delete_size",
			Message: "batch_delete_size must be positive",
		})
	}

	return errors
}

func (c *Config) validateProcessing() ValidationErrors {
	var errors ValidationErrors

	if c.Processing.ProgressIntervalMs < 0 {
		errors = append(errors, ValidationError{
			Field:   "processing.progress_interval_ms",
			Message: "progress_interval_ms cannot be negative",
		})
	}

	if c.Processing.BackoffMs < 0 {
		errors = append(errors, ValidationError{
			Field:   "processing.backoff_ms",
			Message: "backoff_ms cannot be negative",
		})
	}

	validOrders := map[string]bool{"id": true, "date_time": true, "path": true, "": true}
	if !validOrders[c.Processing.OrderBy] {
		errors = append(errors, ValidationError{
			Field:   "processing.order_by",
			Message: "order_by must be 'id', 'date_time', or 'path'",
		})
	}

	return errors
}

func (c *Config) validateOperations() ValidationErrors {
	var errors ValidationErrors
	ops := &c.Operations

	fields := map[string]string{
		"operations.dark.field":     ops.Dark.Field,
		"operations.episodes.field": ops.Episodes.Field,
		"operations.guid.field":     ops.GUID.Field,
	}
	for name, field := range fields {
		if !sqlutil.IsValidIdentifier(field) {
			errors = append(errors, ValidationError{
				Field:   name,
				Message: "field must contain only letters, digits and underscores",
			})
		}
	}

	if ops.Dark.PixelThreshold < 0 || ops.Dark.PixelThreshold > 255 {
		errors = append(errors, ValidationError{
			Field:   "operations.dark.pixel_threshold",
			Message: "pixel_threshold must be between 0 and 255",
		})
	}

	if ops.Dark.PixelRatio < 0 || ops.Dark.PixelRatio > 1 {
		errors = append(errors, ValidationError{
			Field:   "operations.dark.pixel_ratio",
			Message: "pixel_ratio must be between 0 and 1",
		})
	}

	if ops.Dark.SampleStride <= 0 {
		errors = append(errors, ValidationError{
			Field:   "operations.dark.sample_stride",
			Message: "sample_stride must be positive",
		})
	}

	if ops.Episodes.ThresholdMinutes <= 0 {
		errors = append(errors, ValidationError{
			Field:   "operations.episodes.threshold_minutes",
			Message: "threshold_minutes must be positive",
		})
	}

	if !ops.Episodes.IncludeEpisodeID && !ops.Episodes.IncludeSequence {
		errors = append(errors, ValidationError{
			Field:   "operations.episodes",
			Message: "at least one of include_episode_id or include_sequence must be set",
		})
	}

	if !ops.Delete.DeleteFiles && !ops.Delete.DeleteData {
		errors = append(errors, ValidationError{
			Field:   "operations.delete",
			Message: "at least one of delete_files or delete_data must be set",
		})
	}

	return errors
}

func (c *Config) validateLogging() ValidationErrors {
	var errors ValidationErrors

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true, "": true}
	if !validLevels[c.Logging.Level] {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Message: "level must be 'debug', 'info', 'warn', or 'error'",
		})
	}

	validFormats := map[string]bool{"json": true, "text": true, "": true}
	if !validFormats[c.Logging.Format] {
		errors = append(errors, ValidationError{
			Field:   "logging.format",
			Message: "format must be 'json' or 'text'",
		})
	}

	return errors
}
