package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server    ServerConfig    `mapstructure:"server" validate:"required"`
	Database  DatabaseConfig  `mapstructure:"database" validate:"required"`
	Scheduler SchedulerConfig `mapstructure:"scheduler" validate:"required"`
	Optimizer OptimizerConfig `mapstructure:"optimizer" validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required,url"`
}

// SchedulerConfig contains the scheduling knobs that are not part of the
// fitted weight vector.
type SchedulerConfig struct {
	// DesiredRetention is the retrievability targeted when spacing reviews.
	DesiredRetention float64 `mapstructure:"desired_retention" validate:"required,gt=0,lt=1"`

	// MaximumInterval caps any scheduled interval, in days.
	MaximumInterval int `mapstructure:"maximum_interval" validate:"required,gt=0"`

	// LearningSteps are the intra-day delays walked through before a new
	// card graduates to long-term review.
	LearningSteps []time.Duration `mapstructure:"learning_steps" validate:"dive,gt=0"`

	// RelearningSteps are the delays walked through after a lapse.
	RelearningSteps []time.Duration `mapstructure:"relearning_steps" validate:"dive,gt=0"`

	// EnableFuzz randomizes long intervals slightly so cards added together
	// do not stay due together forever.
	EnableFuzz bool `mapstructure:"enable_fuzz"`
}

// OptimizerConfig contains the parameter-fitting settings.
type OptimizerConfig struct {
	Epochs        int     `mapstructure:"epochs" validate:"required,gt=0"`
	MiniBatchSize int     `mapstructure:"mini_batch_size" validate:"required,gt=0"`
	LearningRate  float64 `mapstructure:"learning_rate" validate:"required,gt=0"`
	MaxSeqLen     int     `mapstructure:"max_seq_len" validate:"required,gt=0"`

	// FitInterval is how often the background fitting job runs.
	FitInterval time.Duration `mapstructure:"fit_interval" validate:"required,gt=0"`
}
