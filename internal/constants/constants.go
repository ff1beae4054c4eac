package constants

import "time"

const (
	DefaultPollInterval    = 5 * time.Second
	DefaultClassifyRate    = 2.0 // classifications per second
	DefaultEventCooldown   = 2 * time.Second
	DefaultHistorySize     = 50
	DefaultDownscaleFactor = 0.5
	DefaultJPEGQuality     = 80
)

const (
	GridAPITimeout   = 10 * time.Second
	ClassifyTimeout  = 5 * time.Second
	DatabaseTimeout  = 5 * time.Second
	TickBackoff      = 1 * time.Second
	CaptureBackoff   = 1 * time.Second
	CaptureThrottle  = 10 * time.Millisecond
	FrameTakeTimeout = 2 * time.Second
	HubWriteTimeout  = 2 * time.Second
	ShutdownTimeout  = 5 * time.Second
)

const (
	// EventWindow is how many recent tactical events and conclusions are
	// exposed to consumers at once.
	EventWindow = 5

	// RegionGridSize is the N of the NxN grid used for coarse position labels.
	RegionGridSize = 8
)

const (
	DBMaxOpenConns    = 10
	DBMaxIdleConns    = 2
	DBConnMaxLifetime = 1 * time.Hour
)
