package core

import (
	"fmt"

	"go.uber.org/zap"
)

const (
	OneMegabyte = 1024 * 1024

	// DefaultMaxFileSize is the active segment size that triggers rotation.
	DefaultMaxFileSize = 64 * OneMegabyte

	// DefaultCacheSize is the number of recently written values kept in
	// memory for the read path.
	DefaultCacheSize = 256
)

// Options configures a Store.
type Options struct {
	// DataDir is the directory holding segment files. Created if missing.
	DataDir string

	// MaxFileSize is the active segment byte threshold that triggers
	// rotation on the next append. Must be positive.
	MaxFileSize int64

	// SyncOnWrite fsyncs the active file before a write returns. When false
	// durability is best-effort.
	SyncOnWrite bool

	// CacheSize bounds the read-path value cache. Zero disables it.
	CacheSize int

	// Observer, when set, is invoked after every successful write.
	Observer WriteObserver

	// Logger defaults to a nop logger.
	Logger *zap.SugaredLogger
}

// DefaultOptions returns options suitable for embedding the store.
func DefaultOptions(dir string) Options {
	return Options{
		DataDir:     dir,
		MaxFileSize: DefaultMaxFileSize,
		CacheSize:   DefaultCacheSize,
	}
}

func (o *Options) validate() error {
	if o.DataDir == "" {
		return fmt.Errorf("%w: data directory must be set", ErrInvalidConfig)
	}
	if o.MaxFileSize <= 0 {
		return fmt.Errorf("%w: max file size must be positive, got %d", ErrInvalidConfig, o.MaxFileSize)
	}
	if o.CacheSize < 0 {
		return fmt.Errorf("%w: cache size must not be negative, got %d", ErrInvalidConfig, o.CacheSize)
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop().Sugar()
	}
	return nil
}
