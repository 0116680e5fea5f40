// Package config defines the plain configuration struct recognised by
// Cottontail DB's components. There is no file loader here:
// configuration-file parsing is out of scope — callers construct a
// Config directly or via their own flag/env wiring.
package config

import "time"

// Config is the top-level configuration every subsystem reads from.
type Config struct {
	// Root is the catalogue's data directory.
	Root string

	// LockTimeout bounds how long a disk manager waits to acquire a
	// file's exclusive lock before giving up.
	LockTimeout time.Duration

	Memory    MemoryConfig
	Execution ExecutionConfig
	Server    ServerConfig
}

// MemoryConfig controls page and buffer-pool sizing.
type MemoryConfig struct {
	// DataPageShift is the bit-shift from a page id to a byte offset;
	// 12 means 4096-byte pages.
	DataPageShift int
	// ForceUnmapMappedFiles requests that memory-mapped files be
	// unmapped eagerly on close rather than left to the OS.
	ForceUnmapMappedFiles bool
	// BufferPoolPages is the default buffer pool capacity, in pages,
	// for newly opened columns.
	BufferPoolPages int
}

// ExecutionConfig sizes the worker pool the parallel kNN scan
// dispatches into.
type ExecutionConfig struct {
	CoreThreads   int
	MaxThreads    int
	KeepAliveTime time.Duration
	QueueSize     int
}

// ServerConfig is recognised but unused by this module: the gRPC
// front end that would read it is out of scope.
type ServerConfig struct {
	Port        int
	MessageSize int
	CertFile    string
	PrivateKey  string
}

// Default returns Cottontail DB's default configuration.
func Default() Config {
	return Config{
		LockTimeout: 5 * time.Second,
		Memory: MemoryConfig{
			DataPageShift:   12,
			BufferPoolPages: 256,
		},
		Execution: ExecutionConfig{
			CoreThreads:   4,
			MaxThreads:    16,
			KeepAliveTime: 60 * time.Second,
			QueueSize:     1024,
		},
		Server: ServerConfig{
			Port:        1865,
			MessageSize: 32 * 1024 * 1024,
		},
	}
}
