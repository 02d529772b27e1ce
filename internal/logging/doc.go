// Package logging provides structured JSON logging for taco clients.
//
// It wraps log/slog with a small Logger type that carries persistent
// attributes, so that every entry written while handling a lock operation
// names the user and the resource involved:
//
//	logger, err := logging.NewLogger("/var/log/taco/taco.log", "INFO", logging.DefaultRotationConfig())
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	logger.WithUser("alice").WithResource("bench-07").Info("lock acquired")
//
// Output:
//
//	{"time":"...","level":"INFO","msg":"lock acquired","user":"alice","resource":"bench-07"}
//
// # Rotation
//
// File output goes through [RotatingWriter], which renames the file to
// path.1 once it exceeds RotationConfig.MaxSizeMB, shifting older backups and
// optionally gzip-compressing the rotated file.
//
// # Testing
//
// [NopLogger] discards everything and is what tests pass to components
// that require a Logger.
package logging
