// Package logging implements ingestgate.Logger.
//
// ConsoleLogger writes leveled, colorized lines to stderr through log/slog
// and the tint handler; Verbose maps to debug. NullLogger drops everything
// and is the default when a client gets no logger.
package logging
