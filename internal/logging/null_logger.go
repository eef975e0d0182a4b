package logging

import "github.com/vvka-141/ingestgate/pkg/ingestgate"

// NullLogger drops every line. Clients fall back to it when no logger is
// injected. The zero value is ready to use.
type NullLogger struct{}

var _ ingestgate.Logger = NullLogger{}

// NewNullLogger returns a NullLogger.
func NewNullLogger() NullLogger {
	return NullLogger{}
}

func (NullLogger) Verbose(string, ...interface{}) {}
func (NullLogger) Info(string, ...interface{})    {}
func (NullLogger) Error(string, ...interface{})   {}
