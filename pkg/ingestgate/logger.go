package ingestgate

// Logger is the printf-style sink every client writes to. Publisher and
// gateway failures are reported through Error; reconnect and re-issue
// detail goes to Verbose. Implementations must be safe for concurrent use.
type Logger interface {
	Verbose(format string, args ...interface{})
	Info(format string, args ...interface{})
	Error(format string, args ...interface{})
}
