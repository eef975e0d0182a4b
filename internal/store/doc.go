// Package store is the resilient gateway to the relational configuration
// store.
//
// Every store operation runs through Wrap, which times the call, counts
// failures on api.configdb.errors, passes domain outcomes (does-not-exist,
// already-exists, invalid-update) through untouched and silently re-issues
// calls that hit the known driver protocol defect, up to a fixed cap.
//
// The package also owns the embedded schema migrations and the
// notification method repository built on top of the gateway.
package store
