// Package db opens the relational engine behind the configuration store.
//
// NewConnector picks a Connector from the store configuration:
//   - MySQL: go-sql-driver/mysql
//   - PostgreSQL: a pgx pool exposed as database/sql
//   - PostgreSQL with cloud IAM: AWS and Azure tokens as passwords, or the Cloud SQL dialer
//
// Connect pings once and never retries. A misconfigured store fails at startup.
package db
