package retry

import (
	"errors"
	"net"
	"strings"
	"syscall"

	"github.com/IBM/sarama"
	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"

	"github.com/vvka-141/ingestgate/pkg/ingestgate"
)

// PostgreSQL error codes for transient conditions
// See: https://www.postgresql.org/docs/current/errcodes-appendix.html
const (
	// Class 40 - Transaction Rollback
	pgCodeSerializationFailure = "40001"
	pgCodeDeadlockDetected     = "40P01"

	// Class 55 - Object Not In Prerequisite State
	pgCodeLockNotAvailable = "55P03"

	// Class 3D - Invalid Catalog Name
	pgCodeInvalidCatalogName = "3D000"
)

// MySQL server error numbers.
const (
	mysqlErrDBAccessDenied = 1044
	mysqlErrAccessDenied   = 1045
	mysqlErrBadDB          = 1049
	mysqlErrLockWaitTimout = 1205
	mysqlErrLockDeadlock   = 1213
)

// DefaultDefectSignatures identify the driver defect where a server's
// disconnect handshake is misread as a protocol error.
var DefaultDefectSignatures = []string{
	"Package sequence number wrong",
	"commands out of sync",
}

// Redis reply prefixes.
var (
	redisClusterDownPrefixes = []string{"CLUSTERDOWN"}
	redisNoLeaderPrefixes    = []string{"TRYAGAIN", "MASTERDOWN"}
)

// BrokerErrorClassifier classifies failures raised while talking to the broker.
// Only "cluster unreachable" and "no leader elected" are transient; every
// other failure is unknown and must not be retried.
type BrokerErrorClassifier struct{}

// NewBrokerErrorClassifier creates a new broker error classifier.
func NewBrokerErrorClassifier() *BrokerErrorClassifier {
	return &BrokerErrorClassifier{}
}

// Classify implements ingestgate.ErrorClassifier.
func (c *BrokerErrorClassifier) Classify(err error) ingestgate.ErrorClass {
	if err == nil {
		return ingestgate.ClassUnknown
	}

	// A batch fails as a whole; it is transient if any message failed transiently.
	var batchErrs sarama.ProducerErrors
	if errors.As(err, &batchErrs) {
		for _, pe := range batchErrs {
			if pe != nil && c.Classify(pe.Err) == ingestgate.ClassTransientInfrastructure {
				return ingestgate.ClassTransientInfrastructure
			}
		}
		return ingestgate.ClassUnknown
	}

	if c.IsClusterUnreachable(err) || c.IsNoLeader(err) {
		return ingestgate.ClassTransientInfrastructure
	}
	return ingestgate.ClassUnknown
}

// IsTransient reports whether err is retryable.
func (c *BrokerErrorClassifier) IsTransient(err error) bool {
	return c.Classify(err) == ingestgate.ClassTransientInfrastructure
}

// IsClusterUnreachable reports whether no broker of the cluster could be reached.
func (c *BrokerErrorClassifier) IsClusterUnreachable(err error) bool {
	if errors.Is(err, sarama.ErrOutOfBrokers) {
		return true
	}
	if hasRedisPrefix(err, redisClusterDownPrefixes) {
		return true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true
	}
	return isConnectionRefused(err)
}

// IsNoLeader reports whether the partition, or the cluster controller, currently
// has no elected leader.
func (c *BrokerErrorClassifier) IsNoLeader(err error) bool {
	if errors.Is(err, sarama.ErrLeaderNotAvailable) ||
		errors.Is(err, sarama.ErrNotLeaderForPartition) ||
		errors.Is(err, sarama.ErrControllerNotAvailable) {
		return true
	}
	return hasRedisPrefix(err, redisNoLeaderPrefixes)
}

func hasRedisPrefix(err error, prefixes []string) bool {
	var redisErr redis.Error
	if !errors.As(err, &redisErr) {
		return false
	}
	msg := redisErr.Error()
	for _, prefix := range prefixes {
		if strings.HasPrefix(msg, prefix) {
			return true
		}
	}
	return false
}

func isConnectionRefused(err error) bool {
	return errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ENETUNREACH) ||
		errors.Is(err, syscall.EHOSTUNREACH)
}

// StoreErrorClassifier classifies failures raised by the relational client.
type StoreErrorClassifier struct {
	defectSignatures []string
}

// NewStoreErrorClassifier creates a store classifier. With no signatures the
// DefaultDefectSignatures are used.
func NewStoreErrorClassifier(defectSignatures ...string) *StoreErrorClassifier {
	if len(defectSignatures) == 0 {
		defectSignatures = DefaultDefectSignatures
	}
	return &StoreErrorClassifier{defectSignatures: defectSignatures}
}

// Classify implements ingestgate.ErrorClassifier.
func (c *StoreErrorClassifier) Classify(err error) ingestgate.ErrorClass {
	if err == nil {
		return ingestgate.ClassUnknown
	}

	if ingestgate.IsDomainError(err) {
		return ingestgate.ClassPermanentApplication
	}

	if c.IsDriverDefect(err) {
		return ingestgate.ClassTransientInfrastructure
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return classifyPgError(pgErr)
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return classifyMySQLError(myErr)
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		if dnsErr.IsNotFound {
			return ingestgate.ClassPermanentConfiguration
		}
		return ingestgate.ClassTransientInfrastructure
	}

	if isNetworkError(err) || isConnectionError(err) {
		return ingestgate.ClassTransientInfrastructure
	}

	return ingestgate.ClassUnknown
}

// IsDriverDefect reports whether err is the known client-library defect that
// is safe to re-issue transparently.
func (c *StoreErrorClassifier) IsDriverDefect(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, mysql.ErrPktSync) || errors.Is(err, mysql.ErrPktSyncMul) {
		return true
	}
	msg := err.Error()
	for _, signature := range c.defectSignatures {
		if signature != "" && strings.Contains(msg, signature) {
			return true
		}
	}
	return false
}

// classifyPgError checks PostgreSQL error codes.
func classifyPgError(pgErr *pgconn.PgError) ingestgate.ErrorClass {
	code := pgErr.Code

	switch {
	// Class 08 - Connection Exception, 53 - Insufficient Resources, 57 - Operator Intervention
	case strings.HasPrefix(code, "08"), strings.HasPrefix(code, "53"), strings.HasPrefix(code, "57"):
		return ingestgate.ClassTransientInfrastructure
	// Class 28 - Invalid Authorization Specification
	case strings.HasPrefix(code, "28"), code == pgCodeInvalidCatalogName:
		return ingestgate.ClassPermanentConfiguration
	}

	switch code {
	case pgCodeSerializationFailure, pgCodeDeadlockDetected, pgCodeLockNotAvailable:
		return ingestgate.ClassTransientInfrastructure
	}

	return ingestgate.ClassUnknown
}

func classifyMySQLError(myErr *mysql.MySQLError) ingestgate.ErrorClass {
	switch myErr.Number {
	case mysqlErrAccessDenied, mysqlErrDBAccessDenied, mysqlErrBadDB:
		return ingestgate.ClassPermanentConfiguration
	case mysqlErrLockWaitTimout, mysqlErrLockDeadlock:
		return ingestgate.ClassTransientInfrastructure
	}
	return ingestgate.ClassUnknown
}

// isNetworkError checks for network-level errors.
func isNetworkError(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if opErr.Timeout() {
			return true
		}
		if opErr.Err != nil && (isConnectionRefused(opErr.Err) || errors.Is(opErr.Err, syscall.ECONNRESET)) {
			return true
		}
	}
	return errors.Is(err, mysql.ErrInvalidConn)
}

// isConnectionError checks for connection-related error messages.
func isConnectionError(err error) bool {
	errMsg := strings.ToLower(err.Error())

	transientPatterns := []string{
		"connection refused",
		"connection reset",
		"connection timeout",
		"network is unreachable",
		"i/o timeout",
		"broken pipe",
		"too many connections",
		"server closed the connection",
		"unexpected eof",
		"bad connection",
	}

	for _, pattern := range transientPatterns {
		if strings.Contains(errMsg, pattern) {
			return true
		}
	}

	return false
}
