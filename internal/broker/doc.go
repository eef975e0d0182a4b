// Package broker publishes messages to a message broker through a
// self-healing connection.
//
// A Publisher owns at most one live broker session and one producer built
// on it. The connection is established lazily on the first publish,
// retried with a fixed wait on transient failures, and invalidated when a
// send fails transiently so that the next publish reconnects. Sends that
// fail are never re-sent; the caller decides.
//
// Two drivers implement the Dialer boundary: KafkaDialer (IBM/sarama) and
// RedisStreamDialer (go-redis, one stream per topic).
package broker
