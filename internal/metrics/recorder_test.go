package metrics

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecorder_TotalsAndCounts(t *testing.T) {
	rec := NewRecorder()
	topicA := map[string]string{"topic": "a"}

	rec.Counter("kafka.producer.errors", topicA).Increment(0, 0.01)
	rec.Counter("kafka.producer.errors", topicA).Increment(1, 1.0)
	rec.Counter("kafka.producer.errors", map[string]string{"topic": "b"}).Increment(1, 1.0)

	assert.Equal(t, 2, rec.Count("kafka.producer.errors", topicA))
	assert.Equal(t, 1.0, rec.Total("kafka.producer.errors", topicA))
	assert.Len(t, rec.Events("kafka.producer.errors"), 3)
	assert.Equal(t, 0.01, rec.Events("kafka.producer.errors")[0].SampleRate)
}

func TestRecorder_NilAndEmptyDimsMatch(t *testing.T) {
	rec := NewRecorder()
	rec.Counter("api.configdb.errors", nil).Increment(1, 1)

	assert.Equal(t, 1, rec.Count("api.configdb.errors", map[string]string{}))
}

func TestRecorder_DimensionsAreCopied(t *testing.T) {
	rec := NewRecorder()
	dims := map[string]string{"topic": "a"}
	c := rec.Counter("x", dims)
	dims["topic"] = "b"
	c.Increment(1, 1)

	assert.Equal(t, 1, rec.Count("x", map[string]string{"topic": "a"}))
}

func TestRecorder_Timings(t *testing.T) {
	rec := NewRecorder()
	stop := rec.Timer().Time("api.configdb.time_ms", 1.0)
	assert.Equal(t, 0, rec.Timings("api.configdb.time_ms"))
	stop()
	assert.Equal(t, 1, rec.Timings("api.configdb.time_ms"))

	rec.Reset()
	assert.Equal(t, 0, rec.Timings("api.configdb.time_ms"))
}

func TestRecorder_ConcurrentIncrements(t *testing.T) {
	rec := NewRecorder()
	c := rec.Counter("n", nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Increment(1, 1)
		}()
	}
	wg.Wait()

	assert.Equal(t, 50.0, rec.Total("n", nil))
}
