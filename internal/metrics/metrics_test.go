package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestIncRun(t *testing.T) {
	before := testutil.ToFloat64(RunsTotal.WithLabelValues("ok"))
	IncRun("ok")

	assert.Equal(t, before+1, testutil.ToFloat64(RunsTotal.WithLabelValues("ok")))
	assert.InDelta(t, float64(time.Now().Unix()), testutil.ToFloat64(LastRunTimestamp.WithLabelValues("ok")), 5)
}

func TestIncSnapshotOp(t *testing.T) {
	before := testutil.ToFloat64(SnapshotOpsTotal.WithLabelValues("file", "save", "ok"))
	IncSnapshotOp("file", "save", "ok")
	assert.Equal(t, before+1, testutil.ToFloat64(SnapshotOpsTotal.WithLabelValues("file", "save", "ok")))
}

func TestObserveDuration(t *testing.T) {
	ObserveDuration(FetchDuration, time.Now().Add(-time.Second), "ok")
	ObserveDuration(RunDuration, time.Now())
	ObserveDuration(NewTradesTotal, time.Now()) // ignored

	assert.GreaterOrEqual(t, testutil.CollectAndCount(FetchDuration), 1)
}

func TestResult(t *testing.T) {
	assert.Equal(t, "ok", Result(nil))
	assert.Equal(t, "error", Result(errors.New("boom")))
}
