package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordAPIRequest(t *testing.T) {
	before := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("GET", "/api/catalog/movies", "200"))
	RecordAPIRequest("GET", "/api/catalog/movies", 200, 15*time.Millisecond)
	after := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("GET", "/api/catalog/movies", "200"))
	assert.Equal(t, before+1, after)
}

func TestTrackActiveRequest(t *testing.T) {
	start := testutil.ToFloat64(APIActiveRequests)
	TrackActiveRequest(true)
	assert.Equal(t, start+1, testutil.ToFloat64(APIActiveRequests))
	TrackActiveRequest(false)
	assert.Equal(t, start, testutil.ToFloat64(APIActiveRequests))
}

func TestRecordImportFinished(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  string
		created float64
	}{
		{"success", nil, "succeeded", 3},
		{"failure", errors.New("feed down"), "failed", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runs := testutil.ToFloat64(ImportRunsTotal.WithLabelValues(tt.status))
			created := testutil.ToFloat64(ImportRecords.WithLabelValues("created"))

			RecordImportStarted()
			assert.Equal(t, float64(1), testutil.ToFloat64(ImportRunning))
			RecordImportFinished(time.Second, 3, 1, 2, tt.err)

			assert.Equal(t, float64(0), testutil.ToFloat64(ImportRunning))
			assert.Equal(t, runs+1, testutil.ToFloat64(ImportRunsTotal.WithLabelValues(tt.status)))
			assert.Equal(t, created+tt.created, testutil.ToFloat64(ImportRecords.WithLabelValues("created")))
		})
	}
}
