package metrics

import (
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	p, err := New()
	require.NoError(t, err)

	p.RecordRead()
	p.RecordRead()
	p.RecordSkipped()
	p.ChunkDone("response", false, time.Millisecond)
	p.ChunkDone("response", true, time.Millisecond)
	p.Candidate("xss", false)
	p.Candidate("xss", true)
	p.QueueDepth(3)
	p.RunFinished(map[string]int{"critical": 2, "low": 0}, 1500*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(p.records.WithLabelValues("read")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.records.WithLabelValues("skipped")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.chunks.WithLabelValues("response", "skipped")))
	assert.Equal(t, 2.0, testutil.ToFloat64(p.candidates.WithLabelValues("xss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.flagged.WithLabelValues("xss")))
	assert.Equal(t, 2.0, testutil.ToFloat64(p.findings.WithLabelValues("critical")))
	assert.Equal(t, 1.5, testutil.ToFloat64(p.runTime))
	assert.Equal(t, 3.0, testutil.ToFloat64(p.queueDepth))
	assert.Equal(t, 1, testutil.CollectAndCount(p.chunkTime))
}

func TestNilPipeline(t *testing.T) {
	var p *Pipeline
	assert.NotPanics(t, func() {
		p.RecordRead()
		p.RecordSkipped()
		p.ChunkDone("url", false, 0)
		p.Candidate("xss", true)
		p.QueueDepth(1)
		p.RunFinished(nil, 0)
	})
}

func TestListen(t *testing.T) {
	p, err := New()
	require.NoError(t, err)
	p.RecordRead()

	srv, err := p.Listen("127.0.0.1:0", nil)
	require.NoError(t, err)
	defer srv.Close()

	resp, err := http.Get("http://" + srv.Addr() + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.Contains(string(body), `scantriage_records_total{outcome="read"} 1`))
}
