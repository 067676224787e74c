package coingecko_test

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dnaeon/go-vcr/recorder"
	"github.com/stretchr/testify/assert"

	"palantir/pkg/ingestion/coingecko"
)

// TestFetchRange_Recorded replays a real market_chart/range call against
// the public API. It skips when the cassette is absent unless
// RECORD_CASSETTES=1, matching the way live-API tests elsewhere in this
// codebase avoid hitting the network during normal runs.
func TestFetchRange_Recorded(t *testing.T) {
	cassette := filepath.Join("testdata", "cassettes", "bitcoin_usd.yaml")
	if _, err := os.Stat(cassette); os.IsNotExist(err) {
		if os.Getenv("RECORD_CASSETTES") != "1" {
			t.Skipf("cassette missing; set RECORD_CASSETTES=1 to record: %s", cassette)
		}
		assert.NoError(t, os.MkdirAll(filepath.Dir(cassette), 0o755))
	}

	// go-vcr appends ".yaml" to the cassette name it is given.
	r, err := recorder.New(strings.TrimSuffix(cassette, ".yaml"))
	assert.NoError(t, err)
	defer func() { _ = r.Stop() }()

	client := coingecko.New(coingecko.WithHTTPClient(&http.Client{Transport: r}))

	to := time.Unix(1700000000, 0).UTC()
	from := to.Add(-24 * time.Hour)
	samples, err := client.FetchRange(context.Background(), "bitcoin", "usd", from, to)
	assert.NoError(t, err)
	assert.NotEmpty(t, samples)
}
