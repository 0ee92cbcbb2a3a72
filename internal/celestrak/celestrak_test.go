package celestrak

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalsfoundry/scintillation-simulator/internal/fixtures"
	"github.com/signalsfoundry/scintillation-simulator/internal/upstream"
	"github.com/signalsfoundry/scintillation-simulator/model"
	"github.com/signalsfoundry/scintillation-simulator/tle"
)

func newMockedClient(t *testing.T) *Client {
	t.Helper()
	c := New(upstream.Config{RetryCount: -1, RetryWait: time.Millisecond}, nil, nil)
	httpmock.ActivateNonDefault(c.Upstream().HTTPClient())
	t.Cleanup(httpmock.DeactivateAndReset)
	return c
}

func TestGroupPath(t *testing.T) {
	assert.Equal(t, "/NORAD/elements/gp.php?FORMAT=3le&GROUP=gnss", GroupPath(model.SystemGNSS))
	assert.Equal(t, "/NORAD/elements/gp.php?FORMAT=3le&GROUP=gps-ops", GroupPath(model.SystemGPS))
}

func TestFetchGroupYieldsFiveDigitIDs(t *testing.T) {
	c := newMockedClient(t)
	httpmock.RegisterResponderWithQuery(http.MethodGet, DefaultBaseURL+"/NORAD/elements/gp.php",
		map[string]string{"GROUP": "gnss", "FORMAT": "3le"},
		httpmock.NewStringResponder(200, fixtures.CelestrakGNSS))

	body, err := c.FetchGroup(context.Background(), model.SystemGNSS)
	require.NoError(t, err)

	ids := tle.ExtractNoradIDs(body)
	require.NotEmpty(t, ids)
	for _, id := range strings.Split(tle.JoinIDs(ids), ",") {
		assert.Len(t, id, 5, "NORAD IDs should contain 5 digits")
		for _, r := range id {
			assert.True(t, r >= '0' && r <= '9', "NORAD IDs should be integers: %q", id)
		}
	}
}

func TestFetchGroupStatusError(t *testing.T) {
	c := newMockedClient(t)
	httpmock.RegisterResponder(http.MethodGet, `=~^https://celestrak\.org/NORAD/elements/gp\.php`,
		httpmock.NewStringResponder(403, "forbidden"))

	_, err := c.FetchGroup(context.Background(), model.SystemCubeSat)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Error 403: Forbidden")
}
