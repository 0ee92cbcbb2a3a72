package spacetrack

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalsfoundry/scintillation-simulator/internal/fixtures"
	"github.com/signalsfoundry/scintillation-simulator/internal/upstream"
	"github.com/signalsfoundry/scintillation-simulator/tle"
)

var testCreds = Credentials{Identity: "user@example.com", Password: "secret"}

func newMockedClient(t *testing.T, creds Credentials) *Client {
	t.Helper()
	c := New(upstream.Config{RetryCount: -1, RetryWait: time.Millisecond}, creds, nil, nil)
	httpmock.ActivateNonDefault(c.Upstream().HTTPClient())
	t.Cleanup(httpmock.DeactivateAndReset)
	return c
}

func registerLogin(t *testing.T) {
	t.Helper()
	httpmock.RegisterResponder(http.MethodPost, DefaultBaseURL+loginPath,
		func(req *http.Request) (*http.Response, error) {
			if err := req.ParseForm(); err != nil {
				return httpmock.NewStringResponse(400, ""), nil
			}
			if req.PostForm.Get("identity") != testCreds.Identity || req.PostForm.Get("password") != testCreds.Password {
				return httpmock.NewStringResponse(200, `{"Login":"Failed"}`), nil
			}
			resp := httpmock.NewStringResponse(200, `""`)
			resp.Header.Set("Set-Cookie", "chocolatechip=session-token; Path=/")
			return resp, nil
		})
}

func TestEpochRange(t *testing.T) {
	start, end := EpochRange(time.Date(2024, time.December, 31, 23, 59, 0, 0, time.UTC))
	assert.Equal(t, "2024-12-31", start)
	assert.Equal(t, "2025-01-01", end)

	start, end = EpochRange(time.Date(2024, time.February, 28, 8, 0, 0, 0, time.UTC))
	assert.Equal(t, "2024-02-28", start)
	assert.Equal(t, "2024-02-29", end)
}

func TestGPHistoryPath(t *testing.T) {
	got := GPHistoryPath([]string{"24876", "26360"}, fixtures.SpaceTrackReference)
	assert.Equal(t,
		"/basicspacedata/query/class/gp_history/NORAD_CAT_ID/24876,26360/orderby/TLE_LINE1%20ASC/EPOCH/2024-10-28--2024-10-29/format/3le/emptyresult/show",
		got)
}

func TestFetchTLEsUsesSessionCookie(t *testing.T) {
	c := newMockedClient(t, testCreds)
	registerLogin(t)
	httpmock.RegisterResponder(http.MethodGet, `=~^https://www\.space-track\.org/basicspacedata/query/class/gp_history/`,
		func(req *http.Request) (*http.Response, error) {
			cookie, err := req.Cookie("chocolatechip")
			if err != nil || cookie.Value != "session-token" {
				return httpmock.NewStringResponse(401, ""), nil
			}
			return httpmock.NewStringResponse(200, fixtures.SpaceTrackGPHistory), nil
		})

	ids := []string{"24876", "26360", "26407", "27663"}
	body, err := c.FetchTLEs(context.Background(), ids, fixtures.SpaceTrackReference)
	require.NoError(t, err)

	sets, err := tle.Parse(body)
	require.NoError(t, err)
	deduped := tle.Deduplicate(sets, fixtures.SpaceTrackReference)

	require.Len(t, deduped, 4)
	for _, set := range deduped {
		assert.True(t, strings.HasPrefix(set.Name, "NAVSTAR "), set.Name)
	}

	info := httpmock.GetCallCountInfo()
	assert.Equal(t, 1, info["POST "+DefaultBaseURL+loginPath])
}

func TestFetchTLEsLoginFailed(t *testing.T) {
	c := newMockedClient(t, Credentials{Identity: "user@example.com", Password: "wrong"})
	registerLogin(t)

	_, err := c.FetchTLEs(context.Background(), []string{"24876"}, fixtures.SpaceTrackReference)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLoginFailed))
	assert.Equal(t, 1, httpmock.GetTotalCallCount(), "no query after failed login")
}

func TestFetchTLEsRequiresCredentialsAndIDs(t *testing.T) {
	c := newMockedClient(t, Credentials{})
	_, err := c.FetchTLEs(context.Background(), []string{"24876"}, fixtures.SpaceTrackReference)
	assert.True(t, errors.Is(err, ErrNoCredentials))

	c = newMockedClient(t, testCreds)
	_, err = c.FetchTLEs(context.Background(), nil, fixtures.SpaceTrackReference)
	assert.True(t, errors.Is(err, ErrNoIDs))
	assert.Zero(t, httpmock.GetTotalCallCount())
}

func TestFetchTLEsNoContent(t *testing.T) {
	c := newMockedClient(t, testCreds)
	registerLogin(t)
	httpmock.RegisterResponder(http.MethodGet, `=~gp_history`, httpmock.NewStringResponder(204, ""))

	_, err := c.FetchTLEs(context.Background(), []string{"99999"}, fixtures.SpaceTrackReference)
	require.Error(t, err)

	var se *upstream.StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusNoContent, se.Code)
}
