package web_test

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlassian/mockstatsd"
	"github.com/atlassian/mockstatsd/internal/fixtures"
	"github.com/atlassian/mockstatsd/pkg/healthcheck"
	"github.com/atlassian/mockstatsd/pkg/web"
)

func newTestRouter(t *testing.T, fi *fakeInspector, checks ...healthcheck.HealthcheckFunc) *httptest.Server {
	hs, err := web.NewHttpServer(fixtures.NewTestLogger(t), fi, "127.0.0.1:0", checks)
	require.NoError(t, err)
	c := httptest.NewServer(hs.Router)
	t.Cleanup(c.Close)
	return c
}

func get(t *testing.T, url string) (int, string) {
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestNewHttpServerRequiresInspector(t *testing.T) {
	t.Parallel()
	_, err := web.NewHttpServer(logrus.StandardLogger(), nil, "127.0.0.1:0", nil)
	assert.Error(t, err)
}

func TestMetricEndpoint(t *testing.T) {
	t.Parallel()
	fi := &fakeInspector{metrics: map[string]float64{"requests": 3.5}}
	c := newTestRouter(t, fi)

	tests := []struct {
		name   string
		path   string
		status int
		body   string
	}{
		{name: "found", path: "/metrics/requests", status: http.StatusOK, body: `{"name":"requests","value":3.5}`},
		{name: "tagged", path: "/metrics/requests?tag=env:test", status: http.StatusOK, body: `{"name":"requests","tags":{"env":"test"},"value":3.5}`},
		{name: "missing", path: "/metrics/nope", status: http.StatusNotFound, body: `{"error":"metric not found"}`},
		{name: "bad tag", path: "/metrics/requests?tag=env", status: http.StatusBadRequest},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			status, body := get(t, c.URL+tc.path)
			assert.Equal(t, tc.status, status)
			if tc.body != "" {
				assert.JSONEq(t, tc.body, body)
			}
		})
	}
}

func TestMetricEndpointPassesTags(t *testing.T) {
	t.Parallel()
	fi := &fakeInspector{metrics: map[string]float64{"m": 1}}
	c := newTestRouter(t, fi)

	status, _ := get(t, c.URL+"/metrics/m?tag=a:1&tag=b:2")
	require.Equal(t, http.StatusOK, status)
	status, _ = get(t, c.URL+"/metrics/m")
	require.Equal(t, http.StatusOK, status)

	tags := fi.queriedTags()
	require.Len(t, tags, 2)
	assert.Equal(t, mockstatsd.Tags{"a": "1", "b": "2"}, tags[0])
	assert.Nil(t, tags[1])
}

func TestSetEndpoint(t *testing.T) {
	t.Parallel()
	fi := &fakeInspector{sets: map[string][]float64{"users": {1, 4, 9}}}
	c := newTestRouter(t, fi)

	status, body := get(t, c.URL+"/sets/users")
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"name":"users","values":[1,4,9]}`, body)

	status, _ = get(t, c.URL+"/sets/other")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestCallsEndpoint(t *testing.T) {
	t.Parallel()
	fi := &fakeInspector{}
	c := newTestRouter(t, fi)

	status, body := get(t, c.URL+"/calls")
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"calls":[]}`, body)

	fi.mu.Lock()
	fi.calls = []string{"a:1|c", "b:2|g"}
	fi.mu.Unlock()
	_, body = get(t, c.URL+"/calls")
	assert.JSONEq(t, `{"calls":["a:1|c","b:2|g"]}`, body)
}

func TestResetEndpoint(t *testing.T) {
	t.Parallel()
	fi := &fakeInspector{metrics: map[string]float64{"m": 1}}
	c := newTestRouter(t, fi)

	resp, err := http.Post(c.URL+"/reset", "", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	fi.mu.Lock()
	assert.Equal(t, 1, fi.resets)
	fi.mu.Unlock()

	status, _ := get(t, c.URL+"/metrics/m")
	assert.Equal(t, http.StatusNotFound, status)

	// reset is POST only
	status, _ = get(t, c.URL+"/reset")
	assert.Equal(t, http.StatusMethodNotAllowed, status)
}

func TestHealthcheckEndpoint(t *testing.T) {
	t.Parallel()
	healthy := func() (string, healthcheck.HealthyStatus) { return "socket", healthcheck.Healthy }
	unhealthy := func() (string, healthcheck.HealthyStatus) { return "disk", healthcheck.Unhealthy }

	c := newTestRouter(t, &fakeInspector{}, healthy)
	status, body := get(t, c.URL+"/healthcheck")
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"ok":["socket"],"failed":[]}`, body)

	c = newTestRouter(t, &fakeInspector{}, healthy, unhealthy)
	status, body = get(t, c.URL+"/healthcheck")
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.JSONEq(t, `{"ok":["socket"],"failed":["disk"]}`, body)
}

func TestUnknownPath(t *testing.T) {
	t.Parallel()
	c := newTestRouter(t, &fakeInspector{})
	status, body := get(t, c.URL+"/nothing/here")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "not found", body)
}

func TestHttpServerShutsdown(t *testing.T) {
	testCtx, completed := testContext(t)
	defer completed()

	hs, err := web.NewHttpServer(
		logrus.StandardLogger(),
		&fakeInspector{},
		"127.0.0.1:0", // should pick a random port to bind to
		nil,
	)
	require.NoError(t, err)

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(testCtx)
	chDone := make(chan struct{}, 1)
	go func() {
		hs.Serve(ctx, l)
		chDone <- struct{}{}
	}()

	cancel()
	select {
	case <-testCtx.Done():
		assert.Fail(t, "web server did not stop")
	case <-chDone:
	}
}
