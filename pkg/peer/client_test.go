package peer

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/blang/semver/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xapi-core/xapi-core/internal/common/logger"
	"github.com/xapi-core/xapi-core/pkg/bootstrap"
)

type fakeHello struct{ status bootstrap.StatusResult }

func (f *fakeHello) Hello(hostAddress string) bootstrap.StatusResult { return f.status }

func newTestServer(t *testing.T, secret string, status bootstrap.StatusResult) *httptest.Server {
	log, err := logger.New(false)
	require.NoError(t, err)
	srv := NewServer(log, secret, semver.MustParse("1.2.3"), &fakeHello{status: status})
	return httptest.NewServer(srv)
}

func newTestClient(t *testing.T, srv *httptest.Server, secret string) *Client {
	c, err := New(strings.TrimPrefix(srv.URL, "https://"), secret, true)
	require.NoError(t, err)
	c.baseURL.Scheme = "http"
	c.httpClient = srv.Client()
	return c
}

func TestHostStatusCheckOK(t *testing.T) {
	srv := newTestServer(t, "s3cr3t", bootstrap.StatusOK)
	defer srv.Close()
	client := newTestClient(t, srv, "s3cr3t")

	status, err := client.HostStatusCheck(context.Background(), "10.0.0.5")
	require.NoError(t, err)
	assert.Equal(t, bootstrap.StatusOK, status)
}

func TestHostStatusCheckRejectsWrongSecret(t *testing.T) {
	srv := newTestServer(t, "s3cr3t", bootstrap.StatusOK)
	defer srv.Close()
	client := newTestClient(t, srv, "wrong")

	_, err := client.HostStatusCheck(context.Background(), "10.0.0.5")
	assert.Error(t, err)
}

func TestMasterVersion(t *testing.T) {
	srv := newTestServer(t, "s3cr3t", bootstrap.StatusOK)
	defer srv.Close()
	client := newTestClient(t, srv, "s3cr3t")

	v, err := client.MasterVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, semver.MustParse("1.2.3"), v)
}

func TestNewRejectsEmptyPoolSecret(t *testing.T) {
	_, err := New("10.0.0.5", "", true)
	assert.Error(t, err)
}
