// Package peer implements the inter-host RPC client (spec §6): calls one
// member of a pool makes to another over HTTPS, authenticated with the
// pool-wide shared secret rather than a per-session token. The transport
// is an http.Client built from a parsed base URL, a TLS config honoring
// InsecureSkipVerify, and a single do() request helper; authentication is
// a header carrying the pool secret rather than a cookie-based session
// token, since peer calls aren't made on behalf of a logged-in session.
package peer

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"time"

	"github.com/blang/semver/v4"

	"github.com/xapi-core/xapi-core/internal/common/core"
	"github.com/xapi-core/xapi-core/pkg/bootstrap"
)

const poolSecretHeader = "X-XAPI-Pool-Secret"

// Client calls another pool member's peer-RPC surface. One Client talks to
// exactly one remote host; a caller that needs to reach several hosts (the
// master trying every member during a host eject, say) holds one Client
// per address.
type Client struct {
	httpClient *http.Client
	baseURL    *url.URL
	poolSecret string
}

// New builds a Client addressed at hostAddress (bare IP or host:port; a
// scheme is added). insecureSkipVerify exists for the same reason the
// teacher's client config carries it: self-signed pool certificates are
// the common case before a cluster has a real CA.
func New(hostAddress, poolSecret string, insecureSkipVerify bool) (*Client, error) {
	if poolSecret == "" {
		return nil, fmt.Errorf("peer client requires a pool secret")
	}

	baseURL, err := url.Parse("https://" + hostAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to parse host address: %w", err)
	}
	baseURL.Path = path.Join(baseURL.Path, "peer/v1")

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: insecureSkipVerify}

	return &Client{
		httpClient: &http.Client{Transport: transport, Timeout: 30 * time.Second},
		baseURL:    baseURL,
		poolSecret: poolSecret,
	}, nil
}

func (c *Client) do(ctx context.Context, method, action string, params, result any) error {
	reqURL := *c.baseURL
	reqURL.Path = path.Join(reqURL.Path, action)

	var body io.Reader
	if params != nil {
		encoded, err := json.Marshal(params)
		if err != nil {
			return core.ErrFailedToMarshalParams.WithArgs(err)
		}
		body = bytes.NewBuffer(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL.String(), body)
	if err != nil {
		return core.ErrFailedToMakeRequest.WithArgs(err)
	}
	req.Header.Set(poolSecretHeader, c.poolSecret)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return core.ErrFailedToDoRequest.WithArgs(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return core.ErrFailedToReadResponse.WithArgs(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("peer call %s failed: %s - %s", action, resp.Status, string(respBody))
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return core.ErrFailedToUnmarshalResponse.WithArgs(err)
		}
	}
	return nil
}

type helloRequest struct {
	HostUUID    string `json:"host_uuid"`
	HostAddress string `json:"host_address"`
}

type helloResponse struct {
	Status string `json:"status"`
}

// HostStatusCheck implements bootstrap.Peer by calling Pool.hello against
// the configured host, translating its status string into the bootstrap
// StatusResult the join state machine switches on.
func (c *Client) HostStatusCheck(ctx context.Context, myIP string) (bootstrap.StatusResult, error) {
	var resp helloResponse
	if err := c.do(ctx, http.MethodPost, "Pool.hello", helloRequest{HostAddress: myIP}, &resp); err != nil {
		return "", err
	}
	return bootstrap.StatusResult(resp.Status), nil
}

type versionResponse struct {
	Version string `json:"version"`
}

// MasterVersion calls the version probe exposed alongside Pool.hello so a
// joining member can compare its own build against the coordinator's
// before committing to the join (spec §4.5's version gate).
func (c *Client) MasterVersion(ctx context.Context) (semver.Version, error) {
	var resp versionResponse
	if err := c.do(ctx, http.MethodGet, "Pool.master_version", nil, &resp); err != nil {
		return semver.Version{}, err
	}
	return semver.Parse(resp.Version)
}

// AskHostIfItIsASlave calls Host.ask_host_if_it_is_a_slave, used by a
// coordinator probing a host it suspects has silently become a member of
// some other pool or gone independent.
func (c *Client) AskHostIfItIsASlave(ctx context.Context) (bool, error) {
	var resp struct {
		IsSlave bool `json:"is_slave"`
	}
	if err := c.do(ctx, http.MethodGet, "Host.ask_host_if_it_is_a_slave", nil, &resp); err != nil {
		return false, err
	}
	return resp.IsSlave, nil
}

// PIFAttachment is one entry of the PIF-currently-attached map exchanged
// by Host.sync_pif_currently_attached (spec §6): which of a host's
// physical interfaces the kernel currently has up, keyed by PIF UUID.
type PIFAttachment struct {
	PIFUUID    string `json:"pif_uuid"`
	Currently  bool   `json:"currently_attached"`
}

// SyncPIFCurrentlyAttached pushes this host's view of PIF attachment state
// to the peer and receives its view back, so both sides can reconcile
// what the database believes against kernel-reported reality after a
// network restart.
func (c *Client) SyncPIFCurrentlyAttached(ctx context.Context, mine []PIFAttachment) ([]PIFAttachment, error) {
	var resp []PIFAttachment
	if err := c.do(ctx, http.MethodPost, "Host.sync_pif_currently_attached", mine, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// ForwardedCall carries an operation this host could not serve locally —
// e.g. a client hit a member with a request only the coordinator can
// fulfil — for the coordinator to execute and return the result of.
type ForwardedCall struct {
	Class  string          `json:"class"`
	Op     string          `json:"op"`
	Params json.RawMessage `json:"params"`
}

// Forward relays a client call to this Client's host, used when a node
// that isn't the coordinator receives a pool-wide operation it must hand
// upward (spec §6's "cluster API for forwarded operations").
func (c *Client) Forward(ctx context.Context, call ForwardedCall) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodPost, "Cluster.forward", call, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}
