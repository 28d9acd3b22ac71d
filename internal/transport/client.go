package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	opencode "github.com/sst/opencode-sdk-go"
	"github.com/sst/opencode-sdk-go/option"

	"github.com/ricochet1k/opencode-term/pkg/api"
)

// Endpoint addresses one PTY on an opencode server.
type Endpoint struct {
	ServerURL string
	PTYID     string
	Directory string
}

func (e Endpoint) Validate() error {
	if strings.TrimSpace(e.ServerURL) == "" {
		return errors.New("server url is required")
	}
	if strings.TrimSpace(e.PTYID) == "" {
		return errors.New("pty id is required")
	}
	return nil
}

// Client issues the request/response side of the PTY protocol.
type Client struct {
	sdk *opencode.Client
}

type ClientOptions struct {
	HTTPClient *http.Client
	MaxRetries int
}

func NewClient(serverURL string, opts ClientOptions) *Client {
	reqOpts := []option.RequestOption{
		option.WithBaseURL(baseURL(serverURL)),
		option.WithMaxRetries(opts.MaxRetries),
	}
	if opts.HTTPClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(opts.HTTPClient))
	}
	return &Client{sdk: opencode.NewClient(reqOpts...)}
}

func baseURL(serverURL string) string {
	if !strings.HasSuffix(serverURL, "/") {
		return serverURL + "/"
	}
	return serverURL
}

func directoryOpt(directory string) []option.RequestOption {
	if directory == "" {
		return nil
	}
	return []option.RequestOption{option.WithQuery("directory", directory)}
}

func ptyPath(id string, parts ...string) string {
	p := "pty/" + url.PathEscape(id)
	for _, part := range parts {
		p += "/" + part
	}
	return p
}

func (c *Client) Create(ctx context.Context, directory string, req api.CreatePTYRequest) (api.PTY, error) {
	var out api.PTY
	if err := c.sdk.Post(ctx, "pty", req, &out, directoryOpt(directory)...); err != nil {
		return api.PTY{}, fmt.Errorf("create pty: %w", err)
	}
	if out.ID == "" {
		return api.PTY{}, errors.New("create pty: server returned no id")
	}
	return out, nil
}

func (c *Client) List(ctx context.Context, directory string) ([]api.PTY, error) {
	var out []api.PTY
	if err := c.sdk.Get(ctx, "pty", nil, &out, directoryOpt(directory)...); err != nil {
		return nil, fmt.Errorf("list ptys: %w", err)
	}
	return out, nil
}

// Resize tells the server the local grid size of a PTY.
func (c *Client) Resize(ctx context.Context, ep Endpoint, cols, rows int) error {
	body := api.UpdatePTYRequest{Size: &api.PTYSize{Cols: cols, Rows: rows}}
	var out api.PTY
	if err := c.sdk.Patch(ctx, ptyPath(ep.PTYID), body, &out, directoryOpt(ep.Directory)...); err != nil {
		return fmt.Errorf("resize pty %s: %w", ep.PTYID, err)
	}
	return nil
}

func (c *Client) Remove(ctx context.Context, ep Endpoint) error {
	var ok bool
	if err := c.sdk.Delete(ctx, ptyPath(ep.PTYID), nil, &ok, directoryOpt(ep.Directory)...); err != nil {
		return fmt.Errorf("remove pty %s: %w", ep.PTYID, err)
	}
	return nil
}

func (c *Client) Health(ctx context.Context) (api.Health, error) {
	var out api.Health
	if err := c.sdk.Get(ctx, "global/health", nil, &out); err != nil {
		return api.Health{}, fmt.Errorf("health: %w", err)
	}
	return out, nil
}
