// Package importftp implements the import_ftp step: fetch the raw
// material, stock, price and stock-location feeds from the upstream FTP
// drop directory and stage them into the object store under
// inputs/runs/{run_id}/ for parse_merge to pick up.
package importftp

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"

	"github.com/jlaffaye/ftp"
	"github.com/nova-retail/catalogsync/core"
	"github.com/nova-retail/catalogsync/pkg/objectstore"
)

// Config is the upstream FTP drop's connection details.
type Config struct {
	Host     string
	Port     string
	User     string
	Password string
	InputDir string
	UseTLS   bool
}

// Feed names the four files import_ftp stages per run.
type Feed struct {
	RemoteName string
	StagedKey  string // relative to inputs/runs/{run_id}/
}

// DefaultFeeds is the fixed set of files parse_merge expects to find
// staged. The remote names match what the upstream drop publishes today;
// a renamed upstream file is an operational incident, not a code change.
var DefaultFeeds = []Feed{
	{RemoteName: "material.txt", StagedKey: "material.txt"},
	{RemoteName: "stock.txt", StagedKey: "stock.txt"},
	{RemoteName: "price.txt", StagedKey: "price.txt"},
	{RemoteName: "stock_location.txt", StagedKey: "stock_location.txt"},
}

// Client holds the FTP drop's connection details; each FetchAll call
// opens and closes its own session.
type Client struct {
	cfg    Config
	logger core.Logger
}

// NewClient builds a Client. Dialing happens lazily, once per FetchAll call,
// since a run's import_ftp step may be retried across ticks.
func NewClient(cfg Config, logger core.Logger) *Client {
	if logger == nil {
		logger = core.NoOpLogger{}
	}
	return &Client{cfg: cfg, logger: logger}
}

func (c *Client) dial(ctx context.Context) (*ftp.ServerConn, error) {
	addr := fmt.Sprintf("%s:%s", c.cfg.Host, c.cfg.Port)
	opts := []ftp.DialOption{ftp.DialWithContext(ctx)}
	if c.cfg.UseTLS {
		opts = append(opts, ftp.DialWithExplicitTLS(&tls.Config{ServerName: c.cfg.Host}))
	}
	conn, err := ftp.Dial(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("importftp: dial %s: %w", addr, err)
	}
	if err := conn.Login(c.cfg.User, c.cfg.Password); err != nil {
		conn.Quit()
		return nil, fmt.Errorf("importftp: login: %w", err)
	}
	return conn, nil
}

// FetchAll downloads every feed in DefaultFeeds from cfg.InputDir into
// store at inputs/runs/{runID}/{StagedKey}, stopping at the first error.
func (c *Client) FetchAll(ctx context.Context, store objectstore.Store, runID string) error {
	conn, err := c.dial(ctx)
	if err != nil {
		return err
	}
	defer conn.Quit()

	if c.cfg.InputDir != "" {
		if err := conn.ChangeDir(c.cfg.InputDir); err != nil {
			return fmt.Errorf("importftp: chdir %s: %w", c.cfg.InputDir, err)
		}
	}

	for _, feed := range DefaultFeeds {
		if err := c.fetchOne(conn, ctx, store, runID, feed); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) fetchOne(conn *ftp.ServerConn, ctx context.Context, store objectstore.Store, runID string, feed Feed) error {
	resp, err := conn.Retr(feed.RemoteName)
	if err != nil {
		return fmt.Errorf("importftp: retr %s: %w", feed.RemoteName, err)
	}
	defer resp.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, resp); err != nil {
		return fmt.Errorf("importftp: read %s: %w", feed.RemoteName, err)
	}

	key := fmt.Sprintf("inputs/runs/%s/%s", runID, feed.StagedKey)
	if err := store.Put(ctx, key, bytes.NewReader(buf.Bytes())); err != nil {
		return fmt.Errorf("importftp: stage %s: %w", key, err)
	}
	c.logger.Info("import_ftp_staged", map[string]interface{}{"run_id": runID, "feed": feed.RemoteName, "bytes": buf.Len()})
	return nil
}
