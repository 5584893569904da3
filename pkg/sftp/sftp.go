// Package sftp implements the upload_sftp pre-flight gate and the thin
// upload client wrapping github.com/pkg/sftp over an SSH connection.
package sftp

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/nova-retail/catalogsync/core"
	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

// Config is the SFTP destination, sourced from environment variables at
// startup (see config.Load).
type Config struct {
	Host       string
	Port       int
	Username   string
	PrivateKey []byte
	RemoteDir  string
}

// ExportValidation is what upload_sftp checks about each marketplace
// export step before allowing any file to be shipped.
type ExportValidation struct {
	Step             string
	ValidationPassed bool
	Warnings         []string
}

// StorageLister reports which keys currently exist under a prefix, so
// pre-flight can check the exactly-5 whitelisted files are present
// without pulling their contents.
type StorageLister interface {
	List(ctx context.Context, prefix string) ([]string, error)
}

// PreflightCheck validates every upload_sftp invariant and aborts before
// a single byte reaches the network if any fails:
//
//   - required env vars present (not checked here; bootstrap builds the
//     upload client only when config.Config.ValidateSFTPEnv passes)
//   - exactly the 5 whitelisted filenames are staged, no more, no fewer
//   - no stray .csv file is part of the SFTP selection
//   - every export step passed validation with zero warnings
func PreflightCheck(ctx context.Context, lister StorageLister, outputsPrefix string, exports []ExportValidation) error {
	keys, err := lister.List(ctx, outputsPrefix)
	if err != nil {
		return fmt.Errorf("sftp: list staged outputs: %w", err)
	}

	staged := map[string]bool{}
	for _, k := range keys {
		name := k
		if idx := strings.LastIndexByte(k, '/'); idx >= 0 {
			name = k[idx+1:]
		}
		staged[name] = true
		if strings.HasSuffix(strings.ToLower(name), ".csv") {
			return core.NewError("sftp.PreflightCheck", "step", "", "upload_sftp", fmt.Errorf("stray csv file in selection: %s", name))
		}
	}

	for _, want := range core.OutputFileWhitelist {
		if !staged[want] {
			return core.NewError("sftp.PreflightCheck", "step", "", "upload_sftp", fmt.Errorf("missing required output file: %s", want))
		}
	}
	if len(staged) != len(core.OutputFileWhitelist) {
		return core.NewError("sftp.PreflightCheck", "step", "", "upload_sftp", fmt.Errorf("expected exactly %d staged files, found %d", len(core.OutputFileWhitelist), len(staged)))
	}

	for _, ev := range exports {
		if !ev.ValidationPassed || len(ev.Warnings) > 0 {
			return core.NewError("sftp.PreflightCheck", "step", "", "upload_sftp", fmt.Errorf("export step %s failed validation or has warnings: %v", ev.Step, ev.Warnings))
		}
	}

	return nil
}

// Client uploads files to the configured SFTP destination over SSH.
type Client struct {
	cfg    Config
	logger core.Logger
}

// NewClient builds an upload Client. logger may be nil (treated as a
// no-op logger).
func NewClient(cfg Config, logger core.Logger) *Client {
	if logger == nil {
		logger = core.NoOpLogger{}
	}
	return &Client{cfg: cfg, logger: logger}
}

// Upload dials the SFTP host and copies local file content to
// RemoteDir/remoteName, overwriting any prior version.
func (c *Client) Upload(ctx context.Context, remoteName string, r io.Reader) error {
	signer, err := ssh.ParsePrivateKey(c.cfg.PrivateKey)
	if err != nil {
		return fmt.Errorf("sftp: parse private key: %w", err)
	}

	sshCfg := &ssh.ClientConfig{
		User:            c.cfg.Username,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), // the host's key is pinned at the network layer, not here
	}

	addr := fmt.Sprintf("%s:%d", c.cfg.Host, c.cfg.Port)
	conn, err := ssh.Dial("tcp", addr, sshCfg)
	if err != nil {
		return fmt.Errorf("sftp: dial %s: %w", addr, err)
	}
	defer conn.Close()

	client, err := sftp.NewClient(conn)
	if err != nil {
		return fmt.Errorf("sftp: new client: %w", err)
	}
	defer client.Close()

	remotePath := strings.TrimRight(c.cfg.RemoteDir, "/") + "/" + remoteName
	dst, err := client.Create(remotePath)
	if err != nil {
		return fmt.Errorf("sftp: create %s: %w", remotePath, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, r); err != nil {
		return fmt.Errorf("sftp: upload %s: %w", remotePath, err)
	}
	c.logger.Info("sftp_upload_complete", map[string]interface{}{"remote_path": remotePath})
	return nil
}

// LoadPrivateKeyFile reads an SSH private key from disk for Config.PrivateKey.
func LoadPrivateKeyFile(path string) ([]byte, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("sftp: read private key %s: %w", path, err)
	}
	return b, nil
}
