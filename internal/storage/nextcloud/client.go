// Package nextcloud implements storage.AssetStore over Nextcloud's WebDAV endpoint.
package nextcloud

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"strings"
	"time"

	"github.com/WhoAmI471/3D-Model-Library-Front-sub001/internal/storage"
	"github.com/WhoAmI471/3D-Model-Library-Front-sub001/pkg/logger"
	"github.com/studio-b12/gowebdav"
	"go.uber.org/zap"
)

type Config struct {
	// BaseURL is the Nextcloud server root, e.g. https://cloud.example.com.
	BaseURL  string
	User     string
	Password string
	Timeout  time.Duration
	// DAVRoot overrides the WebDAV root; defaults to {BaseURL}/remote.php/dav/files/{User}.
	DAVRoot string
}

// Client is safe for concurrent use; it shares one pooled HTTP transport.
type Client struct {
	dav  *gowebdav.Client
	root string
	log  *zap.Logger
}

func NewClient(cfg Config) *Client {
	root := cfg.DAVRoot
	if root == "" {
		root = fmt.Sprintf("%s/remote.php/dav/files/%s", strings.TrimRight(cfg.BaseURL, "/"), cfg.User)
	}

	dav := gowebdav.NewClient(root, cfg.User, cfg.Password)
	dav.SetTransport(&http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	})
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	dav.SetTimeout(timeout)

	return &Client{
		dav:  dav,
		root: root,
		log:  logger.Named("nextcloud"),
	}
}

// Ping checks credentials and reachability.
func (c *Client) Ping(ctx context.Context) error {
	return c.run(ctx, func() error { return c.dav.Connect() })
}

func (c *Client) Store(ctx context.Context, p string, r io.Reader) error {
	clean, err := storage.Clean(p)
	if err != nil {
		return err
	}

	// WriteStream creates missing parent collections itself.
	start := time.Now()
	if err := c.run(ctx, func() error { return c.dav.WriteStream(clean, r, 0o644) }); err != nil {
		return c.wrap("upload", clean, err)
	}

	c.log.Debug("Asset stored",
		zap.String("path", clean),
		zap.Duration("duration", time.Since(start)),
	)
	return nil
}

func (c *Client) Fetch(ctx context.Context, p string) (io.ReadCloser, error) {
	clean, err := storage.Clean(p)
	if err != nil {
		return nil, err
	}

	var body io.ReadCloser
	err = c.run(ctx, func() error {
		var rerr error
		body, rerr = c.dav.ReadStream(clean)
		return rerr
	})
	if err != nil {
		return nil, c.wrap("fetch", clean, err)
	}
	return body, nil
}

func (c *Client) List(ctx context.Context, folder string) ([]storage.Entry, error) {
	clean, err := storage.Clean(folder)
	if err != nil {
		return nil, err
	}

	var infos []os.FileInfo
	err = c.run(ctx, func() error {
		var rerr error
		infos, rerr = c.dav.ReadDir(clean)
		return rerr
	})
	if err != nil {
		return nil, c.wrap("list", clean, err)
	}

	entries := make([]storage.Entry, 0, len(infos))
	for _, fi := range infos {
		e := storage.Entry{
			Path:       path.Join(clean, fi.Name()),
			Name:       fi.Name(),
			Size:       fi.Size(),
			IsDir:      fi.IsDir(),
			ModifiedAt: fi.ModTime(),
		}
		if typed, ok := fi.(interface{ ContentType() string }); ok {
			e.ContentType = typed.ContentType()
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (c *Client) Delete(ctx context.Context, p string) error {
	clean, err := storage.Clean(p)
	if err != nil {
		return err
	}
	if err := c.run(ctx, func() error { return c.dav.Remove(clean) }); err != nil {
		return c.wrap("delete", clean, err)
	}
	return nil
}

func (c *Client) DeleteFolder(ctx context.Context, folder string) error {
	clean, err := storage.Clean(folder)
	if err != nil {
		return err
	}
	if err := c.run(ctx, func() error { return c.dav.RemoveAll(clean) }); err != nil {
		return c.wrap("delete folder", clean, err)
	}
	return nil
}

// run bounds a blocking WebDAV call by ctx. gowebdav has no context support, so a
// cancelled call keeps running in the background until the client timeout fires.
func (c *Client) run(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	done := make(chan error, 1)
	go func() { done <- fn() }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) wrap(op, p string, err error) error {
	if gowebdav.IsErrNotFound(err) || errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%s %s: %w", op, p, storage.ErrNotFound)
	}
	return fmt.Errorf("nextcloud %s %s: %w", op, p, err)
}
