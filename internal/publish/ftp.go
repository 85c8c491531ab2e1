// Package publish uploads the rendered report to a static web host over FTP.
package publish

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/sirupsen/logrus"
)

const DefaultTimeout = 30 * time.Second

type FTPConfig struct {
	Addr     string // host:port
	User     string
	Password string
	Dir      string // remote directory, optional
	Timeout  time.Duration
}

// Enabled reports whether an FTP target is configured.
func (c FTPConfig) Enabled() bool {
	return c.Addr != ""
}

// conn is the subset of *ftp.ServerConn used for uploads.
type conn interface {
	Login(user, password string) error
	ChangeDir(path string) error
	Stor(path string, r io.Reader) error
	Quit() error
}

type FTP struct {
	cfg  FTPConfig
	log  logrus.FieldLogger
	dial func(ctx context.Context) (conn, error)
}

func NewFTP(cfg FTPConfig, log logrus.FieldLogger) *FTP {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.User == "" {
		cfg.User = "anonymous"
		cfg.Password = "anonymous"
	}
	p := &FTP{cfg: cfg, log: log.WithField("component", "publish")}
	p.dial = func(ctx context.Context) (conn, error) {
		c, err := ftp.Dial(cfg.Addr, ftp.DialWithTimeout(cfg.Timeout), ftp.DialWithContext(ctx))
		if err != nil {
			return nil, err
		}
		return c, nil
	}
	return p
}

// Upload stores each local file under its base name in the remote directory.
func (p *FTP) Upload(ctx context.Context, paths ...string) error {
	c, err := p.dial(ctx)
	if err != nil {
		return fmt.Errorf("ftp dial: %w", err)
	}
	defer c.Quit()

	if err := c.Login(p.cfg.User, p.cfg.Password); err != nil {
		return fmt.Errorf("ftp login: %w", err)
	}
	if p.cfg.Dir != "" {
		if err := c.ChangeDir(p.cfg.Dir); err != nil {
			return fmt.Errorf("ftp cwd %s: %w", p.cfg.Dir, err)
		}
	}

	for _, path := range paths {
		if err := p.stor(c, path); err != nil {
			return err
		}
	}
	return nil
}

func (p *FTP) stor(c conn, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	name := filepath.Base(path)
	if err := c.Stor(name, f); err != nil {
		return fmt.Errorf("ftp stor %s: %w", name, err)
	}
	p.log.WithFields(logrus.Fields{"file": name, "addr": p.cfg.Addr}).Info("Uploaded")
	return nil
}
