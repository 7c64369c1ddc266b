// Package file provides the file reference destination: it writes each
// dispatched message's content to a file under a configured directory.
package file

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/careroute/interlink/channel"
	"github.com/careroute/interlink/connector"
	pkgerrors "github.com/careroute/interlink/errors"
	"github.com/careroute/interlink/message"
)

// Config holds the settings of a file destination connector.
type Config struct {
	// Directory messages are written into. Required; created at Initialize.
	Directory string `json:"directory" yaml:"directory"`
	// FilePrefix names the output file <prefix>.<extension>. Defaults to
	// the destination name.
	FilePrefix string `json:"filePrefix,omitempty" yaml:"filePrefix,omitempty"`
	// Extension of the output file. Defaults to "dat".
	Extension string `json:"extension,omitempty" yaml:"extension,omitempty"`
	// Append keeps an existing file and appends to it; otherwise Start
	// truncates.
	Append bool `json:"append,omitempty" yaml:"append,omitempty"`
	// Separator is written after every message. Defaults to a newline.
	Separator string `json:"separator,omitempty" yaml:"separator,omitempty"`
}

// Validate checks the file settings.
func (c *Config) Validate() error {
	if c.Directory == "" {
		return pkgerrors.WrapFatal(pkgerrors.ErrInvalidConfig, "file.Config", "Validate",
			"directory is required")
	}
	return nil
}

// Destination appends dispatched message content to a single output file.
type Destination struct {
	name   string
	cfg    Config
	logger *slog.Logger

	file   *os.File
	fileMu sync.Mutex

	lifecycleMu sync.Mutex
	running     bool

	written  atomic.Int64
	bytes    atomic.Int64
	errCount atomic.Int64
}

// NewDestination builds a file destination from its channel definition.
func NewDestination(dest channel.Destination, deps connector.Dependencies) (connector.Destination, error) {
	var cfg Config
	if err := dest.Connector.DecodeSettings(&cfg); err != nil {
		return nil, pkgerrors.Wrap(err, "file.Destination", "NewDestination", "decode settings")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.FilePrefix == "" {
		cfg.FilePrefix = dest.Name
	}
	if cfg.FilePrefix == "" {
		cfg.FilePrefix = "output"
	}
	if cfg.Extension == "" {
		cfg.Extension = "dat"
	}
	if cfg.Separator == "" {
		cfg.Separator = "\n"
	}

	return &Destination{
		name:   dest.Name,
		cfg:    cfg,
		logger: deps.GetLoggerWithComponent("file-destination").With("destination", dest.Name),
	}, nil
}

// Path returns the output file path.
func (d *Destination) Path() string {
	return filepath.Join(d.cfg.Directory, fmt.Sprintf("%s.%s", d.cfg.FilePrefix, d.cfg.Extension))
}

// Initialize creates the output directory.
func (d *Destination) Initialize() error {
	if err := os.MkdirAll(d.cfg.Directory, 0o755); err != nil {
		return pkgerrors.WrapFatal(err, "file.Destination", "Initialize", "create output directory")
	}
	return nil
}

// Start opens the output file.
func (d *Destination) Start(_ context.Context) error {
	d.lifecycleMu.Lock()
	defer d.lifecycleMu.Unlock()

	if d.running {
		return pkgerrors.WrapFatal(pkgerrors.ErrAlreadyStarted, "file.Destination", "Start",
			"check running state")
	}

	flags := os.O_CREATE | os.O_WRONLY
	if d.cfg.Append {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}

	file, err := os.OpenFile(d.Path(), flags, 0o644)
	if err != nil {
		return pkgerrors.WrapFatal(err, "file.Destination", "Start", "open output file")
	}

	d.fileMu.Lock()
	d.file = file
	d.fileMu.Unlock()

	d.running = true
	d.logger.Info("file destination started", "path", d.Path(), "append", d.cfg.Append)
	return nil
}

// Stop closes the output file.
func (d *Destination) Stop(time.Duration) error {
	d.lifecycleMu.Lock()
	defer d.lifecycleMu.Unlock()

	if !d.running {
		return nil
	}
	d.running = false

	d.fileMu.Lock()
	if d.file != nil {
		if err := d.file.Close(); err != nil {
			d.logger.Warn("failed to close output file", "path", d.Path(), "error", err)
		}
		d.file = nil
	}
	d.fileMu.Unlock()

	d.logger.Info("file destination stopped",
		"written", d.written.Load(),
		"bytes", d.bytes.Load(),
		"errors", d.errCount.Load())
	return nil
}

// Send writes the message's dispatch content followed by the separator.
func (d *Destination) Send(_ context.Context, msg *message.ConnectorMessage) (message.Status, error) {
	d.fileMu.Lock()
	defer d.fileMu.Unlock()

	if d.file == nil {
		return message.StatusError, pkgerrors.WrapFatal(pkgerrors.ErrNotStarted,
			"file.Destination", "Send", "check file handle")
	}

	n, err := d.file.WriteString(connector.DispatchContent(msg) + d.cfg.Separator)
	if err != nil {
		d.errCount.Add(1)
		return message.StatusError, pkgerrors.Wrap(err, "file.Destination", "Send", "write message")
	}

	d.written.Add(1)
	d.bytes.Add(int64(n))
	return message.StatusSent, nil
}
