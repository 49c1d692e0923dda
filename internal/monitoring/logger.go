// Package monitoring configures the ops, diag and trace log streams shared by
// every package of a session.
package monitoring

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/banshee-data/carstom/internal/ar/coordinator"
	"github.com/banshee-data/carstom/internal/ar/inference"
	"github.com/banshee-data/carstom/internal/ar/monitor"
	"github.com/banshee-data/carstom/internal/ar/placement"
	"github.com/banshee-data/carstom/internal/ar/surface"
	"github.com/banshee-data/carstom/internal/command"
	"github.com/banshee-data/carstom/internal/recorder"
	"github.com/banshee-data/carstom/internal/security"
)

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Streams are the writers for the three log streams. A nil writer disables
// its stream.
type Streams struct {
	Ops   io.Writer
	Diag  io.Writer
	Trace io.Writer
}

// Apply points every package logger at s.
func (s Streams) Apply() {
	for _, set := range []func(ops, diag, trace io.Writer){
		coordinator.SetLogWriters,
		inference.SetLogWriters,
		placement.SetLogWriters,
		surface.SetLogWriters,
		monitor.SetLogWriters,
		recorder.SetLogWriters,
		command.SetLogWriters,
	} {
		set(s.Ops, s.Diag, s.Trace)
	}
	if s.Ops != nil {
		SetLogger(log.New(s.Ops, "", log.LstdFlags|log.Lmicroseconds).Printf)
	} else {
		SetLogger(nil)
	}
}

// OpenStreams resolves stream destinations given on the command line:
// "stderr", "stdout", "off" (or empty), or a .log file path inside the
// output directories. The returned close function closes any files opened.
func OpenStreams(ops, diag, trace string) (Streams, func() error, error) {
	var files []*os.File
	closeAll := func() error {
		var errs []error
		for _, f := range files {
			errs = append(errs, f.Close())
		}
		return errors.Join(errs...)
	}
	opened := make(map[string]io.Writer)
	open := func(dest string) (io.Writer, error) {
		switch strings.ToLower(strings.TrimSpace(dest)) {
		case "", "off", "none":
			return nil, nil
		case "stderr":
			return os.Stderr, nil
		case "stdout":
			return os.Stdout, nil
		}
		if w, ok := opened[dest]; ok {
			return w, nil
		}
		if err := security.ValidateOutputFile(dest, ".log"); err != nil {
			return nil, err
		}
		f, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		files = append(files, f)
		opened[dest] = f
		return f, nil
	}

	var s Streams
	var err error
	if s.Ops, err = open(ops); err != nil {
		closeAll()
		return Streams{}, nil, fmt.Errorf("ops stream: %w", err)
	}
	if s.Diag, err = open(diag); err != nil {
		closeAll()
		return Streams{}, nil, fmt.Errorf("diag stream: %w", err)
	}
	if s.Trace, err = open(trace); err != nil {
		closeAll()
		return Streams{}, nil, fmt.Errorf("trace stream: %w", err)
	}
	return s, closeAll, nil
}
