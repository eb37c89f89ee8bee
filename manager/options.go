package manager

import (
	"io"
	"os"

	log "github.com/sirupsen/logrus"
)

func defaultOptions() *Options {
	return &Options{
		Stdout: os.Stdout,
		Stderr: os.Stderr,
		Logger: log.NewEntry(log.StandardLogger()),
	}
}

// Options control how the target process is started.
type Options struct {
	Stdout io.Writer
	Stderr io.Writer
	Stdin  io.Reader
	Dir    string
	Env    []string
	RunID  string
	Logger *log.Entry
}

type Option func(*Options)

// WithStdout redirects the target's standard output. The default inherits ours.
func WithStdout(w io.Writer) Option {
	return func(opts *Options) {
		opts.Stdout = w
	}
}

// WithStderr redirects the target's standard error. The default inherits ours.
func WithStderr(w io.Writer) Option {
	return func(opts *Options) {
		opts.Stderr = w
	}
}

func WithStdin(r io.Reader) Option {
	return func(opts *Options) {
		opts.Stdin = r
	}
}

func WithDir(dir string) Option {
	return func(opts *Options) {
		opts.Dir = dir
	}
}

// WithEnv sets the target environment. Nil inherits ours.
func WithEnv(env []string) Option {
	return func(opts *Options) {
		opts.Env = env
	}
}

func WithRunID(id string) Option {
	return func(opts *Options) {
		opts.RunID = id
	}
}

func WithLogger(l *log.Entry) Option {
	return func(opts *Options) {
		if l != nil {
			opts.Logger = l
		}
	}
}
