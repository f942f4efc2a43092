// Package script provides the scratch environment a case runs in: an
// isolated directory tree holding the package index and install target,
// plus execution of the installer with created-file tracking.
package script

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// DefaultInstaller is the command used when Config.Installer is empty.
var DefaultInstaller = []string{"pip"}

// Config configures how environments run the installer.
type Config struct {
	// Installer is the argv prefix of the installer, e.g. ["pip"] or
	// ["python", "-m", "pip"].
	Installer []string

	// SitePackages is the directory the installer installs into on its own.
	// When empty the environment passes a scratch target directory instead.
	SitePackages string

	// Env holds extra KEY=VALUE entries added to the process environment.
	Env []string

	// Logger receives debug output. Nil discards.
	Logger *slog.Logger
}

// Environment is one case's scratch area.
//
// Layout below Root:
//
//	scratch/  package index the installer reads with --find-links
//	site/     install target unless Config.SitePackages is set
type Environment struct {
	Root        string
	ScratchPath string
	SitePath    string

	installer []string
	env       []string
	ownsSite  bool
	logger    *slog.Logger
}

// NewEnvironment creates the scratch layout below root.
func NewEnvironment(root string, cfg Config) (*Environment, error) {
	installer := cfg.Installer
	if len(installer) == 0 {
		installer = DefaultInstaller
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	env := &Environment{
		Root:        root,
		ScratchPath: filepath.Join(root, "scratch"),
		SitePath:    cfg.SitePackages,
		installer:   installer,
		env:         cfg.Env,
		logger:      logger,
	}
	if env.SitePath == "" {
		env.SitePath = filepath.Join(root, "site")
		env.ownsSite = true
	}

	dirs := []string{env.ScratchPath}
	if env.ownsSite {
		dirs = append(dirs, env.SitePath)
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create scratch directory: %w", err)
		}
	}
	return env, nil
}

// IndexURL returns the file URL of the scratch index.
func (e *Environment) IndexURL() string {
	abs, err := filepath.Abs(e.ScratchPath)
	if err != nil {
		abs = e.ScratchPath
	}
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}
	return u.String()
}

// TargetArgs returns the installer flags selecting the install target.
// It is empty when installs go to the configured site-packages.
func (e *Environment) TargetArgs() []string {
	if !e.ownsSite {
		return nil
	}
	return []string{"--target", e.SitePath}
}

// RunOptions controls which stderr content a run tolerates.
type RunOptions struct {
	AllowStderrWarning bool

	// AllowStderrError implies AllowStderrWarning.
	AllowStderrError bool
}

// Run invokes the installer with args and waits for it.
//
// A non-zero exit status is reported through Result.ReturnCode, not as an
// error. Errors are returned when the process cannot be started, the
// context ends, or stderr carries content opts does not allow.
func (e *Environment) Run(ctx context.Context, args []string, opts RunOptions) (*Result, error) {
	before, err := snapshot(e.SitePath)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot %s: %w", e.SitePath, err)
	}

	argv := append(append([]string{}, e.installer...), args...)
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = e.Root
	cmd.Env = append(os.Environ(), e.env...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	e.logger.Debug("running installer", "argv", argv, "dir", e.Root)

	start := time.Now()
	runErr := cmd.Run()
	result := &Result{
		Args:     argv,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	var exitErr *exec.ExitError
	switch {
	case runErr == nil:
	case ctx.Err() != nil:
		return nil, fmt.Errorf("installer interrupted: %w", ctx.Err())
	case errors.As(runErr, &exitErr):
		result.ReturnCode = exitErr.ExitCode()
	default:
		return nil, fmt.Errorf("failed to start installer: %w", runErr)
	}

	after, err := snapshot(e.SitePath)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot %s: %w", e.SitePath, err)
	}
	result.FilesCreated = difference(after, before)
	result.FilesDeleted = difference(before, after)

	e.logger.Debug("installer finished",
		"returncode", result.ReturnCode,
		"created", len(result.FilesCreated),
		"deleted", len(result.FilesDeleted),
		"duration", result.Duration,
	)

	if err := checkStderr(result.Stderr, opts); err != nil {
		return result, err
	}
	return result, nil
}

// checkStderr rejects logged errors and warnings the options do not allow.
func checkStderr(stderr string, opts RunOptions) error {
	allowWarning := opts.AllowStderrWarning || opts.AllowStderrError
	for _, line := range strings.Split(stderr, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "ERROR"):
			if !opts.AllowStderrError {
				return fmt.Errorf("stderr has an unexpected error: %s", line)
			}
		case strings.HasPrefix(line, "WARNING"), strings.HasPrefix(line, "DEPRECATION"):
			if !allowWarning {
				return fmt.Errorf("stderr has an unexpected warning: %s", line)
			}
		}
	}
	return nil
}
