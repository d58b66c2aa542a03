// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package container runs one-shot extraction tools inside docker or podman.
package container

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
)

const (
	binDocker = "docker"
	binPodman = "podman"
)

// maxStderr bounds the stderr tail kept for error messages.
const maxStderr = 2048

// Runtime provides the container operations used by the extractors.
type Runtime interface {
	// Name returns the runtime name ("docker" or "podman").
	Name() string

	// Available reports whether the runtime binary exists on PATH and
	// responds to an info command.
	Available(ctx context.Context) bool

	// ImageExists returns nil when the named image is present locally.
	ImageExists(ctx context.Context, image string) error

	// Run starts image with stdin attached and copies its stdout to stdout.
	// The container has no network access and is removed on exit.
	Run(ctx context.Context, image string, stdin io.Reader, stdout io.Writer) error
}

// RunError is a container that exited unsuccessfully.
type RunError struct {
	Runtime string
	Image   string
	Stderr  string
	Err     error
}

func (e *RunError) Error() string {
	msg := fmt.Sprintf("running %s container %s: %v", e.Runtime, e.Image, e.Err)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

func (e *RunError) Unwrap() error { return e.Err }

// executor abstracts command execution for testing.
type executor interface {
	LookPath(file string) (string, error)
	RunSilent(ctx context.Context, name string, args ...string) error
	RunPiped(ctx context.Context, name string, args []string, stdin io.Reader, stdout, stderr io.Writer) error
}

type osExecutor struct{}

func (o *osExecutor) LookPath(file string) (string, error) {
	return exec.LookPath(file)
}

func (o *osExecutor) RunSilent(ctx context.Context, name string, args ...string) error {
	return exec.CommandContext(ctx, name, args...).Run()
}

func (o *osExecutor) RunPiped(ctx context.Context, name string, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = stdin
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	return cmd.Run()
}

// runtime implements Runtime for one container binary. Docker and podman
// differ only in the binary name and the image check subcommand.
type runtime struct {
	bin           string
	imageCheckCmd []string
	exec          executor
}

func (r *runtime) Name() string { return r.bin }

func (r *runtime) Available(ctx context.Context) bool {
	if _, err := r.exec.LookPath(r.bin); err != nil {
		return false
	}
	return r.exec.RunSilent(ctx, r.bin, "info") == nil
}

func (r *runtime) ImageExists(ctx context.Context, image string) error {
	args := append(append([]string{}, r.imageCheckCmd...), image)
	if err := r.exec.RunSilent(ctx, r.bin, args...); err != nil {
		return fmt.Errorf("image %s not found in %s: %w", image, r.bin, err)
	}
	return nil
}

func (r *runtime) Run(ctx context.Context, image string, stdin io.Reader, stdout io.Writer) error {
	args := []string{"run", "--rm", "-i", "--network=none", image}
	var stderr bytes.Buffer
	if err := r.exec.RunPiped(ctx, r.bin, args, stdin, stdout, &stderr); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		return &RunError{Runtime: r.bin, Image: image, Stderr: tail(stderr.String()), Err: err}
	}
	return nil
}

func tail(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > maxStderr {
		s = s[len(s)-maxStderr:]
	}
	return s
}

func newDockerRuntime(exec executor) *runtime {
	return &runtime{bin: binDocker, imageCheckCmd: []string{"image", "inspect"}, exec: exec}
}

func newPodmanRuntime(exec executor) *runtime {
	return &runtime{bin: binPodman, imageCheckCmd: []string{"image", "exists"}, exec: exec}
}

var defaultExec = &osExecutor{}

// DetectRuntime tries docker first, then podman.
func DetectRuntime(ctx context.Context) (Runtime, error) {
	return detectRuntime(ctx, defaultExec)
}

func detectRuntime(ctx context.Context, exec executor) (Runtime, error) {
	for _, rt := range []*runtime{newDockerRuntime(exec), newPodmanRuntime(exec)} {
		if rt.Available(ctx) {
			return rt, nil
		}
	}
	return nil, fmt.Errorf(
		"no container runtime available: neither %s nor %s found or operational",
		binDocker, binPodman,
	)
}
