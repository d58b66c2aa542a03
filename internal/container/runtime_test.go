// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package container

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockExecutor records calls and returns configured responses.
type mockExecutor struct {
	availableBins map[string]bool // binary -> whether LookPath succeeds
	runnableCmds  map[string]bool // "bin arg1 arg2" -> whether RunSilent succeeds
	runPipedFunc  func(name string, args []string, stdin io.Reader, stdout, stderr io.Writer) error
	lastArgs      []string
}

func (m *mockExecutor) LookPath(file string) (string, error) {
	if m.availableBins[file] {
		return "/usr/bin/" + file, nil
	}
	return "", errors.New("not found: " + file)
}

func (m *mockExecutor) RunSilent(_ context.Context, name string, args ...string) error {
	key := name + " " + strings.Join(args, " ")
	if m.runnableCmds[key] {
		return nil
	}
	return errors.New("command failed: " + key)
}

func (m *mockExecutor) RunPiped(_ context.Context, name string, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	m.lastArgs = args
	if m.runPipedFunc != nil {
		return m.runPipedFunc(name, args, stdin, stdout, stderr)
	}
	return nil
}

func TestDetectRuntime(t *testing.T) {
	tests := []struct {
		name     string
		exec     *mockExecutor
		wantName string
		wantErr  bool
	}{
		{
			name: "docker available",
			exec: &mockExecutor{
				availableBins: map[string]bool{"docker": true},
				runnableCmds:  map[string]bool{"docker info": true},
			},
			wantName: "docker",
		},
		{
			name: "podman fallback when docker missing",
			exec: &mockExecutor{
				availableBins: map[string]bool{"podman": true},
				runnableCmds:  map[string]bool{"podman info": true},
			},
			wantName: "podman",
		},
		{
			name:    "neither available",
			exec:    &mockExecutor{},
			wantErr: true,
		},
		{
			name: "docker on PATH but info fails",
			exec: &mockExecutor{
				availableBins: map[string]bool{"docker": true, "podman": true},
				runnableCmds:  map[string]bool{"podman info": true},
			},
			wantName: "podman",
		},
		{
			name: "both available, docker preferred",
			exec: &mockExecutor{
				availableBins: map[string]bool{"docker": true, "podman": true},
				runnableCmds:  map[string]bool{"docker info": true, "podman info": true},
			},
			wantName: "docker",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt, err := detectRuntime(context.Background(), tt.exec)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "no container runtime available")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, rt.Name())
		})
	}
}

func TestImageExists(t *testing.T) {
	tests := []struct {
		name    string
		mkRT    func(*mockExecutor) Runtime
		cmds    map[string]bool
		wantErr bool
	}{
		{
			name: "docker image exists",
			mkRT: func(e *mockExecutor) Runtime { return newDockerRuntime(e) },
			cmds: map[string]bool{"docker image inspect markitdown:latest": true},
		},
		{
			name:    "docker image not found",
			mkRT:    func(e *mockExecutor) Runtime { return newDockerRuntime(e) },
			wantErr: true,
		},
		{
			name: "podman image exists",
			mkRT: func(e *mockExecutor) Runtime { return newPodmanRuntime(e) },
			cmds: map[string]bool{"podman image exists markitdown:latest": true},
		},
		{
			name:    "podman image not found",
			mkRT:    func(e *mockExecutor) Runtime { return newPodmanRuntime(e) },
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt := tt.mkRT(&mockExecutor{runnableCmds: tt.cmds})
			err := rt.ImageExists(context.Background(), "markitdown:latest")
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "markitdown:latest")
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestRun_PipesAndIsolates(t *testing.T) {
	exec := &mockExecutor{
		runPipedFunc: func(name string, _ []string, stdin io.Reader, stdout, _ io.Writer) error {
			data, _ := io.ReadAll(stdin)
			_, _ = stdout.Write([]byte(name + ": " + string(data)))
			return nil
		},
	}
	var out bytes.Buffer
	err := newPodmanRuntime(exec).Run(context.Background(), "markitdown:latest", strings.NewReader("%PDF"), &out)
	require.NoError(t, err)
	assert.Equal(t, "podman: %PDF", out.String())
	assert.Equal(t, []string{"run", "--rm", "-i", "--network=none", "markitdown:latest"}, exec.lastArgs)
}

func TestRun_FailureCarriesStderr(t *testing.T) {
	exec := &mockExecutor{
		runPipedFunc: func(_ string, _ []string, _ io.Reader, _, stderr io.Writer) error {
			_, _ = stderr.Write([]byte("  Traceback: bad pdf\n"))
			return errors.New("exit status 1")
		},
	}
	err := newDockerRuntime(exec).Run(context.Background(), "markitdown:latest", strings.NewReader(""), io.Discard)
	var runErr *RunError
	require.True(t, errors.As(err, &runErr))
	assert.Equal(t, "docker", runErr.Runtime)
	assert.Equal(t, "Traceback: bad pdf", runErr.Stderr)
	assert.Contains(t, err.Error(), "exit status 1")
}

func TestRun_CancelledContext(t *testing.T) {
	exec := &mockExecutor{
		runPipedFunc: func(string, []string, io.Reader, io.Writer, io.Writer) error {
			return errors.New("signal: killed")
		},
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := newDockerRuntime(exec).Run(ctx, "img", strings.NewReader(""), io.Discard)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTail(t *testing.T) {
	long := strings.Repeat("x", maxStderr+10)
	assert.Len(t, tail(long), maxStderr)
	assert.Equal(t, "ok", tail(" ok \n"))
}
