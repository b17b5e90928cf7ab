package bundle

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/jsonmessage"
	"github.com/docker/docker/pkg/stdcopy"
	specs "github.com/opencontainers/image-spec/specs-go/v1"
)

// DockerAPI is the subset of the Docker API the build environment uses.
type DockerAPI interface {
	Ping(ctx context.Context) (types.Ping, error)
	ImagePull(ctx context.Context, ref string, options image.PullOptions) (io.ReadCloser, error)
	ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *specs.Platform, containerName string) (container.CreateResponse, error)
	ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error
	ContainerWait(ctx context.Context, containerID string, condition container.WaitCondition) (<-chan container.WaitResponse, <-chan error)
	ContainerLogs(ctx context.Context, containerID string, options container.LogsOptions) (io.ReadCloser, error)
	ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error
	Close() error
}

// DockerEnvironment runs build jobs in throwaway containers.
type DockerEnvironment struct {
	api    DockerAPI
	logger *slog.Logger
	// SkipPull uses locally cached images only.
	SkipPull bool
}

// NewDockerEnvironment connects to the Docker daemon configured by the
// standard DOCKER_* environment variables.
func NewDockerEnvironment(logger *slog.Logger) (*DockerEnvironment, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	return NewDockerEnvironmentWithAPI(cli, logger), nil
}

// NewDockerEnvironmentWithAPI wraps an existing API client.
func NewDockerEnvironmentWithAPI(api DockerAPI, logger *slog.Logger) *DockerEnvironment {
	if logger == nil {
		logger = slog.Default()
	}
	return &DockerEnvironment{api: api, logger: logger}
}

// Close closes the underlying docker client connection.
func (d *DockerEnvironment) Close() error {
	return d.api.Close()
}

// CheckDaemon verifies that the Docker daemon is running and reachable.
func (d *DockerEnvironment) CheckDaemon(ctx context.Context) error {
	if _, err := d.api.Ping(ctx); err != nil {
		return fmt.Errorf("docker daemon is not reachable: %w", err)
	}
	return nil
}

// Run executes the job's command in a container created from job.Image on
// the job's platform, with the source tree mounted read-only and the staging
// directory mounted writable. The container is always removed.
func (d *DockerEnvironment) Run(ctx context.Context, job Job) (Result, error) {
	platform := &specs.Platform{OS: "linux", Architecture: job.Arch.GOARCH()}

	if !d.SkipPull {
		if err := d.pull(ctx, job.Image, job.Arch.Platform()); err != nil {
			return Result{}, err
		}
	}

	resp, err := d.api.ContainerCreate(ctx,
		&container.Config{
			Image:           job.Image,
			Entrypoint:      []string{},
			Cmd:             job.Command,
			Env:             job.Env,
			WorkingDir:      InputDir,
			User:            hostUser(),
			AttachStdout:    true,
			AttachStderr:    true,
			NetworkDisabled: job.Manifest == "",
		},
		&container.HostConfig{
			Binds: []string{
				job.SourceDir + ":" + InputDir + ":ro",
				job.StagingDir + ":" + OutputDir,
			},
		}, nil, platform, "")
	if err != nil {
		return Result{}, fmt.Errorf("failed to create container: %w", err)
	}
	containerID := resp.ID

	defer func() {
		// The run context may already be done when the build timed out.
		cleanupCtx := context.WithoutCancel(ctx)
		if err := d.api.ContainerRemove(cleanupCtx, containerID, container.RemoveOptions{Force: true}); err != nil {
			d.logger.Warn("failed to remove build container", "container", containerID, "error", err)
		}
	}()

	if err := d.api.ContainerStart(ctx, containerID, container.StartOptions{}); err != nil {
		return Result{}, fmt.Errorf("failed to start container: %w", err)
	}

	statusCh, errCh := d.api.ContainerWait(ctx, containerID, container.WaitConditionNotRunning)
	var status container.WaitResponse
	select {
	case err := <-errCh:
		if err == nil {
			err = errors.New("wait ended without status")
		}
		return Result{}, fmt.Errorf("waiting for container: %w", err)
	case status = <-statusCh:
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
	if status.Error != nil && status.Error.Message != "" {
		return Result{}, fmt.Errorf("container wait: %s", status.Error.Message)
	}

	return Result{
		ExitCode: int(status.StatusCode),
		Output:   d.logs(ctx, containerID),
	}, nil
}

// pull pulls the image for the given platform and reports pull errors.
func (d *DockerEnvironment) pull(ctx context.Context, ref, platform string) error {
	reader, err := d.api.ImagePull(ctx, ref, image.PullOptions{Platform: platform})
	if err != nil {
		return fmt.Errorf("failed to pull image %s: %w", ref, err)
	}
	defer reader.Close()

	decoder := json.NewDecoder(reader)
	for {
		var msg jsonmessage.JSONMessage
		if err := decoder.Decode(&msg); err != nil {
			if err == io.EOF {
				break
			}
			return fmt.Errorf("reading pull output for %s: %w", ref, err)
		}
		if msg.Error != nil {
			return fmt.Errorf("pull failed for %s: %s", ref, msg.Error.Message)
		}
	}
	d.logger.Debug("pulled build image", "image", ref, "platform", platform)
	return nil
}

// logs returns the combined container output. Log retrieval is best effort.
func (d *DockerEnvironment) logs(ctx context.Context, containerID string) string {
	rc, err := d.api.ContainerLogs(ctx, containerID, container.LogsOptions{ShowStdout: true, ShowStderr: true})
	if err != nil {
		d.logger.Debug("failed to read build logs", "container", containerID, "error", err)
		return ""
	}
	defer rc.Close()

	var buf bytes.Buffer
	if _, err := stdcopy.StdCopy(&buf, &buf, rc); err != nil {
		d.logger.Debug("failed to demultiplex build logs", "container", containerID, "error", err)
	}
	return buf.String()
}

// hostUser returns "uid:gid" so staged files are owned by the caller.
func hostUser() string {
	uid, gid := os.Getuid(), os.Getgid()
	if uid < 0 || gid < 0 {
		return ""
	}
	return fmt.Sprintf("%d:%d", uid, gid)
}
