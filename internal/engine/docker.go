package engine

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/registry"
	"github.com/docker/docker/api/types/volume"
	"github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/docker/go-connections/nat"
	"github.com/sirupsen/logrus"

	"github.com/dockpilot/management-api/internal/config"
	"github.com/dockpilot/management-api/internal/models"
)

// DockerEngine talks to the Docker daemon over its local control socket
type DockerEngine struct {
	cli     *client.Client
	logger  *logrus.Logger
	timeout time.Duration

	mu   sync.RWMutex
	auth string // base64 registry auth from the last registry login
}

func (e *DockerEngine) setRegistryAuth(encoded string) {
	e.mu.Lock()
	e.auth = encoded
	e.mu.Unlock()
}

func (e *DockerEngine) registryAuth() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.auth
}

// NewDockerEngine connects to the Docker daemon. With an empty host the SDK
// falls back to DOCKER_HOST or the default unix socket.
func NewDockerEngine(cfg *config.DockerConfig, logger *logrus.Logger) (*DockerEngine, error) {
	opts := []client.Opt{
		client.FromEnv,
		client.WithAPIVersionNegotiation(),
	}
	if cfg.Host != "" {
		opts = append(opts, client.WithHost(cfg.Host))
	}

	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Docker client: %w", err)
	}

	e := &DockerEngine{
		cli:     cli,
		logger:  logger,
		timeout: cfg.CallTimeout,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.Ping(ctx); err != nil {
		logger.WithError(err).Warn("Docker daemon not reachable at startup, will retry on first call")
	} else {
		logger.WithField("host", cli.DaemonHost()).Info("Connected to Docker daemon")
	}

	return e, nil
}

func (e *DockerEngine) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, e.timeout)
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errdefs.IsNotFound(err) {
		return ErrNotFound
	}
	return err
}

func (e *DockerEngine) RunContainer(ctx context.Context, req models.ContainerRunRequest) (*ContainerHandle, error) {
	ctx, cancel := e.callCtx(ctx)
	defer cancel()

	portSet := nat.PortSet{}
	portMap := nat.PortMap{}
	for containerPort, hostPort := range req.Ports {
		port, err := nat.NewPort("tcp", containerPort)
		if err != nil {
			return nil, fmt.Errorf("invalid container port %q: %w", containerPort, err)
		}
		portSet[port] = struct{}{}
		portMap[port] = []nat.PortBinding{{HostPort: hostPort}}
	}

	containerCfg := &container.Config{
		Image:        req.Image,
		Cmd:          req.Command,
		Env:          req.Env,
		Labels:       req.Labels,
		ExposedPorts: portSet,
	}
	hostCfg := &container.HostConfig{
		PortBindings: portMap,
		Binds:        req.Volumes,
		AutoRemove:   req.AutoRemove,
		NetworkMode:  container.NetworkMode(req.NetworkMode),
	}

	created, err := e.cli.ContainerCreate(ctx, containerCfg, hostCfg, nil, nil, req.Name)
	if err != nil {
		return nil, mapErr(err)
	}

	if err := e.cli.ContainerStart(ctx, created.ID, types.ContainerStartOptions{}); err != nil {
		return nil, mapErr(err)
	}

	inspect, err := e.cli.ContainerInspect(ctx, created.ID)
	if err != nil {
		return nil, mapErr(err)
	}

	return &ContainerHandle{
		ID:     created.ID,
		Name:   trimLeadingSlash(inspect.Name),
		Status: inspect.State.Status,
	}, nil
}

func (e *DockerEngine) StartContainer(ctx context.Context, name string) error {
	ctx, cancel := e.callCtx(ctx)
	defer cancel()
	return mapErr(e.cli.ContainerStart(ctx, name, types.ContainerStartOptions{}))
}

func (e *DockerEngine) StopContainer(ctx context.Context, name string, timeoutSeconds *int) error {
	ctx, cancel := e.callCtx(ctx)
	defer cancel()
	return mapErr(e.cli.ContainerStop(ctx, name, container.StopOptions{Timeout: timeoutSeconds}))
}

func (e *DockerEngine) RemoveContainer(ctx context.Context, name string, force, removeVolumes bool) error {
	ctx, cancel := e.callCtx(ctx)
	defer cancel()
	return mapErr(e.cli.ContainerRemove(ctx, name, types.ContainerRemoveOptions{
		Force:         force,
		RemoveVolumes: removeVolumes,
	}))
}

func (e *DockerEngine) ListContainers(ctx context.Context, all bool) ([]models.ContainerSummary, error) {
	ctx, cancel := e.callCtx(ctx)
	defer cancel()

	containers, err := e.cli.ContainerList(ctx, types.ContainerListOptions{All: all})
	if err != nil {
		return nil, mapErr(err)
	}

	summaries := make([]models.ContainerSummary, 0, len(containers))
	for _, c := range containers {
		name := ""
		if len(c.Names) > 0 {
			name = trimLeadingSlash(c.Names[0])
		}
		summaries = append(summaries, models.ContainerSummary{
			ID:     c.ID,
			Name:   name,
			Image:  []string{c.Image},
			Status: c.Status,
		})
	}

	return summaries, nil
}

func (e *DockerEngine) ContainerLogs(ctx context.Context, name string, opts LogOptions) ([]string, error) {
	ctx, cancel := e.callCtx(ctx)
	defer cancel()

	reader, err := e.cli.ContainerLogs(ctx, name, types.ContainerLogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Tail:       opts.Tail,
		Timestamps: opts.Timestamps,
		Since:      opts.Since,
	})
	if err != nil {
		return nil, mapErr(err)
	}
	defer reader.Close()

	// Demultiplex the stdout/stderr framing the daemon uses for non-TTY
	// containers
	var buf bytes.Buffer
	if _, err := stdcopy.StdCopy(&buf, &buf, reader); err != nil {
		return nil, fmt.Errorf("failed to read container logs: %w", err)
	}

	var lines []string
	scanner := bufio.NewScanner(&buf)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}

	return lines, scanner.Err()
}

func (e *DockerEngine) ListImages(ctx context.Context, all bool) ([]models.ImageSummary, error) {
	ctx, cancel := e.callCtx(ctx)
	defer cancel()

	images, err := e.cli.ImageList(ctx, types.ImageListOptions{All: all})
	if err != nil {
		return nil, mapErr(err)
	}

	summaries := make([]models.ImageSummary, 0, len(images))
	for _, img := range images {
		summaries = append(summaries, models.ImageSummary{
			ID:   img.ID,
			Tags: img.RepoTags,
			Size: img.Size,
		})
	}

	return summaries, nil
}

func (e *DockerEngine) PullImage(ctx context.Context, ref string) error {
	ctx, cancel := e.callCtx(ctx)
	defer cancel()

	reader, err := e.cli.ImagePull(ctx, ref, types.ImagePullOptions{RegistryAuth: e.registryAuth()})
	if err != nil {
		return mapErr(err)
	}
	defer reader.Close()

	// The pull only completes once the progress stream is drained
	_, err = io.Copy(io.Discard, reader)
	return err
}

func (e *DockerEngine) PushImage(ctx context.Context, localTag, remoteRepo string) error {
	ctx, cancel := e.callCtx(ctx)
	defer cancel()

	if err := e.cli.ImageTag(ctx, localTag, remoteRepo); err != nil {
		return mapErr(err)
	}

	auth := e.registryAuth()
	if auth == "" {
		// The daemon rejects pushes with an empty auth header
		auth = "e30=" // base64 for {}
	}

	reader, err := e.cli.ImagePush(ctx, remoteRepo, types.ImagePushOptions{RegistryAuth: auth})
	if err != nil {
		return mapErr(err)
	}
	defer reader.Close()

	_, err = io.Copy(io.Discard, reader)
	return err
}

func (e *DockerEngine) RemoveImage(ctx context.Context, ref string, force, pruneChildren bool) error {
	ctx, cancel := e.callCtx(ctx)
	defer cancel()

	_, err := e.cli.ImageRemove(ctx, ref, types.ImageRemoveOptions{
		Force:         force,
		PruneChildren: pruneChildren,
	})
	return mapErr(err)
}

func (e *DockerEngine) BuildImage(ctx context.Context, req models.ImageBuildRequest) error {
	ctx, cancel := e.callCtx(ctx)
	defer cancel()

	resp, err := e.cli.ImageBuild(ctx, nil, types.ImageBuildOptions{
		Tags:          []string{req.Tag},
		RemoteContext: req.Remote,
		Dockerfile:    req.Dockerfile,
		Remove:        true,
	})
	if err != nil {
		return mapErr(err)
	}
	defer resp.Body.Close()

	_, err = io.Copy(io.Discard, resp.Body)
	return err
}

func (e *DockerEngine) RegistryLogin(ctx context.Context, username, password, serverAddress string) (string, error) {
	ctx, cancel := e.callCtx(ctx)
	defer cancel()

	authConfig := registry.AuthConfig{
		Username:      username,
		Password:      password,
		ServerAddress: serverAddress,
	}

	body, err := e.cli.RegistryLogin(ctx, authConfig)
	if err != nil {
		return "", mapErr(err)
	}

	encoded, err := registry.EncodeAuthConfig(authConfig)
	if err != nil {
		return "", fmt.Errorf("failed to encode registry auth: %w", err)
	}
	e.setRegistryAuth(encoded)

	return body.Status, nil
}

func (e *DockerEngine) CreateVolume(ctx context.Context, req models.VolumeCreateRequest) (*models.VolumeSummary, error) {
	ctx, cancel := e.callCtx(ctx)
	defer cancel()

	vol, err := e.cli.VolumeCreate(ctx, volume.CreateOptions{
		Name:   req.Name,
		Driver: req.Driver,
		Labels: req.Labels,
	})
	if err != nil {
		return nil, mapErr(err)
	}

	return &models.VolumeSummary{
		Name:       vol.Name,
		Driver:     vol.Driver,
		Mountpoint: vol.Mountpoint,
	}, nil
}

func (e *DockerEngine) RemoveVolume(ctx context.Context, name string, force bool) error {
	ctx, cancel := e.callCtx(ctx)
	defer cancel()
	return mapErr(e.cli.VolumeRemove(ctx, name, force))
}

func (e *DockerEngine) Ping(ctx context.Context) error {
	_, err := e.cli.Ping(ctx)
	return err
}

func trimLeadingSlash(name string) string {
	if len(name) > 0 && name[0] == '/' {
		return name[1:]
	}
	return name
}
