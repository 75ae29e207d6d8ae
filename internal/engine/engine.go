package engine

import (
	"context"
	"errors"

	"github.com/dockpilot/management-api/internal/models"
)

// ErrNotFound is returned when the engine does not know the named resource
var ErrNotFound = errors.New("resource not found in engine")

// ContainerHandle identifies a container the engine created
type ContainerHandle struct {
	ID     string
	Name   string
	Status string
}

// LogOptions narrows a container log read
type LogOptions struct {
	Tail       string
	Timestamps bool
	Since      string
}

// Engine is the container daemon collaborator. The core only needs a
// succeeded/failed signal from each call; it never interprets engine
// semantics beyond not-found mapping.
type Engine interface {
	RunContainer(ctx context.Context, req models.ContainerRunRequest) (*ContainerHandle, error)
	StartContainer(ctx context.Context, name string) error
	StopContainer(ctx context.Context, name string, timeoutSeconds *int) error
	RemoveContainer(ctx context.Context, name string, force, removeVolumes bool) error
	ListContainers(ctx context.Context, all bool) ([]models.ContainerSummary, error)
	ContainerLogs(ctx context.Context, name string, opts LogOptions) ([]string, error)

	ListImages(ctx context.Context, all bool) ([]models.ImageSummary, error)
	PullImage(ctx context.Context, ref string) error
	PushImage(ctx context.Context, localTag, remoteRepo string) error
	RemoveImage(ctx context.Context, ref string, force, pruneChildren bool) error
	BuildImage(ctx context.Context, req models.ImageBuildRequest) error
	RegistryLogin(ctx context.Context, username, password, serverAddress string) (string, error)

	CreateVolume(ctx context.Context, req models.VolumeCreateRequest) (*models.VolumeSummary, error)
	RemoveVolume(ctx context.Context, name string, force bool) error

	Ping(ctx context.Context) error
}
