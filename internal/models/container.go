package models

import "time"

// ContainerRunRequest represents a container run request
type ContainerRunRequest struct {
	Image       string            `json:"image" validate:"required"`
	Name        string            `json:"name"`
	Command     []string          `json:"command"`
	Env         []string          `json:"env"`
	Labels      map[string]string `json:"labels"`
	Ports       map[string]string `json:"ports"`   // container port -> host port
	Volumes     []string          `json:"volumes"` // bind specs, "src:dst[:mode]"
	AutoRemove  bool              `json:"auto_remove"`
	Detach      bool              `json:"detach"`
	NetworkMode string            `json:"network_mode"`
}

// ContainerSummary is the trimmed engine view returned by list calls
type ContainerSummary struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Image  []string `json:"image"`
	Status string   `json:"status"`
}

// ContainerStopRequest carries stop parameters
type ContainerStopRequest struct {
	Timeout *int `json:"timeout"` // seconds; engine default when nil
}

// ContainerRemoveRequest carries remove parameters
type ContainerRemoveRequest struct {
	Force         bool `json:"force"`
	RemoveVolumes bool `json:"remove_volumes"`
}

// ContainerLogsResponse is the structured log payload
type ContainerLogsResponse struct {
	Container string   `json:"container"`
	Logs      []string `json:"logs"`
}

// UserContainer is the ledger entry recorded when a user runs a container
type UserContainer struct {
	Username      string    `json:"username" dynamodbav:"username"`
	ContainerName string    `json:"container_name" dynamodbav:"container_name"`
	CreatedAt     time.Time `json:"created_at" dynamodbav:"created_at"`
}
