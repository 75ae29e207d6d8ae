package models

// ImageSummary is the trimmed engine view of an image
type ImageSummary struct {
	ID   string   `json:"id"`
	Tags []string `json:"tags"`
	Size int64    `json:"size"`
}

// ImagePullRequest represents an image pull request
type ImagePullRequest struct {
	Repository string `json:"repository" validate:"required"`
	Tag        string `json:"tag"`
}

// ImagePushRequest represents an image push request
type ImagePushRequest struct {
	LocalTag   string `json:"local_tag" validate:"required"`
	RemoteRepo string `json:"remote_repo" validate:"required"`
}

// ImageBuildRequest represents an image build request. Remote may be a git
// URL; the engine fetches the build context itself.
type ImageBuildRequest struct {
	Tag        string `json:"tag" validate:"required"`
	Remote     string `json:"remote" validate:"required"`
	Dockerfile string `json:"dockerfile"`
}

// ImageRemoveRequest carries remove parameters
type ImageRemoveRequest struct {
	Force         bool `json:"force"`
	PruneChildren bool `json:"prune_children"`
}

// RegistryLoginRequest represents registry credentials
type RegistryLoginRequest struct {
	Username      string `json:"username" validate:"required"`
	Password      string `json:"password" validate:"required"`
	ServerAddress string `json:"server_address"`
}
