// Package engine talks to the Docker Engine API for read-only queries.
package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/volume"
	"github.com/docker/docker/client"
)

// Labels docker compose puts on the objects it creates.
const (
	ProjectLabel = "com.docker.compose.project"
	ServiceLabel = "com.docker.compose.service"
)

// Container is the subset of a container listing drydock cares about.
type Container struct {
	Name    string
	Service string
	State   string
	Status  string
}

// Client wraps the Docker SDK client.
type Client struct {
	inner *client.Client
}

// New creates a new Docker client using environment defaults.
func New(host string) (*Client, error) {
	opts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	if host != "" {
		opts = append(opts, client.WithHost(host))
	}
	inner, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}
	return &Client{inner: inner}, nil
}

// Ping validates connectivity to the Docker daemon.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.inner == nil {
		return fmt.Errorf("docker client not initialized")
	}
	ping, err := c.inner.Ping(ctx)
	if err != nil {
		return fmt.Errorf("docker ping: %w", err)
	}
	if ping.APIVersion == "" {
		return fmt.Errorf("docker ping returned empty API version")
	}
	return nil
}

// Close releases resources held by the Docker client.
func (c *Client) Close() error {
	if c == nil || c.inner == nil {
		return nil
	}
	return c.inner.Close()
}

// ProjectContainers lists every container of a compose project, stopped ones included.
func (c *Client) ProjectContainers(ctx context.Context, project string) ([]Container, error) {
	return c.containers(ctx, filters.NewArgs(filters.Arg("label", ProjectLabel+"="+project)))
}

// NamedContainers lists the container with exactly this name.
func (c *Client) NamedContainers(ctx context.Context, name string) ([]Container, error) {
	return c.containers(ctx, filters.NewArgs(filters.Arg("name", "^/"+name+"$")))
}

func (c *Client) containers(ctx context.Context, args filters.Args) ([]Container, error) {
	list, err := c.inner.ContainerList(ctx, container.ListOptions{All: true, Filters: args})
	if err != nil {
		return nil, fmt.Errorf("docker container list: %w", err)
	}
	out := make([]Container, 0, len(list))
	for _, ct := range list {
		out = append(out, fromSummary(ct))
	}
	return out, nil
}

func fromSummary(ct types.Container) Container {
	var name string
	if len(ct.Names) > 0 {
		name = strings.TrimPrefix(ct.Names[0], "/")
	}
	return Container{
		Name:    name,
		Service: ct.Labels[ServiceLabel],
		State:   ct.State,
		Status:  ct.Status,
	}
}

// ProjectVolumes returns the names of volumes created for a compose project.
func (c *Client) ProjectVolumes(ctx context.Context, project string) ([]string, error) {
	resp, err := c.inner.VolumeList(ctx, volume.ListOptions{
		Filters: filters.NewArgs(filters.Arg("label", ProjectLabel+"="+project)),
	})
	if err != nil {
		return nil, fmt.Errorf("docker volume list: %w", err)
	}
	names := make([]string, 0, len(resp.Volumes))
	for _, v := range resp.Volumes {
		if v != nil {
			names = append(names, v.Name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// ProjectImages returns repo:tag references of images built for a compose project.
func (c *Client) ProjectImages(ctx context.Context, project string) ([]string, error) {
	list, err := c.inner.ImageList(ctx, image.ListOptions{
		Filters: filters.NewArgs(filters.Arg("label", ProjectLabel+"="+project)),
	})
	if err != nil {
		return nil, fmt.Errorf("docker image list: %w", err)
	}
	return imageRefs(list), nil
}

func imageRefs(list []image.Summary) []string {
	var refs []string
	for _, img := range list {
		if len(img.RepoTags) == 0 {
			refs = append(refs, img.ID)
			continue
		}
		refs = append(refs, img.RepoTags...)
	}
	sort.Strings(refs)
	return refs
}
