package connector

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel/attribute"

	"github.com/meowith/connector-go/client"
)

// ListBucketFiles lists the files of the bucket. A nil rng lists everything.
func (c *Connector) ListBucketFiles(ctx context.Context, rng *Range) (*EntityList, error) {
	return c.list(ctx, "ListBucketFiles", routeListFiles, "", rng)
}

// ListBucketDirectories lists the directories of the bucket.
func (c *Connector) ListBucketDirectories(ctx context.Context, rng *Range) (*EntityList, error) {
	return c.list(ctx, "ListBucketDirectories", routeListDirectories, "", rng)
}

// StatResource describes the file or directory at path.
func (c *Connector) StatResource(ctx context.Context, path string) (*Entity, error) {
	var entity Entity
	err := c.call(ctx, "StatResource", func(ctx context.Context) error {
		return c.send(ctx, http.MethodGet, routeStat, path, "", nil, client.WithDestination(&entity))
	}, attribute.String("meowith.path", path))
	if err != nil {
		return nil, err
	}

	return &entity, nil
}

// FetchBucketInfo describes the bucket the Connector is scoped to.
func (c *Connector) FetchBucketInfo(ctx context.Context) (*BucketDto, error) {
	var info BucketDto
	err := c.call(ctx, "FetchBucketInfo", func(ctx context.Context) error {
		return c.send(ctx, http.MethodGet, routeBucketInfo, "", "", nil, client.WithDestination(&info))
	})
	if err != nil {
		return nil, err
	}

	return &info, nil
}
