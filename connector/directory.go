package connector

import (
	"context"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/meowith/connector-go/client"
)

// CreateDirectory creates a directory at path. Repeating the call may
// report EntityExists.
func (c *Connector) CreateDirectory(ctx context.Context, path string) error {
	return c.call(ctx, "CreateDirectory", func(ctx context.Context) error {
		return c.send(ctx, http.MethodPost, routeCreateDirectory, path, "", nil)
	}, attribute.String("meowith.path", path))
}

// RenameDirectory moves the directory at from to to.
func (c *Connector) RenameDirectory(ctx context.Context, from, to string) error {
	return c.call(ctx, "RenameDirectory", func(ctx context.Context) error {
		reqOpts := []client.RequestOption{client.WithPayload(RenameEntityRequest{To: to})}
		return c.send(ctx, http.MethodPost, routeRenameDirectory, from, "", reqOpts)
	}, attribute.String("meowith.path", from), attribute.String("meowith.to", to))
}

// DeleteDirectory removes the empty directory at path. A directory with
// content is reported as NotEmpty.
func (c *Connector) DeleteDirectory(ctx context.Context, path string) error {
	return c.call(ctx, "DeleteDirectory", func(ctx context.Context) error {
		return c.send(ctx, http.MethodDelete, routeDeleteDirectory, path, "", nil)
	}, attribute.String("meowith.path", path))
}

// DeleteDirectoryRecursive removes the directory at path with everything
// below it.
func (c *Connector) DeleteDirectoryRecursive(ctx context.Context, path string) error {
	return c.call(ctx, "DeleteDirectoryRecursive", func(ctx context.Context) error {
		reqOpts := []client.RequestOption{client.WithPayload(DeleteDirectoryRequest{Recursive: true})}
		return c.send(ctx, http.MethodDelete, routeDeleteDirectory, path, "", reqOpts)
	}, attribute.String("meowith.path", path))
}

// ListDirectory lists the entities directly inside the directory at path.
// A nil rng lists everything.
func (c *Connector) ListDirectory(ctx context.Context, path string, rng *Range) (*EntityList, error) {
	return c.list(ctx, "ListDirectory", routeListDirectory, path, rng)
}

func (c *Connector) list(ctx context.Context, op, route, path string, rng *Range) (*EntityList, error) {
	query := ConstructPaginationQuery(rng)

	var list EntityList
	err := c.call(ctx, op, func(ctx context.Context) error {
		return c.send(ctx, http.MethodGet, route, path, strings.TrimPrefix(query, "?"), nil, client.WithDestination(&list))
	}, attribute.String("meowith.path", path), attribute.String("meowith.query", query))
	if err != nil {
		return nil, err
	}

	return &list, nil
}
