// Package meowith exposes the connector builder.
package meowith

import (
	"github.com/google/uuid"

	"github.com/meowith/connector-go/connector"
)

// NewConnector builds a connector for one bucket of one application on
// the node at nodeAddr, authenticating every request with token.
// See [connector.New] for the options.
func NewConnector(token string, bucketID, appID uuid.UUID, nodeAddr string, opts ...connector.Option) (*connector.Connector, error) {
	return connector.New(connector.Config{
		Token:    token,
		BucketID: bucketID,
		AppID:    appID,
		NodeAddr: nodeAddr,
	}, opts...)
}
