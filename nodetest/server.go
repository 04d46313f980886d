package nodetest

import (
	"net/http/httptest"

	"github.com/meowith/connector-go/client"
	"github.com/meowith/connector-go/connector"
)

// Server is a Node listening on a local loopback address.
type Server struct {
	*httptest.Server
	Node *Node
}

// NewServer starts a node server. The caller must Close it.
func NewServer(opts ...Option) *Server {
	n := NewNode(opts...)

	return &Server{
		Server: httptest.NewServer(n.Handler()),
		Node:   n,
	}
}

// Config returns a connector configuration for the served bucket.
func (s *Server) Config() connector.Config {
	return connector.Config{
		Token:    s.Node.Token(),
		BucketID: s.Node.BucketID(),
		AppID:    s.Node.AppID(),
		NodeAddr: s.URL,
	}
}

// Connector builds a connector for the served bucket on the server's own
// client. opts are applied after the server's client.
func (s *Server) Connector(opts ...connector.Option) (*connector.Connector, error) {
	optFns := append([]connector.Option{connector.WithClientOptions(client.WithClient(s.Client()))}, opts...)
	return connector.New(s.Config(), optFns...)
}
