// Package nodetest provides an in-memory Meowith node for tests.
//
// A Node serves one bucket of one application over the node's HTTP API:
// oneshot and session uploads, ranged downloads, renames, deletes,
// listings and bucket info. It checks the bearer token, enforces the
// bucket quota and expires idle upload sessions against its clock, and
// answers failures with the node's error bodies so a
// [github.com/meowith/connector-go/connector.Connector] sees exactly what
// it would from a real node.
//
//	srv := nodetest.NewServer(nodetest.WithQuota(1 << 20))
//	defer srv.Close()
//
//	conn, err := srv.Connector()
//	if err != nil {
//		// handle error
//	}
//	err = conn.UploadOneshot(ctx, strings.NewReader("hi"), "greeting.txt", 2)
//
// Node.Handler can also be mounted on any server, as
// cmd/meowith-fakenode does.
package nodetest
