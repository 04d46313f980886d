// Package connector talks to a Meowith storage node on behalf of one
// application bucket.
//
// A [Connector] is built once from a [Config] and shared freely; it holds
// no mutable state. Each method issues exactly one request and returns when
// the node answered:
//
//	conn, err := connector.New(connector.Config{
//		Token:    token,
//		BucketID: bucketID,
//		AppID:    appID,
//		NodeAddr: "https://node.example.com:4000",
//	})
//	if err != nil {
//		return err
//	}
//	entities, err := conn.ListDirectory(ctx, "docs", connector.NewRange(0, 9))
//
// # Errors
//
// A failed call returns either a [*RemoteError], when the node rejected the
// request, or a [*LocalError], when no well-formed answer was obtained.
// RemoteError unwraps to its [NodeClientError] kind:
//
//	if errors.Is(err, connector.NotFound) {
//		...
//	}
//
// Use [Retryable] to decide whether repeating a call is worthwhile. Nothing
// is retried automatically.
//
// # Resumable uploads
//
// [Connector.StartUploadSession] opens a session, [Connector.PutFile]
// streams bytes into it and [Connector.ResumeUploadSession] reports the
// offset to continue from after an interruption. The session expires
// after its Validity window of inactivity; the node then answers
// NoSuchSession and a new session is needed.
package connector
