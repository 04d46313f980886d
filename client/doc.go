// Package client provides the authenticated HTTP transport used to talk
// to a Meowith node, built on [net/http].
//
// # Building a Client
//
// Use [Build] to create a [Client] with functional options:
//
//	c, err := client.Build(
//		client.WithBearerToken(token),
//		client.WithTimeout(30 * time.Second),
//		client.WithUserAgent("myapp/1.0"),
//	)
//
// The bearer token, user agent, W3C trace propagation, optional Prometheus
// instrumentation ([WithMetrics]) and optional throttling ([WithThrottle])
// are layered onto the transport once, so every request carries them.
//
// # Making Requests
//
// Construct a [URL] and [Request], then execute with [Client.Do]:
//
//	u, err := client.URL("https://node.example.com", "/api/bucket/info/"+app+"/"+bucket)
//	req, err := client.Request(ctx, u, http.MethodGet)
//	err = c.Do(req, client.WithDestination(&info))
//
// Any status outside 2xx is returned as [*UnexpectedStatusError] with the
// first 4KB of the body, leaving interpretation of the error payload to the
// caller.
//
// # Streaming
//
// [WithStream] sends an [io.Reader] as the request body without buffering,
// and [Client.Stream] returns a successful response with its body open:
//
//	req, err := client.Request(ctx, u, http.MethodPost, client.WithStream(f, size))
//	resp, err := c.Stream(req)
//	defer resp.Body.Close()
package client
