// Package server manages the HTTP server lifecycle with graceful shutdown.
//
// Run serves until its context is done, then drains in-flight requests
// and runs registered cleanup in order. Pair it with
// [os/signal.NotifyContext] to stop on SIGINT or SIGTERM:
//
//	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
//	defer stop()
//
//	srv := server.New(node.Handler(), server.WithHost(":4000"))
//	if err := srv.Run(ctx); err != nil {
//		log.Fatal(err)
//	}
package server
