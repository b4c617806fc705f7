// Package server wires configuration, logging, metrics, tracing, the
// backend client, the session store and the relay dispatcher into one
// HTTP server.
//
// Middleware order: recovery, tracing, request logging, metrics, CORS,
// rate limiting. /metrics serves the private prometheus registry.
//
// Example Usage:
//
//	srv, err := server.NewServer(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer srv.Close()
//	err = srv.Run(ctx)
package server
