package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"

	"go.uber.org/zap"
)

// Start runs the TCP accept loop until ctx is cancelled. Each accepted
// connection is handed to handler on its own goroutine.
//
// If the requested port is taken, the next ports are probed in order until
// one binds.
func Start(ctx context.Context, log *zap.SugaredLogger, port int, handler func(conn net.Conn)) error {
	var ln net.Listener
	var err error

	for {
		addr := fmt.Sprintf(":%d", port)
		ln, err = net.Listen("tcp", addr)
		if err != nil {
			if errors.Is(err, syscall.EADDRINUSE) {
				port++
				continue
			}
			return err
		}
		break
	}

	log.Infow("server listening", "port", port)

	// When ctx is cancelled, close the listener to unblock Accept.
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			// ln.Close() makes Accept return an error; that is the
			// clean way out of this loop.
			select {
			case <-ctx.Done():
				return nil
			default:
				log.Warnw("accept connection", "error", err)
				continue
			}
		}

		go handler(conn)
	}
}
