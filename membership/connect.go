package membership

import (
	"context"
	"fmt"

	"github.com/go-kit/log/level"

	"github.com/maxpoletaev/shardcoord/nodeapi"
)

func (cl *Cluster) loadConn(id NodeID) (nodeapi.Client, bool) {
	cl.mut.RLock()

	conn, ok := cl.connections[id]
	if !ok {
		cl.mut.RUnlock()
		return nil, false
	}

	// The connection is present but was closed manually, so it is not usable.
	// Need to re-acquire the lock and remove it from the registry.
	if conn.IsClosed() {
		cl.mut.RUnlock()
		cl.mut.Lock()
		defer cl.mut.Unlock()

		// A new connection might have been created while we were waiting for the lock.
		if conn, ok := cl.connections[id]; ok && !conn.IsClosed() {
			return conn, true
		}

		delete(cl.connections, id)

		return nil, false
	}

	cl.mut.RUnlock()

	return conn, true
}

// waitDial registers the caller as the one dialing the node. If another
// goroutine is already dialing, it returns the channel that is closed once
// that dial is finished.
func (cl *Cluster) waitDial(id NodeID) (done chan struct{}, owner bool) {
	cl.mut.Lock()
	defer cl.mut.Unlock()

	if done, ok := cl.waiting[id]; ok {
		return done, false
	}

	done = make(chan struct{})
	cl.waiting[id] = done

	return done, true
}

func (cl *Cluster) connect(ctx context.Context, id NodeID) (nodeapi.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, cl.dialTimeout)
	defer cancel()

	var retry bool

	for {
		done, owner := cl.waitDial(id)
		if owner {
			defer func() {
				cl.mut.Lock()
				delete(cl.waiting, id)
				cl.mut.Unlock()
				close(done)
			}()

			break
		}

		select {
		case <-done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}

		// Try to load the connection created in another goroutine.
		if conn, ok := cl.loadConn(id); ok {
			return conn, nil
		}

		// The other goroutine has failed to connect to the node. Make one more attempt.
		if !retry {
			retry = true
			continue
		}

		return nil, fmt.Errorf("failed to connect in another goroutine")
	}

	node, ok := cl.Node(id)
	if !ok {
		return nil, ErrNodeNotFound
	}

	// Dial the node, this may take a while.
	conn, err := cl.dialer(ctx, node.Addr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", node.Addr, err)
	}

	cl.mut.Lock()
	defer cl.mut.Unlock()

	// Check if the connection has been added while we were dialing.
	// If so, discard the connection we just created and use the existing one.
	if actual, ok := cl.connections[id]; ok && !actual.IsClosed() {
		if err := conn.Close(); err != nil {
			level.Warn(cl.logger).Log("msg", "failed to close connection", "node", id, "err", err)
		}

		return actual, nil
	}

	cl.connections[id] = conn

	return conn, nil
}

// Conn returns a connection to the node with the given ID. If the connection
// is not present, it attempts to dial the node and create a new connection.
// The context is used to cancel the dialing process.
func (cl *Cluster) Conn(ctx context.Context, id NodeID) (nodeapi.Client, error) {
	if conn, ok := cl.loadConn(id); ok {
		return conn, nil
	}

	return cl.connect(ctx, id)
}

// AddConn adds a connection to the cluster. If a connection to the same node
// already exists, the old connection is closed. This method is intended to be
// used during tests or during the cluster bootstrap, e.g. to register the
// in-process connection to the local node.
func (cl *Cluster) AddConn(id NodeID, conn nodeapi.Client) {
	cl.mut.Lock()
	defer cl.mut.Unlock()

	if actual, ok := cl.connections[id]; ok && actual != conn {
		if err := actual.Close(); err != nil {
			level.Warn(cl.logger).Log("msg", "failed to close connection", "node", id, "err", err)
		}
	}

	cl.connections[id] = conn
}
