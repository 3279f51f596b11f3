package membership

import (
	"time"

	"github.com/go-kit/log/level"
)

func (cl *Cluster) startGC() {
	cl.wg.Add(1)

	go func() {
		defer cl.wg.Done()

		ticker := time.NewTicker(cl.gcInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				cl.collect(time.Now())
			case <-cl.stop:
				return
			}
		}
	}()
}

// collect closes connections to nodes that are gone and forgets nodes that
// left more than one GC interval ago.
func (cl *Cluster) collect(now time.Time) {
	cl.mut.Lock()
	defer cl.mut.Unlock()

	for id, conn := range cl.connections {
		node, ok := cl.nodes[id]

		if !ok || node.Status == StatusLeft {
			if err := conn.Close(); err != nil {
				level.Warn(cl.logger).Log("msg", "failed to close connection", "node", id, "err", err)
			}
		}

		// Remove all closed connections. They may have been closed manually.
		if conn.IsClosed() {
			delete(cl.connections, id)
		}
	}

	for id, at := range cl.leftAt {
		if now.Sub(at) >= cl.gcInterval {
			delete(cl.nodes, id)
			delete(cl.leftAt, id)
		}
	}
}
