package inmemory

import (
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/reelparty/server/internal/repository/connection"
)

type outMessage struct {
	critical bool
	data     []byte
}

// client owns the only goroutine allowed to write to its connection. The
// queue is bounded: when full, the oldest non-critical entry is dropped
// first, so authoritative playback updates survive a slow consumer.
type client struct {
	conn *websocket.Conn

	mu    sync.Mutex
	queue []outMessage
	wake  chan struct{}
	done  chan struct{}
	once  sync.Once
}

func (c *client) enqueue(msg outMessage, limit int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.queue) >= limit {
		dropped := false
		for i, queued := range c.queue {
			if !queued.critical {
				c.queue = append(c.queue[:i], c.queue[i+1:]...)
				dropped = true
				break
			}
		}

		if !dropped {
			if !msg.critical {
				return false
			}
			// every queued entry is critical; the oldest is the stalest
			c.queue = c.queue[1:]
		}
	}

	c.queue = append(c.queue, msg)

	select {
	case c.wake <- struct{}{}:
	default:
	}

	return true
}

func (c *client) writeLoop(logger *slog.Logger) {
	for {
		select {
		case <-c.done:
			return
		case <-c.wake:
			for {
				c.mu.Lock()
				if len(c.queue) == 0 {
					c.mu.Unlock()
					break
				}
				msg := c.queue[0]
				c.queue = c.queue[1:]
				c.mu.Unlock()

				if err := c.conn.WriteMessage(websocket.TextMessage, msg.data); err != nil {
					logger.Debug("failed to write to conn", "error", err)
					return
				}
			}
		}
	}
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

type repo struct {
	mu         sync.RWMutex
	clients    map[string]*client
	queueLimit int
	logger     *slog.Logger
}

func NewRepo(logger *slog.Logger, queueLimit int) *repo {
	return &repo{
		clients:    make(map[string]*client),
		queueLimit: queueLimit,
		logger:     logger,
	}
}

func (r *repo) Add(participantId string, conn *websocket.Conn) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.clients[participantId]; ok {
		return connection.ErrAlreadyExists
	}

	c := &client{
		conn: conn,
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	r.clients[participantId] = c

	go c.writeLoop(r.logger)

	return nil
}

// Remove closes the participant's connection and drops any queued output.
// Removing an unknown participant is a no-op.
func (r *repo) Remove(participantId string) bool {
	r.mu.Lock()
	c, ok := r.clients[participantId]
	if ok {
		delete(r.clients, participantId)
	}
	r.mu.Unlock()

	if !ok {
		return false
	}

	c.close()

	return true
}

// RemoveIfConn removes the participant only while conn is still the bound
// connection. A stale disconnect racing a reattach must not tear down the
// replacement connection.
func (r *repo) RemoveIfConn(participantId string, conn *websocket.Conn) bool {
	r.mu.Lock()
	c, ok := r.clients[participantId]
	if ok && c.conn == conn {
		delete(r.clients, participantId)
	} else {
		ok = false
	}
	r.mu.Unlock()

	if !ok {
		return false
	}

	c.close()

	return true
}

// Send enqueues data for the participant. Non-critical messages may be
// dropped when the participant's queue is full; Send never blocks on the
// participant's connection.
func (r *repo) Send(participantId string, critical bool, data []byte) error {
	r.mu.RLock()
	c, ok := r.clients[participantId]
	r.mu.RUnlock()

	if !ok {
		return connection.ErrNotFound
	}

	if !c.enqueue(outMessage{critical: critical, data: data}, r.queueLimit) {
		r.logger.Debug("outbound queue full, dropped message", "participant_id", participantId)
	}

	return nil
}
