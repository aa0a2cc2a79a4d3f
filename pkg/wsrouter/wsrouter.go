package wsrouter

import (
	"context"
	"encoding/json"

	"github.com/gorilla/websocket"
)

// message is the wire envelope. V is the schema tag; unknown fields inside
// Payload are ignored by the typed handlers.
type message struct {
	V       int             `json:"v"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type HandlerFunc[T any] func(ctx context.Context, conn *websocket.Conn, payload T) error

type Middleware func(next HandlerFunc[any]) HandlerFunc[any]

type WSRouter struct {
	routes        map[string]HandlerFunc[json.RawMessage]
	middlewares   []Middleware
	schemaVersion int

	// UnknownHandler is invoked for message types with no registered route
	// and for messages tagged with a newer schema version.
	UnknownHandler func(ctx context.Context, conn *websocket.Conn, messageType string)
	// ErrorHandler is invoked when a handler returns an error or a payload
	// fails to decode.
	ErrorHandler func(ctx context.Context, conn *websocket.Conn, err error)
}

func New(schemaVersion int, middlewares ...Middleware) *WSRouter {
	return &WSRouter{
		routes:        make(map[string]HandlerFunc[json.RawMessage]),
		middlewares:   middlewares,
		schemaVersion: schemaVersion,
	}
}

// Handle registers a typed handler for messageType. The payload is decoded
// into T before the middleware chain runs.
func Handle[T any](r *WSRouter, messageType string, handler HandlerFunc[T]) {
	r.routes[messageType] = func(ctx context.Context, conn *websocket.Conn, raw json.RawMessage) error {
		var payload T
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &payload); err != nil {
				return err
			}
		}

		next := func(ctx context.Context, conn *websocket.Conn, p any) error {
			return handler(ctx, conn, p.(T))
		}
		for i := len(r.middlewares) - 1; i >= 0; i-- {
			next = r.middlewares[i](next)
		}

		return next(ctx, conn, payload)
	}
}

// ServeConn reads messages from conn until the connection fails, dispatching
// each to its registered handler. Handler errors do not terminate the loop.
func (r *WSRouter) ServeConn(ctx context.Context, conn *websocket.Conn) error {
	for {
		var msg message
		if err := conn.ReadJSON(&msg); err != nil {
			return err
		}

		mctx := context.WithValue(ctx, messageTypeKey, msg.Type)

		handler, exists := r.routes[msg.Type]
		if !exists || msg.V > r.schemaVersion {
			if r.UnknownHandler != nil {
				r.UnknownHandler(mctx, conn, msg.Type)
			}
			continue
		}

		if err := handler(mctx, conn, msg.Payload); err != nil {
			if r.ErrorHandler != nil {
				r.ErrorHandler(mctx, conn, err)
			}
		}
	}
}
