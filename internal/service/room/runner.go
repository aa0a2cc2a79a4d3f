package room

import (
	"context"
	"log/slog"
	"sync"

	"github.com/jonboulle/clockwork"

	"github.com/reelparty/server/pkg/ctxlogger"
)

// Every mutation of a room goes through that room's runner goroutine, so
// commands within a room are serialized without per-field locking. Commands
// for different rooms run concurrently.

type command struct {
	ctx context.Context
	fn  func(context.Context) error
	res chan error
}

type roomRunner struct {
	cmds chan command
	done chan struct{}
	once sync.Once
}

func newRoomRunner() *roomRunner {
	return &roomRunner{
		cmds: make(chan command),
		done: make(chan struct{}),
	}
}

func (r *roomRunner) stop() {
	r.once.Do(func() {
		close(r.done)
	})
}

// do runs fn on the room's serialized command path and waits for its result.
func (r *roomRunner) do(ctx context.Context, fn func(context.Context) error) error {
	cmd := command{ctx: ctx, fn: fn, res: make(chan error, 1)}

	select {
	case r.cmds <- cmd:
	case <-r.done:
		return ErrRoomNotFound
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-cmd.res:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

type sessions struct {
	mu      sync.Mutex
	runners map[string]*roomRunner
}

func newSessions() *sessions {
	return &sessions{
		runners: make(map[string]*roomRunner),
	}
}

func (s *sessions) lookup(roomId string) (*roomRunner, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.runners[roomId]
	return r, ok
}

func (s *sessions) remove(roomId string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.runners[roomId]; ok {
		delete(s.runners, roomId)
		r.stop()
	}
}

func (s *sessions) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for roomId, r := range s.runners {
		delete(s.runners, roomId)
		r.stop()
	}
}

// ensureRunner returns the room's runner, starting one when the room exists
// in the repository without a live runner (e.g. after a server restart).
func (s *service) ensureRunner(ctx context.Context, roomId string) (*roomRunner, error) {
	if r, ok := s.sessions.lookup(roomId); ok {
		return r, nil
	}

	exists, err := s.roomRepo.RoomExists(ctx, roomId)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrRoomNotFound
	}

	s.sessions.mu.Lock()
	defer s.sessions.mu.Unlock()
	if r, ok := s.sessions.runners[roomId]; ok {
		return r, nil
	}
	r := newRoomRunner()
	s.sessions.runners[roomId] = r
	go s.roomLoop(roomId, r)
	return r, nil
}

func (s *service) dispatch(ctx context.Context, roomId string, fn func(context.Context) error) error {
	r, err := s.ensureRunner(ctx, roomId)
	if err != nil {
		return err
	}
	return r.do(ctx, fn)
}

func stopAndDrainTimer(t clockwork.Timer) {
	if !t.Stop() {
		select {
		case <-t.Chan():
		default:
		}
	}
}

func (s *service) roomLoop(roomId string, r *roomRunner) {
	ctx := ctxlogger.AppendCtx(context.Background(), slog.String("room_id", roomId))

	sweep := s.clock.NewTicker(s.cfg.HeartbeatInterval)
	defer sweep.Stop()

	// rooms start empty, so the idle countdown is armed from the first tick
	idle := s.clock.NewTimer(s.cfg.RoomIdleTimeout)
	defer idle.Stop()
	wasEmpty := true

	for {
		select {
		case <-r.done:
			return
		case cmd := <-r.cmds:
			cmd.res <- cmd.fn(cmd.ctx)
		case <-sweep.Chan():
			s.sweepPresence(ctx, roomId)
		case <-idle.Chan():
			s.logger.InfoContext(ctx, "room idle timeout expired, closing")
			s.closeRoom(ctx, roomId)
			continue
		}

		count, err := s.roomRepo.GetParticipantCount(ctx, roomId)
		if err != nil {
			continue
		}
		empty := count == 0
		if empty != wasEmpty {
			if empty {
				idle.Reset(s.cfg.RoomIdleTimeout)
			} else {
				stopAndDrainTimer(idle)
			}
			wasEmpty = empty
		}
	}
}
