package room

import (
	"context"
	"encoding/json"
)

const (
	EventSnapshot          = "SNAPSHOT"
	EventPlaybackUpdated   = "PLAYBACK_UPDATED"
	EventResync            = "RESYNC"
	EventChatMessage       = "CHAT_MESSAGE"
	EventParticipantJoined = "PARTICIPANT_JOINED"
	EventParticipantLeft   = "PARTICIPANT_LEFT"
)

// Critical events survive outbound backpressure: a participant that misses
// one cannot converge again without a resync. Chat and presence updates are
// droppable, the next snapshot or roster-bearing event supersedes them.

func (s *service) send(ctx context.Context, participantId string, critical bool, event *Event) {
	data, err := json.Marshal(event)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to marshal event", "type", event.Type, "error", err)
		return
	}
	if err := s.senderRepo.Send(participantId, critical, data); err != nil {
		s.logger.DebugContext(ctx, "failed to send event", "type", event.Type, "participant_id", participantId, "error", err)
	}
}

func (s *service) broadcast(ctx context.Context, participants []Participant, exceptId string, critical bool, event *Event) {
	data, err := json.Marshal(event)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to marshal event", "type", event.Type, "error", err)
		return
	}
	for _, p := range participants {
		if p.Id == exceptId {
			continue
		}
		if err := s.senderRepo.Send(p.Id, critical, data); err != nil {
			s.logger.DebugContext(ctx, "failed to send event", "type", event.Type, "participant_id", p.Id, "error", err)
		}
	}
}

func (s *service) sendSnapshot(ctx context.Context, participantId string, snapshot Snapshot) {
	s.send(ctx, participantId, true, &Event{
		V:       schemaVersion,
		Type:    EventSnapshot,
		Payload: snapshot,
	})
}

func (s *service) sendResync(ctx context.Context, participantId string, state PlaybackState) {
	s.send(ctx, participantId, true, &Event{
		V:       schemaVersion,
		Type:    EventResync,
		Payload: map[string]any{"player": state},
	})
}

func (s *service) sendPlaybackUpdated(ctx context.Context, participants []Participant, state PlaybackState) {
	s.broadcast(ctx, participants, "", true, &Event{
		V:       schemaVersion,
		Type:    EventPlaybackUpdated,
		Payload: map[string]any{"player": state},
	})
}

func (s *service) sendChatMessage(ctx context.Context, participants []Participant, msg ChatMessage) {
	s.broadcast(ctx, participants, "", false, &Event{
		V:       schemaVersion,
		Type:    EventChatMessage,
		Payload: map[string]any{"message": msg},
	})
}

func (s *service) sendParticipantJoined(ctx context.Context, participants []Participant, joined Participant) {
	s.broadcast(ctx, participants, joined.Id, false, &Event{
		V:    schemaVersion,
		Type: EventParticipantJoined,
		Payload: map[string]any{
			"participant":  joined,
			"participants": participants,
		},
	})
}

func (s *service) sendParticipantLeft(ctx context.Context, participants []Participant, left Participant) {
	s.broadcast(ctx, participants, "", false, &Event{
		V:    schemaVersion,
		Type: EventParticipantLeft,
		Payload: map[string]any{
			"participant":  left,
			"participants": participants,
		},
	})
}
