package room

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/exp/slices"

	"github.com/reelparty/server/internal/repository/room"
)

// getParticipants lists members in join order with host and presence flags
// resolved, the shape every participant-bearing event carries.
func (s *service) getParticipants(ctx context.Context, roomId, hostId string) ([]Participant, error) {
	ids, err := s.roomRepo.GetParticipantIds(ctx, roomId)
	if err != nil {
		return nil, fmt.Errorf("failed to get participant ids: %w", err)
	}

	participants := make([]Participant, 0, len(ids))
	for _, id := range ids {
		p, err := s.roomRepo.GetParticipant(ctx, id)
		if err != nil {
			if errors.Is(err, room.ErrParticipantNotFound) {
				continue
			}
			return nil, fmt.Errorf("failed to get participant: %w", err)
		}
		participants = append(participants, Participant{
			Id:       id,
			Username: p.Username,
			Color:    p.Color,
			IsHost:   id == hostId,
			Presence: p.Presence,
		})
	}
	return participants, nil
}

func (s *service) requireMember(ctx context.Context, roomId, senderId string) (room.Room, room.Participant, error) {
	rm, err := s.roomRepo.GetRoom(ctx, roomId)
	if err != nil {
		if errors.Is(err, room.ErrRoomNotFound) {
			return room.Room{}, room.Participant{}, ErrRoomNotFound
		}
		return room.Room{}, room.Participant{}, fmt.Errorf("failed to get room: %w", err)
	}

	p, err := s.roomRepo.GetParticipant(ctx, senderId)
	if err != nil {
		if errors.Is(err, room.ErrParticipantNotFound) {
			return room.Room{}, room.Participant{}, ErrNotAMember
		}
		return room.Room{}, room.Participant{}, fmt.Errorf("failed to get participant: %w", err)
	}
	if p.RoomId != roomId {
		return room.Room{}, room.Participant{}, ErrNotAMember
	}

	return rm, p, nil
}

func (s *service) requireHost(ctx context.Context, roomId, senderId string) (room.Room, room.Player, error) {
	rm, _, err := s.requireMember(ctx, roomId, senderId)
	if err != nil {
		return room.Room{}, room.Player{}, err
	}
	if rm.HostId != senderId {
		return room.Room{}, room.Player{}, ErrNotAuthorized
	}

	player, err := s.roomRepo.GetPlayer(ctx, roomId)
	if err != nil {
		return room.Room{}, room.Player{}, fmt.Errorf("failed to get player: %w", err)
	}
	return rm, player, nil
}

func median(values []float64) float64 {
	slices.Sort(values)
	n := len(values)
	if n%2 == 1 {
		return values[n/2]
	}
	return (values[n/2-1] + values[n/2]) / 2
}
