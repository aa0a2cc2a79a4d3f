package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/reelparty/server/internal/repository/room"
)

func (r repo) getChatKey(roomId string) string {
	return "room:" + roomId + ":chat"
}

func (r repo) getChatSeqKey(roomId string) string {
	return "room:" + roomId + ":chat:seq"
}

// AddChatMessage assigns the next sequence number for the room and appends
// the message to the capped history list. INCR makes the sequence assignment
// atomic under concurrent submission.
func (r repo) AddChatMessage(ctx context.Context, params *room.AddChatMessageParams) (room.ChatMessage, error) {
	seq, err := r.rc.Incr(ctx, r.getChatSeqKey(params.RoomId)).Result()
	if err != nil {
		return room.ChatMessage{}, fmt.Errorf("failed to increment chat seq: %w", err)
	}

	msg := room.ChatMessage{
		Seq:         seq,
		AuthorId:    params.AuthorId,
		AuthorName:  params.AuthorName,
		AuthorColor: params.AuthorColor,
		Text:        params.Text,
		Timestamp:   params.Timestamp,
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return room.ChatMessage{}, fmt.Errorf("failed to marshal chat message: %w", err)
	}

	chatKey := r.getChatKey(params.RoomId)
	pipe := r.rc.TxPipeline()
	pipe.RPush(ctx, chatKey, data)
	pipe.LTrim(ctx, chatKey, int64(-params.HistoryLimit), -1)
	pipe.Expire(ctx, chatKey, r.expireDuration)

	if err := r.executePipe(ctx, pipe); err != nil {
		return room.ChatMessage{}, fmt.Errorf("failed to append chat message: %w", err)
	}

	return msg, nil
}

// GetChatTail returns up to n most recent messages in sequence order.
func (r repo) GetChatTail(ctx context.Context, roomId string, n int) ([]room.ChatMessage, error) {
	entries, err := r.rc.LRange(ctx, r.getChatKey(roomId), int64(-n), -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get chat tail: %w", err)
	}

	messages := make([]room.ChatMessage, 0, len(entries))
	for _, entry := range entries {
		var msg room.ChatMessage
		if err := json.Unmarshal([]byte(entry), &msg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal chat message: %w", err)
		}

		messages = append(messages, msg)
	}

	return messages, nil
}
