package service

import (
	"encoding/json"

	"cadet-chat-service/internal/dto"
	"cadet-chat-service/internal/model"
)

func toRoomResponse(room *model.ChatRoom) dto.RoomResponse {
	return dto.RoomResponse{
		RoomID:          room.RoomID,
		RoomName:        room.RoomName,
		RoomType:        string(room.RoomType),
		DirectKey:       room.DirectKey,
		CreatedByUserID: room.CreatedByUserID,
		CreatedByRole:   string(room.CreatedByRole),
		LastMessageID:   room.LastMessageID,
		LastMessageAt:   room.LastMessageAt,
		IsArchived:      room.IsArchived,
		CreatedAt:       room.CreatedAt,
	}
}

func toParticipantResponses(participants []model.ChatParticipant) []dto.ParticipantResponse {
	result := make([]dto.ParticipantResponse, 0, len(participants))
	for _, p := range participants {
		result = append(result, dto.ParticipantResponse{
			UserID:            p.UserID,
			ParticipantRole:   string(p.ParticipantRole),
			IsAdmin:           p.IsAdmin,
			JoinedAt:          p.JoinedAt,
			LastReadAt:        p.LastReadAt,
			LastReadMessageID: p.LastReadMessageID,
		})
	}
	return result
}

func toMessageResponse(m *model.Message, senderName string) dto.MessageResponse {
	resp := dto.MessageResponse{
		MessageID:    m.MessageID,
		RoomID:       m.RoomID,
		SenderUserID: m.SenderUserID,
		SenderName:   senderName,
		MessageType:  string(m.MessageType),
		Body:         m.Body,
		IsEdited:     m.IsEdited,
		EditedAt:     m.EditedAt,
		CreatedAt:    m.CreatedAt,
	}
	if m.SenderRole != nil {
		role := string(*m.SenderRole)
		resp.SenderRole = &role
	}
	if len(m.Metadata) > 0 {
		resp.Metadata = json.RawMessage(m.Metadata)
	}
	return resp
}

func toLastMessagePreview(m *model.Message) *dto.LastMessagePreview {
	preview := &dto.LastMessagePreview{
		MessageID:    m.MessageID,
		Body:         m.Body,
		MessageType:  string(m.MessageType),
		SenderUserID: m.SenderUserID,
		CreatedAt:    m.CreatedAt,
	}
	if m.SenderRole != nil {
		role := string(*m.SenderRole)
		preview.SenderRole = &role
	}
	return preview
}
