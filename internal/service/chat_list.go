package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"cadet-chat-service/internal/domain"
	"cadet-chat-service/internal/dto"
	"cadet-chat-service/internal/identity"
	"cadet-chat-service/internal/model"
	"cadet-chat-service/internal/response"
)

const (
	itemTypeRoom    = "room"
	itemTypeContact = "contact"

	defaultDirectRoomName = "Direct Chat"
)

// GetChatList builds the sidebar: the user's rooms merged with same-scope
// contacts they may message but have no direct room with yet.
func (s *roomServiceImpl) GetChatList(ctx context.Context, userID int64, filter domain.ListFilter) ([]dto.ChatListEntry, error) {
	self, err := s.resolver.Resolve(ctx, userID)
	if err != nil {
		return nil, err
	}

	rooms, err := s.roomRepo.ListUserRooms(ctx, userID)
	if err != nil {
		return nil, response.NewInternalError("list user rooms", err)
	}

	roomIDs := make([]int64, 0, len(rooms))
	lastMessageIDs := make([]int64, 0, len(rooms))
	for _, room := range rooms {
		roomIDs = append(roomIDs, room.RoomID)
		if room.LastMessageID != nil {
			lastMessageIDs = append(lastMessageIDs, *room.LastMessageID)
		}
	}

	participants, err := s.roomRepo.ListParticipants(ctx, roomIDs)
	if err != nil {
		return nil, response.NewInternalError("list participants", err)
	}
	byRoom := make(map[int64][]model.ChatParticipant, len(rooms))
	userIDs := []int64{userID}
	for _, p := range participants {
		byRoom[p.RoomID] = append(byRoom[p.RoomID], p)
		userIDs = append(userIDs, p.UserID)
	}

	unread, err := s.roomRepo.UnreadCounts(ctx, userID, roomIDs)
	if err != nil {
		return nil, response.NewInternalError("count unread", err)
	}

	lastMessages, err := s.messageRepo.FindMessages(ctx, lastMessageIDs)
	if err != nil {
		return nil, response.NewInternalError("load last messages", err)
	}
	lastByID := make(map[int64]model.Message, len(lastMessages))
	for _, m := range lastMessages {
		lastByID[m.MessageID] = m
	}

	contacts, err := s.resolver.Contacts(ctx, self)
	if err != nil {
		return nil, err
	}
	for _, c := range contacts {
		userIDs = append(userIDs, c.UserID)
	}

	names, err := s.resolver.DisplayNames(ctx, userIDs)
	if err != nil {
		return nil, err
	}
	online := s.presence.OnlineUsers(ctx, userIDs)

	entries := make([]dto.ChatListEntry, 0, len(rooms)+len(contacts))
	directPeers := make(map[int64]bool)

	for i := range rooms {
		room := &rooms[i]
		entry := dto.ChatListEntry{
			EntryID:       fmt.Sprintf("room:%d", room.RoomID),
			ItemType:      itemTypeRoom,
			RoomID:        &room.RoomID,
			RoomType:      string(room.RoomType),
			UnreadCount:   unread[room.RoomID],
			LastMessageAt: room.LastMessageAt,
			Participants:  make([]dto.ChatListParticipant, 0, len(byRoom[room.RoomID])),
		}

		for _, p := range byRoom[room.RoomID] {
			entry.Participants = append(entry.Participants, dto.ChatListParticipant{
				UserID: p.UserID,
				Role:   string(p.ParticipantRole),
				Name:   nameOrDefault(names, p.UserID),
				Online: online[p.UserID],
			})
			if p.UserID != userID && online[p.UserID] {
				entry.Online = true
			}
		}

		if room.RoomType == domain.RoomTypeDirect {
			entry.RoomName = defaultDirectRoomName
			entry.RoleCategory = domain.CategoryAll
			if peer := directPeer(byRoom[room.RoomID], userID); peer != nil {
				peerID := peer.UserID
				peerRole := string(peer.ParticipantRole)
				entry.PeerUserID = &peerID
				entry.PeerRole = &peerRole
				entry.RoleCategory = peer.ParticipantRole.Category()
				if name, ok := names[peerID]; ok {
					entry.RoomName = name
				}
				directPeers[peerID] = true
			}
		} else {
			entry.RoomName = room.DisplayRoomName(s.chatConfig.DefaultGroupName)
			entry.RoleCategory = domain.CategoryGroups
		}

		if room.LastMessageID != nil {
			if m, ok := lastByID[*room.LastMessageID]; ok {
				entry.LastMessage = toLastMessagePreview(&m)
			}
		}

		entries = append(entries, entry)
	}

	for _, c := range contacts {
		if directPeers[c.UserID] || !s.policy.Allowed(self.ChatRole, c.ChatRole) {
			continue
		}
		peerID := c.UserID
		peerRole := string(c.ChatRole)
		entries = append(entries, dto.ChatListEntry{
			EntryID:      fmt.Sprintf("contact:%d", c.UserID),
			ItemType:     itemTypeContact,
			RoomName:     c.DisplayName,
			RoomType:     string(domain.RoomTypeDirect),
			RoleCategory: c.ChatRole.Category(),
			PeerUserID:   &peerID,
			PeerRole:     &peerRole,
			Participants: []dto.ChatListParticipant{{
				UserID: c.UserID,
				Role:   peerRole,
				Name:   c.DisplayName,
				Online: online[c.UserID],
			}},
			Online:       online[c.UserID],
			CanStartChat: true,
		})
	}

	entries = filterEntries(entries, filter)
	sortEntries(entries)
	return entries, nil
}

// GetContacts lists every same-scope user with a mappable role and whether the
// caller may start a direct conversation with them.
func (s *roomServiceImpl) GetContacts(ctx context.Context, userID int64, filter domain.ListFilter) ([]dto.ContactResponse, error) {
	self, err := s.resolver.Resolve(ctx, userID)
	if err != nil {
		return nil, err
	}

	contacts, err := s.resolver.Contacts(ctx, self)
	if err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(contacts))
	for _, c := range contacts {
		ids = append(ids, c.UserID)
	}
	online := s.presence.OnlineUsers(ctx, ids)

	category := filter.Category()
	result := make([]dto.ContactResponse, 0, len(contacts))
	for _, c := range contacts {
		if !contactMatches(c, filter, category) {
			continue
		}
		result = append(result, dto.ContactResponse{
			UserID:       c.UserID,
			Name:         c.DisplayName,
			Role:         string(c.ChatRole),
			RoleCategory: c.ChatRole.Category(),
			Online:       online[c.UserID],
			CanStartChat: s.policy.Allowed(self.ChatRole, c.ChatRole),
		})
	}

	sort.SliceStable(result, func(i, j int) bool {
		a, b := strings.ToLower(result[i].Name), strings.ToLower(result[j].Name)
		if a != b {
			return a < b
		}
		return result[i].UserID < result[j].UserID
	})
	return result, nil
}

func contactMatches(c identity.Contact, filter domain.ListFilter, category string) bool {
	switch filter {
	case domain.FilterAll:
		return true
	case domain.FilterUnread, domain.FilterGroups:
		return false
	}
	return c.ChatRole.Category() == category
}

func directPeer(participants []model.ChatParticipant, userID int64) *model.ChatParticipant {
	for i := range participants {
		if participants[i].UserID != userID {
			return &participants[i]
		}
	}
	return nil
}

func nameOrDefault(names map[int64]string, userID int64) string {
	if name, ok := names[userID]; ok {
		return name
	}
	return domain.DisplayName(userID, "", "", "")
}

func filterEntries(entries []dto.ChatListEntry, filter domain.ListFilter) []dto.ChatListEntry {
	if filter == domain.FilterAll {
		return entries
	}

	category := filter.Category()
	filtered := entries[:0]
	for _, e := range entries {
		var keep bool
		switch filter {
		case domain.FilterUnread:
			keep = e.UnreadCount > 0
		case domain.FilterGroups:
			keep = e.RoomType == string(domain.RoomTypeGroup)
		default:
			keep = e.RoleCategory == category
		}
		if keep {
			filtered = append(filtered, e)
		}
	}
	return filtered
}

// sortEntries orders by most recent activity with inactive entries last,
// then by name, then by entry id.
func sortEntries(entries []dto.ChatListEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		switch {
		case a.LastMessageAt != nil && b.LastMessageAt == nil:
			return true
		case a.LastMessageAt == nil && b.LastMessageAt != nil:
			return false
		case a.LastMessageAt != nil && b.LastMessageAt != nil && !a.LastMessageAt.Equal(*b.LastMessageAt):
			return a.LastMessageAt.After(*b.LastMessageAt)
		}

		nameA, nameB := strings.ToLower(a.RoomName), strings.ToLower(b.RoomName)
		if nameA != nameB {
			return nameA < nameB
		}
		return a.EntryID < b.EntryID
	})
}
