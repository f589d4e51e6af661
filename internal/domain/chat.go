package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// ChatRole is the chat-domain role of a user.
type ChatRole string

const (
	ChatRoleCadet  ChatRole = "cadet"
	ChatRoleSUO    ChatRole = "suo"
	ChatRoleANO    ChatRole = "ano"
	ChatRoleAlumni ChatRole = "alumni"
)

// SeniorUnderOfficerRank is the cadet rank that promotes a cadet to the suo chat role.
const SeniorUnderOfficerRank = "senior under officer"

func (r ChatRole) IsValid() bool {
	switch r {
	case ChatRoleCadet, ChatRoleSUO, ChatRoleANO, ChatRoleAlumni:
		return true
	}
	return false
}

// Category is the sidebar grouping label for a role.
func (r ChatRole) Category() string {
	switch r {
	case ChatRoleCadet:
		return CategoryCadets
	case ChatRoleSUO:
		return CategorySUO
	case ChatRoleANO:
		return CategoryANO
	case ChatRoleAlumni:
		return CategoryAlumni
	}
	return CategoryAll
}

// RoomType defines the kind of room
type RoomType string

const (
	RoomTypeDirect RoomType = "direct"
	RoomTypeGroup  RoomType = "group"
)

func (t RoomType) IsValid() bool {
	return t == RoomTypeDirect || t == RoomTypeGroup
}

// MessageType defines the kind of message
type MessageType string

const (
	MessageTypeText   MessageType = "text"
	MessageTypeImage  MessageType = "image"
	MessageTypeFile   MessageType = "file"
	MessageTypeSystem MessageType = "system"
)

func (t MessageType) IsValid() bool {
	switch t {
	case MessageTypeText, MessageTypeImage, MessageTypeFile, MessageTypeSystem:
		return true
	}
	return false
}

// ResolveChatRole maps an application role and cadet rank to a chat role.
// The second return value is false when the role cannot be mapped.
func ResolveChatRole(appRole, rankName string) (ChatRole, bool) {
	switch strings.ToUpper(strings.TrimSpace(appRole)) {
	case "ANO":
		return ChatRoleANO, true
	case "ALUMNI":
		return ChatRoleAlumni, true
	case "CADET":
		if isSUORank(rankName) {
			return ChatRoleSUO, true
		}
		return ChatRoleCadet, true
	}
	return "", false
}

// NormalizeRole parses a role claim from a token or identity header.
// It accepts the chat roles themselves and upgrades a cadet holding the SUO rank.
func NormalizeRole(rawRole, rankName string) (ChatRole, bool) {
	value := strings.ToLower(strings.TrimSpace(rawRole))
	if value == "" {
		return "", false
	}

	role := ChatRole(value)
	if role.IsValid() {
		if role == ChatRoleCadet && isSUORank(rankName) {
			return ChatRoleSUO, true
		}
		return role, true
	}

	if value == SeniorUnderOfficerRank {
		return ChatRoleSUO, true
	}
	return "", false
}

func isSUORank(rankName string) bool {
	return strings.ToLower(strings.TrimSpace(rankName)) == SeniorUnderOfficerRank
}

// DirectKey builds the order-independent key of a direct room between two users.
func DirectKey(userA, userB int64) string {
	if userA > userB {
		userA, userB = userB, userA
	}
	return strconv.FormatInt(userA, 10) + "_" + strconv.FormatInt(userB, 10)
}

// DisplayName picks the first non-empty of full name, username and email.
func DisplayName(userID int64, fullName, username, email string) string {
	for _, candidate := range []string{fullName, username, email} {
		if v := strings.TrimSpace(candidate); v != "" {
			return v
		}
	}
	return fmt.Sprintf("User %d", userID)
}
