package service

import (
	"context"
	"strconv"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	promdto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"cadet-chat-service/internal/config"
	"cadet-chat-service/internal/database"
	"cadet-chat-service/internal/domain"
	"cadet-chat-service/internal/dto"
	"cadet-chat-service/internal/identity"
	"cadet-chat-service/internal/metrics"
	"cadet-chat-service/internal/model"
	"cadet-chat-service/internal/presence"
	"cadet-chat-service/internal/repository"
	"cadet-chat-service/internal/response"
)

// Seeded users. College 1 unless noted.
const (
	cadetAsha   int64 = 1 // cadet
	anoKapoor   int64 = 2 // ano
	suoRavi     int64 = 3 // cadet holding the SUO rank
	alumniMehta int64 = 4 // alumni
	cadetFar    int64 = 5 // cadet, college 2
	adminRoot   int64 = 6 // unsupported role
)

type testEnv struct {
	db       *gorm.DB
	rooms    RoomService
	messages MessageService
	tracker  presence.Tracker
	metrics  *metrics.Metrics
}

func newTestEnv(t *testing.T, pairs []string) *testEnv {
	t.Helper()

	db, err := database.Open(database.Options{Driver: "sqlite", DSN: ":memory:", MigrateDirectory: true})
	require.NoError(t, err)
	seedDirectory(t, db)

	policy, err := domain.NewPairPolicy(pairs)
	require.NoError(t, err)

	chatConfig := config.Default().Chat
	resolver := identity.NewResolver(identity.NewDBDirectory(db))
	roomRepo := repository.NewRoomRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	tracker := presence.NewMemoryTracker()
	m := metrics.NewWithRegistry(prometheus.NewRegistry(), zap.NewNop())
	logger := zap.NewNop()

	return &testEnv{
		db:       db,
		rooms:    NewRoomService(roomRepo, messageRepo, resolver, policy, tracker, chatConfig, m, logger),
		messages: NewMessageService(roomRepo, messageRepo, resolver, chatConfig, m, logger),
		tracker:  tracker,
		metrics:  m,
	}
}

func seedDirectory(t *testing.T, db *gorm.DB) {
	t.Helper()
	collegeA, collegeB := int64(1), int64(2)

	suoRank := model.CadetRank{RankName: "Senior Under Officer"}
	require.NoError(t, db.Create(&suoRank).Error)

	require.NoError(t, db.Create(&[]model.User{
		{UserID: cadetAsha, Username: "asha", Role: "CADET", CollegeID: &collegeA},
		{UserID: anoKapoor, Username: "Major Kapoor", Role: "ANO", CollegeID: &collegeA},
		{UserID: suoRavi, Username: "ravi", Role: "CADET", CollegeID: &collegeA},
		{UserID: alumniMehta, Username: "Vikram Mehta", Role: "ALUMNI", CollegeID: &collegeA},
		{UserID: cadetFar, Username: "far", Role: "CADET", CollegeID: &collegeB},
		{UserID: adminRoot, Username: "root", Role: "ADMIN", CollegeID: &collegeA},
	}).Error)
	require.NoError(t, db.Create(&[]model.CadetProfile{
		{UserID: cadetAsha, FullName: "Asha Rao"},
		{UserID: suoRavi, FullName: "Ravi Kumar", RankID: &suoRank.ID},
		{UserID: cadetFar, FullName: "Far Away"},
	}).Error)
}

func (e *testEnv) createDirect(t *testing.T, creator int64, role domain.ChatRole, peer int64) *dto.CreateRoomResponse {
	t.Helper()
	resp, err := e.rooms.CreateRoom(context.Background(), creator, role, &dto.CreateRoomRequest{
		RoomType:           "direct",
		ParticipantUserIDs: []int64{peer},
	})
	require.NoError(t, err)
	return resp
}

func (e *testEnv) send(t *testing.T, roomID, sender int64, role domain.ChatRole, body string) *dto.MessageResponse {
	t.Helper()
	msg, err := e.messages.SendMessage(context.Background(), sender, role, &dto.SendMessageRequest{
		RoomID: roomID,
		Body:   body,
	})
	require.NoError(t, err)
	return msg
}

func requireAppError(t *testing.T, err error, code, message string) {
	t.Helper()
	require.Error(t, err)
	appErr := response.AsAppError(err)
	assert.Equal(t, code, appErr.Code)
	if message != "" {
		assert.Equal(t, message, appErr.Message)
	}
}

func countRows(t *testing.T, db *gorm.DB, value interface{}) int64 {
	t.Helper()
	var count int64
	require.NoError(t, db.Model(value).Count(&count).Error)
	return count
}

// user 1 (cadet) and user 2 (ano) open a room, exchange a message and read it
func TestEndToEndDirectConversation(t *testing.T) {
	env := newTestEnv(t, config.DefaultDirectAllowedPairs)
	ctx := context.Background()

	created := env.createDirect(t, cadetAsha, domain.ChatRoleCadet, anoKapoor)
	assert.False(t, created.Reused)
	assert.Len(t, created.Participants, 2)
	roomID := created.Room.RoomID

	msg := env.send(t, roomID, cadetAsha, domain.ChatRoleCadet, "Hello")
	assert.Equal(t, "Asha Rao", msg.SenderName)
	assert.Equal(t, "cadet", *msg.SenderRole)

	var room model.ChatRoom
	require.NoError(t, env.db.First(&room, "room_id = ?", roomID).Error)
	assert.Equal(t, msg.MessageID, *room.LastMessageID)

	page, err := env.messages.GetRoomMessages(ctx, roomID, anoKapoor, 10, nil)
	require.NoError(t, err)
	require.Len(t, page.Messages, 1)
	assert.False(t, page.Pagination.HasMore)
	assert.Nil(t, page.Pagination.NextBeforeMessageID)

	read, err := env.messages.MarkRoomAsRead(ctx, roomID, anoKapoor, &msg.MessageID)
	require.NoError(t, err)
	assert.Equal(t, 1, read.MarkedCount)
	assert.Equal(t, msg.MessageID, *read.LastReadMessageID)

	list, err := env.rooms.GetChatList(ctx, cadetAsha, domain.FilterAll)
	require.NoError(t, err)
	entry := findEntry(t, list, "room:", roomID)
	assert.Zero(t, entry.UnreadCount)
	assert.Equal(t, "Major Kapoor", entry.RoomName)
	assert.Equal(t, domain.CategoryANO, entry.RoleCategory)
	require.NotNil(t, entry.LastMessage)
	assert.Equal(t, "Hello", entry.LastMessage.Body)
}

func findEntry(t *testing.T, entries []dto.ChatListEntry, prefix string, id int64) dto.ChatListEntry {
	t.Helper()
	want := prefix + itoa(id)
	for _, e := range entries {
		if e.EntryID == want {
			return e
		}
	}
	t.Fatalf("entry %s not found", want)
	return dto.ChatListEntry{}
}

func entryIDs(entries []dto.ChatListEntry) []string {
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.EntryID)
	}
	return ids
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}

func getCounter(t *testing.T, counter prometheus.Counter) float64 {
	t.Helper()
	metric := &promdto.Metric{}
	require.NoError(t, counter.Write(metric))
	return metric.Counter.GetValue()
}
