package job

import (
	"context"
	"database/sql"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"cadet-chat-service/internal/metrics"
)

const statsTimeout = 10 * time.Second

// RoomCounter counts rooms that are neither deleted nor archived.
type RoomCounter interface {
	CountActiveRooms(ctx context.Context) (int64, error)
}

// OnlineCounter counts users holding at least one socket.
type OnlineCounter interface {
	CountOnline(ctx context.Context) (int64, error)
}

// DBStatser exposes connection pool statistics.
type DBStatser interface {
	Stats() sql.DBStats
}

// StatsJob refreshes the gauges that cannot be maintained incrementally
type StatsJob struct {
	rooms   RoomCounter
	online  OnlineCounter
	db      DBStatser
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewStatsJob creates a new StatsJob instance. db may be nil.
func NewStatsJob(
	rooms RoomCounter,
	online OnlineCounter,
	db DBStatser,
	m *metrics.Metrics,
	logger *zap.Logger,
) *StatsJob {
	return &StatsJob{
		rooms:   rooms,
		online:  online,
		db:      db,
		metrics: m,
		logger:  logger,
	}
}

// Run executes one refresh. It implements cron.Job.
func (j *StatsJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), statsTimeout)
	defer cancel()

	activeRooms, err := j.rooms.CountActiveRooms(ctx)
	if err != nil {
		j.logger.Error("Failed to count active rooms", zap.Error(err))
	} else {
		j.metrics.SetRoomsActive(activeRooms)
	}

	online, err := j.online.CountOnline(ctx)
	if err != nil {
		j.logger.Error("Failed to count online users", zap.Error(err))
	} else {
		j.metrics.SetUsersOnline(online)
	}

	if j.db != nil {
		j.metrics.UpdateDBStats(j.db.Stats())
	}

	j.logger.Debug("Stats job completed",
		zap.Int64("rooms_active", activeRooms),
		zap.Int64("users_online", online))
}

// Schedule registers the job on a new cron scheduler and starts it. The
// caller stops the returned scheduler on shutdown.
func Schedule(spec string, j cron.Job, logger *zap.Logger) (*cron.Cron, error) {
	scheduler := cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger)))
	if _, err := scheduler.AddJob(spec, j); err != nil {
		return nil, err
	}
	scheduler.Start()

	logger.Info("Scheduled job", zap.String("spec", spec))
	return scheduler, nil
}
