package scheduler

import (
	"context"
	"fmt"

	"estatebot_backend/internal/booking/repository"
	"estatebot_backend/internal/whatsapp"
	"estatebot_backend/platform/config"
	"estatebot_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	repo   *repository.Repository
	wa     *whatsapp.Client
	log    *logger.Logger
}

func NewWorker(cfg config.RedisConfig, pool *pgxpool.Pool, wa *whatsapp.Client, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL)
	if err != nil {
		return nil, err
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: 10,
		Queues: map[string]int{
			defaultQueue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server: server,
		mux:    mux,
		repo:   repository.New(pool),
		wa:     wa,
		log:    log,
	}

	mux.HandleFunc(TaskAppointmentReminder, w.handleAppointmentReminder)

	return w, nil
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}

func (w *Worker) handleAppointmentReminder(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseAppointmentReminderPayload(task)
	if err != nil {
		return err
	}

	apptID, err := uuid.Parse(payload.AppointmentID)
	if err != nil {
		return err
	}

	appt, err := w.repo.GetByID(ctx, apptID)
	if err != nil {
		return err
	}

	// The appointment may have been cancelled or rebooked since the reminder
	// was queued.
	if !appt.IsActive() {
		return nil
	}

	lead, err := w.repo.GetLead(ctx, appt.LeadID)
	if err != nil {
		return err
	}
	if lead.Phone == "" {
		return nil
	}

	joinURL := ""
	if appt.VideoJoinURL != nil {
		joinURL = *appt.VideoJoinURL
	}

	message := whatsapp.Reminder(lead.Name, appt.StartTime, joinURL)
	if err := w.wa.SendMessage(ctx, lead.Phone, message); err != nil {
		w.log.Error("reminder send failed", "appointment_id", appt.ID.String(), "error", err.Error())
		return err
	}

	w.log.Info("reminder sent", "appointment_id", appt.ID.String())
	return nil
}
