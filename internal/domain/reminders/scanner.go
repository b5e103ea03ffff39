package reminders

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"myrhythm/internal/domain/schedule"
	"myrhythm/internal/platform/logger"
	"myrhythm/internal/ports/notify"

	"github.com/go-co-op/gocron/v2"
)

// DueSource lo implementa *doses.Service.
type DueSource interface {
	ListDue(ctx context.Context, from, to time.Time) ([]schedule.DoseEvent, error)
	MarkAlarmSent(ctx context.Context, ids []string, at time.Time) error
}

type Options struct {
	// Lookback es cuánto mira hacia atrás la primera corrida.
	Lookback time.Duration
	// MaxCatchUp limita la ventana después de una caída larga.
	MaxCatchUp time.Duration
	Timeout    time.Duration
}

// Scanner busca tomas con alarma vencida en (lastRun, now] y las avisa.
type Scanner struct {
	src      DueSource
	notifier notify.Notifier
	log      logger.Logger
	opts     Options

	mu      sync.Mutex
	lastRun time.Time
}

func NewScanner(src DueSource, notifier notify.Notifier, log logger.Logger, opts Options) *Scanner {
	if opts.Lookback <= 0 {
		opts.Lookback = 2 * time.Minute
	}
	if opts.MaxCatchUp <= 0 {
		opts.MaxCatchUp = time.Hour
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Scanner{
		src:      src,
		notifier: notifier,
		log:      log.With(map[string]any{"component": "reminders"}),
		opts:     opts,
	}
}

// Start registra el scan en un scheduler gocron con la expresión cron dada
// (5 campos) y lo arranca. El llamador hace Shutdown.
func (s *Scanner) Start(cronExpr string) (gocron.Scheduler, error) {
	sch, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("new scheduler: %w", err)
	}

	_, err = sch.NewJob(
		gocron.CronJob(cronExpr, false),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), s.opts.Timeout)
			defer cancel()
			if _, err := s.RunOnce(ctx, time.Now()); err != nil {
				s.log.Warn("reminder scan failed", map[string]any{"err": err})
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = sch.Shutdown()
		return nil, fmt.Errorf("reminder job: %w", err)
	}

	sch.Start()
	return sch, nil
}

// RunOnce hace una pasada y devuelve cuántas alarmas se entregaron.
// Las que fallan quedan sin marcar y la ventana siguiente las vuelve a incluir.
func (s *Scanner) RunOnce(ctx context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	from := s.lastRun
	if from.IsZero() {
		from = now.Add(-s.opts.Lookback)
	}
	if floor := now.Add(-s.opts.MaxCatchUp); from.Before(floor) {
		from = floor
	}
	if !now.After(from) {
		return 0, nil
	}

	due, err := s.src.ListDue(ctx, from, now)
	if err != nil {
		return 0, fmt.Errorf("list due: %w", err)
	}

	next := now
	sent := 0
	for _, g := range groupAlarms(due) {
		if err := s.notifier.Notify(ctx, g.alarm); err != nil {
			s.log.Warn("alarm not delivered", map[string]any{
				"user": g.alarm.UserID,
				"at":   g.at,
				"err":  err,
			})
			if retry := g.at.Add(-time.Nanosecond); retry.Before(next) {
				next = retry
			}
			continue
		}
		if err := s.src.MarkAlarmSent(ctx, g.alarm.EventIDs, now); err != nil {
			s.log.Error("mark alarm sent", map[string]any{"err": err})
		}
		sent++
	}

	s.lastRun = next
	if sent > 0 {
		s.log.Info("alarms sent", map[string]any{"count": sent})
	}
	return sent, nil
}

type alarmGroup struct {
	at    time.Time
	alarm notify.Alarm
}

// groupAlarms junta las tomas por usuario y momento de aviso, como el bucket
// del calendario: un aviso por hora con todos los medicamentos.
func groupAlarms(events []schedule.DoseEvent) []alarmGroup {
	type key struct {
		user string
		at   int64
	}
	idx := map[key]int{}
	var out []alarmGroup

	for _, e := range events {
		at := e.AlarmAt()
		k := key{user: e.UserID, at: at.UnixMilli()}
		i, ok := idx[k]
		if !ok {
			i = len(out)
			idx[k] = i
			out = append(out, alarmGroup{
				at: at,
				alarm: notify.Alarm{
					UserID:       e.UserID,
					ScheduledAt:  e.ScheduledAt,
					Label:        e.Label,
					MealRelation: string(e.MealRelation),
					Memo:         e.Memo,
					Snoozed:      at.After(e.ScheduledAt),
				},
			})
		}
		out[i].alarm.EventIDs = append(out[i].alarm.EventIDs, e.ID)
		out[i].alarm.Medicines = append(out[i].alarm.Medicines, e.MedicineName)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].at.Before(out[j].at) })
	return out
}
