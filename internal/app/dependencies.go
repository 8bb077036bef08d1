package app

import (
	"context"
	"fmt"
	"time"

	"github.com/agendazk/agendazk/internal/config"
	"github.com/agendazk/agendazk/internal/event_bus"
	"github.com/agendazk/agendazk/internal/utils"
	"github.com/agendazk/agendazk/pkg/calendar"
	"github.com/agendazk/agendazk/pkg/calendar_export"
	"github.com/agendazk/agendazk/pkg/google"
	"github.com/agendazk/agendazk/pkg/notification"
	"github.com/agendazk/agendazk/pkg/user"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Dependencies holds all services and handlers for the application.
type Dependencies struct {
	Clock    utils.Clock
	EventBus *event_bus.EventBus
	Location *time.Location

	UserService user.Service
	UserHandler *user.Handler

	Watcher         *calendar.Watcher
	Feeds           *calendar.Registry
	CalendarService *calendar.ServiceImpl
	CalendarHandler *calendar.Handler
	ExportHandler   *calendar_export.Handler

	Redis               *redis.Client
	NotificationMetrics *notification.Metrics
	NotificationHub     *notification.Hub
	NotificationHandler *notification.Handler

	GoogleMirror  *google.Mirror
	GoogleHandler *google.Handler
}

// BuildDependencies initializes and wires all application services and handlers.
func BuildDependencies(ctx context.Context, db *pgxpool.Pool, cfg config.Application) (*Dependencies, error) {
	loc, err := time.LoadLocation(cfg.Notifications.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid notifications timezone %q: %w", cfg.Notifications.Timezone, err)
	}

	var sender notification.Sender = notification.LogSender{}
	var inbox notification.InboxReader
	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		redisSender := notification.NewRedisSender(redisClient, cfg.Redis.ChannelPrefix)
		sender = redisSender
		inbox = redisSender
		log.Infof("Notifications are published to redis at %s", cfg.Redis.Addr)
	} else {
		log.Info("Redis is not configured, notifications are only logged")
	}

	calendarRepository := calendar.NewRepository(db)
	watcher := calendar.NewWatcher(db, calendarRepository)

	deps := wireDependencies(wiring{
		clock:              &utils.SystemClock{},
		location:           loc,
		userRepo:           user.NewUserRepo(db),
		calendarRepository: calendarRepository,
		source:             watcher,
		sender:             sender,
		inbox:              inbox,
		limiter:            rate.NewLimiter(rate.Limit(cfg.Notifications.Rate), cfg.Notifications.Burst),
		registerer:         prometheus.DefaultRegisterer,
	})
	deps.Watcher = watcher
	deps.Redis = redisClient

	if cfg.Google.Enabled {
		service, err := google.NewCalendarService(ctx, cfg.Google.CredentialsFile)
		if err != nil {
			return nil, err
		}
		deps.GoogleMirror = google.NewMirror(service, cfg.Google.CalendarId, loc, deps.Clock)
		deps.GoogleHandler = google.NewHandler(deps.GoogleMirror)
		log.Infof("Public events are mirrored to Google calendar %s", cfg.Google.CalendarId)
	}

	return deps, nil
}

// wiring holds the infrastructure the services are built on.
type wiring struct {
	clock              utils.Clock
	location           *time.Location
	userRepo           user.Repo
	calendarRepository calendar.Repository
	source             calendar.LiveSource
	sender             notification.Sender
	inbox              notification.InboxReader
	limiter            *rate.Limiter
	registerer         prometheus.Registerer
}

func wireDependencies(w wiring) *Dependencies {
	deps := &Dependencies{
		Clock:    w.clock,
		Location: w.location,
		EventBus: event_bus.NewEventBus(),
	}

	deps.UserService = user.NewUserService(w.userRepo, deps.EventBus)
	deps.UserHandler = user.NewHandler(deps.UserService)

	deps.Feeds = calendar.NewRegistry(w.source)
	deps.CalendarService = calendar.NewService(w.calendarRepository)
	deps.CalendarHandler = calendar.NewHandler(deps.CalendarService, deps.Feeds)
	deps.ExportHandler = calendar_export.NewHandler(deps.Feeds, w.location)

	deps.NotificationMetrics = notification.NewMetrics(w.registerer)
	deps.NotificationHub = notification.NewHub(func(uid string) notification.Platform {
		return notification.NewTimerPlatform(uid, w.sender, w.limiter, deps.NotificationMetrics)
	}, w.clock, w.location, deps.NotificationMetrics)
	deps.Feeds.OnFeedStarted(deps.NotificationHub.Attach)
	deps.NotificationHandler = notification.NewHandler(deps.NotificationHub, deps.Feeds, w.location, w.inbox, w.clock)

	// A new device gets its feed, and with it its notification schedule, right away.
	event_bus.SubscribeTyped[event_bus.UserCreated](deps.EventBus, event_bus.UserCreatedType, func(e event_bus.EventT[event_bus.UserCreated]) error {
		_, err := deps.Feeds.FeedFor(e.Context(), e.Data.Uid)
		return err
	})

	return deps
}

// StartFeeds opens the live feed, and with it the notification schedule, of every known user.
func (d *Dependencies) StartFeeds(ctx context.Context) error {
	users, err := d.UserService.GetAllUsers(ctx)
	if err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}
	for _, u := range users {
		if _, err := d.Feeds.FeedFor(ctx, u.Uid); err != nil {
			return err
		}
	}
	log.Infof("Started %d calendar feeds", len(users))
	return nil
}
