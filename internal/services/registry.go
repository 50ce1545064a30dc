package services

import (
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/questboard/internal/activity"
	"github.com/fyrsmithlabs/questboard/internal/channel"
	"github.com/fyrsmithlabs/questboard/internal/completion"
	"github.com/fyrsmithlabs/questboard/internal/events"
	"github.com/fyrsmithlabs/questboard/internal/notify"
	"github.com/fyrsmithlabs/questboard/internal/project"
	"github.com/fyrsmithlabs/questboard/internal/store"
	"github.com/fyrsmithlabs/questboard/internal/users"
	"github.com/fyrsmithlabs/questboard/internal/xp"
)

// Registry provides access to all questboard services.
// Use accessor methods to retrieve individual services.
type Registry interface {
	Users() *users.Service
	Projects() project.Manager
	Completion() *completion.Orchestrator
	Ledger() *xp.Ledger
	Activity() *activity.Log
	Notifications() *notify.Dispatcher
	Store() *store.Store
}

// Options configures the registry with service instances.
type Options struct {
	Users         *users.Service
	Projects      project.Manager
	Completion    *completion.Orchestrator
	Ledger        *xp.Ledger
	Activity      *activity.Log
	Notifications *notify.Dispatcher
	Store         *store.Store
}

// registry is the concrete implementation of Registry.
type registry struct {
	users         *users.Service
	projects      project.Manager
	completion    *completion.Orchestrator
	ledger        *xp.Ledger
	activity      *activity.Log
	notifications *notify.Dispatcher
	store         *store.Store
}

// NewRegistry creates a new service registry.
func NewRegistry(opts Options) Registry {
	return &registry{
		users:         opts.Users,
		projects:      opts.Projects,
		completion:    opts.Completion,
		ledger:        opts.Ledger,
		activity:      opts.Activity,
		notifications: opts.Notifications,
		store:         opts.Store,
	}
}

func (r *registry) Users() *users.Service                { return r.users }
func (r *registry) Projects() project.Manager            { return r.projects }
func (r *registry) Completion() *completion.Orchestrator { return r.completion }
func (r *registry) Ledger() *xp.Ledger                   { return r.ledger }
func (r *registry) Activity() *activity.Log              { return r.activity }
func (r *registry) Notifications() *notify.Dispatcher    { return r.notifications }
func (r *registry) Store() *store.Store                  { return r.store }

// WireOptions holds the shared infrastructure every service is built on.
type WireOptions struct {
	Store     *store.Store
	Publisher events.Publisher
	Channel   channel.Adapter
	Logger    *zap.Logger

	Completion     completion.Config
	ChannelTimeout time.Duration
}

// Wire builds every service over one store and returns the registry.
func Wire(opts WireOptions) Registry {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Channel == nil {
		opts.Channel = channel.Noop{}
	}

	activityLog := activity.NewLog(opts.Store, opts.Publisher, logger.Named("activity"))
	dispatcher := notify.NewDispatcher(opts.Store, opts.Publisher, logger.Named("notify"))
	ledger := xp.NewLedger(opts.Store, activityLog, logger.Named("xp"))

	return NewRegistry(Options{
		Users: users.NewService(opts.Store, logger.Named("users")),
		Projects: project.NewManager(project.Options{
			Store:          opts.Store,
			Activity:       activityLog,
			Notifier:       dispatcher,
			Channel:        opts.Channel,
			Logger:         logger.Named("project"),
			ChannelTimeout: opts.ChannelTimeout,
		}),
		Completion: completion.New(completion.Options{
			Store:    opts.Store,
			Ledger:   ledger,
			Activity: activityLog,
			Notifier: dispatcher,
			Channel:  opts.Channel,
			Logger:   logger.Named("completion"),
			Config:   opts.Completion,
		}),
		Ledger:        ledger,
		Activity:      activityLog,
		Notifications: dispatcher,
		Store:         opts.Store,
	})
}
