package cmd

import (
	"log/slog"

	goredis "github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	httpin "orderflow/internal/adapters/in/http"
	"orderflow/internal/adapters/out/notify"
	"orderflow/internal/adapters/out/postgres"
	"orderflow/internal/adapters/out/postgres/orderrepo"
	"orderflow/internal/adapters/out/redis"
	"orderflow/internal/adapters/out/routing"
	"orderflow/internal/core/application/usecases/commands"
	"orderflow/internal/core/application/usecases/queries"
	"orderflow/internal/core/domain/services"
	"orderflow/internal/core/ports"
	"orderflow/internal/jobs"
)

// CompositionRoot wires adapters, domain services and use cases. One
// instance per process; every Create* call hands out a ready handler.
type CompositionRoot struct {
	gormDB     *gorm.DB
	uowFactory *postgres.GormUnitOfWorkFactory

	presence   ports.PresenceStore
	geocoder   ports.Geocoder
	compliance ports.Compliance
	notifier   ports.Notifier

	shadowMerge services.ShadowMerge
	viability   services.Viability
	dispatcher  services.Dispatcher
	planner     services.RoutePlanner
}

// NewCompositionRoot builds the object graph from open connections.
func NewCompositionRoot(
	cfg Config,
	gormDB *gorm.DB,
	redisClient *goredis.Client,
	logger *slog.Logger,
) *CompositionRoot {
	presence := redis.NewPresenceStore(redisClient, redis.Config{})

	routingCfg := routing.Config{
		GeocoderURL: cfg.GeocoderURL,
		RouterURL:   cfg.RouterURL,
		SolverURL:   cfg.SolverURL,
	}

	planner := services.NewRoutePlanner(
		routing.NewHTTPSolver(routingCfg),
		routing.NewHTTPRouter(routingCfg),
		services.PlannerConfig{
			VehicleCapacityKg: cfg.VehicleCapacityKg,
			BaseFare:          cfg.BaseFare,
			PricePerKm:        cfg.PricePerKm,
			PricePerMinute:    cfg.PricePerMinute,
			EstimateSpeedMps:  cfg.EstimateSpeedMps,
		})

	dispatcher := services.NewDispatcher(presence, services.DispatchConfig{
		SearchRadiusM:   cfg.SearchRadiusM,
		ChainingRadiusM: cfg.ChainingRadiusM,
		ChainingCeiling: cfg.ChainingCeiling,
		OfferTTL:        cfg.OfferTTL,
		OfferTTLHigh:    cfg.OfferTTLHigh,
		RejectionTTL:    cfg.RejectionTTL,
	})

	return &CompositionRoot{
		gormDB:      gormDB,
		uowFactory:  postgres.NewGormUnitOfWorkFactory(gormDB),
		presence:    presence,
		geocoder:    routing.NewHTTPGeocoder(routingCfg),
		compliance:  notify.NewHTTPCompliance(cfg.ComplianceURL, 0),
		notifier:    notify.NewSlogNotifier(logger),
		shadowMerge: services.NewShadowMerge(),
		viability:   services.NewViability(),
		dispatcher:  dispatcher,
		planner:     planner,
	}
}

// OrderRepository returns a repository bound to the shared connection,
// outside any transaction. Used by read paths and the dispatch job.
func (c *CompositionRoot) OrderRepository() ports.OrderRepository {
	return orderrepo.NewGormOrderRepository(c.gormDB)
}

// HTTPHandlers bundles every use case the HTTP server exposes.
func (c *CompositionRoot) HTTPHandlers(cfg Config) httpin.Handlers {
	return httpin.Handlers{
		CreateOrder:    commands.NewCreateOrderCommandHandler(c.uowFactory),
		SubmitOrder:    commands.NewSubmitOrderCommandHandler(c.uowFactory, c.viability, c.planner, c.notifier),
		CancelOrder:    commands.NewCancelOrderCommandHandler(c.uowFactory, c.presence, c.notifier),
		UpsertStep:     commands.NewUpsertStepCommandHandler(c.uowFactory, c.shadowMerge, c.notifier),
		UpsertStop:     commands.NewUpsertStopCommandHandler(c.uowFactory, c.shadowMerge, c.geocoder, c.notifier),
		UpsertAction:   commands.NewUpsertActionCommandHandler(c.uowFactory, c.shadowMerge, c.notifier),
		UpsertItem:     commands.NewUpsertItemCommandHandler(c.uowFactory, c.shadowMerge, c.notifier),
		RemoveNode:     commands.NewRemoveNodeCommandHandler(c.uowFactory, c.shadowMerge, c.notifier),
		PushChanges:    commands.NewPushChangesCommandHandler(c.uowFactory, c.shadowMerge, c.viability, c.planner, c.presence, c.notifier),
		RevertChanges:  commands.NewRevertChangesCommandHandler(c.uowFactory, c.shadowMerge, c.notifier),
		AcceptMission:  commands.NewAcceptMissionCommandHandler(c.uowFactory, c.presence, c.compliance, c.planner, c.notifier),
		RefuseMission:  commands.NewRefuseMissionCommandHandler(c.uowFactory, c.dispatcher),
		ArriveAtStop:   commands.NewArriveAtStopCommandHandler(c.uowFactory, c.notifier, cfg.ArrivalRadiusM),
		CompleteAction: commands.NewCompleteActionCommandHandler(c.uowFactory, c.presence, c.notifier),
		FreezeAction:   commands.NewFreezeActionCommandHandler(c.uowFactory, c.presence, c.notifier),
		CompleteOrder:  commands.NewCompleteOrderCommandHandler(c.uowFactory, c.presence, c.notifier),
		RecordTrace:    commands.NewRecordTraceCommandHandler(c.uowFactory),

		GetOrder:     queries.NewGetOrderQueryHandler(c.OrderRepository(), c.shadowMerge, c.planner),
		ListMissions: queries.NewListMissionsQueryHandler(c.gormDB),
	}
}

// CreateDispatchOrderCommandHandler builds the handler the dispatch job
// drives.
func (c *CompositionRoot) CreateDispatchOrderCommandHandler() commands.DispatchOrderCommandHandler {
	return commands.NewDispatchOrderCommandHandler(c.uowFactory, c.dispatcher, c.presence, c.notifier)
}

// CreateJobManager wires all scheduled jobs.
func (c *CompositionRoot) CreateJobManager(logger *slog.Logger) *jobs.JobManager {
	return jobs.NewJobManager(c.OrderRepository(), c.CreateDispatchOrderCommandHandler(), logger)
}
