package router

import (
	"net/http"

	acctsvc "anggaran-backend/internal/application/accounts"
	allocsvc "anggaran-backend/internal/application/allocations"
	evalsvc "anggaran-backend/internal/application/evaluations"
	healthsvc "anggaran-backend/internal/application/health"
	"anggaran-backend/internal/application/hierarchy"
	realsvc "anggaran-backend/internal/application/realizations"
	unitsvc "anggaran-backend/internal/application/units"
	"anggaran-backend/internal/config"
	"anggaran-backend/internal/constants"
	"anggaran-backend/internal/infrastructure/database"
	accthandler "anggaran-backend/internal/interfaces/handlers/accounts"
	allochandler "anggaran-backend/internal/interfaces/handlers/allocations"
	evalhandler "anggaran-backend/internal/interfaces/handlers/evaluations"
	healthhandler "anggaran-backend/internal/interfaces/handlers/health"
	programhandler "anggaran-backend/internal/interfaces/handlers/programnodes"
	realhandler "anggaran-backend/internal/interfaces/handlers/realizations"
	unithandler "anggaran-backend/internal/interfaces/handlers/units"
	"anggaran-backend/internal/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// CreateApp opens the database and wires every route. Redis is optional: without REDIS_URL there is
// no session (writes answer 401) and no traffic counters.
func CreateApp(cfg *config.Config) (*fiber.App, *gorm.DB, *redis.Client, error) {
	db, err := database.Open(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := database.AutoMigrate(db); err != nil {
		return nil, nil, nil, err
	}

	var rdb *redis.Client
	var session fiber.Handler
	if cfg.RedisURL != "" {
		session, rdb, err = middleware.Session(middleware.SessionConfig{RedisURL: cfg.RedisURL})
		if err != nil {
			return nil, nil, nil, err
		}
	}
	return NewApp(cfg, db, rdb, session), db, rdb, nil
}

// NewApp builds the fiber app over already opened stores. session may be nil.
func NewApp(cfg *config.Config, db *gorm.DB, rdb *redis.Client, session fiber.Handler) *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage:   true,
		ErrorHandler:            middleware.ErrorHandler,
		EnableTrustedProxyCheck: true,
	})

	app.Use(middleware.CORS(middleware.CORSConfig{
		AllowedSuffix: cfg.FrontendURLEndsWith,
		DevPassword:   cfg.DevPassword,
	}))
	if session != nil {
		app.Use(session)
	}
	if rdb != nil {
		app.Use(middleware.HealthMarker(rdb))
	}
	app.Use(middleware.Tracing())
	app.Use(middleware.RouteLogger())

	hh := &healthhandler.Handlers{
		Rdb:            rdb,
		DB:             healthsvc.GormPinger{DB: db},
		HealthAdminKey: cfg.HealthAdminKey,
	}
	app.Get("/", hh.Root)
	app.Get("/reset", hh.Reset)
	app.Get("/health/json", hh.JSON)
	app.Get("/health/errors", hh.Errors)

	api := app.Group("/api/v1")
	view := middleware.AuthorizePermission(constants.ViewData)
	write := func(permission string) []fiber.Handler {
		return []fiber.Handler{middleware.RequireActor(), middleware.AuthorizePermission(permission)}
	}
	with := func(hs []fiber.Handler, h fiber.Handler) []fiber.Handler {
		return append(hs, h)
	}

	// Organizational units
	uh := &unithandler.Handlers{Service: &unitsvc.Service{DB: db}}
	ug := api.Group("/organizational-units", middleware.RequireActor(), view)
	ug.Get("/", uh.List)
	ug.Get("/:id", uh.Get)

	// Account tree
	ah := &accthandler.Handlers{Service: &acctsvc.Service{DB: db}}
	ag := api.Group("/accounts")
	ag.Get("/", middleware.RequireActor(), view, ah.List)
	ag.Post("/recompute-leaves", with(write(constants.RecomputeHierarchy), ah.RecomputeLeaves)...)
	ag.Get("/by-code/:fullCode", middleware.RequireActor(), view, ah.GetByCode)
	ag.Get("/:id", middleware.RequireActor(), view, ah.Get)
	ag.Get("/:id/children", middleware.RequireActor(), view, ah.Children)
	ag.Post("/", with(write(constants.ManageStructure), ah.Create)...)
	ag.Patch("/:id", with(write(constants.ManageStructure), ah.Update)...)
	ag.Delete("/:id", with(write(constants.ManageStructure), ah.Delete)...)

	// Program hierarchy
	ph := &programhandler.Handlers{Service: &hierarchy.Service{DB: db}}
	pg := api.Group("/program-nodes")
	pg.Get("/", middleware.RequireActor(), view, ph.List)
	pg.Get("/tree", middleware.RequireActor(), view, ph.Tree)
	pg.Get("/:id", middleware.RequireActor(), view, ph.Get)
	pg.Post("/", with(write(constants.ManageStructure), ph.Create)...)
	pg.Patch("/:id", with(write(constants.ManageStructure), ph.Update)...)
	pg.Delete("/:id", with(write(constants.ManageStructure), ph.Delete)...)

	// Allocations
	alh := &allochandler.Handlers{Service: &allocsvc.Service{DB: db}}
	alg := api.Group("/allocations")
	alg.Get("/", middleware.RequireActor(), view, alh.List)
	alg.Get("/:id", middleware.RequireActor(), view, alh.Get)
	alg.Post("/", with(write(constants.ManageAllocation), alh.Create)...)
	alg.Put("/:id", with(write(constants.ManageAllocation), alh.Update)...)
	alg.Patch("/:id", with(write(constants.ManageAllocation), alh.Update)...)
	alg.Delete("/:id", with(write(constants.ManageAllocation), alh.Delete)...)

	// Realizations
	rh := &realhandler.Handlers{Service: &realsvc.Service{DB: db}}
	rg := api.Group("/realizations")
	rg.Get("/", middleware.RequireActor(), view, rh.List)
	rg.Get("/summary", middleware.RequireActor(), view, rh.Summary)
	rg.Get("/:id", middleware.RequireActor(), view, rh.Get)
	rg.Post("/", with(write(constants.RecordRealization), rh.Create)...)
	rg.Put("/:id", with(write(constants.RecordRealization), rh.Update)...)
	rg.Delete("/:id", with(write(constants.RecordRealization), rh.Delete)...)

	// Evaluations
	eh := &evalhandler.Handlers{Service: &evalsvc.Service{DB: db, LowAbsorptionThreshold: cfg.LowAbsorptionThreshold}}
	eg := api.Group("/evaluations")
	eg.Get("/", middleware.RequireActor(), view, eh.List)
	eg.Get("/low-absorption", middleware.RequireActor(), view, eh.LowAbsorption)
	eg.Get("/summary", middleware.RequireActor(), view, eh.Summary)
	eg.Get("/by-realization/:realizationId", middleware.RequireActor(), view, eh.GetByRealization)
	eg.Get("/:id", middleware.RequireActor(), view, eh.Get)
	eg.Post("/", with(write(constants.Evaluate), eh.Create)...)
	eg.Put("/:id", with(write(constants.Evaluate), eh.Update)...)
	eg.Post("/:id/approve", with(write(constants.ApproveEvaluation), eh.Approve)...)
	eg.Post("/:id/follow-ups", with(write(constants.Evaluate), eh.AddFollowUp)...)
	eg.Patch("/:id/follow-ups/:index", with(write(constants.Evaluate), eh.UpdateFollowUpStatus)...)
	eg.Delete("/:id", with(write(constants.Evaluate), eh.Delete)...)

	return app
}

func Handler(app *fiber.App) http.Handler {
	return adaptor.FiberApp(app)
}
