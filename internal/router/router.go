package router

import (
	"database/sql"
	"net/http"
	"time"

	_ "myrhythm/docs"
	mem "myrhythm/internal/adapters/storage/memory"
	pg "myrhythm/internal/adapters/storage/postgres"
	sqlite "myrhythm/internal/adapters/storage/sqlite"
	"myrhythm/internal/domain/calendar"
	"myrhythm/internal/domain/doses"
	"myrhythm/internal/domain/registrations"
	"myrhythm/internal/domain/schedule"
	"myrhythm/internal/middleware"
	"myrhythm/internal/platform/logger"
	"myrhythm/internal/ports/auth"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Options struct {
	AuthVerifier auth.AuthVerifier // puede ser nil (modo dev)
	// AllowDebugHeader acepta X-Debug-User-ID aunque haya verifier.
	AllowDebugHeader bool

	// Opcional: si viene, usa Postgres o SQLite según Driver. Si no, in-memory.
	DB     *sql.DB
	Driver string

	Location *time.Location
	Logger   logger.Logger
}

// Services agrupa los services por módulo; main los usa para el consumer
// de comandos y el scanner de recordatorios.
type Services struct {
	Doses         *doses.Service
	Registrations *registrations.Service
}

func NewServices(opts Options) *Services {
	var (
		regRepo  registrations.Repository
		doseRepo doses.Repository
	)

	switch {
	case opts.DB != nil && opts.Driver == DriverSQLite:
		regRepo = sqlite.NewRegistrationsRepo(opts.DB)
		doseRepo = sqlite.NewDosesRepo(opts.DB)
	case opts.DB != nil:
		regRepo = pg.NewRegistrationsRepo(opts.DB)
		doseRepo = pg.NewDosesRepo(opts.DB)
	default:
		regRepo = mem.NewRegistrationRepo()
		doseRepo = mem.NewDoseRepo()
	}

	dosesSvc := doses.NewService(doseRepo, opts.Location)
	regSvc := registrations.NewService(regRepo, dosesSvc, schedule.NewMaterializer(dosesSvc.Location()))

	return &Services{Doses: dosesSvc, Registrations: regSvc}
}

// NewRouter arma el handler HTTP. Si dispatcher es nil los comandos se
// aplican inline.
func NewRouter(opts Options, svc *Services, dispatcher doses.Dispatcher) http.Handler {
	if svc == nil {
		svc = NewServices(opts)
	}
	if dispatcher == nil {
		dispatcher = doses.InlineDispatcher{Applier: svc.Doses}
	}

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	r.Use(middleware.AuthContext(middleware.AuthOptions{
		Verifier:         opts.AuthVerifier,
		AllowDebugHeader: opts.AllowDebugHeader,
		Logger:           opts.Logger,
	}))
	r.Use(middleware.RequestLogger(opts.Logger))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/swagger/*", httpSwagger.WrapHandler)

	// Rutas por módulo
	registrations.RegisterRoutes(r, svc.Registrations)
	doses.RegisterRoutes(r, svc.Doses, dispatcher)
	calendar.RegisterRoutes(r, svc.Doses)

	return r
}
