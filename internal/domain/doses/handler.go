package doses

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"myrhythm/internal/domain/schedule"
	"myrhythm/internal/middleware"
	"myrhythm/internal/platform/dates"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

const (
	defaultAdherenceDays = 30
	icsPastDays          = 30
	icsFutureDays        = 90
)

func RegisterRoutes(r chi.Router, svc *Service, dispatcher Dispatcher) {
	r.Route("/me/doses", func(dr chi.Router) {
		dr.Get("/", listDosesHandler(svc))
		dr.Post("/taken", markTakenHandler(svc, dispatcher))
		dr.Post("/alarm", toggleAlarmHandler(dispatcher))
		dr.Post("/snooze", snoozeHandler(svc, dispatcher))
	})

	r.Route("/me/adherence", func(ar chi.Router) {
		ar.Get("/", adherenceHandler(svc))
		ar.Get("/export.xlsx", adherenceExportHandler(svc))
	})

	r.Get("/me/calendar.ics", calendarFeedHandler(svc))
}

type doseEventResponse struct {
	ID             string                `json:"id"`
	RegistrationID string                `json:"registration_id"`
	Label          string                `json:"label"`
	MedicineName   string                `json:"medicine_name"`
	ScheduledAt    int64                 `json:"scheduled_at"` // epoch millis
	MealRelation   schedule.MealRelation `json:"meal_relation"`
	Memo           string                `json:"memo,omitempty"`
	UseAlarm       bool                  `json:"use_alarm"`
	TakenAt        *time.Time            `json:"taken_at,omitempty"`
	SnoozedUntil   *time.Time            `json:"snoozed_until,omitempty"`
}

type markTakenRequest struct {
	EventIDs []string   `json:"event_ids" validate:"required,min=1,max=100,dive,required"`
	At       *time.Time `json:"at,omitempty"`
}

type toggleAlarmRequest struct {
	EventIDs []string `json:"event_ids" validate:"required,min=1,max=100,dive,required"`
	Enabled  *bool    `json:"enabled" validate:"required"`
}

// Minutes=0 cancela el snooze.
type snoozeRequest struct {
	EventIDs []string `json:"event_ids" validate:"required,min=1,max=100,dive,required"`
	Minutes  int      `json:"minutes" validate:"min=0,max=720"`
}

type acceptedResponse struct {
	Status string `json:"status"`
	Kind   string `json:"kind"`
	Count  int    `json:"count"`
}

type countsResponse struct {
	Scheduled int     `json:"scheduled"`
	Taken     int     `json:"taken"`
	Missed    int     `json:"missed"`
	Upcoming  int     `json:"upcoming"`
	Rate      float64 `json:"rate"`
}

type dayAdherenceResponse struct {
	Date string `json:"date"`
	countsResponse
}

type adherenceResponse struct {
	From string `json:"from"`
	To   string `json:"to"`
	countsResponse
	Days []dayAdherenceResponse `json:"days"`
}

// listDosesHandler godoc
// @Summary Tomas por día
// @Description Read model del calendario: devuelve las tomas del usuario agrupadas por día (YYYY-MM-DD) en la zona del servicio. Por defecto la semana actual (domingo a sábado).
// @Tags doses
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Param from query string false "Primer día (YYYY-MM-DD)"
// @Param to query string false "Último día inclusive (YYYY-MM-DD)"
// @Success 200 {object} map[string][]doseEventResponse
// @Failure 400 {string} string "from/to inválidos"
// @Failure 401 {string} string "unauthorized"
// @Failure 500 {string} string "internal error"
// @Router /me/doses [get]
func listDosesHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		week := dates.Today(svc.Now(), svc.Location()).Week()
		from, to, err := parseRange(r, week[0], week[6])
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		byDate, err := svc.PlansByDate(r.Context(), claims.UserID, from, to)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		out := make(map[string][]doseEventResponse, len(byDate))
		for d, items := range byDate {
			list := make([]doseEventResponse, 0, len(items))
			for _, e := range items {
				list = append(list, toDoseEventResponse(e))
			}
			out[d.String()] = list
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// markTakenHandler godoc
// @Summary Marcar tomas como tomadas
// @Description Encola el comando y responde sin esperar a que se aplique. Sólo se modifican tomas del usuario autenticado.
// @Tags doses
// @Accept json
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Param payload body markTakenRequest true "IDs de las tomas; at opcional (RFC3339, por defecto ahora)"
// @Success 202 {object} acceptedResponse
// @Failure 400 {string} string "invalid json / event_ids requerido"
// @Failure 401 {string} string "unauthorized"
// @Failure 503 {string} string "dispatcher unavailable"
// @Router /me/doses/taken [post]
func markTakenHandler(svc *Service, dispatcher Dispatcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var req markTakenRequest
		if !decodeAndValidate(w, r, &req) {
			return
		}

		at := svc.Now()
		if req.At != nil {
			at = req.At.In(svc.Location())
		}
		dispatch(w, r, dispatcher, MarkTaken{
			UserID:   claims.UserID,
			EventIDs: cleanIDs(req.EventIDs),
			At:       at,
		})
	}
}

// toggleAlarmHandler godoc
// @Summary Activar o desactivar la alarma de tomas
// @Description Encola el comando y responde sin esperar a que se aplique. Se usa con todos los IDs de un bucket del calendario.
// @Tags doses
// @Accept json
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Param payload body toggleAlarmRequest true "IDs de las tomas y valor de la alarma"
// @Success 202 {object} acceptedResponse
// @Failure 400 {string} string "invalid json / event_ids requerido"
// @Failure 401 {string} string "unauthorized"
// @Failure 503 {string} string "dispatcher unavailable"
// @Router /me/doses/alarm [post]
func toggleAlarmHandler(dispatcher Dispatcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var req toggleAlarmRequest
		if !decodeAndValidate(w, r, &req) {
			return
		}

		dispatch(w, r, dispatcher, ToggleAlarm{
			UserID:   claims.UserID,
			EventIDs: cleanIDs(req.EventIDs),
			Enabled:  *req.Enabled,
		})
	}
}

// snoozeHandler godoc
// @Summary Posponer la alarma de tomas
// @Description Pospone la alarma `minutes` minutos desde ahora. minutes=0 cancela el snooze.
// @Tags doses
// @Accept json
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Param payload body snoozeRequest true "IDs de las tomas y minutos (0-720)"
// @Success 202 {object} acceptedResponse
// @Failure 400 {string} string "invalid json / event_ids requerido"
// @Failure 401 {string} string "unauthorized"
// @Failure 503 {string} string "dispatcher unavailable"
// @Router /me/doses/snooze [post]
func snoozeHandler(svc *Service, dispatcher Dispatcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var req snoozeRequest
		if !decodeAndValidate(w, r, &req) {
			return
		}

		var until time.Time
		if req.Minutes > 0 {
			until = svc.Now().Add(time.Duration(req.Minutes) * time.Minute)
		}
		dispatch(w, r, dispatcher, Snooze{
			UserID:   claims.UserID,
			EventIDs: cleanIDs(req.EventIDs),
			Until:    until,
		})
	}
}

// adherenceHandler godoc
// @Summary Historial de adherencia
// @Description Cuenta tomas programadas, tomadas, perdidas y futuras por día. rate = tomadas / (tomadas + perdidas). Por defecto los últimos 30 días.
// @Tags adherence
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Param from query string false "Primer día (YYYY-MM-DD)"
// @Param to query string false "Último día inclusive (YYYY-MM-DD)"
// @Success 200 {object} adherenceResponse
// @Failure 400 {string} string "from/to inválidos"
// @Failure 401 {string} string "unauthorized"
// @Router /me/adherence [get]
func adherenceHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, ok := loadAdherence(w, r, svc)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, toAdherenceResponse(a))
	}
}

// adherenceExportHandler godoc
// @Summary Exportar adherencia a Excel
// @Tags adherence
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Param from query string false "Primer día (YYYY-MM-DD)"
// @Param to query string false "Último día inclusive (YYYY-MM-DD)"
// @Success 200 {file} file
// @Failure 400 {string} string "from/to inválidos"
// @Failure 401 {string} string "unauthorized"
// @Router /me/adherence/export.xlsx [get]
func adherenceExportHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, ok := loadAdherence(w, r, svc)
		if !ok {
			return
		}

		b, err := AdherenceXLSX(a)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", `attachment; filename="adherence_`+a.From.String()+`_`+a.To.String()+`.xlsx"`)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(b)
	}
}

// calendarFeedHandler godoc
// @Summary Feed iCalendar de tomas
// @Description Exporta las tomas del usuario como VEVENTs. Por defecto desde 30 días atrás hasta 90 días adelante.
// @Tags doses
// @Produce text/calendar
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Param from query string false "Primer día (YYYY-MM-DD)"
// @Param to query string false "Último día inclusive (YYYY-MM-DD)"
// @Success 200 {string} string "text/calendar"
// @Failure 400 {string} string "from/to inválidos"
// @Failure 401 {string} string "unauthorized"
// @Router /me/calendar.ics [get]
func calendarFeedHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		today := dates.Today(svc.Now(), svc.Location())
		from, to, err := parseRange(r, today.AddDays(-icsPastDays), today.AddDays(icsFutureDays))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		items, err := svc.ListRange(r.Context(), claims.UserID, from, to)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(CalendarICS(items, svc.Now())))
	}
}

func loadAdherence(w http.ResponseWriter, r *http.Request, svc *Service) (Adherence, bool) {
	claims, ok := middleware.GetClaims(r.Context())
	if !ok || strings.TrimSpace(claims.UserID) == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return Adherence{}, false
	}

	today := dates.Today(svc.Now(), svc.Location())
	from, to, err := parseRange(r, today.AddDays(-(defaultAdherenceDays - 1)), today)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return Adherence{}, false
	}

	a, err := svc.Adherence(r.Context(), claims.UserID, from, to)
	if err != nil {
		writeServiceError(w, err)
		return Adherence{}, false
	}
	return a, true
}

func dispatch(w http.ResponseWriter, r *http.Request, dispatcher Dispatcher, cmd Command) {
	if len(cmd.Targets()) == 0 {
		http.Error(w, "event_ids required", http.StatusBadRequest)
		return
	}
	if err := dispatcher.Dispatch(r.Context(), cmd); err != nil {
		switch {
		case errors.Is(err, ErrDispatcherClosed):
			http.Error(w, "dispatcher unavailable", http.StatusServiceUnavailable)
		// sólo con InlineDispatcher: el async no reporta errores de aplicación
		case errors.Is(err, ErrForbidden):
			http.Error(w, "forbidden", http.StatusForbidden)
		case errors.Is(err, ErrNotFound):
			http.Error(w, "not found", http.StatusNotFound)
		case errors.Is(err, ErrInvalidInput):
			http.Error(w, "invalid input", http.StatusBadRequest)
		default:
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
		return
	}
	writeJSON(w, http.StatusAccepted, acceptedResponse{
		Status: "accepted",
		Kind:   string(cmd.Kind()),
		Count:  len(cmd.Targets()),
	})
}

func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return false
	}
	if err := validate.Struct(dst); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

// parseRange lee from/to (YYYY-MM-DD); los que faltan toman el default.
func parseRange(r *http.Request, defFrom, defTo dates.Date) (dates.Date, dates.Date, error) {
	q := r.URL.Query()
	from, to := defFrom, defTo

	if v := strings.TrimSpace(q.Get("from")); v != "" {
		d, err := dates.ParseDate(v)
		if err != nil {
			return dates.Date{}, dates.Date{}, errors.New("invalid from")
		}
		from = d
	}
	if v := strings.TrimSpace(q.Get("to")); v != "" {
		d, err := dates.ParseDate(v)
		if err != nil {
			return dates.Date{}, dates.Date{}, errors.New("invalid to")
		}
		to = d
	}
	if to.Before(from) {
		return dates.Date{}, dates.Date{}, errors.New("to must not be before from")
	}
	if from.DaysUntil(to) >= MaxRangeDays {
		return dates.Date{}, dates.Date{}, errors.New("range too large")
	}
	return from, to, nil
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		http.Error(w, "invalid input", http.StatusBadRequest)
	case errors.Is(err, ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, ErrForbidden):
		http.Error(w, "forbidden", http.StatusForbidden)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func toDoseEventResponse(e schedule.DoseEvent) doseEventResponse {
	return doseEventResponse{
		ID:             e.ID,
		RegistrationID: e.RegistrationID,
		Label:          e.Label,
		MedicineName:   e.MedicineName,
		ScheduledAt:    e.ScheduledAtMillis(),
		MealRelation:   e.MealRelation,
		Memo:           e.Memo,
		UseAlarm:       e.UseAlarm,
		TakenAt:        e.TakenAt,
		SnoozedUntil:   e.SnoozedUntil,
	}
}

func toCountsResponse(c Counts) countsResponse {
	return countsResponse{
		Scheduled: c.Scheduled,
		Taken:     c.Taken,
		Missed:    c.Missed,
		Upcoming:  c.Upcoming,
		Rate:      c.Rate(),
	}
}

func toAdherenceResponse(a Adherence) adherenceResponse {
	days := make([]dayAdherenceResponse, 0, len(a.Days))
	for _, d := range a.Days {
		days = append(days, dayAdherenceResponse{
			Date:           d.Date.String(),
			countsResponse: toCountsResponse(d.Counts),
		})
	}
	return adherenceResponse{
		From:           a.From.String(),
		To:             a.To.String(),
		countsResponse: toCountsResponse(a.Counts),
		Days:           days,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
