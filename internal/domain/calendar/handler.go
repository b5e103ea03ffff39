package calendar

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"myrhythm/internal/domain/schedule"
	"myrhythm/internal/middleware"
	"myrhythm/internal/platform/dates"

	"github.com/go-chi/chi/v5"
)

// PlansReader es el read model de tomas por día (lo implementa *doses.Service).
type PlansReader interface {
	PlansByDate(ctx context.Context, userID string, from, to dates.Date) (map[dates.Date][]schedule.DoseEvent, error)
	Now() time.Time
	Location() *time.Location
}

func RegisterRoutes(r chi.Router, plans PlansReader) {
	r.Get("/me/calendar/week", weekViewHandler(plans))
}

type dayResponse struct {
	Date     string          `json:"date"`
	Weekday  string          `json:"weekday"`
	Total    int             `json:"total"`
	Taken    int             `json:"taken"`
	Status   schedule.Status `json:"status,omitempty"`
	Today    bool            `json:"today"`
	Selected bool            `json:"selected"`
}

type bucketItemResponse struct {
	ID           string                `json:"id"`
	Label        string                `json:"label"`
	MedicineName string                `json:"medicine_name"`
	MealRelation schedule.MealRelation `json:"meal_relation"`
	Memo         string                `json:"memo,omitempty"`
	UseAlarm     bool                  `json:"use_alarm"`
	Taken        bool                  `json:"taken"`
}

type bucketResponse struct {
	ScheduledAt int64                `json:"scheduled_at"` // epoch millis
	Time        string               `json:"time"`         // HH:MM
	Status      schedule.Status      `json:"status"`
	AlarmOn     bool                 `json:"alarm_on"`
	EventIDs    []string             `json:"event_ids"`
	Items       []bucketItemResponse `json:"items"`
}

type weekViewResponse struct {
	Page     int              `json:"page"`
	Anchor   string           `json:"anchor"`
	Today    string           `json:"today"`
	Selected string           `json:"selected"`
	Days     []dayResponse    `json:"days"`
	Buckets  []bucketResponse `json:"buckets"`
	Empty    bool             `json:"empty"`
}

// weekViewHandler godoc
// @Summary Vista semanal del calendario
// @Description Devuelve la semana (domingo a sábado) que contiene `date`, con el resumen por día y los buckets por hora del día seleccionado. `page` navega relativo a la semana de hoy (CenterPage). Si el día no tiene tomas, `buckets` viene vacío y `empty` en true.
// @Tags calendar
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Param date query string false "Día seleccionado (YYYY-MM-DD). Por defecto hoy"
// @Param today query string false "Hoy según el cliente (YYYY-MM-DD)"
// @Param page query int false "Página absoluta del pager; se ignora si viene date"
// @Success 200 {object} weekViewResponse
// @Failure 400 {string} string "date/today/page inválidos"
// @Failure 401 {string} string "unauthorized"
// @Failure 500 {string} string "internal error"
// @Router /me/calendar/week [get]
func weekViewHandler(plans PlansReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		now := plans.Now()
		st, err := stateFromQuery(r, dates.Today(now, plans.Location()))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		week := st.WeekDays()
		byDate, err := plans.PlansByDate(r.Context(), claims.UserID, week[0], week[6])
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, toWeekViewResponse(st.View(byDate, now), plans.Location()))
	}
}

func stateFromQuery(r *http.Request, today dates.Date) (*State, error) {
	q := r.URL.Query()

	if v := strings.TrimSpace(q.Get("today")); v != "" {
		d, err := dates.ParseDate(v)
		if err != nil {
			return nil, errors.New("invalid today")
		}
		today = d
	}
	st := New(today)

	if v := strings.TrimSpace(q.Get("date")); v != "" {
		d, err := dates.ParseDate(v)
		if err != nil {
			return nil, errors.New("invalid date")
		}
		st.PickDay(d)
		return st, nil
	}
	if v := strings.TrimSpace(q.Get("page")); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return nil, errors.New("invalid page")
		}
		st.GoToPage(p)
	}
	return st, nil
}

func toWeekViewResponse(v WeekView, loc *time.Location) weekViewResponse {
	out := weekViewResponse{
		Page:     v.Page,
		Anchor:   v.Anchor.String(),
		Today:    v.Today.String(),
		Selected: v.Selected.String(),
		Days:     make([]dayResponse, 0, len(v.Days)),
		Buckets:  make([]bucketResponse, 0, len(v.Buckets)),
		Empty:    v.Empty(),
	}
	for _, d := range v.Days {
		out.Days = append(out.Days, dayResponse{
			Date:     d.Date.String(),
			Weekday:  d.Date.Weekday().String(),
			Total:    d.Total,
			Taken:    d.Taken,
			Status:   d.Status,
			Today:    d.Today,
			Selected: d.Selected,
		})
	}
	for _, b := range v.Buckets {
		items := make([]bucketItemResponse, 0, len(b.Events))
		for _, e := range b.Events {
			items = append(items, bucketItemResponse{
				ID:           e.ID,
				Label:        e.Label,
				MedicineName: e.MedicineName,
				MealRelation: e.MealRelation,
				Memo:         e.Memo,
				UseAlarm:     e.UseAlarm,
				Taken:        e.Taken(),
			})
		}
		out.Buckets = append(out.Buckets, bucketResponse{
			ScheduledAt: dates.ToEpochMillis(b.ScheduledAt),
			Time:        b.ScheduledAt.In(loc).Format(dates.TimeLayout),
			Status:      b.Status,
			AlarmOn:     b.AlarmOn(),
			EventIDs:    b.EventIDs(),
			Items:       items,
		})
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
