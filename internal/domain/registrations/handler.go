package registrations

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

func RegisterRoutes(r chi.Router, svc *Service) {
	r.Route("/registrations", func(rr chi.Router) {
		rr.Post("/", createRegistrationHandler(svc))
		rr.Get("/", listRegistrationsHandler(svc))
		rr.Get("/{regID}", getRegistrationHandler(svc))
		rr.Delete("/{regID}", deleteRegistrationHandler(svc))
	})
}

// Las reglas de negocio (horas, rango de fechas) las valida schedule.Validate;
// acá sólo la forma del payload.
type createRegistrationRequest struct {
	RegiType        string     `json:"regi_type" validate:"required"`
	Label           string     `json:"label" validate:"max=100"`
	MedicineNames   []string   `json:"medicine_names" validate:"required,min=1,max=20,dive,max=100"`
	DoseCountPerDay int        `json:"dose_count_per_day" validate:"required"`
	IntakeTimes     []string   `json:"intake_times" validate:"required"`
	StartDate       dates.Date `json:"start_date" swaggertype:"string" example:"2024-01-01"`
	EndDate         dates.Date `json:"end_date" swaggertype:"string" example:"2024-01-03"`
	DayCount        int        `json:"day_count"`
	MealRelation    string     `json:"meal_relation"`
	Memo            string     `json:"memo" validate:"max=500"`
	UseAlarm        bool       `json:"use_alarm"`
}

type registrationResponse struct {
	ID              string                `json:"id"`
	UserID          string                `json:"user_id"`
	RegiType        schedule.RegiType     `json:"regi_type"`
	Label           string                `json:"label"`
	MedicineNames   []string              `json:"medicine_names"`
	DoseCountPerDay int                   `json:"dose_count_per_day"`
	IntakeTimes     []string              `json:"intake_times"`
	StartDate       dates.Date            `json:"start_date" swaggertype:"string"`
	EndDate         dates.Date            `json:"end_date" swaggertype:"string"`
	DayCount        int                   `json:"day_count"`
	MealRelation    schedule.MealRelation `json:"meal_relation"`
	Memo            string                `json:"memo,omitempty"`
	UseAlarm        bool                  `json:"use_alarm"`
	IssuedAt        time.Time             `json:"issued_at"`
}

type createRegistrationResponse struct {
	Registration registrationResponse `json:"registration"`
	EventCount   int                  `json:"event_count"`
	RolledOver   bool                 `json:"rolled_over"`
}

type validationErrorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields"`
}

// createRegistrationHandler godoc
// @Summary Registrar tratamiento o suplemento
// @Description Valida el registro y materializa todas sus tomas (medicamento x día x horario). Si todos los horarios del último día ya pasaron, el rango se extiende un día. Autenticación: `X-Debug-User-ID` (dev) o `Authorization: Bearer <token>` (prod).
// @Tags registrations
// @Accept json
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Param payload body createRegistrationRequest true "Registro; fechas YYYY-MM-DD y horarios HH:MM"
// @Success 201 {object} createRegistrationResponse
// @Failure 400 {object} validationErrorResponse
// @Failure 401 {string} string "unauthorized"
// @Failure 500 {string} string "internal error"
// @Router /registrations [post]
func createRegistrationHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var req createRegistrationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if err := validate.Struct(req); err != nil {
			writeJSON(w, http.StatusBadRequest, validationErrorResponse{
				Error:  "invalid input",
				Fields: fieldErrors(err),
			})
			return
		}

		res, err := svc.Create(r.Context(), claims.UserID, CreateInput{
			Type:            schedule.RegiType(strings.ToLower(strings.TrimSpace(req.RegiType))),
			Label:           req.Label,
			MedicineNames:   req.MedicineNames,
			DoseCountPerDay: req.DoseCountPerDay,
			IntakeTimes:     req.IntakeTimes,
			StartDate:       req.StartDate,
			EndDate:         req.EndDate,
			DayCount:        req.DayCount,
			MealRelation:    schedule.MealRelation(strings.ToLower(strings.TrimSpace(req.MealRelation))),
			Memo:            req.Memo,
			UseAlarm:        req.UseAlarm,
		})
		if err != nil {
			var verr *schedule.ValidationError
			switch {
			case errors.As(err, &verr):
				writeJSON(w, http.StatusBadRequest, validationErrorResponse{
					Error:  "invalid input",
					Fields: verr.Fields,
				})
			case errors.Is(err, ErrInvalidInput):
				http.Error(w, err.Error(), http.StatusBadRequest)
			default:
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
			return
		}

		writeJSON(w, http.StatusCreated, createRegistrationResponse{
			Registration: toRegistrationResponse(res.Registration),
			EventCount:   res.EventCount,
			RolledOver:   res.RolledOver,
		})
	}
}

// listRegistrationsHandler godoc
// @Summary Listar mis registros
// @Description Lista los registros del usuario autenticado, del más reciente al más antiguo.
// @Tags registrations
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Success 200 {array} registrationResponse
// @Failure 401 {string} string "unauthorized"
// @Failure 500 {string} string "internal error"
// @Router /registrations [get]
func listRegistrationsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		items, err := svc.ListByUser(r.Context(), claims.UserID)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		out := make([]registrationResponse, 0, len(items))
		for _, reg := range items {
			out = append(out, toRegistrationResponse(reg))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// getRegistrationHandler godoc
// @Summary Obtener un registro
// @Tags registrations
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Param regID path string true "ID del registro"
// @Success 200 {object} registrationResponse
// @Failure 401 {string} string "unauthorized"
// @Failure 403 {string} string "forbidden"
// @Failure 404 {string} string "registration not found"
// @Router /registrations/{regID} [get]
func getRegistrationHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		reg, err := svc.Get(r.Context(), claims.UserID, chi.URLParam(r, "regID"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toRegistrationResponse(reg))
	}
}

// deleteRegistrationHandler godoc
// @Summary Borrar un registro
// @Description Borra el registro y todas las tomas materializadas a partir de él.
// @Tags registrations
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Param regID path string true "ID del registro"
// @Success 204
// @Failure 401 {string} string "unauthorized"
// @Failure 403 {string} string "forbidden"
// @Failure 404 {string} string "registration not found"
// @Router /registrations/{regID} [delete]
func deleteRegistrationHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		if err := svc.Delete(r.Context(), claims.UserID, chi.URLParam(r, "regID")); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		http.Error(w, "registration not found", http.StatusNotFound)
	case errors.Is(err, ErrForbidden):
		http.Error(w, "forbidden", http.StatusForbidden)
	case errors.Is(err, ErrInvalidInput):
		http.Error(w, "invalid input", http.StatusBadRequest)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func fieldErrors(err error) map[string]string {
	out := map[string]string{}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		out["body"] = err.Error()
		return out
	}
	for _, fe := range verrs {
		out[jsonName(fe.Field())] = fe.Tag()
	}
	return out
}

func jsonName(field string) string {
	switch field {
	case "RegiType":
		return "regi_type"
	case "Label":
		return "label"
	case "MedicineNames":
		return "medicine_names"
	case "DoseCountPerDay":
		return "dose_count_per_day"
	case "IntakeTimes":
		return "intake_times"
	case "Memo":
		return "memo"
	default:
		return strings.ToLower(field)
	}
}

func toRegistrationResponse(reg schedule.Registration) registrationResponse {
	return registrationResponse{
		ID:              reg.ID,
		UserID:          reg.UserID,
		RegiType:        reg.Type,
		Label:           reg.Label,
		MedicineNames:   reg.MedicineNames,
		DoseCountPerDay: reg.DoseCountPerDay,
		IntakeTimes:     reg.IntakeTimes,
		StartDate:       reg.StartDate,
		EndDate:         reg.EndDate,
		DayCount:        reg.DayCount,
		MealRelation:    reg.MealRelation,
		Memo:            reg.Memo,
		UseAlarm:        reg.UseAlarm,
		IssuedAt:        reg.IssuedAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
