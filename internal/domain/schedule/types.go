package schedule

type RegiType string

const (
	RegiTypeDisease    RegiType = "disease"
	RegiTypeSupplement RegiType = "supplement"
)

func (t RegiType) Valid() bool {
	return t == RegiTypeDisease || t == RegiTypeSupplement
}

type MealRelation string

const (
	MealBefore MealRelation = "before"
	MealAfter  MealRelation = "after"
	MealNone   MealRelation = "none"
)

func (m MealRelation) Valid() bool {
	return m == MealBefore || m == MealAfter || m == MealNone
}

// Status es el estado derivado de un bucket del calendario. No se persiste.
type Status string

const (
	StatusScheduled Status = "SCHEDULED"
	StatusDone      Status = "DONE"
	StatusMissed    Status = "MISSED"
)

const (
	MinDosesPerDay = 1
	MaxDosesPerDay = 6

	// MaxSpanDays limita los días de un registro (inicio y fin inclusive).
	MaxSpanDays = 366
)
