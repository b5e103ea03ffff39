package calendar

import (
	"myrhythm/internal/platform/dates"
)

// CenterPage es la página de la semana que contiene hoy. El pager es
// "infinito" hacia ambos lados, así que arranca lejos del cero.
const CenterPage = 1000

// State es el estado de vista del calendario semanal de una pantalla.
// No es seguro para uso concurrente: lo muta un único dueño.
type State struct {
	today    dates.Date
	anchor   dates.Date // domingo de la semana visible
	selected dates.Date
	picked   dates.Date // último día elegido explícitamente
	page     int
}

func New(today dates.Date) *State {
	s := &State{}
	s.SetToday(today)
	return s
}

func (s *State) Today() dates.Date    { return s.today }
func (s *State) Anchor() dates.Date   { return s.anchor }
func (s *State) Selected() dates.Date { return s.selected }
func (s *State) Page() int            { return s.page }

// WeekDays son los 7 días (domingo a sábado) de la semana visible.
func (s *State) WeekDays() [7]dates.Date { return s.anchor.Week() }

// PageWeek mueve la semana visible delta semanas. Si el día seleccionado queda
// afuera pasa al domingo de la nueva semana, salvo que el último día elegido
// caiga en ella: en ese caso se restaura.
func (s *State) PageWeek(delta int) {
	if delta == 0 {
		return
	}
	s.anchor = s.anchor.AddDays(7 * delta)
	s.page += delta

	switch {
	case s.picked.SameWeek(s.anchor):
		s.selected = s.picked
	case s.selected.SameWeek(s.anchor):
	default:
		s.selected = s.anchor
	}
}

// GoToPage es PageWeek hacia una página absoluta (swipe del pager).
func (s *State) GoToPage(page int) {
	s.PageWeek(page - s.page)
}

// PickDay selecciona d. Si d está en otra semana mueve el ancla y la página
// y devuelve scrolled=true.
func (s *State) PickDay(d dates.Date) (scrolled bool) {
	if d.IsZero() {
		return false
	}
	s.selected = d
	s.picked = d
	if d.SameWeek(s.anchor) {
		return false
	}
	s.anchor = d.WeekStart()
	s.page = s.pageOf(s.anchor)
	return true
}

// ResetToToday vuelve ancla y selección a hoy y el pager a CenterPage.
func (s *State) ResetToToday() {
	s.anchor = s.today.WeekStart()
	s.selected = s.today
	s.picked = s.today
	s.page = CenterPage
}

// SetToday cambia "hoy" (p.ej. pasó la medianoche) y resetea.
func (s *State) SetToday(today dates.Date) {
	s.today = today
	s.ResetToToday()
}

func (s *State) pageOf(anchor dates.Date) int {
	return CenterPage + s.today.WeekStart().DaysUntil(anchor)/7
}
