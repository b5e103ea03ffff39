package notify

import (
	"fmt"
	"strings"
	"time"

	port "myrhythm/internal/ports/notify"
)

// alarmText arma el texto corto que ve el usuario.
func alarmText(a port.Alarm, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s 복용 시간입니다", a.ScheduledAt.In(loc).Format("15:04"))
	if label := strings.TrimSpace(a.Label); label != "" {
		fmt.Fprintf(&b, " (%s)", label)
	}
	b.WriteString("\n")
	b.WriteString(strings.Join(a.Medicines, ", "))
	switch a.MealRelation {
	case "before":
		b.WriteString("\n식전")
	case "after":
		b.WriteString("\n식후")
	}
	if memo := strings.TrimSpace(a.Memo); memo != "" {
		b.WriteString("\n")
		b.WriteString(memo)
	}
	return b.String()
}
