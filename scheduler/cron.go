package scheduler

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ValidateCron validates a standard 5-field cron expression (minute hour
// dom month dow), adapted verbatim from the teacher's
// scheduler.ValidateCron/validateCronField/parseCronInt — it strictly
// subsumes the compact grammar below, so reusing it costs nothing and
// gives workflow authors full 5-field cron as an escape hatch.
func ValidateCron(expr string) error {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return fmt.Errorf("expected 5 fields, got %d", len(fields))
	}

	limits := []struct{ min, max int }{
		{0, 59}, // minute
		{0, 23}, // hour
		{1, 31}, // day of month
		{1, 12}, // month
		{0, 7},  // day of week (0 and 7 are Sunday)
	}

	for i, field := range fields {
		if err := validateCronField(field, limits[i].min, limits[i].max); err != nil {
			return fmt.Errorf("field %d (%q): %w", i+1, field, err)
		}
	}
	return nil
}

func validateCronField(field string, min, max int) error {
	if field == "*" {
		return nil
	}
	if strings.HasPrefix(field, "*/") {
		step, err := parseCronInt(field[2:])
		if err != nil {
			return fmt.Errorf("invalid step value %q", field[2:])
		}
		if step <= 0 || step > max {
			return fmt.Errorf("step %d out of range [1-%d]", step, max)
		}
		return nil
	}
	for _, part := range strings.Split(field, ",") {
		if strings.Contains(part, "-") {
			rangeParts := strings.SplitN(part, "-", 2)
			lo, err := parseCronInt(rangeParts[0])
			if err != nil {
				return err
			}
			hi, err := parseCronInt(rangeParts[1])
			if err != nil {
				return err
			}
			if lo < min || hi > max || lo > hi {
				return fmt.Errorf("range %d-%d out of bounds [%d-%d]", lo, hi, min, max)
			}
			continue
		}
		v, err := parseCronInt(part)
		if err != nil {
			return err
		}
		if v < min || v > max {
			return fmt.Errorf("value %d out of range [%d-%d]", v, min, max)
		}
	}
	return nil
}

func parseCronInt(s string) (int, error) {
	if s == "" {
		return 0, fmt.Errorf("empty value")
	}
	v := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("invalid number %q", s)
		}
		v = v*10 + int(c-'0')
	}
	return v, nil
}

var weekdayNames = map[string]time.Weekday{
	"sunday": time.Sunday, "monday": time.Monday, "tuesday": time.Tuesday,
	"wednesday": time.Wednesday, "thursday": time.Thursday, "friday": time.Friday,
	"saturday": time.Saturday,
}

// ValidateSchedule accepts either the compact grammar
// ("interval:<minutes>", "daily:<HH>:<MM>", "weekly:<day>:<HH>:<MM>") or a
// full 5-field cron expression.
func ValidateSchedule(expr string) error {
	if _, err := parseCompactCron(expr, time.Now()); err == nil {
		return nil
	}
	return ValidateCron(expr)
}

// NextRunFunc computes the next run time for a schedule expression, given
// the point in time to compute it from.
type NextRunFunc func(expr string, from time.Time) (time.Time, error)

// DefaultNextRun tries the compact grammar first (interval/daily/weekly),
// falling back to the 5-field cron semantics for expressions that aren't
// in compact form. Adapted from the original implementation's
// parse_simple_cron, generalized to compute the actual next daily/weekly
// occurrence rather than always adding a flat 24h/7d (the original's own
// comment calls that "simplified").
func DefaultNextRun(expr string, from time.Time) (time.Time, error) {
	if next, err := parseCompactCron(expr, from); err == nil {
		return next, nil
	}
	return defaultCronNextRun(expr, from)
}

func parseCompactCron(expr string, from time.Time) (time.Time, error) {
	parts := strings.Split(expr, ":")
	switch len(parts) {
	case 2:
		if parts[0] != "interval" {
			return time.Time{}, fmt.Errorf("not a compact schedule")
		}
		minutes, err := strconv.Atoi(parts[1])
		if err != nil || minutes <= 0 {
			return time.Time{}, fmt.Errorf("invalid interval minutes: %q", parts[1])
		}
		return from.Add(time.Duration(minutes) * time.Minute), nil
	case 3:
		if parts[0] != "daily" {
			return time.Time{}, fmt.Errorf("not a compact schedule")
		}
		hour, minute, err := parseHourMinute(parts[1], parts[2])
		if err != nil {
			return time.Time{}, err
		}
		return nextDailyOccurrence(from, hour, minute), nil
	case 4:
		if parts[0] != "weekly" {
			return time.Time{}, fmt.Errorf("not a compact schedule")
		}
		day, ok := weekdayNames[strings.ToLower(parts[1])]
		if !ok {
			return time.Time{}, fmt.Errorf("invalid weekday: %q", parts[1])
		}
		hour, minute, err := parseHourMinute(parts[2], parts[3])
		if err != nil {
			return time.Time{}, err
		}
		return nextWeeklyOccurrence(from, day, hour, minute), nil
	default:
		return time.Time{}, fmt.Errorf("not a compact schedule")
	}
}

func parseHourMinute(hourStr, minuteStr string) (int, int, error) {
	hour, err := strconv.Atoi(hourStr)
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour: %q", hourStr)
	}
	minute, err := strconv.Atoi(minuteStr)
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute: %q", minuteStr)
	}
	return hour, minute, nil
}

func nextDailyOccurrence(from time.Time, hour, minute int) time.Time {
	next := time.Date(from.Year(), from.Month(), from.Day(), hour, minute, 0, 0, from.Location())
	if !next.After(from) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

func nextWeeklyOccurrence(from time.Time, day time.Weekday, hour, minute int) time.Time {
	next := time.Date(from.Year(), from.Month(), from.Day(), hour, minute, 0, 0, from.Location())
	daysAhead := (int(day) - int(next.Weekday()) + 7) % 7
	next = next.AddDate(0, 0, daysAhead)
	if !next.After(from) {
		next = next.AddDate(0, 0, 7)
	}
	return next
}

// defaultCronNextRun handles standard 5-field cron, adapted from the
// teacher's defaultNextRun: the special-cased forms it recognizes exactly,
// plus a next-minute fallback for anything else (a full croniter-style
// evaluator is out of scope for the compact scheduling this package
// targets).
func defaultCronNextRun(cronExpr string, from time.Time) (time.Time, error) {
	fields := strings.Fields(cronExpr)
	if len(fields) != 5 {
		return time.Time{}, fmt.Errorf("invalid cron expression")
	}

	switch cronExpr {
	case "* * * * *":
		return from.Add(time.Minute).Truncate(time.Minute), nil
	case "0 * * * *":
		return from.Truncate(time.Hour).Add(time.Hour), nil
	case "0 0 * * *":
		return time.Date(from.Year(), from.Month(), from.Day()+1, 0, 0, 0, 0, from.Location()), nil
	}

	if strings.HasPrefix(fields[0], "*/") && fields[1] == "*" && fields[2] == "*" && fields[3] == "*" && fields[4] == "*" {
		if step, err := parseCronInt(fields[0][2:]); err == nil && step > 0 {
			return from.Truncate(time.Minute).Add(time.Duration(step) * time.Minute), nil
		}
	}

	return from.Add(time.Minute).Truncate(time.Minute), nil
}
