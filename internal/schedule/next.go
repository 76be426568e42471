package schedule

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/timmy/sportsclips/internal/domain"
)

const defaultIntervalMinutes = 60

// standard 5-field cron: minute hour day-of-month month day-of-week
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Spec is the input of NextRun.
type Spec struct {
	Type            domain.ScheduleType
	Timezone        string
	IntervalMinutes int
	Cron            string
}

// SpecOf extracts the schedule spec of a source or query definition.
func SpecOf(s domain.Schedule) Spec {
	return Spec{
		Type:            s.ScheduleType,
		Timezone:        s.Timezone,
		IntervalMinutes: s.RefreshIntervalMinutes,
		Cron:            s.CronExpression,
	}
}

// NextRun computes the next run time after now, or nil for MANUAL schedules.
// Calendar arithmetic happens in the schedule timezone; the result is in UTC.
func NextRun(spec Spec, now time.Time) *time.Time {
	loc := location(spec.Timezone)
	local := now.In(loc)

	var next time.Time
	switch spec.Type {
	case domain.ScheduleManual, "":
		return nil
	case domain.ScheduleHourly:
		interval := spec.IntervalMinutes
		if interval <= 0 {
			interval = defaultIntervalMinutes
		}
		next = now.Add(time.Duration(interval) * time.Minute)
	case domain.ScheduleDaily:
		next = local.AddDate(0, 0, 1)
	case domain.ScheduleWeekdays:
		next = local.AddDate(0, 0, 1)
		for next.Weekday() == time.Saturday || next.Weekday() == time.Sunday {
			next = next.AddDate(0, 0, 1)
		}
	case domain.ScheduleWeekly:
		next = local.AddDate(0, 0, 7)
	case domain.ScheduleCustom:
		sched, err := cronParser.Parse(spec.Cron)
		if err != nil {
			next = local.AddDate(0, 0, 1)
		} else {
			next = sched.Next(local)
		}
	default:
		next = local.AddDate(0, 0, 1)
	}

	next = next.UTC()
	return &next
}

// ValidateSchedule reports a human-readable problem with a schedule, or "" when it is usable.
func ValidateSchedule(s domain.Schedule) string {
	if s.Timezone != "" {
		if _, err := time.LoadLocation(s.Timezone); err != nil {
			return fmt.Sprintf("timezone %q is not a valid IANA zone", s.Timezone)
		}
	}
	switch s.ScheduleType {
	case domain.ScheduleManual, domain.ScheduleDaily, domain.ScheduleWeekdays, domain.ScheduleWeekly, "":
	case domain.ScheduleHourly:
		if s.RefreshIntervalMinutes < 0 {
			return "refresh interval must be positive"
		}
	case domain.ScheduleCustom:
		if s.CronExpression == "" {
			return "cron expression is required for CUSTOM schedules"
		}
		if _, err := cronParser.Parse(s.CronExpression); err != nil {
			return fmt.Sprintf("cron expression %q is invalid: %v", s.CronExpression, err)
		}
	default:
		return fmt.Sprintf("unknown schedule type %q", s.ScheduleType)
	}
	return ""
}

func location(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}
