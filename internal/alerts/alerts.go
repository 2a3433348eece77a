// Package alerts polls tracked clans and posts time-based war
// reminders, de-duplicated through the config store's persisted
// war-alert state.
package alerts

import (
	"fmt"
	"time"

	"github.com/mataeo-eh/CoC-Clan-Bot-sub000/internal/coc"
)

// alertWindow is slightly wider than the poll interval so a threshold
// crossing between two ticks is never missed.
const alertWindow = 6 * time.Minute

// Alert is one reminder due for a war snapshot. ID is stable per war
// and used for de-duplication.
type Alert struct {
	ID      string
	Message string
}

// DueAlerts computes which reminders should fire for a war snapshot at
// the given instant. It is pure: callers handle de-duplication and
// delivery.
func DueAlerts(clanName string, war *coc.CurrentWar, now time.Time) []Alert {
	if war == nil {
		return nil
	}
	switch war.State {
	case coc.WarStateNotInWar, coc.WarStateInMatchmaking:
		return nil
	}

	var (
		alerts         []Alert
		startRemaining = remaining(war.StartTime, now)
		endRemaining   = remaining(war.EndTime, now)
		sinceStart     = elapsed(war.StartTime, now)
		sinceEnd       = elapsed(war.EndTime, now)
	)

	queue := func(id, text string) {
		alerts = append(alerts, Alert{ID: id, Message: text})
	}

	if war.State == coc.WarStatePreparation || war.State == coc.WarStateInWar {
		if withinThreshold(startRemaining, time.Hour) {
			queue("start_1h", fmt.Sprintf("War for %s starts in 1 hour.", clanName))
		}
		if withinThreshold(startRemaining, 5*time.Minute) {
			queue("start_5m", fmt.Sprintf("War for %s starts in 5 minutes.", clanName))
		}
	}

	if war.State == coc.WarStateInWar || war.State == coc.WarStateEnded {
		if elapsedWithin(sinceStart, 5*time.Minute) {
			queue("start_plus_5m", fmt.Sprintf("War for %s started 5 minutes ago. Good luck!", clanName))
		}
	}

	if war.State == coc.WarStatePreparation || war.State == coc.WarStateInWar {
		if withinThreshold(endRemaining, 12*time.Hour) {
			queue("end_12h", fmt.Sprintf("War for %s ends in 12 hours.", clanName))
		}
		if withinThreshold(endRemaining, time.Hour) {
			queue("end_1h", fmt.Sprintf("War for %s ends in 1 hour.", clanName))
		}
		if withinThreshold(endRemaining, 5*time.Minute) {
			queue("end_5m", fmt.Sprintf("War for %s ends in 5 minutes.", clanName))
		}
	}

	if war.State == coc.WarStateInWar || war.State == coc.WarStateEnded {
		if elapsedWithin(sinceEnd, 0) {
			queue("end_result", fmt.Sprintf(
				"War for %s versus %s has %s. Final stars: %d-%d.",
				clanName, war.Opponent.Name, war.Result(), war.Clan.Stars, war.Opponent.Stars,
			))
		}
	}

	return alerts
}

// remaining returns the time until ts, or nil when ts is unknown.
func remaining(ts coc.Timestamp, now time.Time) *time.Duration {
	if ts.IsZero() {
		return nil
	}
	d := ts.Sub(now)
	return &d
}

// elapsed returns the time since ts, or nil when ts is unknown.
func elapsed(ts coc.Timestamp, now time.Time) *time.Duration {
	if ts.IsZero() {
		return nil
	}
	d := now.Sub(ts.Time)
	return &d
}

// withinThreshold reports whether a countdown sits inside the alert
// window below a threshold.
func withinThreshold(value *time.Duration, threshold time.Duration) bool {
	if value == nil {
		return false
	}
	if *value < 0 || *value > threshold {
		return false
	}
	return threshold-*value <= alertWindow
}

// elapsedWithin reports whether the time since a milestone is inside
// the alert window past a target.
func elapsedWithin(value *time.Duration, target time.Duration) bool {
	if value == nil {
		return false
	}
	if *value < target {
		return false
	}
	return *value-target <= alertWindow
}
