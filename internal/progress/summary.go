// Package progress computes learner completion and keeps saved playground state.
package progress

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/ashureev/codeando/internal/domain"
)

// Union merges automatically evaluated and manually completed IDs. Order is
// preserved: auto IDs first, then manual IDs not already present.
func Union(auto, manual []string) []string {
	seen := make(map[string]bool, len(auto)+len(manual))
	out := make([]string, 0, len(auto)+len(manual))
	for _, ids := range [][]string{auto, manual} {
		for _, id := range ids {
			if seen[id] {
				continue
			}
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

// ToggleManual adds id to the manual overlay, or removes it if already present.
func ToggleManual(manual []string, id string) []string {
	out := make([]string, 0, len(manual)+1)
	found := false
	for _, m := range manual {
		if m == id {
			found = true
			continue
		}
		out = append(out, m)
	}
	if !found {
		out = append(out, id)
	}
	return out
}

// Percentage returns completed/total as a rounded percentage. An empty
// collection counts as fully complete.
func Percentage(completed, total int) int {
	if total == 0 {
		return 100
	}
	return int(math.Floor(float64(completed)*100/float64(total) + 0.5))
}

// Summary is the progress of one lesson or project.
type Summary struct {
	Completed   int        `json:"completed"`
	Total       int        `json:"total"`
	Percentage  int        `json:"percentage"`
	LastUpdated *time.Time `json:"last_updated,omitempty"`
}

// Summarize computes a summary from a saved record (nil when never opened).
// Only IDs belonging to the collection are counted, so renamed challenges in
// the content do not inflate the result.
func Summarize(rec *domain.Progress, challenges []domain.Challenge) Summary {
	total := len(challenges)
	if rec == nil {
		return Summary{Total: total}
	}
	valid := make(map[string]bool, total)
	for _, ch := range challenges {
		valid[ch.ID] = true
	}
	completed := 0
	for _, id := range Union(rec.Completed, rec.Manual) {
		if valid[id] {
			completed++
		}
	}
	updated := rec.UpdatedAt
	return Summary{
		Completed:   completed,
		Total:       total,
		Percentage:  Percentage(completed, total),
		LastUpdated: &updated,
	}
}

// Item pairs a catalog entry with its saved progress, if any.
type Item struct {
	Entry    *domain.Entry
	Progress *domain.Progress
}

// Summary computes the summary of the item.
func (i Item) Summary() Summary {
	return Summarize(i.Progress, i.Entry.Challenges)
}

// NextRecommended returns the first entry by order that is not complete, or
// the first entry when everything is done. Nil for an empty list.
func NextRecommended(items []Item) *domain.Entry {
	if len(items) == 0 {
		return nil
	}
	sorted := make([]Item, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(a, b int) bool { return sorted[a].Entry.Order < sorted[b].Entry.Order })

	for _, it := range sorted {
		if it.Summary().Percentage < 100 {
			return it.Entry
		}
	}
	return sorted[0].Entry
}

// LastTouched returns the entry with the most recent saved progress.
func LastTouched(items []Item) *domain.Entry {
	var last *domain.Entry
	var latest time.Time
	for _, it := range items {
		if it.Progress == nil || it.Progress.UpdatedAt.IsZero() {
			continue
		}
		if it.Progress.UpdatedAt.After(latest) {
			latest = it.Progress.UpdatedAt
			last = it.Entry
		}
	}
	return last
}

// Stats aggregates progress across a collection.
type Stats struct {
	Total               int        `json:"total"`
	Completed           int        `json:"completed"`
	InProgress          int        `json:"in_progress"`
	NotStarted          int        `json:"not_started"`
	ChallengesCompleted int        `json:"challenges_completed"`
	ChallengesTotal     int        `json:"challenges_total"`
	LastActivity        *time.Time `json:"last_activity,omitempty"`
}

// Aggregate computes collection statistics.
func Aggregate(items []Item) Stats {
	s := Stats{Total: len(items)}
	for _, it := range items {
		sum := it.Summary()
		s.ChallengesTotal += sum.Total
		s.ChallengesCompleted += sum.Completed

		switch {
		case sum.Percentage == 100:
			s.Completed++
		case sum.Percentage > 0:
			s.InProgress++
		default:
			s.NotStarted++
		}

		if sum.LastUpdated != nil && (s.LastActivity == nil || sum.LastUpdated.After(*s.LastActivity)) {
			t := *sum.LastUpdated
			s.LastActivity = &t
		}
	}
	return s
}

// StreakDays counts consecutive UTC days with activity ending today, or
// yesterday when there is no activity today yet.
func StreakDays(activity []time.Time, now time.Time) int {
	days := make(map[string]bool, len(activity))
	for _, t := range activity {
		if t.IsZero() {
			continue
		}
		days[dayKey(t)] = true
	}
	if len(days) == 0 {
		return 0
	}

	check := now.UTC()
	if !days[dayKey(check)] {
		check = check.AddDate(0, 0, -1)
	}
	streak := 0
	for days[dayKey(check)] {
		streak++
		check = check.AddDate(0, 0, -1)
	}
	return streak
}

func dayKey(t time.Time) string {
	return t.UTC().Format(time.DateOnly)
}

// RelativeTime formats t relative to now in the learner-facing language.
func RelativeTime(t *time.Time, now time.Time) string {
	if t == nil || t.IsZero() {
		return "Nunca"
	}
	y1, m1, d1 := now.Date()
	y2, m2, d2 := t.In(now.Location()).Date()
	nowMidnight := time.Date(y1, m1, d1, 0, 0, 0, 0, now.Location())
	thenMidnight := time.Date(y2, m2, d2, 0, 0, 0, 0, now.Location())
	diffDays := int(math.Floor(nowMidnight.Sub(thenMidnight).Hours() / 24))

	switch {
	case diffDays <= 0:
		return "Hoy"
	case diffDays == 1:
		return "Ayer"
	case diffDays < 7:
		return fmt.Sprintf("Hace %d días", diffDays)
	case diffDays < 30:
		weeks := diffDays / 7
		if weeks > 1 {
			return fmt.Sprintf("Hace %d semanas", weeks)
		}
		return "Hace 1 semana"
	default:
		months := diffDays / 30
		if months > 1 {
			return fmt.Sprintf("Hace %d meses", months)
		}
		return "Hace 1 mes"
	}
}
