package storage

import "sort"

// StatsKey is the KV key holding the per-day, per-domain totals document.
const StatsKey = "statsByDay"

// StatsByDay maps a UTC day key to domain to accumulated whole seconds.
type StatsByDay map[string]map[string]int64

// DomainTotal pairs a domain with its accumulated seconds.
type DomainTotal struct {
	Domain  string `json:"domain"`
	Seconds int64  `json:"seconds"`
}

// Stats holds aggregate figures over a StatsByDay document.
type Stats struct {
	Days         int
	Domains      int
	TotalSeconds int64
	TodaySeconds int64
	OldestDay    string
	NewestDay    string
	TopDomains   []DomainTotal
}

// Days returns the day keys in ascending order.
func (s StatsByDay) Days() []string {
	days := make([]string, 0, len(s))
	for d := range s {
		days = append(days, d)
	}
	sort.Strings(days)
	return days
}

// Totals sums seconds per domain across the given days, sorted by seconds
// descending and then by domain.
func (s StatsByDay) Totals(days []string) []DomainTotal {
	sums := make(map[string]int64)
	for _, d := range days {
		for domain, secs := range s[d] {
			sums[domain] += secs
		}
	}
	return sortTotals(sums)
}

// Summarize computes aggregate statistics with today as the current day key.
func (s StatsByDay) Summarize(today string) Stats {
	days := s.Days()
	st := Stats{Days: len(days)}
	if len(days) > 0 {
		st.OldestDay = days[0]
		st.NewestDay = days[len(days)-1]
	}

	all := s.Totals(days)
	st.Domains = len(all)
	for _, t := range all {
		st.TotalSeconds += t.Seconds
	}
	for _, secs := range s[today] {
		st.TodaySeconds += secs
	}

	if len(all) > 10 {
		all = all[:10]
	}
	st.TopDomains = all
	return st
}

func sortTotals(sums map[string]int64) []DomainTotal {
	out := make([]DomainTotal, 0, len(sums))
	for domain, secs := range sums {
		out = append(out, DomainTotal{Domain: domain, Seconds: secs})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Seconds != out[j].Seconds {
			return out[i].Seconds > out[j].Seconds
		}
		return out[i].Domain < out[j].Domain
	})
	return out
}
