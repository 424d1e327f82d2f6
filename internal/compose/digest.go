package compose

import (
	"fmt"
	"strings"
	"time"
)

// DigestEvent is one commit in a digest request. Timestamp is the
// event's RFC 3339 timestamp string as delivered by GitHub; it is only
// consulted when grouping by date.
type DigestEvent struct {
	Repo      string `json:"repo"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// DigestOptions control digest grouping.
type DigestOptions struct {
	// GroupByDate sub-groups each repository's commits by the calendar
	// date extracted from the event timestamps.
	GroupByDate bool
}

// DigestGroup is one rendered bucket: a repository (optionally pinned
// to a date) with its commit messages in original order and the keyword
// tags derived from them.
type DigestGroup struct {
	Repo     string   `json:"repo"`
	Date     string   `json:"date,omitempty"` // "2006-01-02", only when grouping by date
	Messages []string `json:"messages"`
	Tags     []string `json:"tags"`
}

// keywordTags maps case-insensitive commit-message substrings to digest
// hashtags. Checked in this order so tag output is deterministic.
var keywordTags = []struct {
	keyword string
	tag     string
}{
	{"fix", "#bugfix"},
	{"refactor", "#refactor"},
	{"test", "#testing"},
}

// Digest groups events by repository (and optionally by date),
// preserving first-appearance order of buckets and original order of
// messages inside each bucket.
func Digest(events []DigestEvent, opts DigestOptions) []DigestGroup {
	var (
		groups []DigestGroup
		index  = make(map[string]int) // bucket key → position in groups
	)

	for _, ev := range events {
		repo := ev.Repo
		if repo == "" {
			repo = FallbackRepo
		}

		date := ""
		if opts.GroupByDate {
			date = calendarDate(ev.Timestamp)
		}

		key := repo + "\x00" + date
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, DigestGroup{Repo: repo, Date: date})
		}

		g := &groups[i]
		g.Messages = append(g.Messages, ev.Message)
		for _, tag := range tagsFor(ev.Message) {
			if !contains(g.Tags, tag) {
				g.Tags = append(g.Tags, tag)
			}
		}
	}

	return groups
}

// RenderDigest flattens the groups into the multi-line preview string
// the frontend shows.
func RenderDigest(groups []DigestGroup) string {
	var b strings.Builder
	b.WriteString("📆 Recent GitHub activity\n")

	for _, g := range groups {
		b.WriteString("\n")
		if g.Date != "" {
			fmt.Fprintf(&b, "📁 %s — %s\n", g.Repo, g.Date)
		} else {
			fmt.Fprintf(&b, "📁 %s\n", g.Repo)
		}
		for _, msg := range g.Messages {
			fmt.Fprintf(&b, "  • %s\n", msg)
		}
		if len(g.Tags) > 0 {
			fmt.Fprintf(&b, "  %s\n", strings.Join(g.Tags, " "))
		}
	}

	return b.String()
}

// tagsFor derives the keyword tags for a single commit message.
func tagsFor(message string) []string {
	lower := strings.ToLower(message)

	var tags []string
	for _, kt := range keywordTags {
		if strings.Contains(lower, kt.keyword) {
			tags = append(tags, kt.tag)
		}
	}
	return tags
}

// calendarDate extracts "2006-01-02" from an RFC 3339 timestamp.
// Unparseable timestamps land in an undated bucket rather than failing
// the whole digest.
func calendarDate(ts string) string {
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return ""
	}
	return t.Format("2006-01-02")
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
