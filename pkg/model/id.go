package model

import (
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	secondLayout      = "20060102-150405"
	millisecondLayout = "20060102-150405.000"

	// MaxSlugLength bounds the slug part of branch ids.
	MaxSlugLength = 40
)

// IDGenerator issues time-prefixed ids. Ids from one generator never repeat
// and sort lexicographically in issue order.
type IDGenerator struct {
	mu   sync.Mutex
	last time.Time
	now  func() time.Time
}

// NewIDGenerator returns a generator reading the wall clock.
func NewIDGenerator() *IDGenerator {
	return &IDGenerator{now: time.Now}
}

var defaultIDs = NewIDGenerator()

// NewGoalID returns a goal id: second-resolution timestamp plus a random suffix.
func NewGoalID() string { return defaultIDs.Coarse("goal") }

// NewProjectID returns a project id.
func NewProjectID() string { return defaultIDs.Coarse("proj") }

// NewSnapshotID returns a snapshot id whose lexicographic order equals creation order.
func NewSnapshotID() string { return defaultIDs.Fine("snap") }

// Coarse returns prefix_<yyyymmdd-hhmmss>_<8 hex>.
func (g *IDGenerator) Coarse(prefix string) string {
	t := g.now().UTC()
	return prefix + "_" + t.Format(secondLayout) + "_" + randomSuffix(8)
}

// Fine returns prefix_<yyyymmdd-hhmmss.mmm>_<4 hex>. The timestamp is bumped
// by a millisecond whenever the clock has not advanced past the previous id.
func (g *IDGenerator) Fine(prefix string) string {
	g.mu.Lock()
	t := g.now().UTC().Truncate(time.Millisecond)
	if !t.After(g.last) {
		t = g.last.Add(time.Millisecond)
	}
	g.last = t
	g.mu.Unlock()
	return prefix + "_" + t.Format(millisecondLayout) + "_" + randomSuffix(4)
}

func randomSuffix(n int) string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return hex[:n]
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lowercases s, collapses runs of non-alphanumerics into single
// hyphens and truncates the result to MaxSlugLength.
func Slugify(s string) string {
	slug := nonSlug.ReplaceAllString(strings.ToLower(s), "-")
	slug = strings.Trim(slug, "-")
	if len(slug) > MaxSlugLength {
		slug = strings.TrimRight(slug[:MaxSlugLength], "-")
	}
	return slug
}

// BranchID derives a branch id from a branch name.
func BranchID(name string) string {
	return "branch_" + strings.ReplaceAll(Slugify(name), "-", "_")
}
