// Package assemble renders ranked records into a length-budgeted,
// sectioned prompt context.
package assemble

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/engramdev/engram/internal/rank"
	"github.com/engramdev/engram/internal/text"
)

// Section score bands and per-section caps.
const (
	coreScoreMin     = 8.0
	relevantScoreMin = 5.0
	maxCoreItems     = 5
	maxRelevantItems = 8

	// Per-item hard caps, applied before any budget accounting.
	coreItemChars     = 120
	relevantItemChars = 100

	// A candidate section is admitted only while the running total
	// stays under this fraction of the budget; the remainder is
	// headroom for the mandatory user-input section.
	budgetSafety = 0.9

	defaultMaxLength = 4000
)

const userInputHeader = "[User Input]"

// Options configures one Build call.
type Options struct {
	MaxLength   int
	Personality string

	// Now overrides the clock for the time-distribution section.
	Now func() time.Time
}

// Assembler renders prompt context. The zero value works; the logger
// only records degradations.
type Assembler struct {
	log *zap.Logger
}

// New creates an Assembler.
func New(log *zap.Logger) *Assembler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Assembler{log: log}
}

// Build assembles the context string: role, core memories, relevant
// memories, topic distribution, time distribution, then the mandatory
// user input. Optional sections are skipped once the budget's safety
// margin is reached; if the result still exceeds the budget a smart
// truncation keeps the user input and as many preceding lines as fit.
// Build never fails: any internal panic degrades to a user-input-only
// context.
func (a *Assembler) Build(userInput string, ranked []rank.Scored, opts Options) (out string) {
	userSection := userInputHeader + "\n" + userInput
	defer func() {
		if r := recover(); r != nil {
			a.log.Error("context assembly failed, degrading to user input",
				zap.Any("panic", r))
			out = userSection
		}
	}()

	maxLen := opts.MaxLength
	if maxLen <= 0 {
		maxLen = defaultMaxLength
	}
	now := time.Now()
	if opts.Now != nil {
		now = opts.Now()
	}

	var sections []string
	running := 0
	admit := func(section string) {
		if section == "" {
			return
		}
		if float64(running+len(section)) >= budgetSafety*float64(maxLen) {
			return
		}
		sections = append(sections, section)
		running += len(section) + 2 // section separator
	}

	if opts.Personality != "" {
		admit("[Role]\n" + opts.Personality)
	}
	admit(memorySection("[Core Memories]", ranked, coreScoreMin, math.Inf(1), maxCoreItems, coreItemChars))
	admit(memorySection("[Relevant Memories]", ranked, relevantScoreMin, coreScoreMin, maxRelevantItems, relevantItemChars))
	admit(topicSection(ranked))
	admit(timeSection(ranked, now))

	sections = append(sections, userSection)
	result := strings.Join(sections, "\n\n")

	if len(result) > maxLen {
		result = smartTruncate(result, len(result)-len(userSection), maxLen)
	}
	return result
}

// memorySection renders records whose score falls in [min, max).
func memorySection(header string, ranked []rank.Scored, min, max float64, maxItems, itemChars int) string {
	var lines []string
	for _, sc := range ranked {
		if sc.Score < min || sc.Score >= max {
			continue
		}
		lines = append(lines, "- "+text.Truncate(sc.Content, itemChars))
		if len(lines) >= maxItems {
			break
		}
	}
	if len(lines) == 0 {
		return ""
	}
	return header + "\n" + strings.Join(lines, "\n")
}

// topicSection summarizes group membership. It only appears when at
// least two distinct groups exist and some group has more than one
// record; a single topic adds nothing.
func topicSection(ranked []rank.Scored) string {
	counts := map[string]int{}
	for _, sc := range ranked {
		if sc.GroupID != "" {
			counts[sc.GroupID]++
		}
	}
	if len(counts) < 2 {
		return ""
	}
	multi := false
	for _, n := range counts {
		if n > 1 {
			multi = true
			break
		}
	}
	if !multi {
		return ""
	}

	groups := make([]string, 0, len(counts))
	for g := range counts {
		groups = append(groups, g)
	}
	sort.Strings(groups)

	lines := make([]string, 0, len(groups)+1)
	lines = append(lines, "[Topic Distribution]")
	for _, g := range groups {
		lines = append(lines, fmt.Sprintf("- %s: %d", g, counts[g]))
	}
	return strings.Join(lines, "\n")
}

// timeSection counts fresh (<24h) and stale (>7d) records.
func timeSection(ranked []rank.Scored, now time.Time) string {
	if len(ranked) == 0 {
		return ""
	}
	fresh, stale := 0, 0
	for _, sc := range ranked {
		age := now.Sub(sc.CreatedAt)
		switch {
		case age < 24*time.Hour:
			fresh++
		case age > 7*24*time.Hour:
			stale++
		}
	}
	return fmt.Sprintf("[Time Distribution]\n- last 24h: %d\n- older than 7 days: %d", fresh, stale)
}

// smartTruncate keeps the user-input section, which starts at byte
// offset userStart, and greedily re-admits preceding lines from the
// bottom up while the total stays within maxLen, dropping the oldest
// sections first. The offset makes the split immune to user input that
// happens to contain a section header of its own.
func smartTruncate(s string, userStart, maxLen int) string {
	if userStart <= 0 || userStart >= len(s) {
		return s
	}
	kept := s[userStart:]
	lines := strings.Split(strings.TrimSuffix(s[:userStart], "\n"), "\n")

	total := len(kept)
	cut := len(lines)
	for i := len(lines) - 1; i >= 0; i-- {
		need := len(lines[i]) + 1
		if total+need > maxLen {
			break
		}
		total += need
		cut = i
	}
	if cut == len(lines) {
		return kept
	}
	return strings.Join(lines[cut:], "\n") + "\n" + kept
}
