package toolstore

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"github.com/haasonsaas/toolmind/pkg/models"
)

// caser performs locale-independent case folding for query normalization,
// ahead of the punctuation/whitespace collapse in normalize.
var caser = cases.Fold()

// Weights holds the per-signal coefficients of the search scoring function.
// The zero value is invalid; use DefaultWeights.
type Weights struct {
	ExactName         float64
	NameSubstring      float64
	TokenJaccard       float64
	FuzzyName          float64
	DescriptionHit     float64
	TagHit             float64
	CategoryHit        float64
	SynonymExpansion   float64
	PopularityBoostCap float64
}

// DefaultWeights matches the table in the Tool Store's semantic search
// contract.
func DefaultWeights() Weights {
	return Weights{
		ExactName:          0.35,
		NameSubstring:      0.15,
		TokenJaccard:       0.20,
		FuzzyName:          0.10,
		DescriptionHit:     0.08,
		TagHit:             0.07,
		CategoryHit:        0.03,
		SynonymExpansion:   0.02,
		PopularityBoostCap: 0.05,
	}
}

// DefaultSynonyms is the compiled-in static synonym table used by the
// synonym_expansion signal. Keys and values are normalized tokens.
func DefaultSynonyms() map[string][]string {
	return map[string][]string{
		"add":      {"sum", "plus", "total"},
		"sum":      {"add", "plus", "total"},
		"remove":   {"delete", "drop"},
		"delete":   {"remove", "drop"},
		"fetch":    {"get", "retrieve", "download"},
		"get":      {"fetch", "retrieve"},
		"convert":  {"transform", "translate"},
		"lookup":   {"search", "find", "query"},
		"search":   {"lookup", "find", "query"},
		"schedule": {"cron", "timer"},
		"send":     {"post", "publish", "emit"},
	}
}

// normalize case-folds, decomposes accented runes (NFKD), strips
// punctuation, and collapses whitespace, so "Café" and "cafe" match the same
// signal the way they would in the curated query set this weighting was
// tuned against.
func normalize(s string) string {
	folded := caser.String(norm.NFKD.String(s))
	var b strings.Builder
	b.Grow(len(folded))
	lastSpace := true
	for _, r := range folded {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastSpace = false
		case unicode.IsSpace(r) || unicode.IsPunct(r):
			if !lastSpace {
				b.WriteRune(' ')
				lastSpace = true
			}
		}
	}
	return strings.TrimSpace(b.String())
}

func tokenize(s string) []string {
	norm := normalize(s)
	if norm == "" {
		return nil
	}
	return strings.Fields(norm)
}

func tokenSet(parts ...string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, p := range parts {
		for _, tok := range tokenize(p) {
			set[tok] = struct{}{}
		}
	}
	return set
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	inter := 0
	for tok := range a {
		if _, ok := b[tok]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// lcsRatio returns the longest-common-subsequence length of a and b, scaled
// by the length of the longer string.
func lcsRatio(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	rows, cols := len(a)+1, len(b)+1
	prev := make([]int, cols)
	cur := make([]int, cols)
	for i := 1; i < rows; i++ {
		for j := 1; j < cols; j++ {
			if a[i-1] == b[j-1] {
				cur[j] = prev[j-1] + 1
			} else if prev[j] >= cur[j-1] {
				cur[j] = prev[j]
			} else {
				cur[j] = cur[j-1]
			}
		}
		prev, cur = cur, prev
	}
	lcsLen := prev[cols-1]
	longer := len(a)
	if len(b) > longer {
		longer = len(b)
	}
	return float64(lcsLen) / float64(longer)
}

func expandSynonyms(tokens []string, synonyms map[string][]string) map[string]struct{} {
	expanded := make(map[string]struct{}, len(tokens))
	for _, tok := range tokens {
		expanded[tok] = struct{}{}
		for _, syn := range synonyms[tok] {
			expanded[syn] = struct{}{}
		}
	}
	return expanded
}

// score computes the weighted-sum relevance of query against tool, including
// the popularity boost, per the Tool Store's semantic search contract.
func score(query string, tool *models.Tool, w Weights, synonyms map[string][]string) float64 {
	normQuery := normalize(query)
	normName := normalize(tool.Name)
	queryTokens := tokenize(query)
	queryToks := tokenSet(query)
	toolToks := tokenSet(tool.Name, tool.Description, strings.Join(tool.Tags, " "))

	var total float64

	if normQuery != "" && normQuery == normName {
		total += w.ExactName
	}

	if normQuery != "" && normName != "" && (strings.Contains(normName, normQuery) || strings.Contains(normQuery, normName)) {
		total += w.NameSubstring
	}

	total += w.TokenJaccard * jaccard(queryToks, toolToks)

	total += w.FuzzyName * lcsRatio(normQuery, normName)

	if len(queryTokens) > 0 {
		lowerDesc := strings.ToLower(tool.Description)
		for _, tok := range queryTokens {
			if tok != "" && strings.Contains(lowerDesc, tok) {
				total += w.DescriptionHit
				break
			}
		}
	}

	if len(queryTokens) > 0 && len(tool.Tags) > 0 {
		tagSet := make(map[string]struct{}, len(tool.Tags))
		for _, t := range tool.Tags {
			tagSet[normalize(t)] = struct{}{}
		}
		hits := 0
		for _, tok := range queryTokens {
			if _, ok := tagSet[tok]; ok {
				hits++
			}
		}
		total += w.TagHit * (float64(hits) / float64(len(queryTokens)))
	}

	if tool.Category != "" {
		normCategory := normalize(tool.Category)
		for _, tok := range queryTokens {
			if tok == normCategory {
				total += w.CategoryHit
				break
			}
		}
	}

	if synonyms != nil {
		expanded := expandSynonyms(queryTokens, synonyms)
		total += w.SynonymExpansion * jaccard(expanded, toolToks)
	}

	total += popularityBoost(tool.ExecutionCount, w.PopularityBoostCap)

	return total
}

// popularityBoost grows logarithmically with execution count, capped at
// boostCap.
func popularityBoost(executionCount int64, boostCap float64) float64 {
	if executionCount < 0 {
		executionCount = 0
	}
	boost := boostCap * math.Log(1+float64(executionCount)) / math.Log(101)
	if boost > boostCap {
		return boostCap
	}
	if boost < 0 {
		return 0
	}
	return boost
}

// rankCandidates scores every tool against query, drops results below
// threshold and excluded tools, sorts descending by score (ties broken by
// higher execution_count, then newer updated_at), and truncates to limit.
func rankCandidates(query string, tools []*models.Tool, opts SearchOptions, w Weights, synonyms map[string][]string) []models.SearchHit {
	hits := make([]models.SearchHit, 0, len(tools))
	for _, t := range tools {
		if opts.ExcludeBugged && (t.IsBugged || !t.IsActive) {
			continue
		}
		s := score(query, t, w, synonyms)
		if s < opts.Threshold {
			continue
		}
		hits = append(hits, models.SearchHit{Tool: t, Score: s})
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		if hits[i].Tool.ExecutionCount != hits[j].Tool.ExecutionCount {
			return hits[i].Tool.ExecutionCount > hits[j].Tool.ExecutionCount
		}
		return hits[i].Tool.UpdatedAt.After(hits[j].Tool.UpdatedAt)
	})
	if opts.Limit > 0 && len(hits) > opts.Limit {
		hits = hits[:opts.Limit]
	}
	return hits
}
