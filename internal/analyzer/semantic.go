package analyzer

import (
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/knowledgehub/knowledgehub-go/internal/models"
)

// semanticProximityFloorHours: context documents closer than this are skipped
// because temporal correlation already covers that window.
const semanticProximityFloorHours = 1.0

// keywordPatterns classify commit language into canonical keywords
var keywordPatterns = map[string]*regexp.Regexp{
	"feature":     regexp.MustCompile(`(?i)\b(feat|feature|features|add|added|adds|implement|implemented|introduce[sd]?)\b`),
	"fix":         regexp.MustCompile(`(?i)\b(fix|fixed|fixes|bug|bugfix|hotfix|patch|resolve[sd]?)\b`),
	"refactor":    regexp.MustCompile(`(?i)\b(refactor|refactored|restructure[sd]?|cleanup|rewrite|simplif(y|ied))\b`),
	"test":        regexp.MustCompile(`(?i)\b(test|tests|testing|spec|specs|coverage)\b`),
	"docs":        regexp.MustCompile(`(?i)\b(doc|docs|documentation|readme|changelog)\b`),
	"performance": regexp.MustCompile(`(?i)\b(perf|performance|optimi[sz]e[sd]?|speedup|latency|throughput)\b`),
	"security":    regexp.MustCompile(`(?i)\b(security|vulnerabilit(y|ies)|cve|auth|authn|authz|authenticat\w*|authoriz\w*|sanitize[sd]?)\b`),
}

// semanticCorrelations scores context documents by keyword, path, and derived
// content-text similarity.
//
// similarity = keywordJaccard*keyword_weight + pathJaccard*file_path_weight
//            + sequenceRatio(contentText)*commit_message_weight
func (a *Analyzer) semanticCorrelations(target models.ChangeRecord, contextDocs []models.ChangeRecord) []models.SemanticCorrelationResult {
	targetKeywords := extractKeywords(target)
	targetPaths := pathComponents(target.FilesChanged)
	targetText := contentText(target)

	results := make([]models.SemanticCorrelationResult, 0)

	for _, doc := range contextDocs {
		if doc.ID == target.ID {
			continue
		}
		if math.Abs(target.CreatedAt.Sub(doc.CreatedAt).Hours()) < semanticProximityFloorHours {
			continue
		}

		docKeywords := extractKeywords(doc)
		keywordSim, sharedKeywords := jaccardSets(targetKeywords, docKeywords)
		pathSim, _ := jaccardSets(targetPaths, pathComponents(doc.FilesChanged))
		seqSim := sequenceRatio(targetText, contentText(doc))

		similarity := keywordSim*a.cfg.KeywordWeight +
			pathSim*a.cfg.FilePathWeight +
			seqSim*a.cfg.CommitMessageWeight

		sharedTechs := a.sharedTechnologies(target, doc)
		if bonus, _ := a.richBonus(target, doc); bonus > 0 {
			similarity += bonus
		}

		similarity = clamp01(similarity)
		if similarity < a.cfg.SemanticThreshold {
			continue
		}

		result := models.SemanticCorrelationResult{
			Repository:         doc.Repository,
			CommitSHA:          doc.CommitSHA,
			Similarity:         similarity,
			SharedKeywords:     sharedKeywords,
			SharedTechnologies: sharedTechs,
		}
		if ratio, shared := fileOverlap(target.FilesChanged, doc.FilesChanged); ratio > 0 {
			result.FileOverlap = &models.FileOverlap{
				SharedFiles:  shared,
				OverlapRatio: ratio,
			}
		}
		results = append(results, result)
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})
	if len(results) > a.cfg.MaxCorrelationsPerDocument {
		results = results[:a.cfg.MaxCorrelationsPerDocument]
	}

	return results
}

// extractKeywords derives the canonical keyword set for a record from its
// commit message, change type, and file path segments.
func extractKeywords(rec models.ChangeRecord) map[string]bool {
	var sb strings.Builder
	sb.WriteString(rec.CommitMessage)
	sb.WriteString(" ")
	sb.WriteString(rec.ChangeType)
	for _, f := range rec.FilesChanged {
		sb.WriteString(" ")
		sb.WriteString(strings.ReplaceAll(f, "/", " "))
	}
	text := sb.String()

	keywords := make(map[string]bool)
	for keyword, pattern := range keywordPatterns {
		if pattern.MatchString(text) {
			keywords[keyword] = true
		}
	}
	if rec.ChangeType != "" {
		keywords[strings.ToLower(rec.ChangeType)] = true
	}
	return keywords
}

// pathComponents normalizes file paths into a set of lowercase components
func pathComponents(paths []string) map[string]bool {
	components := make(map[string]bool)
	for _, p := range paths {
		for _, part := range strings.FieldsFunc(p, func(r rune) bool {
			return r == '/' || r == '.'
		}) {
			if part != "" {
				components[strings.ToLower(part)] = true
			}
		}
	}
	return components
}

// contentText derives a flat text representation of a record for
// character-sequence comparison.
func contentText(rec models.ChangeRecord) string {
	parts := []string{rec.CommitMessage, rec.ChangeType}
	parts = append(parts, rec.FilesChanged...)
	parts = append(parts, rec.Content.Technologies...)
	parts = append(parts, rec.Content.ArchitecturePatterns...)
	return strings.ToLower(strings.Join(parts, " "))
}

// jaccardSets computes Jaccard overlap of two keyword sets and returns the
// sorted intersection.
func jaccardSets(a, b map[string]bool) (float64, []string) {
	if len(a) == 0 || len(b) == 0 {
		return 0, []string{}
	}

	shared := make([]string, 0)
	union := len(b)
	for k := range a {
		if b[k] {
			shared = append(shared, k)
		} else {
			union++
		}
	}
	if union == 0 {
		return 0, []string{}
	}
	sort.Strings(shared)
	return float64(len(shared)) / float64(union), shared
}

// sequenceRatio is a character-sequence similarity ratio: 2*M/T where M is
// the total length of recursively-matched longest common substrings and T is
// the combined length of both inputs.
func sequenceRatio(a, b string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	matched := matchingChars(a, b)
	return 2 * float64(matched) / float64(len(a)+len(b))
}

// matchingChars finds the longest common substring, then recurses on the
// unmatched fragments to its left and right.
func matchingChars(a, b string) int {
	ai, bi, size := longestCommonSubstring(a, b)
	if size == 0 {
		return 0
	}
	return size + matchingChars(a[:ai], b[:bi]) + matchingChars(a[ai+size:], b[bi+size:])
}

// longestCommonSubstring returns the start indices and length of the longest
// common substring of a and b.
func longestCommonSubstring(a, b string) (int, int, int) {
	var bestA, bestB, bestLen int
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)

	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				curr[j] = prev[j-1] + 1
				if curr[j] > bestLen {
					bestLen = curr[j]
					bestA = i - bestLen
					bestB = j - bestLen
				}
			} else {
				curr[j] = 0
			}
		}
		prev, curr = curr, prev
	}

	return bestA, bestB, bestLen
}
