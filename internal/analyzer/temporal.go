package analyzer

import (
	"fmt"
	"math"
	"sort"

	"github.com/knowledgehub/knowledgehub-go/internal/models"
)

// temporalStrengthFloor is the LOW tier cutoff: weaker correlations are noise
const temporalStrengthFloor = 0.3

// temporalCorrelations scores context documents by time proximity plus
// corroborating factors.
//
// strength = timeProximity*0.4 + sameAuthor*author_weight
//          + (sameRepo*0.2 | crossRepo*0.1) + fileOverlap*0.3 + sameChangeType*0.1
// where timeProximity = max(0, 1 - deltaHours/threshold).
func (a *Analyzer) temporalCorrelations(target models.ChangeRecord, contextDocs []models.ChangeRecord) []models.TemporalCorrelationResult {
	threshold := a.cfg.TemporalThresholdHours
	results := make([]models.TemporalCorrelationResult, 0)

	for _, doc := range contextDocs {
		if doc.ID == target.ID {
			continue
		}

		deltaHours := math.Abs(target.CreatedAt.Sub(doc.CreatedAt).Hours())
		if deltaHours > threshold {
			continue
		}

		proximity := math.Max(0, 1-deltaHours/threshold)
		strength := 0.4 * proximity
		factors := []string{fmt.Sprintf("changed within %.1f hours", deltaHours)}

		if target.Author != "" && doc.Author == target.Author {
			strength += a.cfg.AuthorWeight
			factors = append(factors, "same author")
		}

		if doc.Repository == target.Repository {
			strength += 0.2
			factors = append(factors, "same repository")
		} else {
			strength += 0.1
			factors = append(factors, "cross-repository")
		}

		if ratio, shared := fileOverlap(target.FilesChanged, doc.FilesChanged); ratio > 0 {
			strength += 0.3 * ratio
			factors = append(factors, fmt.Sprintf("%d shared modified files", len(shared)))
		}

		if target.ChangeType != "" && doc.ChangeType == target.ChangeType {
			strength += 0.1
			factors = append(factors, "same change type")
		}

		if bonus, extra := a.richBonus(target, doc); bonus > 0 {
			strength += bonus
			factors = append(factors, extra...)
		}

		strength = clamp01(strength)
		if strength < temporalStrengthFloor {
			continue
		}

		results = append(results, models.TemporalCorrelationResult{
			Repository:     doc.Repository,
			CommitSHA:      doc.CommitSHA,
			TimeDeltaHours: deltaHours,
			Strength:       strength,
			Factors:        factors,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Strength > results[j].Strength
	})
	if len(results) > a.cfg.MaxCorrelationsPerDocument {
		results = results[:a.cfg.MaxCorrelationsPerDocument]
	}

	return results
}

// fileOverlap computes the Jaccard overlap of two modified-file sets and
// returns the shared paths.
func fileOverlap(a, b []string) (float64, []string) {
	if len(a) == 0 || len(b) == 0 {
		return 0, nil
	}

	setA := make(map[string]bool, len(a))
	for _, f := range a {
		setA[f] = true
	}

	var shared []string
	union := make(map[string]bool, len(a)+len(b))
	for f := range setA {
		union[f] = true
	}
	for _, f := range b {
		if setA[f] && !contains(shared, f) {
			shared = append(shared, f)
		}
		union[f] = true
	}

	if len(union) == 0 {
		return 0, nil
	}
	sort.Strings(shared)
	return float64(len(shared)) / float64(len(union)), shared
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
