package evolution

import (
	"context"

	"github.com/planetforge/engine/internal/domain/model"
	"github.com/planetforge/engine/pkg/metrics"
)

// achievementRule decides whether one sample's analysis unlocks a badge.
type achievementRule struct {
	achievement model.Achievement
	qualifies   func(analysis model.Analysis, pointsEarned float64) bool
}

// The fixed rule table. Each rule is evaluated against the current sample;
// lifetime deduplication happens in unlockAchievements.
var achievementRules = []achievementRule{
	{
		achievement: model.Achievement{
			ID:          "documentation_champion",
			Title:       "Documentation Champion",
			Description: "Maintained excellent code documentation",
			Points:      50,
		},
		qualifies: func(a model.Analysis, _ float64) bool {
			return a.Patterns.CommentRatio > 0.2
		},
	},
	{
		achievement: model.Achievement{
			ID:          "productivity_burst",
			Title:       "Productivity Burst",
			Description: "Achieved high learning velocity",
			Points:      25,
		},
		qualifies: func(_ model.Analysis, pointsEarned float64) bool {
			return pointsEarned > 3.0
		},
	},
}

// unlockAchievements evaluates the rule table and returns newly unlocked
// achievements. Each achievement is awarded at most once per planet lifetime.
func (e *Engine) unlockAchievements(ctx context.Context, planetID string, analysis model.Analysis, pointsEarned float64) []model.Achievement {
	var unlocked []model.Achievement
	for _, rule := range achievementRules {
		if !rule.qualifies(analysis, pointsEarned) {
			continue
		}
		key := planetID + "/" + rule.achievement.ID
		if e.deduper.SeenAndRecord(ctx, key) {
			continue
		}
		metrics.RecordAchievement(rule.achievement.ID)
		unlocked = append(unlocked, rule.achievement)
	}
	return unlocked
}
