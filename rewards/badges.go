package rewards

// Badge identifiers.
const (
	BadgeFirstSteps      = "first_steps"
	BadgePostureNewbie   = "posture_newbie"
	BadgePosturePro      = "posture_pro"
	BadgePerfectPosture  = "perfect_posture"
	BadgeCenturyClub     = "century_club"
	BadgeAccuracyMaster  = "accuracy_master"
	BadgeCorrectionKing  = "correction_king"
	BadgeMarathonMonitor = "marathon_monitor"
)

// Badge is a one-time unlockable achievement with a fixed point reward.
type Badge struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	Points      int    `json:"points"`
}

var catalog = []Badge{
	{ID: BadgeFirstSteps, Name: "First Steps", Description: "Complete your first 10-minute session", Icon: "🥉", Points: 50},
	{ID: BadgePostureNewbie, Name: "Posture Newbie", Description: "Accumulate 1 hour of monitoring time", Icon: "🥈", Points: 100},
	{ID: BadgePosturePro, Name: "Posture Pro", Description: "Accumulate 10 hours of monitoring time", Icon: "🥇", Points: 500},
	{ID: BadgePerfectPosture, Name: "Perfect Posture", Description: "Maintain 95%+ good posture in a session", Icon: "⭐", Points: 200},
	{ID: BadgeCenturyClub, Name: "Century Club", Description: "Complete 100 monitoring sessions", Icon: "💯", Points: 1000},
	{ID: BadgeAccuracyMaster, Name: "Accuracy Master", Description: "Maintain 90%+ good posture for 5 sessions straight", Icon: "🎯", Points: 300},
	{ID: BadgeCorrectionKing, Name: "Correction King", Description: "Correct your posture 100 times", Icon: "👑", Points: 250},
	{ID: BadgeMarathonMonitor, Name: "Marathon Monitor", Description: "Complete a 2-hour monitoring session", Icon: "🏃", Points: 400},
}

var catalogIndex = func() map[string]int {
	idx := make(map[string]int, len(catalog))
	for i, b := range catalog {
		idx[b.ID] = i
	}
	return idx
}()

// Catalog returns a copy of every badge definition in display order.
func Catalog() []Badge {
	out := make([]Badge, len(catalog))
	copy(out, catalog)
	return out
}

// LookupBadge finds a badge definition by id.
func LookupBadge(id string) (Badge, bool) {
	i, ok := catalogIndex[id]
	if !ok {
		return Badge{}, false
	}
	return catalog[i], true
}

// SplitBadges partitions the catalog into unlocked and locked lists, both in catalog order.
// Unknown ids in unlocked are ignored.
func SplitBadges(unlocked []string) (have, locked []Badge) {
	set := make(map[string]struct{}, len(unlocked))
	for _, id := range unlocked {
		set[id] = struct{}{}
	}
	have = []Badge{}
	locked = []Badge{}
	for _, b := range catalog {
		if _, ok := set[b.ID]; ok {
			have = append(have, b)
		} else {
			locked = append(locked, b)
		}
	}
	return have, locked
}
