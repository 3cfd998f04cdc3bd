package rules

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/totalctl/internal/domain"
)

// mockRepo implements domain.RuleRepository for testing
type mockRepo struct {
	stored  []domain.Rule
	loadErr error
	saveErr error
	saves   int
}

func (m *mockRepo) Load() ([]domain.Rule, error) {
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return append([]domain.Rule(nil), m.stored...), nil
}

func (m *mockRepo) Save(rules []domain.Rule) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	m.stored = append([]domain.Rule(nil), rules...)
	return nil
}

// mockUnlocks implements domain.UnlockStore for testing
type mockUnlocks struct {
	unlocked map[string]bool
	readErr  error
	cleared  int
}

func newMockUnlocks() *mockUnlocks {
	return &mockUnlocks{unlocked: make(map[string]bool)}
}

func (m *mockUnlocks) IsUnlocked(ruleID, day string) (bool, error) {
	if m.readErr != nil {
		return false, m.readErr
	}
	return m.unlocked[ruleID+"@"+day], nil
}

func (m *mockUnlocks) Unlock(ruleID, day string) error {
	m.unlocked[ruleID+"@"+day] = true
	return nil
}

func (m *mockUnlocks) ClearUnlocks() error {
	m.cleared++
	m.unlocked = make(map[string]bool)
	return nil
}

var testNow = time.Date(2024, 3, 14, 12, 0, 0, 0, time.Local)

func stepsRule(id string, target int, items ...string) domain.Rule {
	return domain.Rule{
		ID:           id,
		BlockedItems: items,
		Condition:    domain.Condition{Kind: domain.ConditionSteps, StepsTarget: target},
		Enabled:      true,
	}
}

func passwordRule(id string, items ...string) domain.Rule {
	return domain.Rule{
		ID:           id,
		BlockedItems: items,
		Condition:    domain.Condition{Kind: domain.ConditionPassword},
		Enabled:      true,
	}
}

func newTestEngine(repo *mockRepo, unlocks domain.UnlockStore) *Engine {
	return NewEngineWithClock(repo, unlocks, func() time.Time { return testNow }, zap.NewNop())
}

func permutations(rules []domain.Rule) [][]domain.Rule {
	if len(rules) <= 1 {
		return [][]domain.Rule{rules}
	}
	var out [][]domain.Rule
	for i := range rules {
		rest := make([]domain.Rule, 0, len(rules)-1)
		rest = append(rest, rules[:i]...)
		rest = append(rest, rules[i+1:]...)
		for _, p := range permutations(rest) {
			out = append(out, append([]domain.Rule{rules[i]}, p...))
		}
	}
	return out
}

func TestBlockedItems_UnionOfUnmetRules(t *testing.T) {
	rules := []domain.Rule{
		stepsRule("a", 10000, "Netflix", "YouTube"),
		stepsRule("b", 100, "reddit"),
		{
			ID:           "c",
			BlockedItems: []string{"netflix", "twitch"},
			Condition:    domain.Condition{Kind: domain.ConditionTomorrow},
			Enabled:      true,
		},
	}
	snap := domain.ProgressSnapshot{StepsToday: 500, Now: testNow}

	got := BlockedItems(rules, snap, nil)

	assert.Equal(t, []string{"netflix", "twitch", "youtube"}, got)
}

func TestBlockedItems_Commutative(t *testing.T) {
	rules := []domain.Rule{
		stepsRule("a", 10000, "Netflix", "YouTube"),
		stepsRule("b", 10000, "youtube", "Reddit"),
		passwordRule("c", "steam"),
		{
			ID:           "d",
			BlockedItems: []string{"twitch"},
			Condition:    domain.Condition{Kind: domain.ConditionTime, TimeTarget: domain.TimeOfDay{Hour: 17}},
			Enabled:      true,
		},
	}
	snap := domain.ProgressSnapshot{StepsToday: 20, Now: testNow}

	want := BlockedItems(rules, snap, nil)
	require.Equal(t, []string{"netflix", "reddit", "steam", "twitch", "youtube"}, want)

	perms := permutations(rules)
	require.Len(t, perms, 24)
	for _, p := range perms {
		assert.Equal(t, want, BlockedItems(p, snap, nil))
	}
}

func TestBlockedItems_DisableAndReenable(t *testing.T) {
	rule := stepsRule("a", 10000, "netflix")
	snap := domain.ProgressSnapshot{Now: testNow}

	assert.Equal(t, []string{"netflix"}, BlockedItems([]domain.Rule{rule}, snap, nil))

	rule.Enabled = false
	assert.Empty(t, BlockedItems([]domain.Rule{rule}, snap, nil))

	rule.Enabled = true
	assert.Equal(t, []string{"netflix"}, BlockedItems([]domain.Rule{rule}, snap, nil))
}

func TestBlockedItems_MetConditionContributesNothing(t *testing.T) {
	rules := []domain.Rule{stepsRule("a", 1000, "netflix")}
	snap := domain.ProgressSnapshot{StepsToday: 1000, Now: testNow}

	assert.Empty(t, BlockedItems(rules, snap, nil))
}

func TestBlockedItems_UnlockedRuleTreatedAsDisabled(t *testing.T) {
	rules := []domain.Rule{passwordRule("p", "steam"), stepsRule("s", 10, "reddit")}
	snap := domain.ProgressSnapshot{Now: testNow}

	got := BlockedItems(rules, snap, func(id string) bool { return id == "p" })

	assert.Equal(t, []string{"reddit"}, got)
}

func TestEngine_AddPersistsBeforeReturning(t *testing.T) {
	repo := &mockRepo{}
	engine := newTestEngine(repo, nil)

	added, err := engine.Add(domain.Rule{
		BlockedItems: []string{" Netflix ", "netflix", "", "YouTube"},
		Condition:    domain.Condition{Kind: domain.ConditionSteps, StepsTarget: 10000},
		Enabled:      true,
	})
	require.NoError(t, err)

	assert.NotEmpty(t, added.ID)
	assert.Equal(t, testNow, added.CreatedAt)
	assert.Equal(t, []string{"Netflix", "YouTube"}, added.BlockedItems)
	require.Len(t, repo.stored, 1)
	assert.Equal(t, added.ID, repo.stored[0].ID)
	assert.Equal(t, 1, repo.saves)
}

func TestEngine_AddRejectsInvalid(t *testing.T) {
	repo := &mockRepo{}
	engine := newTestEngine(repo, nil)

	tests := []struct {
		name string
		rule domain.Rule
	}{
		{"no items", domain.Rule{BlockedItems: []string{"  "}, Condition: domain.Condition{Kind: domain.ConditionTomorrow}}},
		{"zero steps", domain.Rule{BlockedItems: []string{"x"}, Condition: domain.Condition{Kind: domain.ConditionSteps}}},
		{"zero workout", domain.Rule{BlockedItems: []string{"x"}, Condition: domain.Condition{Kind: domain.ConditionWorkout}}},
		{"missing location", domain.Rule{BlockedItems: []string{"x"}, Condition: domain.Condition{Kind: domain.ConditionLocation}}},
		{"unnamed location", domain.Rule{BlockedItems: []string{"x"}, Condition: domain.Condition{Kind: domain.ConditionLocation, Location: &domain.Location{Latitude: 1}}}},
		{"bad time", domain.Rule{BlockedItems: []string{"x"}, Condition: domain.Condition{Kind: domain.ConditionTime, TimeTarget: domain.TimeOfDay{Hour: 25}}}},
		{"unknown kind", domain.Rule{BlockedItems: []string{"x"}, Condition: domain.Condition{Kind: "moon"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := engine.Add(tt.rule)
			assert.ErrorIs(t, err, domain.ErrInvalidRule)
		})
	}
	assert.Zero(t, repo.saves)
	assert.Empty(t, engine.Rules())
}

func TestEngine_AddDefaultsLocationRadius(t *testing.T) {
	engine := newTestEngine(&mockRepo{}, nil)

	added, err := engine.Add(domain.Rule{
		BlockedItems: []string{"steam"},
		Condition: domain.Condition{
			Kind:        domain.ConditionLocation,
			StepsTarget: 500,
			Location:    &domain.Location{Name: "Gym", Latitude: 40, Longitude: -74},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, domain.DefaultRadiusMeters, added.Condition.Location.RadiusMeters)
	assert.Zero(t, added.Condition.StepsTarget)
}

func TestEngine_AddDuplicateID(t *testing.T) {
	engine := newTestEngine(&mockRepo{}, nil)

	_, err := engine.Add(stepsRule("same", 10, "a"))
	require.NoError(t, err)
	_, err = engine.Add(stepsRule("same", 10, "b"))
	assert.ErrorIs(t, err, domain.ErrInvalidRule)
}

func TestEngine_SaveFailureLeavesRulesUnchanged(t *testing.T) {
	repo := &mockRepo{}
	engine := newTestEngine(repo, nil)
	_, err := engine.Add(stepsRule("a", 10, "netflix"))
	require.NoError(t, err)

	repo.saveErr = errors.New("read-only filesystem")

	_, err = engine.Add(stepsRule("b", 10, "reddit"))
	assert.Error(t, err)
	assert.Error(t, engine.Remove("a"))
	assert.Error(t, engine.SetEnabled("a", false))

	rules := engine.Rules()
	require.Len(t, rules, 1)
	assert.True(t, rules[0].Enabled)
}

func TestEngine_RemoveAndSetEnabled(t *testing.T) {
	repo := &mockRepo{}
	engine := newTestEngine(repo, nil)
	for _, r := range []domain.Rule{stepsRule("a", 10, "x"), stepsRule("b", 10, "y"), stepsRule("c", 10, "z")} {
		_, err := engine.Add(r)
		require.NoError(t, err)
	}
	snap := domain.ProgressSnapshot{Now: testNow}

	require.NoError(t, engine.SetEnabled("b", false))
	assert.Equal(t, []string{"x", "z"}, engine.BlockedItems(snap))
	assert.False(t, repo.stored[1].Enabled)

	require.NoError(t, engine.SetEnabled("b", true))
	assert.Equal(t, []string{"x", "y", "z"}, engine.BlockedItems(snap))

	require.NoError(t, engine.Remove("a"))
	assert.Len(t, repo.stored, 2)
	assert.Equal(t, "b", repo.stored[0].ID)

	assert.ErrorIs(t, engine.Remove("missing"), domain.ErrRuleNotFound)
	assert.ErrorIs(t, engine.SetEnabled("missing", true), domain.ErrRuleNotFound)
}

func TestEngine_ReloadKeepsRulesOnError(t *testing.T) {
	repo := &mockRepo{stored: []domain.Rule{stepsRule("a", 10, "x")}}
	engine := newTestEngine(repo, nil)

	require.NoError(t, engine.Reload())
	assert.Len(t, engine.Rules(), 1)

	repo.loadErr = errors.New("permission denied")
	assert.Error(t, engine.Reload())
	assert.Len(t, engine.Rules(), 1)
}

func TestEngine_RulesReturnsCopy(t *testing.T) {
	engine := newTestEngine(&mockRepo{}, nil)
	_, err := engine.Add(stepsRule("a", 10, "netflix"))
	require.NoError(t, err)

	rules := engine.Rules()
	rules[0].BlockedItems[0] = "mutated"

	assert.Equal(t, "netflix", engine.Rules()[0].BlockedItems[0])
}

func TestEngine_Unlock(t *testing.T) {
	unlocks := newMockUnlocks()
	engine := newTestEngine(&mockRepo{}, unlocks)
	_, err := engine.Add(passwordRule("p", "steam"))
	require.NoError(t, err)
	_, err = engine.Add(stepsRule("s", 10, "reddit"))
	require.NoError(t, err)

	snap := domain.ProgressSnapshot{Now: testNow}
	assert.Equal(t, []string{"reddit", "steam"}, engine.BlockedItems(snap))

	require.NoError(t, engine.Unlock("p", snap.Day()))
	assert.Equal(t, []string{"reddit"}, engine.BlockedItems(snap))

	// Only today's override counts.
	tomorrow := domain.ProgressSnapshot{Now: testNow.Add(24 * time.Hour)}
	assert.Equal(t, []string{"reddit", "steam"}, engine.BlockedItems(tomorrow))

	assert.ErrorIs(t, engine.Unlock("s", snap.Day()), domain.ErrInvalidRule)
	assert.ErrorIs(t, engine.Unlock("missing", snap.Day()), domain.ErrRuleNotFound)
}

func TestEngine_UnlockReadErrorKeepsBlocking(t *testing.T) {
	unlocks := newMockUnlocks()
	engine := newTestEngine(&mockRepo{}, unlocks)
	_, err := engine.Add(passwordRule("p", "steam"))
	require.NoError(t, err)
	require.NoError(t, engine.Unlock("p", "2024-03-14"))

	unlocks.readErr = errors.New("database locked")

	assert.Equal(t, []string{"steam"}, engine.BlockedItems(domain.ProgressSnapshot{Now: testNow}))
}

func TestEngine_Statuses(t *testing.T) {
	engine := newTestEngine(&mockRepo{}, nil)
	_, err := engine.Add(stepsRule("a", 10000, "netflix"))
	require.NoError(t, err)
	_, err = engine.Add(stepsRule("b", 100, "reddit"))
	require.NoError(t, err)

	statuses := engine.Statuses(domain.ProgressSnapshot{StepsToday: 5000, Now: testNow})

	require.Len(t, statuses, 2)
	assert.Equal(t, "5,000/10,000 (50%)", statuses[0].Progress)
	assert.True(t, statuses[0].Blocking())
	assert.True(t, statuses[1].Met)
	assert.False(t, statuses[1].Blocking())
}

func TestEngine_Rollover(t *testing.T) {
	unlocks := newMockUnlocks()
	repo := &mockRepo{}
	engine := newTestEngine(repo, unlocks)

	yesterday := testNow.Add(-24 * time.Hour)
	old := domain.Rule{ID: "old", BlockedItems: []string{"x"}, Condition: domain.Condition{Kind: domain.ConditionTomorrow}, Enabled: true, CreatedAt: yesterday}
	fresh := domain.Rule{ID: "fresh", BlockedItems: []string{"y"}, Condition: domain.Condition{Kind: domain.ConditionTomorrow}, Enabled: true, CreatedAt: testNow.Add(-time.Hour)}
	steps := stepsRule("steps", 10, "z")
	steps.CreatedAt = yesterday
	for _, r := range []domain.Rule{old, fresh, steps} {
		_, err := engine.Add(r)
		require.NoError(t, err)
	}

	n, err := engine.Rollover()
	require.NoError(t, err)

	assert.Equal(t, 1, n)
	assert.Equal(t, 1, unlocks.cleared)
	rules := engine.Rules()
	assert.False(t, rules[0].Enabled)
	assert.True(t, rules[1].Enabled)
	assert.True(t, rules[2].Enabled)
	assert.False(t, repo.stored[0].Enabled)
}

func TestEngine_ReloadSkipsInvalidRecords(t *testing.T) {
	repo := &mockRepo{stored: []domain.Rule{
		stepsRule("a", 10, "x"),
		{ID: "empty", Condition: domain.Condition{Kind: domain.ConditionTomorrow}, Enabled: true},
		{ID: "bad-kind", BlockedItems: []string{"y"}, Condition: domain.Condition{Kind: "weather"}},
		stepsRule("a", 20, "dup"),
		{BlockedItems: []string{"z"}, Condition: domain.Condition{Kind: domain.ConditionPassword}},
		stepsRule("b", 5, " Y ", "y"),
	}}
	engine := newTestEngine(repo, nil)

	require.NoError(t, engine.Reload())

	got := engine.Rules()
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "b", got[1].ID)
	assert.Equal(t, []string{"Y"}, got[1].BlockedItems)
}

func TestEngine_ExpireTomorrowRulesKeepsUnlocks(t *testing.T) {
	unlocks := newMockUnlocks()
	engine := newTestEngine(&mockRepo{}, unlocks)

	old := domain.Rule{ID: "old", BlockedItems: []string{"x"}, Condition: domain.Condition{Kind: domain.ConditionTomorrow},
		Enabled: true, CreatedAt: testNow.Add(-48 * time.Hour)}
	_, err := engine.Add(old)
	require.NoError(t, err)
	_, err = engine.Add(passwordRule("p", "steam"))
	require.NoError(t, err)
	require.NoError(t, engine.Unlock("p", "2024-03-14"))

	n, err := engine.ExpireTomorrowRules()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Zero(t, unlocks.cleared)
	assert.Empty(t, engine.BlockedItems(domain.ProgressSnapshot{Now: testNow}))

	n, err = engine.ExpireTomorrowRules()
	require.NoError(t, err)
	assert.Zero(t, n)
}
