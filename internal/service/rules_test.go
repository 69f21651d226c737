package service

import (
	"context"
	"sync"
	"testing"

	"opmelink-api/internal/model"
	"opmelink-api/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// pausingRules holds the first ListRulesByBarcode call after it has read the
// store, until release is closed.
type pausingRules struct {
	repository.RestrictionRepository
	read    chan struct{}
	release chan struct{}
	once    sync.Once
}

func (p *pausingRules) ListRulesByBarcode(ctx context.Context, ownerID, barcode string) ([]model.RestrictionRule, error) {
	rules, err := p.RestrictionRepository.ListRulesByBarcode(ctx, ownerID, barcode)
	first := false
	p.once.Do(func() { first = true })
	if first {
		close(p.read)
		<-p.release
	}
	return rules, err
}

func TestRuleService_RuleAppliesToNextLookup(t *testing.T) {
	ctx := context.Background()
	svc := NewRuleService(newTestStore(t), zap.NewNop())

	rules, err := svc.RulesFor(ctx, "o1", "789")
	require.NoError(t, err)
	assert.Empty(t, rules)

	_, err = svc.AddRule(ctx, "o1", "789", "Unimed")
	require.NoError(t, err)
	rules, err = svc.RulesFor(ctx, "o1", "789")
	require.NoError(t, err)
	require.Len(t, rules, 1)

	require.NoError(t, svc.DeleteRule(ctx, "o1", "789", " UNIMED"))
	rules, err = svc.RulesFor(ctx, "o1", "789")
	require.NoError(t, err)
	assert.Empty(t, rules)
}

func TestRuleService_LookupRacingAddRuleDoesNotHideRule(t *testing.T) {
	ctx := context.Background()
	repo := &pausingRules{
		RestrictionRepository: newTestStore(t),
		read:                  make(chan struct{}),
		release:               make(chan struct{}),
	}
	svc := NewRuleService(repo, zap.NewNop())

	done := make(chan []model.RestrictionRule)
	go func() {
		rules, _ := svc.RulesFor(ctx, "o1", "789")
		done <- rules
	}()
	<-repo.read

	_, err := svc.AddRule(ctx, "o1", "789", "Unimed")
	require.NoError(t, err)
	close(repo.release)
	assert.Empty(t, <-done, "in-flight lookup read before the rule existed")

	rules, err := svc.RulesFor(ctx, "o1", "789")
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, "Unimed", rules[0].InsurancePlanName)
}

func TestRuleService_DuplicateAndValidation(t *testing.T) {
	svc := NewRuleService(newTestStore(t), zap.NewNop())
	ctx := context.Background()

	rule, err := svc.AddRule(ctx, "o1", " 789 ", " Unimed ")
	require.NoError(t, err)
	assert.Equal(t, "789", rule.Barcode)
	assert.Equal(t, "Unimed", rule.InsurancePlanName)

	_, err = svc.AddRule(ctx, "o1", "789", "unimed")
	assert.ErrorIs(t, err, model.ErrDuplicateRule)

	_, err = svc.AddRule(ctx, "o1", "", "Unimed")
	assert.ErrorIs(t, err, model.ErrInvalidInput)
	_, err = svc.AddRule(ctx, "o1", "789", "   ")
	assert.ErrorIs(t, err, model.ErrInvalidInput)

	err = svc.DeleteRule(ctx, "o1", "789", "Amil")
	assert.ErrorIs(t, err, model.ErrNotFound)

	all, err := svc.ListRules(ctx, "o1")
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
