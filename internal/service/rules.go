package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"opmelink-api/internal/model"
	"opmelink-api/internal/repository"
	"opmelink-api/internal/restriction"

	"go.uber.org/zap"
)

// RuleService manages restriction rules and serves them to the scan path.
type RuleService struct {
	repo   repository.RestrictionRepository
	logger *zap.Logger
}

// NewRuleService creates a new rule service.
func NewRuleService(repo repository.RestrictionRepository, logger *zap.Logger) *RuleService {
	return &RuleService{repo: repo, logger: logger.Named("rules")}
}

// AddRule stores a new rule. A rule equal after normalization to an existing
// one fails with *model.DuplicateRuleError and is not retried.
func (s *RuleService) AddRule(ctx context.Context, ownerID, barcode, insurancePlanName string) (*model.RestrictionRule, error) {
	barcode = strings.TrimSpace(barcode)
	if barcode == "" {
		return nil, fmt.Errorf("%w: barcode is required", model.ErrInvalidInput)
	}
	if restriction.Normalize(insurancePlanName) == "" {
		return nil, fmt.Errorf("%w: insurance_plan_name is required", model.ErrInvalidInput)
	}

	rule := model.RestrictionRule{
		OwnerID:           ownerID,
		Barcode:           barcode,
		InsurancePlanName: strings.TrimSpace(insurancePlanName),
		CreatedAt:         time.Now().UTC(),
	}
	if err := s.repo.InsertRule(ctx, rule); err != nil {
		return nil, err
	}

	s.logger.Info("restriction added",
		zap.String("owner_id", ownerID),
		zap.String("barcode", barcode),
		zap.String("plan", rule.InsurancePlanName),
	)
	return &rule, nil
}

// DeleteRule removes the rule for barcode whose plan normalizes like insurancePlanName.
func (s *RuleService) DeleteRule(ctx context.Context, ownerID, barcode, insurancePlanName string) error {
	barcode = strings.TrimSpace(barcode)
	if err := s.repo.DeleteRule(ctx, ownerID, barcode, insurancePlanName); err != nil {
		return err
	}
	s.logger.Info("restriction removed",
		zap.String("owner_id", ownerID),
		zap.String("barcode", barcode),
		zap.String("plan", strings.TrimSpace(insurancePlanName)),
	)
	return nil
}

// ListRules returns all of the owner's rules.
func (s *RuleService) ListRules(ctx context.Context, ownerID string) ([]model.RestrictionRule, error) {
	return s.repo.ListRules(ctx, ownerID)
}

// RulesFor returns the rules that may block barcode for the owner. It always
// reads the store: a rule must take effect for the first scan after AddRule
// returns, on every instance.
func (s *RuleService) RulesFor(ctx context.Context, ownerID, barcode string) ([]model.RestrictionRule, error) {
	return s.repo.ListRulesByBarcode(ctx, ownerID, barcode)
}
