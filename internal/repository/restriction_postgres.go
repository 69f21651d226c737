package repository

import (
	"context"
	"time"

	"opmelink-api/internal/model"
	"opmelink-api/internal/restriction"
)

// InsertRule stores a rule; the (owner, barcode, normalized plan) key must be new.
func (s *PostgresStore) InsertRule(ctx context.Context, rule model.RestrictionRule) error {
	created := rule.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO restriction_rules (owner_id, barcode, insurance_plan_name, plan_normalized, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (owner_id, barcode, plan_normalized) DO NOTHING`,
		rule.OwnerID, rule.Barcode, rule.InsurancePlanName, restriction.Normalize(rule.InsurancePlanName), created)
	if isUniqueViolation(err) {
		return &model.DuplicateRuleError{Rule: rule}
	}
	if err != nil {
		return model.Persistence("insert rule", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return model.Persistence("insert rule", err)
	}
	if n == 0 {
		return &model.DuplicateRuleError{Rule: rule}
	}
	return nil
}

// DeleteRule removes the rule matching the normalized plan name.
func (s *PostgresStore) DeleteRule(ctx context.Context, ownerID, barcode, insurancePlanName string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM restriction_rules WHERE owner_id = $1 AND barcode = $2 AND plan_normalized = $3`,
		ownerID, barcode, restriction.Normalize(insurancePlanName))
	if err != nil {
		return model.Persistence("delete rule", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return model.Persistence("delete rule", err)
	}
	if n == 0 {
		return &model.NotFoundError{Kind: model.KindRule, Key: barcode + "/" + insurancePlanName}
	}
	return nil
}

// ListRules returns every rule of the owner.
func (s *PostgresStore) ListRules(ctx context.Context, ownerID string) ([]model.RestrictionRule, error) {
	return s.listRules(ctx,
		`SELECT owner_id, barcode, insurance_plan_name, created_at FROM restriction_rules
		WHERE owner_id = $1 ORDER BY barcode, plan_normalized`, ownerID)
}

// ListRulesByBarcode returns the owner's rules for one barcode.
func (s *PostgresStore) ListRulesByBarcode(ctx context.Context, ownerID, barcode string) ([]model.RestrictionRule, error) {
	return s.listRules(ctx,
		`SELECT owner_id, barcode, insurance_plan_name, created_at FROM restriction_rules
		WHERE owner_id = $1 AND barcode = $2 ORDER BY plan_normalized`, ownerID, barcode)
}

func (s *PostgresStore) listRules(ctx context.Context, query string, args ...interface{}) ([]model.RestrictionRule, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, model.Persistence("list rules", err)
	}
	defer rows.Close()

	rules := []model.RestrictionRule{}
	for rows.Next() {
		var r model.RestrictionRule
		if err := rows.Scan(&r.OwnerID, &r.Barcode, &r.InsurancePlanName, &r.CreatedAt); err != nil {
			return nil, model.Persistence("scan rule", err)
		}
		r.CreatedAt = r.CreatedAt.UTC()
		rules = append(rules, r)
	}
	return rules, model.Persistence("iterate rules", rows.Err())
}
