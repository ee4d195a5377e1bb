package credit

import (
	"strings"

	"github.com/fatflowers/entitlements/pkg/apperr"
)

// MinReasonLength mirrors the entitlement notes floor: adjustment reasons
// feed the audit trail and must carry enough context to be useful.
const MinReasonLength = 10

// ValidateAdjustment checks an adjustment's amount and reason without
// touching storage. The amount ceiling is business policy from config,
// expressed in cents.
func (s *Service) ValidateAdjustment(amount int64, reason string) error {
	if amount == 0 {
		return apperr.Validationf("amount must be non-zero")
	}
	ceiling := s.maxAdjustmentAmount()
	if amount > ceiling || amount < -ceiling {
		return apperr.Validationf("amount exceeds maximum of %d cents", ceiling)
	}
	if len(strings.TrimSpace(reason)) < MinReasonLength {
		return apperr.Validationf("reason must be at least %d characters", MinReasonLength)
	}
	return nil
}

func (s *Service) maxAdjustmentAmount() int64 {
	if s.cfg != nil && s.cfg.Credit.MaxAdjustmentAmount > 0 {
		return s.cfg.Credit.MaxAdjustmentAmount
	}
	return defaultMaxAdjustmentAmount
}
