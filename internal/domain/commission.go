package domain

import "fmt"

// CommissionSplitRule is a named split of a total charge between the recipient
// (doer) and the platform. Rates are exact integer rationals, not floats, so
// recipient + platform can be verified to equal one with no rounding slack.
// Rules are immutable once constructed and are pinned to an order at creation
// time; historical orders stay auditable under the rate that applied then.
type CommissionSplitRule struct {
	Name         string `json:"name"`
	RecipientNum int64  `json:"recipient_num"`
	RecipientDen int64  `json:"recipient_den"`
	PlatformNum  int64  `json:"platform_num"`
	PlatformDen  int64  `json:"platform_den"`
}

// NewCommissionSplitRule validates and builds a split rule.
// recipientNum/recipientDen + platformNum/platformDen must equal exactly 1.
func NewCommissionSplitRule(name string, recipientNum, recipientDen, platformNum, platformDen int64) (CommissionSplitRule, error) {
	if name == "" {
		return CommissionSplitRule{}, fmt.Errorf("%w: rule name is required", ErrInvalidRate)
	}
	if recipientDen <= 0 || platformDen <= 0 {
		return CommissionSplitRule{}, fmt.Errorf("%w: denominators must be positive", ErrInvalidRate)
	}
	if recipientNum < 0 || platformNum < 0 {
		return CommissionSplitRule{}, fmt.Errorf("%w: rates must be non-negative", ErrInvalidRate)
	}
	// a/b + c/d == 1  <=>  a*d + c*b == b*d
	if recipientNum*platformDen+platformNum*recipientDen != recipientDen*platformDen {
		return CommissionSplitRule{}, fmt.Errorf("%w: recipient %d/%d + platform %d/%d != 1",
			ErrInvalidRate, recipientNum, recipientDen, platformNum, platformDen)
	}
	return CommissionSplitRule{
		Name:         name,
		RecipientNum: recipientNum,
		RecipientDen: recipientDen,
		PlatformNum:  platformNum,
		PlatformDen:  platformDen,
	}, nil
}

// StandardSplitRule is the AssignX default: two thirds to the doer, one third
// to the platform.
func StandardSplitRule() CommissionSplitRule {
	rule, err := NewCommissionSplitRule("assignx-standard-v1", 2, 3, 1, 3)
	if err != nil {
		panic(err) // constants above are valid
	}
	return rule
}

// CommissionSplit is the result of applying a rule to a total charge.
type CommissionSplit struct {
	Total          Money               `json:"total"`
	RecipientShare Money               `json:"recipient_share"`
	PlatformShare  Money               `json:"platform_share"`
	Rule           CommissionSplitRule `json:"rule"`
}

// Split deterministically divides total between recipient and platform.
// The platform share is rounded half up on minor units; the recipient share is
// total minus platform share, never rounded independently, so the two shares
// always sum to the total exactly.
func (r CommissionSplitRule) Split(total Money) CommissionSplit {
	platform := roundHalfUp(total.Amount*r.PlatformNum, r.PlatformDen)
	return CommissionSplit{
		Total:          total,
		RecipientShare: Money{Amount: total.Amount - platform, Currency: total.Currency},
		PlatformShare:  Money{Amount: platform, Currency: total.Currency},
		Rule:           r,
	}
}

// roundHalfUp computes round(num/den) with ties away from zero, num >= 0, den > 0.
func roundHalfUp(num, den int64) int64 {
	return (2*num + den) / (2 * den)
}
