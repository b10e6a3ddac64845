package billing

import (
	"strings"
	"time"

	"github.com/redrule/reddigen/app/models"
)

// baselineGrant is used when a paid checkout carries an unknown plan type.
const baselineGrant = 150

// planGrants maps paid tiers to their monthly post credit ceiling.
// Enterprise is sold as a one-time "lifetime" tier but keeps the same shape.
var planGrants = map[string]int{
	models.PlanStarter:      150,
	models.PlanProfessional: 250,
	models.PlanEnterprise:   300,
}

// PlanGrant resolves the credit grant for a plan type. The grant sets both
// credits_remaining and posts_per_month on activation; it is never added to
// an existing balance.
func PlanGrant(planType string) int {
	if grant, ok := planGrants[normalizePlan(planType)]; ok {
		return grant
	}
	return baselineGrant
}

// ComputeExpiry returns the plan expiry for a billing cycle starting at now.
func ComputeExpiry(now time.Time, billingCycle string) time.Time {
	if normalizeCycle(billingCycle) == models.BillingCycleYearly {
		return now.AddDate(1, 0, 0)
	}
	return now.AddDate(0, 1, 0)
}

func normalizePlan(planType string) string {
	switch strings.ToLower(strings.TrimSpace(planType)) {
	case models.PlanStarter:
		return models.PlanStarter
	case models.PlanProfessional:
		return models.PlanProfessional
	case models.PlanEnterprise:
		return models.PlanEnterprise
	case models.PlanFree:
		return models.PlanFree
	default:
		return ""
	}
}

func normalizeCycle(billingCycle string) string {
	if strings.ToLower(strings.TrimSpace(billingCycle)) == models.BillingCycleYearly {
		return models.BillingCycleYearly
	}
	return models.BillingCycleMonthly
}
