package subscription

import "errors"

var (
	ErrPlanNotFound   = errors.New("plan not found")
	ErrPlanInactive   = errors.New("plan is not available")
	ErrNoSubscription = errors.New("no active subscription found")
)

// Denial reasons returned by CanCreateOrder.
const (
	ReasonNoSubscription = "No active subscription found. Please subscribe to a plan to continue."
	ReasonExpired        = "Your subscription has expired. Please renew to continue."
	// ReasonUsageUnavailable is returned when this month's swaps cannot be counted.
	ReasonUsageUnavailable = "Unable to verify your monthly swap usage. Please try again later."
	reasonLimitFormat      = "Monthly swap limit reached (%d/%d). Please upgrade your plan or wait until next month."
)
