package audithook

// Action constants for audit events.
const (
	// Investor actions
	ActionInvestorRegistered = "investor.registered"

	// Investment actions
	ActionInvestmentCreated   = "investment.created"
	ActionInvestmentMatured   = "investment.matured"
	ActionInvestmentCompleted = "investment.completed"

	// Matching actions
	ActionPairingCreated = "pairing.created"
	ActionPairingFailed  = "pairing.failed"
	ActionPassCompleted  = "pass.completed"

	// Settlement actions
	ActionPaymentRecorded = "payment.recorded"

	// Referral actions
	ActionReferralBonus = "referral.bonus"
	ActionCascadeFailed = "referral.cascade_failed"
)

// Resource constants for audit events.
const (
	ResourceInvestor   = "investor"
	ResourceInvestment = "investment"
	ResourcePairing    = "pairing"
	ResourcePayment    = "payment"
	ResourceReferral   = "referral"
	ResourcePass       = "pass"
)

// Category constants for audit events.
const (
	CategoryInvestment = "investment"
	CategoryMatching   = "matching"
	CategorySettlement = "settlement"
	CategoryReferral   = "referral"
	CategoryOperations = "operations"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomePartial = "partial"
)
