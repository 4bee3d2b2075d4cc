package domain

const (
	// SettlementCurrency is the single currency every ledger account is held in.
	SettlementCurrency = "NGN"

	RoleUser  = "user"
	RoleAdmin = "admin"

	AuditEntityTransaction = "transaction"
	AuditEntityAccount     = "account"
)

// NotificationKind selects the template a notifier renders.
type NotificationKind string

const (
	NotifySubmitted     NotificationKind = "submitted"
	NotifyApproved      NotificationKind = "approved"
	NotifyRejected      NotificationKind = "rejected"
	NotifyNewSubmission NotificationKind = "new_submission"
)
