package domain

// Internal event types published on the bus.
const (
	EventDepositInitiated      = "deposit.initiated"
	EventBetHighValueDetected  = "bet.high_value_detected"
	EventBalanceSyncRequired   = "balance.sync_required"
	EventBonusEligibilityCheck = "bonus.eligibility_checked"
	EventBonusAwarded          = "bonus.awarded"

	EventPaymentProcessed = "payment.processed"
	EventPaymentFailed    = "payment.failed"

	EventBalanceCreated           = "balance.created"
	EventBalanceCredited          = "balance.credited"
	EventBalanceDebited           = "balance.debited"
	EventBalanceThresholdExceeded = "balance.threshold.exceeded"
	EventBalanceFrozen            = "balance.frozen"
	EventBalanceUnfrozen          = "balance.unfrozen"
	EventBalanceSynced            = "balance.synced"

	EventAuditBetPlaced              = "audit.bet_placed"
	EventCustomerOnboardingCompleted = "customer.onboarding_completed"
	EventExternalSportEventStarted   = "external.sport_event.started"
	EventExternalBetPlaced           = "external.bet.placed"
	EventExternalBetSettled          = "external.bet.settled"
	EventExternalAgentBalanceChanged = "external.agent.balance_changed"
	EventExternalTelegramMessage     = "external.telegram.message"
	EventExternalCustomerRegistered  = "external.customer.registered"
)

// Notification event types. The bus has no wildcard matching, so every type a
// notifier cares about is listed here.
const (
	NotificationPaymentReceived   = "notification.payment_received"
	NotificationPaymentFailed     = "notification.payment_failed"
	NotificationBalanceAlert      = "notification.balance_alert"
	NotificationAccountFrozen     = "notification.account_frozen"
	NotificationAccountUnfrozen   = "notification.account_unfrozen"
	NotificationSportEventStarted = "notification.sport_event_started"
	NotificationBetSettled        = "notification.bet_settled"
	NotificationMessageReceived   = "notification.message_received"
	NotificationWelcome           = "notification.welcome"
	NotificationBonusAwarded      = "notification.bonus_awarded"
	NotificationDepositCompleted  = "notification.deposit_completed"
	NotificationRiskAlert         = "notification.risk_alert"
)

// NotificationTypes lists every notification.* type.
var NotificationTypes = []string{
	NotificationPaymentReceived,
	NotificationPaymentFailed,
	NotificationBalanceAlert,
	NotificationAccountFrozen,
	NotificationAccountUnfrozen,
	NotificationSportEventStarted,
	NotificationBetSettled,
	NotificationMessageReceived,
	NotificationWelcome,
	NotificationBonusAwarded,
	NotificationDepositCompleted,
	NotificationRiskAlert,
}
