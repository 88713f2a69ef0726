package domain

import "github.com/google/uuid"

// Platform commission wallet, provisioned at startup.
var (
	PlatformWalletID = uuid.MustParse("11111111-1111-1111-1111-111111111111")
	PlatformOwnerID  = uuid.MustParse("00000000-0000-0000-0000-000000000001")
)

const (
	DefaultCurrency = "INR"

	// Minimum charge accepted by the gateway, in minor units.
	DefaultGatewayMinAmount = 100

	DirectionDebit  = "debit"
	DirectionCredit = "credit"

	PurposeTopup          = "topup"
	PurposeProjectPayment = "project_payment"

	OrderStatusCreated   = "CREATED"
	OrderStatusConfirmed = "CONFIRMED"
	OrderStatusSettled   = "SETTLED"
	OrderStatusFailed    = "FAILED"
	OrderStatusCancelled = "CANCELLED"

	// Ledger entry reference types
	RefTypeOrder      = "order"
	RefTypeWithdrawal = "withdrawal"
	RefTypeProject    = "project"
)
