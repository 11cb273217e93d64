package recon

import (
	"math"

	"github.com/ridgeline-build/jobcost-sync/pkg/classify"
	"github.com/ridgeline-build/jobcost-sync/pkg/qbo"
)

// PaymentKey identifies a bill payment for check suppression. Amount is held
// in cents so float noise never splits a match.
type PaymentKey struct {
	VendorKey   string
	AmountCents int64
	Date        string
}

func paymentKey(txn qbo.RawTransaction) PaymentKey {
	return PaymentKey{
		VendorKey:   txn.VendorKey(),
		AmountCents: int64(math.Round(txn.TotalAmt * 100)),
		Date:        txn.TxnDate,
	}
}

// BillPaymentKeys builds the key set used to suppress checks that settle a
// bill. BillPayments themselves are never emitted; a Bill records the cost,
// the payment is not a second cost.
func BillPaymentKeys(payments []qbo.RawTransaction) map[PaymentKey]bool {
	keys := make(map[PaymentKey]bool, len(payments))
	for _, p := range payments {
		keys[paymentKey(p)] = true
	}
	return keys
}

// Included reports whether a transaction of the given entity type enters
// line allocation. Only checks are ever excluded: a check whose
// (vendor, amount, date) matches a bill payment is that payment, not a
// direct expense.
func Included(entity string, txn qbo.RawTransaction, paymentKeys map[PaymentKey]bool) bool {
	switch entity {
	case qbo.EntityBill, qbo.EntityPurchase, qbo.EntityVendorCredit:
		return true
	case qbo.EntityCheck:
		return !paymentKeys[paymentKey(txn)]
	default:
		return false
	}
}

// Sign returns the amount multiplier for the entity type. Vendor credits
// reduce cost; purchases flagged as credit-card credits do too.
func Sign(entity string, txn qbo.RawTransaction) float64 {
	switch entity {
	case qbo.EntityVendorCredit:
		return -1
	case qbo.EntityPurchase:
		if txn.IsCreditPurchase() {
			return -1
		}
		return 1
	default:
		return 1
	}
}

// ProcessEntity applies the entity type's inclusion and sign rules and
// expands every included transaction into candidate rows.
func ProcessEntity(entity string, txns []qbo.RawTransaction, paymentKeys map[PaymentKey]bool, tables *classify.Tables) []JobTransaction {
	var rows []JobTransaction
	for _, txn := range txns {
		if !Included(entity, txn, paymentKeys) {
			continue
		}
		rows = append(rows, AllocateLines(txn, entity, tables, Sign(entity, txn))...)
	}
	return rows
}
