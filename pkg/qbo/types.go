// Package qbo provides a QuickBooks Online query API client and types.
package qbo

import "strings"

// Entity names accepted by the query endpoint.
const (
	EntityBill         = "Bill"
	EntityPurchase     = "Purchase"
	EntityCheck        = "Check"
	EntityVendorCredit = "VendorCredit"
	EntityBillPayment  = "BillPayment"
	EntityAccount      = "Account"
	EntityClass        = "Class"
)

// Ref is a QuickBooks entity reference (id plus display name).
type Ref struct {
	Value string `json:"value"`
	Name  string `json:"name,omitempty"`
}

// RawTransaction is one transaction record as returned by the query API.
// The same shape covers Bill, Purchase, Check, VendorCredit and BillPayment;
// fields not present for a given entity type are simply zero.
type RawTransaction struct {
	ID          string  `json:"Id"`
	TxnDate     string  `json:"TxnDate"` // YYYY-MM-DD
	DocNumber   string  `json:"DocNumber,omitempty"`
	TotalAmt    float64 `json:"TotalAmt"`
	PrivateNote string  `json:"PrivateNote,omitempty"`
	VendorRef   *Ref    `json:"VendorRef,omitempty"`
	EntityRef   *Ref    `json:"EntityRef,omitempty"`
	CustomerRef *Ref    `json:"CustomerRef,omitempty"`
	ClassRef    *Ref    `json:"ClassRef,omitempty"`
	Line        []Line  `json:"Line,omitempty"`

	// Credit-card credit flag on Purchase records. The API emits this under
	// more than one spelling depending on the record's origin; "Credit" and
	// "credit" both land on the first field (encoding/json matches tags
	// case-insensitively), "is_credit" needs its own field.
	Credit   *bool `json:"Credit,omitempty"`
	IsCredit *bool `json:"is_credit,omitempty"`
}

// IsCreditPurchase reports whether the record is flagged as a credit-card
// credit under any of its field spellings.
func (t *RawTransaction) IsCreditPurchase() bool {
	if t.Credit != nil && *t.Credit {
		return true
	}
	return t.IsCredit != nil && *t.IsCredit
}

// Vendor returns the vendor/entity reference, preferring VendorRef.
// Checks and bill payments may carry the payee under EntityRef instead.
func (t *RawTransaction) Vendor() *Ref {
	if t.VendorRef != nil {
		return t.VendorRef
	}
	return t.EntityRef
}

// VendorKey returns a stable key for cross-entity matching: the vendor's
// external id when present, else the lowercased display name.
func (t *RawTransaction) VendorKey() string {
	v := t.Vendor()
	if v == nil {
		return ""
	}
	if v.Value != "" {
		return v.Value
	}
	return strings.ToLower(strings.TrimSpace(v.Name))
}

// Line is one line item of a transaction.
type Line struct {
	ID          string  `json:"Id,omitempty"`
	Amount      float64 `json:"Amount"`
	Description string  `json:"Description,omitempty"`
	DetailType  string  `json:"DetailType,omitempty"`

	AccountBasedExpenseLineDetail *ExpenseLineDetail `json:"AccountBasedExpenseLineDetail,omitempty"`
	ItemBasedExpenseLineDetail    *ItemLineDetail    `json:"ItemBasedExpenseLineDetail,omitempty"`
}

// ExpenseLineDetail carries the references of an account-based expense line.
type ExpenseLineDetail struct {
	AccountRef  *Ref `json:"AccountRef,omitempty"`
	ClassRef    *Ref `json:"ClassRef,omitempty"`
	CustomerRef *Ref `json:"CustomerRef,omitempty"`
}

// ItemLineDetail carries the references of an item-based expense line.
type ItemLineDetail struct {
	ItemRef     *Ref `json:"ItemRef,omitempty"`
	ClassRef    *Ref `json:"ClassRef,omitempty"`
	CustomerRef *Ref `json:"CustomerRef,omitempty"`
}

// AccountRef returns the line's account reference, if any.
func (l *Line) AccountRef() *Ref {
	if l.AccountBasedExpenseLineDetail != nil {
		return l.AccountBasedExpenseLineDetail.AccountRef
	}
	return nil
}

// ClassRef returns the line's class reference, if any.
func (l *Line) ClassRef() *Ref {
	if l.AccountBasedExpenseLineDetail != nil && l.AccountBasedExpenseLineDetail.ClassRef != nil {
		return l.AccountBasedExpenseLineDetail.ClassRef
	}
	if l.ItemBasedExpenseLineDetail != nil {
		return l.ItemBasedExpenseLineDetail.ClassRef
	}
	return nil
}

// CustomerRef returns the line's customer/job reference, if any.
func (l *Line) CustomerRef() *Ref {
	if l.AccountBasedExpenseLineDetail != nil && l.AccountBasedExpenseLineDetail.CustomerRef != nil {
		return l.AccountBasedExpenseLineDetail.CustomerRef
	}
	if l.ItemBasedExpenseLineDetail != nil {
		return l.ItemBasedExpenseLineDetail.CustomerRef
	}
	return nil
}

// Account is one row of the chart of accounts.
type Account struct {
	ID                 string `json:"Id"`
	Name               string `json:"Name"`
	FullyQualifiedName string `json:"FullyQualifiedName,omitempty"`
	AccountType        string `json:"AccountType,omitempty"`
	Active             bool   `json:"Active"`
}

// Class is one row of the class/category list.
type Class struct {
	ID                 string `json:"Id"`
	Name               string `json:"Name"`
	FullyQualifiedName string `json:"FullyQualifiedName,omitempty"`
	Active             bool   `json:"Active"`
}
