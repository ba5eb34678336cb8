// Package fund is the append-only money movement ledger.
package fund

import (
	"context"
	"fmt"
	"strings"
	"time"

	"condo/internal/core/apperror"
	"condo/internal/core/entity"
	"condo/internal/core/id"
	"condo/internal/core/numerator"
	"condo/internal/core/tx"
	"condo/internal/core/types"
)

// Descriptions used by system-generated entries.
const (
	DescOwnerFirstCharge  = "owner first charge"
	DescRenterFirstCharge = "renter first charge"
)

// DocPrefix is the numerator prefix of ledger documents.
const DocPrefix = "FND"

// Entry is one ledger line. Entries are never updated after insert.
type Entry struct {
	entity.Record

	ManagerID id.ID  `db:"manager_id" json:"managerId"`
	UnitID    id.ID  `db:"unit_id" json:"unitId"`
	AccountID *id.ID `db:"account_id" json:"accountId,omitempty"`
	ChargeID  *id.ID `db:"charge_id" json:"chargeId,omitempty"`
	BankID    *id.ID `db:"bank_id" json:"bankId,omitempty"`

	DocNumber   string `db:"doc_number" json:"docNumber"`
	Description string `db:"description" json:"description"`

	DebtorAmount   types.Amount `db:"debtor_amount" json:"debtorAmount"`
	CreditorAmount types.Amount `db:"creditor_amount" json:"creditorAmount"`

	PaymentDate          time.Time `db:"payment_date" json:"paymentDate"`
	TransactionReference *string   `db:"transaction_reference" json:"transactionReference,omitempty"`

	// IsInitial marks one-time first-charge entries; unique per unit+account+description.
	IsInitial bool `db:"is_initial" json:"isInitial"`
}

// Validate implements entity.Validatable.
func (e *Entry) Validate(ctx context.Context) error {
	if e.DebtorAmount.IsNegative() || e.CreditorAmount.IsNegative() {
		return apperror.NewValidation("ledger amounts must not be negative")
	}
	if e.DebtorAmount.IsZero() == e.CreditorAmount.IsZero() {
		return apperror.NewValidation("ledger entry must be either debtor or creditor")
	}
	if strings.TrimSpace(e.Description) == "" {
		return apperror.NewValidation("ledger description is required")
	}
	return nil
}

// NewFirstCharge builds the one-time debtor entry for a resident's opening balance.
func NewFirstCharge(managerID, unitID id.ID, accountID *id.ID, description string, amount types.Amount, day time.Time) *Entry {
	return &Entry{
		Record:       entity.NewRecord(),
		ManagerID:    managerID,
		UnitID:       unitID,
		AccountID:    accountID,
		Description:  description,
		DebtorAmount: amount,
		PaymentDate:  types.Date(day),
		IsInitial:    true,
	}
}

// NewPayment builds the creditor entry for a settled charge.
func NewPayment(managerID, unitID, chargeID id.ID, bankID *id.ID, title string, amount types.Amount, reference string, paidAt time.Time) *Entry {
	ref := reference
	cid := chargeID
	return &Entry{
		Record:               entity.NewRecord(),
		ManagerID:            managerID,
		UnitID:               unitID,
		ChargeID:             &cid,
		BankID:               bankID,
		Description:          fmt.Sprintf("payment of %s", title),
		CreditorAmount:       amount,
		PaymentDate:          paidAt.UTC(),
		TransactionReference: &ref,
	}
}

// Balance is the running position of a unit.
type Balance struct {
	UnitID   id.ID        `json:"unitId"`
	Debtor   types.Amount `json:"debtor"`
	Creditor types.Amount `json:"creditor"`
}

// Net is creditor minus debtor; negative means the unit owes.
func (b Balance) Net() types.Amount {
	return b.Creditor - b.Debtor
}

// Repository persists ledger entries.
type Repository interface {
	Create(ctx context.Context, e *Entry) error

	// HasInitial reports whether the first-charge marker already exists.
	HasInitial(ctx context.Context, unitID id.ID, accountID *id.ID, description string) (bool, error)

	ListByUnit(ctx context.Context, unitID id.ID) ([]*Entry, error)
	Balance(ctx context.Context, unitID id.ID) (Balance, error)
}

// Statement is a unit's ledger lines with the balance they sum to.
type Statement struct {
	Balance Balance
	Entries []*Entry
}

// Ledger posts entries with document numbers.
type Ledger struct {
	repo      Repository
	numerator numerator.Generator
	snapshots tx.Snapshotter
}

// NewLedger creates a ledger poster.
func NewLedger(repo Repository, gen numerator.Generator) *Ledger {
	return &Ledger{repo: repo, numerator: gen}
}

// Post validates, numbers and inserts an entry. Must run inside a transaction.
func (l *Ledger) Post(ctx context.Context, e *Entry) error {
	if err := e.Validate(ctx); err != nil {
		return err
	}
	if e.DocNumber == "" {
		num, err := l.numerator.GetNextNumber(ctx, numerator.DefaultConfig(DocPrefix), e.PaymentDate)
		if err != nil {
			return fmt.Errorf("generate doc number: %w", err)
		}
		e.DocNumber = num
	}
	if err := l.repo.Create(ctx, e); err != nil {
		return fmt.Errorf("create fund entry: %w", err)
	}
	return nil
}

// PostFirstCharge records an opening balance once. A non-positive amount or an
// existing marker is a no-op. Returns whether an entry was written.
func (l *Ledger) PostFirstCharge(ctx context.Context, e *Entry) (bool, error) {
	if !e.DebtorAmount.IsPositive() {
		return false, nil
	}
	exists, err := l.repo.HasInitial(ctx, e.UnitID, e.AccountID, e.Description)
	if err != nil {
		return false, fmt.Errorf("check first charge: %w", err)
	}
	if exists {
		return false, nil
	}
	return true, l.Post(ctx, e)
}

// Balance returns the unit's ledger position.
func (l *Ledger) Balance(ctx context.Context, unitID id.ID) (Balance, error) {
	return l.repo.Balance(ctx, unitID)
}

// History returns the unit's ledger lines.
func (l *Ledger) History(ctx context.Context, unitID id.ID) ([]*Entry, error) {
	return l.repo.ListByUnit(ctx, unitID)
}

// WithSnapshots makes Statement read balance and lines from one snapshot.
func (l *Ledger) WithSnapshots(s tx.Snapshotter) *Ledger {
	l.snapshots = s
	return l
}

// Statement returns the balance and the lines behind it.
func (l *Ledger) Statement(ctx context.Context, unitID id.ID) (Statement, error) {
	var st Statement
	read := func(ctx context.Context) error {
		var err error
		if st.Balance, err = l.repo.Balance(ctx, unitID); err != nil {
			return err
		}
		st.Entries, err = l.repo.ListByUnit(ctx, unitID)
		return err
	}
	if l.snapshots == nil {
		return st, read(ctx)
	}
	return st, l.snapshots.Snapshot(ctx, read)
}
