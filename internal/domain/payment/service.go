package payment

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"condo/internal/core/apperror"
	appctx "condo/internal/core/context"
	"condo/internal/core/id"
	"condo/internal/core/security"
	"condo/internal/core/tx"
	"condo/internal/core/types"
	"condo/internal/domain"
	"condo/internal/domain/charge"
	"condo/internal/domain/fund"
	"condo/internal/domain/occupancy"
	"condo/pkg/logger"
)

// ManualPayment is a receipt entered by the manager.
type ManualPayment struct {
	BankID    *id.ID    `json:"bankId"`
	Reference string    `json:"reference" binding:"required"`
	PaidAt    time.Time `json:"paidAt"`
}

// Service moves charges to paid and books the money on the ledger.
type Service struct {
	charges     charge.UnifiedChargeRepository
	units       occupancy.UnitRepository
	renters     occupancy.RenterRepository
	ledger      *fund.Ledger
	events      domain.EventPublisher
	gateway     Gateway
	txManager   tx.Manager
	callbackURL string
	location    *time.Location
	now         func() time.Time
}

// ServiceConfig wires Service dependencies.
type ServiceConfig struct {
	Charges     charge.UnifiedChargeRepository
	Units       occupancy.UnitRepository
	Renters     occupancy.RenterRepository
	Ledger      *fund.Ledger
	Events      domain.EventPublisher
	Gateway     Gateway
	TxManager   tx.Manager
	CallbackURL string
	Location    *time.Location   // billing calendar, defaults to UTC
	Now         func() time.Time // optional, defaults to time.Now
}

// NewService creates a payment service.
func NewService(cfg ServiceConfig) *Service {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		charges:     cfg.Charges,
		units:       cfg.Units,
		renters:     cfg.Renters,
		ledger:      cfg.Ledger,
		events:      cfg.Events,
		gateway:     cfg.Gateway,
		txManager:   cfg.TxManager,
		callbackURL: cfg.CallbackURL,
		location:    loc,
		now:         now,
	}
}

// Request refreshes the penalty to today and opens a gateway session for the
// current total. The session authority is kept on the charge; Complete only
// accepts that authority.
func (s *Service) Request(ctx context.Context, chargeID id.ID) (Authorization, error) {
	var c *charge.UnifiedCharge
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		c, err = s.lockVisible(ctx, chargeID)
		if err != nil {
			return err
		}
		if c.IsPaid {
			return apperror.NewChargeAlreadyPaid(chargeID.String())
		}
		if !c.RecomputePenalty(s.today()) {
			return nil
		}
		c.Touch()
		if err := s.charges.Update(ctx, c); err != nil {
			return fmt.Errorf("refresh penalty: %w", err)
		}
		return nil
	})
	if err != nil {
		return Authorization{}, err
	}

	auth, err := s.gateway.RequestPayment(ctx, Request{
		ChargeID:    c.ID,
		Amount:      c.TotalChargeMonth.Int64(),
		Description: c.Title,
		CallbackURL: s.callbackFor(c.ID),
	})
	if err != nil {
		logger.Warn(ctx, "payment request failed", "charge_id", chargeID, "error", err)
		return Authorization{}, asExternal(err)
	}

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		c, err := s.charges.GetForUpdate(ctx, chargeID)
		if err != nil {
			return err
		}
		if c.IsPaid {
			return apperror.NewChargeAlreadyPaid(chargeID.String())
		}
		c.PaymentAuthority = &auth.Authority
		c.Touch()
		if err := s.charges.Update(ctx, c); err != nil {
			return fmt.Errorf("store payment authority: %w", err)
		}
		return nil
	})
	if err != nil {
		return Authorization{}, err
	}
	return auth, nil
}

// Complete verifies a returning payer with the gateway. Anything but a
// success verdict for this charge's own session and its full total leaves
// the charge unpaid.
func (s *Service) Complete(ctx context.Context, chargeID id.ID, authority string) (*charge.UnifiedCharge, error) {
	if strings.TrimSpace(authority) == "" {
		return nil, apperror.NewFieldValidation("authority", "authority is required")
	}
	c, err := s.charges.GetByID(ctx, chargeID)
	if err != nil {
		return nil, err
	}
	if !c.OpensSession(authority) {
		logger.Warn(ctx, "payment authority does not belong to charge", "charge_id", chargeID, "authority", authority)
		return nil, foreignSession()
	}

	v, err := s.gateway.Verify(ctx, authority)
	if err != nil {
		logger.Warn(ctx, "payment verification failed", "charge_id", chargeID, "error", err)
		return nil, asExternal(err)
	}
	if !v.Success {
		msg := v.Message
		if msg == "" {
			msg = "payment was not confirmed by the bank"
		}
		logger.Info(ctx, "payment not confirmed", "charge_id", chargeID, "message", msg)
		return nil, apperror.NewExternalService("payment", msg)
	}
	return s.settle(ctx, chargeID, v.Reference, s.now(), nil, func(c *charge.UnifiedCharge) error {
		if !c.OpensSession(authority) {
			return foreignSession()
		}
		if types.Amount(v.Amount) != c.TotalChargeMonth {
			logger.Warn(ctx, "verified amount differs from charge total",
				"charge_id", chargeID,
				"verified", v.Amount,
				"total", c.TotalChargeMonth.Int64(),
			)
			return apperror.NewExternalService("payment", "verified amount does not match the charge total").
				WithDetail("verified", v.Amount).
				WithDetail("total", c.TotalChargeMonth.Int64())
		}
		return nil
	})
}

func foreignSession() *apperror.AppError {
	return apperror.NewExternalService("payment", "payment session does not belong to this charge")
}

// MarkPaid settles a charge. The penalty is frozen at the day of paidAt in the
// billing location, one creditor
// entry is posted and a charge.paid event recorded. Repeating the call with
// the same reference returns the charge unchanged.
func (s *Service) MarkPaid(ctx context.Context, chargeID id.ID, reference string, paidAt time.Time) (*charge.UnifiedCharge, error) {
	return s.settle(ctx, chargeID, reference, paidAt, nil, nil)
}

// RecordManual settles a charge from a bank receipt entered by its manager.
func (s *Service) RecordManual(ctx context.Context, chargeID id.ID, p ManualPayment) (*charge.UnifiedCharge, error) {
	c, err := s.charges.GetByID(ctx, chargeID)
	if err != nil {
		return nil, err
	}
	if err := s.requireCharge(ctx, c); err != nil {
		return nil, err
	}
	paidAt := p.PaidAt
	if paidAt.IsZero() {
		paidAt = s.now()
	}
	return s.settle(ctx, chargeID, p.Reference, paidAt, p.BankID, nil)
}

// settle marks the charge paid under a row lock. accept, when set, vets the
// charge once its final total is known; an error rolls everything back.
func (s *Service) settle(ctx context.Context, chargeID id.ID, reference string, paidAt time.Time, bankID *id.ID, accept func(*charge.UnifiedCharge) error) (*charge.UnifiedCharge, error) {
	paidAt = types.DateIn(paidAt, s.location)
	var c *charge.UnifiedCharge
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		c, err = s.charges.GetForUpdate(ctx, chargeID)
		if err != nil {
			return err
		}
		applied, err := c.MarkPaid(reference, paidAt)
		if err != nil || !applied {
			return err
		}
		if accept != nil {
			if err := accept(c); err != nil {
				return err
			}
		}
		if err := s.charges.Update(ctx, c); err != nil {
			return fmt.Errorf("update charge: %w", err)
		}

		if bankID == nil {
			unit, err := s.units.GetByID(ctx, c.UnitID)
			if err != nil {
				return fmt.Errorf("load unit: %w", err)
			}
			bankID = unit.BankID
		}
		entry := fund.NewPayment(c.ManagerID, c.UnitID, c.ID, bankID, c.Title, c.TotalChargeMonth, *c.TransactionReference, *c.PaidAt)
		if err := s.ledger.Post(ctx, entry); err != nil {
			return err
		}

		return s.events.Publish(ctx, domain.Event{
			AggregateType: "UnifiedCharge",
			AggregateID:   c.ID,
			EventType:     domain.EventChargePaid,
			Payload: domain.ChargeNotice{
				ChargeID:    c.ID,
				UnitID:      c.UnitID,
				ChargeTitle: c.Title,
				Amount:      c.TotalChargeMonth.Int64(),
			},
		})
	})
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "charge paid",
		"charge_id", chargeID,
		"reference", reference,
		"total", c.TotalChargeMonth.Int64(),
	)
	return c, nil
}

func (s *Service) lockVisible(ctx context.Context, chargeID id.ID) (*charge.UnifiedCharge, error) {
	c, err := s.charges.GetForUpdate(ctx, chargeID)
	if err != nil {
		return nil, err
	}
	if err := s.requireCharge(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// requireCharge hides charges of other managers. A resident only sees
// charges of the unit they own or rent.
func (s *Service) requireCharge(ctx context.Context, c *charge.UnifiedCharge) error {
	if appctx.HasRole(ctx, appctx.RoleResident) {
		return s.requireResident(ctx, c)
	}
	return security.GetScope(ctx).RequireManager("UnifiedCharge", c.ID.String(), c.ManagerID.String())
}

func (s *Service) requireResident(ctx context.Context, c *charge.UnifiedCharge) error {
	notFound := apperror.NewNotFound("UnifiedCharge", c.ID.String())
	userID, err := id.Parse(appctx.GetUserID(ctx))
	if err != nil {
		return notFound
	}
	unit, err := s.units.GetByID(ctx, c.UnitID)
	if err != nil {
		return err
	}
	if id.Matches(unit.OwnerAccountID, userID) {
		return nil
	}
	renter, err := s.renters.GetActive(ctx, unit.ID)
	if err != nil {
		return err
	}
	if renter != nil && id.Matches(renter.AccountID, userID) {
		return nil
	}
	return notFound
}

func (s *Service) today() time.Time {
	return types.DateIn(s.now(), s.location)
}

// callbackFor returns the callback URL carrying chargeId.
func (s *Service) callbackFor(chargeID id.ID) string {
	u, err := url.Parse(s.callbackURL)
	if err != nil {
		return s.callbackURL
	}
	q := u.Query()
	q.Set("chargeId", chargeID.String())
	u.RawQuery = q.Encode()
	return u.String()
}

func asExternal(err error) error {
	if apperror.IsAppError(err) {
		return err
	}
	return apperror.NewExternalService("payment", "payment gateway is unavailable").WithCause(err)
}
