package charge

import (
	"context"
	"fmt"
	"time"

	"condo/internal/core/apperror"
	"condo/internal/core/id"
	"condo/internal/core/security"
	"condo/internal/core/tx"
	"condo/internal/core/types"
	"condo/internal/domain"
	"condo/pkg/logger"
)

// Service manages definitions and issues unified charges.
type Service struct {
	definitions DefinitionRepository
	charges     UnifiedChargeRepository
	targets     TargetSource
	events      domain.EventPublisher
	txManager   tx.Manager
	location    *time.Location
	now         func() time.Time
}

// ServiceConfig wires Service dependencies.
type ServiceConfig struct {
	Definitions DefinitionRepository
	Charges     UnifiedChargeRepository
	Targets     TargetSource
	Events      domain.EventPublisher
	TxManager   tx.Manager
	Location    *time.Location   // billing calendar, defaults to UTC
	Now         func() time.Time // optional, defaults to time.Now
}

// NewService creates a charge service.
func NewService(cfg ServiceConfig) *Service {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		definitions: cfg.Definitions,
		charges:     cfg.Charges,
		targets:     cfg.Targets,
		events:      cfg.Events,
		txManager:   cfg.TxManager,
		location:    cfg.Location,
		now:         now,
	}
}

// CreateDefinition validates and stores a new billing-cycle definition.
func (s *Service) CreateDefinition(ctx context.Context, def *Definition) error {
	if err := def.Validate(ctx); err != nil {
		return err
	}
	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.definitions.Create(ctx, def); err != nil {
			return fmt.Errorf("create charge definition: %w", err)
		}
		return nil
	})
}

// GetDefinition loads a definition visible to the caller.
func (s *Service) GetDefinition(ctx context.Context, defID id.ID) (*Definition, error) {
	def, err := s.definitions.GetByID(ctx, defID)
	if err != nil {
		return nil, err
	}
	if err := security.GetScope(ctx).RequireManager("ChargeDefinition", defID.String(), def.ManagerID.String()); err != nil {
		return nil, err
	}
	return def, nil
}

// Preview computes what a unit would owe without persisting anything.
func (s *Service) Preview(kind Kind, c Coefficients, u UnitSnapshot) (Preview, error) {
	base, err := Calculate(kind, c, u)
	if err != nil {
		return Preview{}, err
	}
	return Preview{Kind: kind, BaseCharge: base.Int64()}, nil
}

// IssueResult summarizes an issuance run.
type IssueResult struct {
	Issued  int              `json:"issued"`
	Skipped int              `json:"skipped"`
	Charges []*UnifiedCharge `json:"charges"`
}

// Issue creates one unified charge of the definition per target unit.
// Units already charged for this definition are skipped, so re-issuing is safe.
// One charge.issued event per new charge feeds the SMS fan-out; delivery
// happens after commit and never affects the charges.
func (s *Service) Issue(ctx context.Context, defID id.ID, unitIDs []id.ID) (*IssueResult, error) {
	def, err := s.GetDefinition(ctx, defID)
	if err != nil {
		return nil, err
	}

	formula, err := def.Formula()
	if err != nil {
		logger.Error(ctx, "charge definition has unknown kind", "definition_id", defID, "kind", def.Kind)
		return nil, err
	}

	result := &IssueResult{}
	issuedAt := types.DateIn(s.now(), s.location)

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		targets, err := s.targets.IssueTargets(ctx, def.ManagerID, def.HouseID, unitIDs)
		if err != nil {
			return fmt.Errorf("load issue targets: %w", err)
		}
		if len(targets) == 0 {
			return apperror.NewValidation("no units to charge").WithDetail("definition_id", defID.String())
		}

		ids := make([]id.ID, len(targets))
		for i, t := range targets {
			ids[i] = t.UnitID
		}
		issued, err := s.charges.IssuedUnitIDs(ctx, def.ID, ids)
		if err != nil {
			return fmt.Errorf("load issued units: %w", err)
		}

		var (
			charges []*UnifiedCharge
			events  []domain.Event
		)
		for _, t := range targets {
			if issued[t.UnitID] {
				result.Skipped++
				continue
			}
			c := NewUnifiedCharge(def, t.UnitID, formula.Calculate(t.Snapshot()), issuedAt)
			charges = append(charges, c)

			if t.RecipientMobile == "" {
				continue
			}
			events = append(events, domain.Event{
				AggregateType: "UnifiedCharge",
				AggregateID:   c.ID,
				EventType:     domain.EventChargeIssued,
				Payload: domain.ChargeNotice{
					ChargeID:    c.ID,
					UnitID:      c.UnitID,
					Mobile:      t.RecipientMobile,
					Name:        t.RecipientName,
					ChargeTitle: def.Title,
					Amount:      c.TotalChargeMonth.Int64(),
				},
			})
		}

		if len(charges) == 0 {
			return nil
		}
		if _, err := s.charges.InsertMany(ctx, charges); err != nil {
			return fmt.Errorf("insert unified charges: %w", err)
		}
		if len(events) > 0 {
			if err := s.events.PublishBatch(ctx, events); err != nil {
				return fmt.Errorf("publish charge notices: %w", err)
			}
		}
		result.Charges = charges
		result.Issued = len(charges)
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "charges issued",
		"definition_id", defID,
		"kind", def.Kind,
		"issued", result.Issued,
		"skipped", result.Skipped,
	)
	return result, nil
}

// Preview is the computed base charge for a hypothetical unit.
type Preview struct {
	Kind       Kind  `json:"kind"`
	BaseCharge int64 `json:"baseCharge"`
}
