package occupancy

import (
	"time"

	"condo/internal/core/entity"
	"condo/internal/core/id"
	"condo/internal/core/types"
)

// Occupant is the identity written to a residence interval.
type Occupant struct {
	Name        string
	Mobile      string
	PeopleCount int
}

// TenancySnapshot describes the active renter after a save.
type TenancySnapshot struct {
	RenterID  id.ID
	Occupant  Occupant
	StartDate *time.Time
}

// Snapshot is the occupancy state of a unit as far as history cares.
type Snapshot struct {
	Owner  Occupant
	Renter *TenancySnapshot // nil when no renter is active
}

// SnapshotOf builds a Snapshot from a unit and its active renter.
func SnapshotOf(u *Unit, active *Renter) Snapshot {
	s := Snapshot{
		Owner: Occupant{
			Name:        u.OwnerName,
			Mobile:      u.OwnerMobile,
			PeopleCount: types.ParseCount(u.OwnerPeopleCount),
		},
	}
	if active != nil && active.IsActive {
		s.Renter = &TenancySnapshot{
			RenterID: active.ID,
			Occupant: Occupant{
				Name:        active.Name,
				Mobile:      active.Mobile,
				PeopleCount: types.ParseCount(active.PeopleCount),
			},
			StartDate: active.StartDate,
		}
	}
	return s
}

// OwnerChange classifies how the owner identity moved between two saves.
type OwnerChange int

const (
	OwnerUnchanged OwnerChange = iota
	// OwnerCorrected: name or mobile differs, not both. Same person, fixed data.
	OwnerCorrected
	// OwnerReplaced: both name and mobile differ. A new owner.
	OwnerReplaced
)

// ClassifyOwnerChange compares the stored owner identity with the submitted one.
func ClassifyOwnerChange(prevName, prevMobile, nextName, nextMobile string) OwnerChange {
	nameDiffers := prevName != nextName
	mobileDiffers := prevMobile != nextMobile
	switch {
	case nameDiffers && mobileDiffers:
		return OwnerReplaced
	case nameDiffers || mobileDiffers:
		return OwnerCorrected
	default:
		return OwnerUnchanged
	}
}

// Closure closes an open interval.
type Closure struct {
	ResidenceID id.ID
	ToDate      time.Time
}

// HistoryDelta is the set of writes that brings the ledger in line with a save.
type HistoryDelta struct {
	Close []Closure
	Amend []*Residence
	Open  []*Residence
}

// IsEmpty reports whether the delta has nothing to apply.
func (d HistoryDelta) IsEmpty() bool {
	return len(d.Close) == 0 && len(d.Amend) == 0 && len(d.Open) == 0
}

// historyPlan accumulates a delta while tracking which threads are still open.
type historyPlan struct {
	unitID     id.ID
	today      time.Time
	openOwner  *Residence
	openRenter *Residence
	delta      HistoryDelta
}

func newHistoryPlan(unitID id.ID, open []*Residence, today time.Time) *historyPlan {
	p := &historyPlan{unitID: unitID, today: types.Date(today)}
	for _, r := range open {
		if !r.IsOpen() {
			continue
		}
		switch r.ResidentType {
		case ResidentOwner:
			p.openOwner = r
		case ResidentRenter:
			p.openRenter = r
		}
	}
	return p
}

// close ends an interval at `at`, never before its own start. An interval
// opened by this same plan is inserted already closed.
func (p *historyPlan) close(r *Residence, at time.Time) {
	at = types.Date(at)
	if at.Before(r.FromDate) {
		at = types.Date(r.FromDate)
	}
	if p.pending(r) {
		r.ToDate = &at
		return
	}
	p.delta.Close = append(p.delta.Close, Closure{ResidenceID: r.ID, ToDate: at})
}

func (p *historyPlan) pending(r *Residence) bool {
	for _, o := range p.delta.Open {
		if o == r {
			return true
		}
	}
	return false
}

func (p *historyPlan) closeOwner(at time.Time) {
	if p.openOwner != nil {
		p.close(p.openOwner, at)
		p.openOwner = nil
	}
}

func (p *historyPlan) closeRenter(at time.Time) {
	if p.openRenter != nil {
		p.close(p.openRenter, at)
		p.openRenter = nil
	}
}

func (p *historyPlan) openOwnerAt(o Occupant, from time.Time) {
	r := p.newResidence(ResidentOwner, o, from)
	p.openOwner = r
	p.delta.Open = append(p.delta.Open, r)
}

func (p *historyPlan) openRenterAt(t *TenancySnapshot) {
	r := p.newResidence(ResidentRenter, t.Occupant, p.tenancyStart(t))
	renterID := t.RenterID
	r.RenterID = &renterID
	p.openRenter = r
	p.delta.Open = append(p.delta.Open, r)
}

func (p *historyPlan) amend(r *Residence, o Occupant) {
	if r.Name == o.Name && r.Mobile == o.Mobile && r.PeopleCount == o.PeopleCount {
		return
	}
	amended := *r
	amended.Name = o.Name
	amended.Mobile = o.Mobile
	amended.PeopleCount = o.PeopleCount
	p.delta.Amend = append(p.delta.Amend, &amended)
}

func (p *historyPlan) newResidence(t ResidentType, o Occupant, from time.Time) *Residence {
	return &Residence{
		Record:       entity.NewRecord(),
		UnitID:       p.unitID,
		ResidentType: t,
		Name:         o.Name,
		Mobile:       o.Mobile,
		PeopleCount:  o.PeopleCount,
		FromDate:     types.Date(from),
	}
}

func (p *historyPlan) tenancyStart(t *TenancySnapshot) time.Time {
	if t.StartDate != nil {
		return types.Date(*t.StartDate)
	}
	return p.today
}

// PlanHistory computes the ledger writes for a unit save.
//
// prev is nil when the unit is being created. open holds the unit's currently
// open intervals (at most one per thread). The owner and renter threads are
// tracked independently and only the superseded thread is closed.
func PlanHistory(unitID id.ID, prev *Snapshot, next Snapshot, open []*Residence, today time.Time) HistoryDelta {
	p := newHistoryPlan(unitID, open, today)

	if prev == nil {
		p.openOwnerAt(next.Owner, p.today)
		if next.Renter != nil {
			p.openRenterAt(next.Renter)
		}
		return p.delta
	}

	change := ClassifyOwnerChange(prev.Owner.Name, prev.Owner.Mobile, next.Owner.Name, next.Owner.Mobile)
	switch change {
	case OwnerReplaced:
		// New occupancy: previous renter is void, its interval ends today.
		// The new owner's interval opens today even when a renter moves in
		// with the same save.
		p.closeOwner(p.today)
		p.closeRenter(p.today)
		p.openOwnerAt(next.Owner, p.today)
	default:
		if p.openOwner != nil {
			p.amend(p.openOwner, next.Owner)
		}
	}

	if next.Renter == nil {
		if prev.Renter != nil && change != OwnerReplaced {
			// Tenancy ended without turnover: residency returns to the owner.
			p.closeRenter(p.today)
			if p.openOwner == nil {
				p.openOwnerAt(next.Owner, p.today)
			}
		}
		return p.delta
	}

	if p.openRenter != nil && p.openRenter.RenterID != nil && *p.openRenter.RenterID == next.Renter.RenterID {
		p.amend(p.openRenter, next.Renter.Occupant)
		return p.delta
	}

	start := p.tenancyStart(next.Renter)
	p.closeOwner(start)
	p.closeRenter(start)
	p.openRenterAt(next.Renter)
	return p.delta
}
