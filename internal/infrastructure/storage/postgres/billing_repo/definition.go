// Package billing_repo provides PostgreSQL repositories for charge
// definitions, unified charges and the fund ledger.
package billing_repo

import (
	"condo/internal/domain/charge"
	"condo/internal/infrastructure/storage/postgres"
)

const definitionTable = "charge_definitions"

// DefinitionRepo implements charge.DefinitionRepository.
type DefinitionRepo struct {
	*postgres.BaseRepo[*charge.Definition]
}

var _ charge.DefinitionRepository = (*DefinitionRepo)(nil)

// NewDefinitionRepo creates a new definition repository.
func NewDefinitionRepo(txm *postgres.TxManager) *DefinitionRepo {
	return &DefinitionRepo{
		BaseRepo: postgres.NewBaseRepo(txm, "ChargeDefinition", definitionTable, func() *charge.Definition { return &charge.Definition{} }),
	}
}
