package repository

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ForUpdate adds a SELECT ... FOR UPDATE row lock to the query. Transitions
// take it on the entity row before reading state, serializing concurrent
// writers on that row. SQLite (used by the in-memory test database) has no
// row-level locks — its writes are serialized per database — so the clause is
// skipped there.
func ForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}
