// Package postgres implements the entity store on PostgreSQL through gorm.
//
// It shares the contract and validation of the sqlite backend; the schema is
// applied idempotently on Open.
package postgres
