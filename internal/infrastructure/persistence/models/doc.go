// Package models contains the GORM persistence models of the ledger tables.
// Domain entities stay free of ORM tags; repositories convert between the
// two with ToDomain and FromDomain.
package models
