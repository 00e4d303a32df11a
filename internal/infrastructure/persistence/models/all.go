package models

// All returns every ledger model, in dependency order, for AutoMigrate in tests
// and local tooling. Production schemas come from the SQL migrations.
func All() []any {
	return []any{
		&InvoiceModel{},
		&PaymentModel{},
		&AuditLogModel{},
		&OutboxEntryModel{},
	}
}
