// Package docs holds the OpenAPI description served at /swagger.
// Regenerate with: swag init -g cmd/server/main.go -o docs
package docs

import "github.com/swaggo/swag/v2"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/health": {"get": {"tags": ["system"], "summary": "Health check", "operationId": "getHealth"}},
        "/invoices/checkout": {"post": {"security": [{"BearerAuth": []}], "tags": ["invoices"], "summary": "Pay several invoices", "operationId": "checkoutInvoices"}},
        "/invoices/{id}/ledger": {"get": {"security": [{"BearerAuth": []}], "tags": ["invoices"], "summary": "Get an invoice ledger", "operationId": "getInvoiceLedger"}},
        "/invoices/{id}/payments": {"post": {"security": [{"BearerAuth": []}], "tags": ["payments"], "summary": "Record a payment", "operationId": "recordPayment"}},
        "/invoices/{id}/payments/split": {"post": {"security": [{"BearerAuth": []}], "tags": ["payments"], "summary": "Record a split payment", "operationId": "recordSplitPayment"}},
        "/invoices/{id}/late-fee": {"post": {"security": [{"BearerAuth": []}], "tags": ["invoices"], "summary": "Apply the late fee", "operationId": "applyLateFee"}},
        "/invoices/{id}/void": {"post": {"security": [{"BearerAuth": []}], "tags": ["invoices"], "summary": "Void an invoice", "operationId": "voidInvoice"}},
        "/invoices/{id}/reconcile": {"post": {"security": [{"BearerAuth": []}], "tags": ["invoices"], "summary": "Reconcile invoice status", "operationId": "reconcileInvoice"}},
        "/invoices/{id}/status": {"put": {"security": [{"BearerAuth": []}], "tags": ["invoices"], "summary": "Override invoice status", "operationId": "setInvoiceStatus"}},
        "/payments": {"get": {"security": [{"BearerAuth": []}], "tags": ["payments"], "summary": "List payments", "operationId": "listPayments"}},
        "/payments/export": {"get": {"security": [{"BearerAuth": []}], "tags": ["payments"], "summary": "Export payments", "operationId": "exportPayments"}},
        "/payments/{id}": {
            "put": {"security": [{"BearerAuth": []}], "tags": ["payments"], "summary": "Edit a payment", "operationId": "editPayment"},
            "delete": {"security": [{"BearerAuth": []}], "tags": ["payments"], "summary": "Delete a payment", "operationId": "deletePayment"}
        },
        "/payments/{id}/refund": {"post": {"security": [{"BearerAuth": []}], "tags": ["payments"], "summary": "Refund a payment", "operationId": "refundPayment"}},
        "/payments/{id}/void": {"post": {"security": [{"BearerAuth": []}], "tags": ["payments"], "summary": "Void a payment", "operationId": "voidPayment"}},
        "/payments/{id}/receipt": {"get": {"security": [{"BearerAuth": []}], "tags": ["receipts"], "summary": "Download a payment receipt", "operationId": "downloadReceipt"}},
        "/payments/{id}/receipt/email": {"post": {"security": [{"BearerAuth": []}], "tags": ["receipts"], "summary": "Email a payment receipt", "operationId": "emailReceipt"}},
        "/ledger/stream": {"get": {"security": [{"BearerAuth": []}], "tags": ["ledger"], "summary": "Subscribe to ledger updates", "operationId": "subscribeLedgerStream"}},
        "/webhooks/stripe": {"post": {"tags": ["webhooks"], "summary": "Handle Stripe webhook", "operationId": "handleStripeWebhook"}}
    },
    "securityDefinitions": {
        "BearerAuth": {
            "description": "Bearer token authentication. Format: \"Bearer {token}\"",
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "Invoice Payment Ledger API",
	Description:      "Payment recording, reconciliation and settlement for customer invoices",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
