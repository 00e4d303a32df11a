package router

import (
	"github.com/erp/ledger/internal/interfaces/http/handler"
	"github.com/gin-gonic/gin"
)

// LedgerHandlers bundles the handlers mounted under the API prefix
type LedgerHandlers struct {
	Ledger   *handler.LedgerHandler
	Receipts *handler.ReceiptHandler
	Stream   *handler.StreamHandler
}

// LedgerRoutes returns the authenticated ledger route groups. requireAdmin
// guards the administrator-only operations.
func LedgerRoutes(h LedgerHandlers, requireAdmin gin.HandlerFunc) []RouteRegistrar {
	invoices := NewDomainGroup("invoices", "/invoices")
	invoices.POST("/checkout", h.Ledger.Checkout)
	invoices.GET("/:id/ledger", h.Ledger.GetInvoiceLedger)
	invoices.POST("/:id/payments", h.Ledger.RecordPayment)
	invoices.POST("/:id/payments/split", h.Ledger.RecordSplitPayment)
	invoices.POST("/:id/late-fee", h.Ledger.ApplyLateFee)
	invoices.POST("/:id/void", h.Ledger.VoidInvoice)
	invoices.POST("/:id/reconcile", h.Ledger.Reconcile)
	invoices.PUT("/:id/status", requireAdmin, h.Ledger.SetInvoiceStatus)

	payments := NewDomainGroup("payments", "/payments")
	payments.GET("", h.Ledger.ListPayments)
	payments.GET("/export", h.Ledger.ExportPayments)
	payments.PUT("/:id", h.Ledger.EditPayment)
	payments.DELETE("/:id", requireAdmin, h.Ledger.DeletePayment)
	payments.POST("/:id/refund", h.Ledger.RefundPayment)
	payments.POST("/:id/void", h.Ledger.VoidPayment)
	payments.GET("/:id/receipt", h.Receipts.DownloadReceipt)
	payments.POST("/:id/receipt/email", h.Receipts.EmailReceipt)

	ledger := NewDomainGroup("ledger", "/ledger")
	ledger.GET("/stream", h.Stream.Subscribe)

	return []RouteRegistrar{invoices, payments, ledger}
}

// PublicRoutes mounts the unauthenticated endpoints. The webhook is only
// mounted when online payments are enabled.
func PublicRoutes(engine *gin.Engine, basePath string, system *handler.SystemHandler, webhook *handler.StripeWebhookHandler) {
	engine.GET("/health", system.Health)
	engine.GET(basePath+"/health", system.Health)
	if webhook != nil {
		engine.POST(basePath+"/webhooks/stripe", webhook.HandleStripeWebhook)
	}
}
