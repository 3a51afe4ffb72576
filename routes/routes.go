package routes

import (
	"github.com/gofiber/fiber/v2"

	"vetops-backend/controllers"
	"vetops-backend/middlewares"
)

// Register wires all HTTP routes.
func Register(app *fiber.App) {
	api := app.Group("/api")

	// Public auth endpoints
	api.Post("/registration", controllers.Register)
	api.Post("/login", controllers.Login)
	api.Post("/logout", controllers.Logout)

	// Protected endpoints (JWT auth)
	protected := api.Group("")
	protected.Use(middlewares.IsAuthenticatedHeader())

	// Idempotency guard FIRST (not tied to request TX)
	protected.Use(middlewares.Idempotency())

	// Billing routes manage their own transactions: the invoice write commits
	// first, then the stock follow-up runs in a second transaction. Wrapping
	// them in the request TX would tie the two together.
	protected.Post("/invoices", controllers.CreateInvoice)
	protected.Get("/invoices", controllers.GetInvoices)
	protected.Get("/invoice/:id", controllers.GetInvoice)
	protected.Get("/invoice-statuses", controllers.GetInvoiceStatuses)
	protected.Patch("/invoices/:id/adjust", controllers.AdjustInvoice)
	protected.Post("/invoices/:id/markAsPaid", controllers.MarkInvoiceAsPaid)
	protected.Post("/invoices/:id/items", controllers.AddInvoiceItem)
	protected.Delete("/invoices/:id/items/:itemId", controllers.RemoveInvoiceItem)
	protected.Get("/invoices/:id/revisions", controllers.GetInvoiceRevisions)
	protected.Post("/invoices/:id/stock/reconcile", controllers.ReconcileInvoiceStock)
	protected.Patch("/invoices/:id/block", controllers.BlockInvoice)
	protected.Patch("/invoices/:id/unblock", controllers.UnblockInvoice)

	// Attendance edits and appointment conclusion resynchronize invoices;
	// same two-transaction shape as above.
	protected.Post("/attendance", controllers.CreateAttendance)
	protected.Get("/attendance/:id", controllers.GetAttendance)
	protected.Put("/attendance/:id", controllers.UpdateAttendance)
	protected.Patch("/appointments/:id/complete", controllers.CompleteAppointment)

	// Plain CRUD runs inside the per-request tenant transaction.
	crud := protected.Group("")
	crud.Use(middlewares.TenantTx())

	// Owners & animals
	crud.Post("/owner", controllers.CreateOwner)
	crud.Get("/owners", controllers.GetOwners)
	crud.Get("/owner/:id", controllers.GetOwner)
	crud.Put("/owner/:id", controllers.UpdateOwner)
	crud.Post("/animal", controllers.CreateAnimal)
	crud.Get("/animals", controllers.GetAnimals)
	crud.Put("/animal/:id", controllers.UpdateAnimal)

	// Products & catalog services
	crud.Post("/product", controllers.CreateProducts) // batch create
	crud.Get("/products", controllers.GetProducts)
	crud.Get("/products/low-stock", controllers.GetLowStockProducts)
	crud.Put("/products/:id", controllers.UpdateProduct)
	crud.Post("/service", controllers.CreateService)
	crud.Get("/services", controllers.GetServices)
	crud.Put("/service/:id", controllers.UpdateService)

	// Payment conditions
	crud.Post("/payment-condition", controllers.CreatePaymentCondition)
	crud.Get("/payment-conditions", controllers.GetPaymentConditions)
	crud.Put("/payment-condition/:id", controllers.UpdatePaymentCondition)
	crud.Delete("/payment-condition/:id", controllers.DeletePaymentCondition)

	// Appointments
	crud.Post("/appointment", controllers.CreateAppointment)
	crud.Get("/appointments", controllers.GetAppointments)
}
