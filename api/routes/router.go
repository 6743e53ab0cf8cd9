package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sppg-platform/budget-engine/api/controllers"
	"github.com/sppg-platform/budget-engine/api/middleware"
	"github.com/sppg-platform/budget-engine/internal/approvals"
	"github.com/sppg-platform/budget-engine/internal/disbursements"
	"github.com/sppg-platform/budget-engine/internal/escalation"
	"github.com/sppg-platform/budget-engine/internal/ledger"
	"github.com/sppg-platform/budget-engine/internal/procurement"
	"github.com/sppg-platform/budget-engine/internal/tenants"
	"github.com/sppg-platform/budget-engine/internal/transactions"
	"github.com/sppg-platform/budget-engine/pkg/config"
	"github.com/sppg-platform/budget-engine/pkg/enums"
	"github.com/sppg-platform/budget-engine/pkg/logger"
	pkgredis "github.com/sppg-platform/budget-engine/pkg/redis"
)

// Services bundles the domain services exposed over HTTP.
type Services struct {
	Ledger        ledger.Service
	Transactions  transactions.Service
	Disbursements disbursements.Service
	Approvals     approvals.Service
	Procurement   procurement.Service
	Escalation    escalation.Service
	Tenants       tenants.Service
}

// Infra carries the shared infrastructure handles. Nil fields disable the
// feature that depends on them.
type Infra struct {
	DB          controllers.Pinger
	Redis       controllers.Pinger
	Idempotency pkgredis.IdempotencyStore
	Metrics     prometheus.Gatherer
}

func NewRouter(cfg *config.Config, logg *logger.Logger, infra Infra, svc Services) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	deps := map[string]controllers.Pinger{}
	if infra.DB != nil {
		deps["database"] = infra.DB
	}
	if infra.Redis != nil {
		deps["redis"] = infra.Redis
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps))
	})

	if infra.Metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(infra.Metrics, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireTenant(logg))
		r.Use(middleware.Idempotency(infra.Idempotency, logg))

		r.Route("/allocations", func(r chi.Router) {
			r.Get("/", controllers.AllocationList(svc.Ledger, logg))
			r.Post("/", controllers.AllocationCreate(svc.Ledger, logg))
			r.Get("/summary", controllers.AllocationSummary(svc.Ledger, logg))
			r.Get("/{allocationID}", controllers.AllocationGet(svc.Ledger, logg))
			r.Patch("/{allocationID}", controllers.AllocationCorrect(svc.Ledger, logg))
			r.Delete("/{allocationID}", controllers.AllocationDelete(svc.Ledger, logg))
		})

		r.Route("/transactions", func(r chi.Router) {
			r.Get("/", controllers.TransactionList(svc.Transactions, logg))
			r.Post("/", controllers.TransactionRecord(svc.Transactions, logg))
			r.Get("/{transactionID}", controllers.TransactionGet(svc.Transactions, logg))
			r.Patch("/{transactionID}", controllers.TransactionUpdate(svc.Transactions, logg))
			r.Delete("/{transactionID}", controllers.TransactionDelete(svc.Transactions, logg))
		})

		r.Route("/disbursements", func(r chi.Router) {
			r.Get("/", controllers.DisbursementList(svc.Disbursements, logg))
			r.Post("/", controllers.DisbursementCreate(svc.Disbursements, logg))
			r.Get("/{disbursementID}", controllers.DisbursementGet(svc.Disbursements, logg))
			r.Put("/{disbursementID}", controllers.DisbursementUpdateDraft(svc.Disbursements, logg))
			r.Post("/{disbursementID}/transitions", controllers.DisbursementTransition(svc.Disbursements, logg))
		})

		r.Route("/approval-levels", func(r chi.Router) {
			r.Get("/", controllers.ApprovalLevelsList(svc.Approvals, logg))
			r.Put("/", controllers.ApprovalLevelsReplace(svc.Approvals, logg))
			r.Get("/resolve", controllers.ApprovalLevelResolve(svc.Approvals, logg))
		})

		r.Route("/approvals", func(r chi.Router) {
			r.Get("/", controllers.ApprovalPending(svc.Approvals, logg))
			r.Post("/", controllers.ApprovalSubmit(svc.Approvals, logg))
			r.Get("/{approvalID}", controllers.ApprovalGet(svc.Approvals, logg))
			r.Post("/{approvalID}/decision", controllers.ApprovalDecide(svc.Approvals, logg))
		})

		r.Route("/payables", func(r chi.Router) {
			r.Get("/", controllers.PayableList(svc.Procurement, logg))
			r.Post("/", controllers.PayableCreate(svc.Procurement, logg))
			r.Get("/aging", controllers.PayableAging(svc.Procurement, logg))
			r.Get("/aging/export", controllers.PayableAgingExport(svc.Procurement, logg))
			r.Get("/overdue", controllers.PayableOverdue(svc.Procurement, logg))
			r.Get("/{payableID}", controllers.PayableGet(svc.Procurement, logg))
			r.Post("/{payableID}/payments", controllers.PaymentRecord(svc.Procurement, logg))
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(logg, enums.MemberRoleSuperadmin))
		r.Use(middleware.Idempotency(infra.Idempotency, logg))

		r.Post("/escalations/run", controllers.EscalationRun(svc.Escalation, logg))
		r.Route("/tenants", func(r chi.Router) {
			r.Get("/", controllers.TenantListActive(svc.Tenants, logg))
			r.Post("/", controllers.TenantCreate(svc.Tenants, logg))
			r.Patch("/{tenantID}", controllers.TenantSetActive(svc.Tenants, logg))
		})
	})

	return r
}
