// Package api exposes the reliability admin surface as Forge-style HTTP
// handlers: status, circuit breaker reset, dead-letter management, and
// replay record management.
package api

import (
	"net/http"

	"github.com/xraph/forge"

	"github.com/xraph/sentinel/controller"
	"github.com/xraph/sentinel/dlq"
	"github.com/xraph/sentinel/replay"
	"github.com/xraph/sentinel/tenant"
)

// API wires the reliability HTTP handlers together.
type API struct {
	ctrl   *controller.Controller
	router forge.Router
}

// New creates an API over a controller.
func New(ctrl *controller.Controller, router forge.Router) *API {
	return &API{ctrl: ctrl, router: router}
}

// Handler returns the fully assembled http.Handler with all routes.
func (a *API) Handler() http.Handler {
	if a.router == nil {
		a.router = forge.NewRouter()
	}
	a.RegisterRoutes(a.router)
	return a.router.Handler()
}

// RegisterRoutes registers all reliability API routes into the given
// Forge router with full OpenAPI metadata.
func (a *API) RegisterRoutes(router forge.Router) {
	a.registerStatusRoutes(router)
	a.registerBreakerRoutes(router)
	a.registerDLQRoutes(router)
	a.registerReplayRoutes(router)
	a.registerTenantRoutes(router)
}

func (a *API) registerStatusRoutes(router forge.Router) {
	g := router.Group("/v1/reliability", forge.WithGroupTags("status"))

	_ = g.GET("/status", a.getStatus,
		forge.WithSummary("Reliability status"),
		forge.WithDescription("Returns breaker state, slot usage, and dead-letter volume per tenant."),
		forge.WithOperationID("getReliabilityStatus"),
		forge.WithRequestSchema(StatusRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Reliability status", controller.Status{}),
		forge.WithErrorResponses(),
	)
}

func (a *API) registerBreakerRoutes(router forge.Router) {
	g := router.Group("/v1/reliability", forge.WithGroupTags("circuit-breaker"))

	_ = g.POST("/circuit-breaker/reset", a.resetBreaker,
		forge.WithSummary("Reset circuit breaker"),
		forge.WithDescription("Forces a tenant's circuit back to closed."),
		forge.WithOperationID("resetCircuitBreaker"),
		forge.WithRequestSchema(ResetBreakerRequest{}),
		forge.WithNoContentResponse(),
		forge.WithErrorResponses(),
	)
}

func (a *API) registerDLQRoutes(router forge.Router) {
	g := router.Group("/v1/reliability", forge.WithGroupTags("dlq"))

	_ = g.GET("/dlq", a.listDLQ,
		forge.WithSummary("List dead-letter messages"),
		forge.WithDescription("Returns dead-letter messages, newest first, optionally filtered by tenant."),
		forge.WithOperationID("listDLQ"),
		forge.WithRequestSchema(ListDLQRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Dead-letter messages", []*dlq.Message{}),
		forge.WithErrorResponses(),
	)

	_ = g.GET("/dlq/:messageId", a.getDLQ,
		forge.WithSummary("Get dead-letter message"),
		forge.WithDescription("Returns one dead-letter message by ID."),
		forge.WithOperationID("getDLQ"),
		forge.WithResponseSchema(http.StatusOK, "Dead-letter message", &dlq.Message{}),
		forge.WithErrorResponses(),
	)

	_ = g.POST("/dlq/:messageId/retry", a.retryDLQ,
		forge.WithSummary("Retry dead-letter message"),
		forge.WithDescription("Re-dispatches the message through the full reliability pipeline."),
		forge.WithOperationID("retryDLQ"),
		forge.WithResponseSchema(http.StatusOK, "Dispatch result", RetryDLQResponse{}),
		forge.WithErrorResponses(),
	)

	_ = g.DELETE("/dlq/:messageId", a.deleteDLQ,
		forge.WithSummary("Delete dead-letter message"),
		forge.WithDescription("Removes one dead-letter message."),
		forge.WithOperationID("deleteDLQ"),
		forge.WithNoContentResponse(),
		forge.WithErrorResponses(),
	)
}

func (a *API) registerReplayRoutes(router forge.Router) {
	g := router.Group("/v1/reliability", forge.WithGroupTags("replay"))

	_ = g.GET("/replay", a.listReplay,
		forge.WithSummary("List replay records"),
		forge.WithDescription("Returns processed-event records, optionally filtered by tenant. With event_id set, checks one (tenant, event) pair and 404s when it was never processed."),
		forge.WithOperationID("listReplay"),
		forge.WithRequestSchema(ListReplayRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Replay records", []*replay.Record{}),
		forge.WithErrorResponses(),
	)

	_ = g.POST("/replay", a.createReplay,
		forge.WithSummary("Create replay record"),
		forge.WithDescription("Manually marks an event as processed, suppressing future dispatches for it."),
		forge.WithOperationID("createReplay"),
		forge.WithRequestSchema(CreateReplayRequest{}),
		forge.WithResponseSchema(http.StatusCreated, "Replay record", &replay.Record{}),
		forge.WithErrorResponses(),
	)

	_ = g.DELETE("/replay", a.deleteReplay,
		forge.WithSummary("Delete replay records"),
		forge.WithDescription("Removes one replay record, or every record for a tenant when no event ID is given."),
		forge.WithOperationID("deleteReplay"),
		forge.WithRequestSchema(DeleteReplayRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Deletion summary", DeleteReplayResponse{}),
		forge.WithErrorResponses(),
	)
}

func (a *API) registerTenantRoutes(router forge.Router) {
	g := router.Group("/v1/reliability", forge.WithGroupTags("tenants"))

	_ = g.GET("/tenants", a.listTenants,
		forge.WithSummary("List tenant configs"),
		forge.WithDescription("Returns every explicitly configured tenant."),
		forge.WithOperationID("listTenantConfigs"),
		forge.WithResponseSchema(http.StatusOK, "Tenant configs", []*tenant.Config{}),
		forge.WithErrorResponses(),
	)

	_ = g.GET("/tenants/:tenantId", a.getTenant,
		forge.WithSummary("Get tenant config"),
		forge.WithDescription("Returns one tenant's reliability configuration."),
		forge.WithOperationID("getTenantConfig"),
		forge.WithResponseSchema(http.StatusOK, "Tenant config", &tenant.Config{}),
		forge.WithErrorResponses(),
	)

	_ = g.POST("/tenants/:tenantId", a.putTenant,
		forge.WithSummary("Save tenant config"),
		forge.WithDescription("Creates or replaces a tenant's reliability configuration."),
		forge.WithOperationID("saveTenantConfig"),
		forge.WithRequestSchema(tenant.Config{}),
		forge.WithResponseSchema(http.StatusOK, "Tenant config", &tenant.Config{}),
		forge.WithErrorResponses(),
	)
}
