package handler

import (
	"time"

	"github.com/google/uuid"

	appcommerce "github.com/storesync/backend/internal/application/commerce"
	"github.com/storesync/backend/internal/domain/commerce"
	"github.com/storesync/backend/internal/infrastructure/scheduler"
)

// =====================
// Webhook DTOs
// =====================

// WebhookAck is returned for every authenticated webhook delivery
type WebhookAck struct {
	Received bool   `json:"received"`
	Topic    string `json:"topic"`
	Outcome  string `json:"outcome"`
}

// WebhookRegistrationResponse represents one registered topic
type WebhookRegistrationResponse struct {
	Topic      string    `json:"topic"`
	Address    string    `json:"address"`
	ExternalID string    `json:"external_id,omitempty"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// RegisterWebhooksResponse lists the topics registered for a tenant. Failed
// holds one message per topic that could not be registered.
type RegisterWebhooksResponse struct {
	TenantID      uuid.UUID                     `json:"tenant_id"`
	Registrations []WebhookRegistrationResponse `json:"registrations"`
	Failed        []string                      `json:"failed,omitempty"`
}

// =====================
// Sync DTOs
// =====================

// ResourceReportResponse summarizes one resource step
type ResourceReportResponse struct {
	Resource         string `json:"resource"`
	Fetched          int    `json:"fetched"`
	Created          int    `json:"created"`
	Updated          int    `json:"updated"`
	Skipped          int    `json:"skipped"`
	Failed           int    `json:"failed"`
	Pages            int    `json:"pages"`
	Partial          bool   `json:"partial,omitempty"`
	PageLimitReached bool   `json:"page_limit_reached,omitempty"`
	Denied           bool   `json:"denied,omitempty"`
	Error            string `json:"error,omitempty"`
}

// TenantSyncResponse summarizes one tenant sync
type TenantSyncResponse struct {
	TenantID   uuid.UUID                `json:"tenant_id"`
	Trigger    string                   `json:"trigger"`
	StartedAt  time.Time                `json:"started_at"`
	FinishedAt time.Time                `json:"finished_at"`
	DurationMs int64                    `json:"duration_ms"`
	Succeeded  bool                     `json:"succeeded"`
	Resources  []ResourceReportResponse `json:"resources"`
	// DeniedResources lists resources the access token lacks scope for
	DeniedResources []string `json:"denied_resources,omitempty"`
	Error           string   `json:"error,omitempty"`
	// Transient is true when a later retry may succeed
	Transient bool `json:"transient,omitempty"`
}

// SyncJobResponse represents an asynchronous tenant sync
type SyncJobResponse struct {
	ID          uuid.UUID           `json:"id"`
	TenantID    uuid.UUID           `json:"tenant_id"`
	Status      string              `json:"status"`
	Error       string              `json:"error,omitempty"`
	SubmittedAt time.Time           `json:"submitted_at"`
	StartedAt   *time.Time          `json:"started_at,omitempty"`
	CompletedAt *time.Time          `json:"completed_at,omitempty"`
	Report      *TenantSyncResponse `json:"report,omitempty"`
}

// FleetSyncAcceptedResponse is returned when a fleet sync starts
type FleetSyncAcceptedResponse struct {
	Accepted bool   `json:"accepted"`
	Trigger  string `json:"trigger"`
}

// =====================
// Converters
// =====================

func toTenantSyncResponse(r *appcommerce.TenantSyncReport) *TenantSyncResponse {
	if r == nil {
		return nil
	}
	resources := make([]ResourceReportResponse, len(r.Resources))
	for i, step := range r.Resources {
		resources[i] = ResourceReportResponse{
			Resource:         string(step.Resource),
			Fetched:          step.Fetched,
			Created:          step.Created,
			Updated:          step.Updated,
			Skipped:          step.Skipped,
			Failed:           step.Failed,
			Pages:            step.Pages,
			Partial:          step.Partial,
			PageLimitReached: step.PageLimitReached,
			Denied:           step.Denied,
			Error:            step.Error,
		}
	}
	var denied []string
	for _, resource := range r.DeniedResources {
		denied = append(denied, resource.String())
	}
	return &TenantSyncResponse{
		TenantID:        r.TenantID,
		Trigger:         r.Trigger,
		StartedAt:       r.StartedAt,
		FinishedAt:      r.FinishedAt,
		DurationMs:      r.Duration().Milliseconds(),
		Succeeded:       r.Succeeded(),
		Resources:       resources,
		DeniedResources: denied,
		Error:           r.Error,
		Transient:       r.Transient,
	}
}

func toSyncJobResponse(job scheduler.SyncJob) SyncJobResponse {
	return SyncJobResponse{
		ID:          job.ID,
		TenantID:    job.TenantID,
		Status:      string(job.Status),
		Error:       job.Error,
		SubmittedAt: job.SubmittedAt,
		StartedAt:   job.StartedAt,
		CompletedAt: job.CompletedAt,
		Report:      toTenantSyncResponse(job.Report),
	}
}

func toWebhookRegistrationResponses(regs []commerce.WebhookRegistration) []WebhookRegistrationResponse {
	result := make([]WebhookRegistrationResponse, len(regs))
	for i, reg := range regs {
		result[i] = WebhookRegistrationResponse{
			Topic:      string(reg.Topic),
			Address:    reg.Address,
			ExternalID: reg.ExternalID,
			UpdatedAt:  reg.UpdatedAt,
		}
	}
	return result
}
