package dto

import "github.com/noah-isme/promoteur-trust-api/internal/models"

// CreateAppealRequest contests a restriction. PromoteurID is only honoured for staff callers.
type CreateAppealRequest struct {
	PromoteurID   string  `json:"promoteurId"`
	RestrictionID string  `json:"restrictionId" validate:"required"`
	ProjectID     *string `json:"projectId"`
	Reason        string  `json:"reason" validate:"required,min=5,max=500"`
	Description   string  `json:"description" validate:"max=5000"`
}

// AssignAppealRequest assigns a reviewer; empty AssigneeID assigns the caller.
type AssignAppealRequest struct {
	AssigneeID string `json:"assigneeId"`
}

// AddReviewNoteRequest appends a reviewer note.
type AddReviewNoteRequest struct {
	Note string `json:"note" validate:"required,max=2000"`
}

// EscalateAppealRequest moves an appeal to the senior tier.
type EscalateAppealRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

// ResolveAppealRequest closes an appeal.
type ResolveAppealRequest struct {
	Status    models.AppealStatus `json:"status" validate:"required,oneof=approved rejected partially-approved"`
	Notes     string              `json:"notes" validate:"max=2000"`
	NewAction *models.NewAction   `json:"newAction"`
}

// AppealQuery filters the appeal listing.
type AppealQuery struct {
	Status      []string `form:"status"`
	PromoteurID string   `form:"promoteurId"`
	Level       int      `form:"level" validate:"omitempty,oneof=1 2"`
	AssignedTo  string   `form:"assignedTo"`
	Page        int      `form:"page" validate:"omitempty,min=1"`
	PageSize    int      `form:"pageSize" validate:"omitempty,min=1,max=200"`
}

// OverdueResult counts the outcome of the overdue appeal sweep.
type OverdueResult struct {
	Escalated int `json:"escalated"`
	Notified  int `json:"notified"`
	Failed    int `json:"failed"`
}
