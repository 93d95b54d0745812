package dto

import "github.com/noah-isme/promoteur-trust-api/internal/models"

// SweepResult counts actions taken by one sanctions sweep.
type SweepResult struct {
	Evaluated         int `json:"evaluated"`
	Warnings          int `json:"warnings"`
	ReducedVisibility int `json:"reducedVisibility"`
	Suspensions       int `json:"suspensions"`
	AlreadyApplied    int `json:"alreadyApplied"`
	Failed            int `json:"failed"`
}

// CleanupResult counts restrictions removed by the expiry sweep.
type CleanupResult struct {
	Removed     int `json:"removed"`
	Reactivated int `json:"reactivated"`
	Failed      int `json:"failed"`
}

// SanctionSummary is a promoteur's current sanction state.
type SanctionSummary struct {
	PromoteurID        string                    `json:"promoteurId"`
	Level              models.SanctionLevel      `json:"level"`
	SubscriptionStatus models.SubscriptionStatus `json:"subscriptionStatus"`
	Restrictions       []models.Restriction      `json:"restrictions"`
}
