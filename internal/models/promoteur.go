package models

import (
	"time"

	"github.com/lib/pq"
)

// KYCStatus captures identity verification progress.
type KYCStatus string

const (
	KYCStatusPending   KYCStatus = "pending"
	KYCStatusSubmitted KYCStatus = "submitted"
	KYCStatusVerified  KYCStatus = "verified"
	KYCStatusRejected  KYCStatus = "rejected"
)

// SubscriptionStatus reflects the billing/sanction state of a promoteur account.
type SubscriptionStatus string

const (
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionSuspended SubscriptionStatus = "suspended"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
)

// Promoteur is a real-estate developer account.
type Promoteur struct {
	ID                  string             `db:"id" json:"id"`
	UserID              string             `db:"user_id" json:"userId"`
	CompanyName         string             `db:"company_name" json:"companyName"`
	KYCStatus           KYCStatus          `db:"kyc_status" json:"kycStatus"`
	TrustScore          int                `db:"trust_score" json:"trustScore"`
	SubscriptionStatus  SubscriptionStatus `db:"subscription_status" json:"subscriptionStatus"`
	ProfileComplete     bool               `db:"profile_complete" json:"profileComplete"`
	Badges              pq.StringArray     `db:"badges" json:"badges"`
	TotalProjects       int                `db:"total_projects" json:"totalProjects"`
	CompletedProjects   int                `db:"completed_projects" json:"completedProjects"`
	AverageResponseTime *float64           `db:"average_response_time" json:"averageResponseTime,omitempty"`
	Version             int                `db:"version" json:"version"`
	TrustScoreUpdatedAt *time.Time         `db:"trust_score_updated_at" json:"trustScoreUpdatedAt,omitempty"`
	CreatedAt           time.Time          `db:"created_at" json:"createdAt"`
	UpdatedAt           time.Time          `db:"updated_at" json:"updatedAt"`

	Restrictions []Restriction `db:"-" json:"restrictions"`
}

// HasResponseTimeData reports whether an average response time has been recorded.
func (p *Promoteur) HasResponseTimeData() bool {
	return p.AverageResponseTime != nil && *p.AverageResponseTime > 0
}

// ActiveRestrictions returns restrictions that have not expired at the given instant.
func (p *Promoteur) ActiveRestrictions(now time.Time) []Restriction {
	result := make([]Restriction, 0, len(p.Restrictions))
	for _, r := range p.Restrictions {
		if r.Active(now) {
			result = append(result, r)
		}
	}
	return result
}
