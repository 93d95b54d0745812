package dto

import "time"

// TrustReportQuery selects the output format of the trust-score report.
type TrustReportQuery struct {
	Format string `form:"format" validate:"omitempty,oneof=csv pdf"`
}

// ReportLink points at a generated report.
type ReportLink struct {
	ReportID    string    `json:"reportId"`
	Format      string    `json:"format"`
	Rows        int       `json:"rows"`
	DownloadURL string    `json:"downloadUrl"`
	ExpiresAt   time.Time `json:"expiresAt"`
}
