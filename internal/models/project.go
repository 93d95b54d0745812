package models

import "time"

// Construction-phase project statuses evaluated by the sanctions sweep.
const (
	ProjectStatusDemarrageChantier = "demarrage-chantier"
	ProjectStatusFondations        = "fondations"
	ProjectStatusGrosOeuvres       = "gros-oeuvres"
	ProjectStatusSecondOeuvres     = "second-oeuvres"
	ProjectStatusSuspended         = "suspended"
)

// ConstructionStatuses lists statuses considered "active construction".
var ConstructionStatuses = []string{
	ProjectStatusDemarrageChantier,
	ProjectStatusFondations,
	ProjectStatusGrosOeuvres,
	ProjectStatusSecondOeuvres,
}

// PublicationPublished marks publicly listed projects and updates.
const PublicationPublished = "published"

// Project is a real-estate programme owned by a promoteur.
type Project struct {
	ID                string    `db:"id" json:"id"`
	PromoteurID       string    `db:"promoteur_id" json:"promoteurId"`
	Title             string    `db:"title" json:"title"`
	Status            string    `db:"status" json:"status"`
	PublicationStatus string    `db:"publication_status" json:"publicationStatus"`
	IsFeatured        bool      `db:"is_featured" json:"isFeatured"`
	CreatedAt         time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt         time.Time `db:"updated_at" json:"updatedAt"`
}

// ProjectUpdate is a construction progress post on a project.
type ProjectUpdate struct {
	ID        string    `db:"id" json:"id"`
	ProjectID string    `db:"project_id" json:"projectId"`
	Status    string    `db:"status" json:"status"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// DocumentStats aggregates a promoteur's document statuses.
type DocumentStats struct {
	Total    int `db:"total" json:"total"`
	Verified int `db:"verified" json:"verified"`
	Expired  int `db:"expired" json:"expired"`
	Missing  int `db:"missing" json:"missing"`
	Rejected int `db:"rejected" json:"rejected"`
}
