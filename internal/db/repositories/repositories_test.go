package repositories

import (
	"github.com/lib/pq"

	"github.com/petition-platform/petition-platform/internal/db/models"
)

func sampleOrg() *models.Organization {
	return &models.Organization{Name: "Les Amis", SlugName: "les-amis"}
}

func uniqueViolation() error {
	return &pq.Error{Code: "23505"}
}

func strp(s string) *string { return &s }
