package repository

import (
	"ticketera/internal/database"
)

type Repositories struct {
	Journal *JournalRepository
}

func NewRepositories(db *database.DB) *Repositories {
	return &Repositories{
		Journal: NewJournalRepository(db),
	}
}
