package db

import (
	"context"
	"log"

	"church-connect/internal/models"

	"github.com/uptrace/bun"
)

// Migrate creates the events, rsvps and members tables if they are not
// there yet.
func Migrate(db *bun.DB) {
	ctx := context.Background()

	for _, model := range []interface{}{
		(*models.Event)(nil),
		(*models.RSVP)(nil),
		(*models.Member)(nil),
	} {
		_, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx)
		if err != nil {
			log.Fatalf("create table failed: %v", err)
		}
	}

	log.Println("events, rsvps and members tables ready")
}
