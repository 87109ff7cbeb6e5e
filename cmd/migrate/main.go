package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"ms-karaoke/internal/models"
)

func main() {
	drop := flag.Bool("drop", false, "drop tables before creating them")
	seed := flag.Bool("seed", false, "insert a demo event instance")
	flag.Parse()

	ctx := context.Background()

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN not set")
	}

	sqldb, err := sql.Open("postgres", dsn)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer sqldb.Close()

	if err := sqldb.PingContext(ctx); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	db := bun.NewDB(sqldb, pgdialect.New())

	if *drop {
		log.Println("Dropping tables...")
		dropTables(ctx, db)
	}

	log.Println("Creating tables...")
	createTables(ctx, db)

	if *seed {
		log.Println("Seeding demo instance...")
		seedData(ctx, db)
	}

	log.Println("Done.")
}

func dropTables(ctx context.Context, db *bun.DB) {
	tables := []interface{}{
		(*models.Vote)(nil),
		(*models.Performance)(nil),
		(*models.WaitlistEntry)(nil),
		(*models.RankingArchive)(nil),
		(*models.EventInstance)(nil),
	}
	for _, m := range tables {
		_, _ = db.NewDropTable().Model(m).IfExists().Cascade().Exec(ctx)
	}
}

func createTables(ctx context.Context, db *bun.DB) {
	tables := []interface{}{
		(*models.EventInstance)(nil),
		(*models.WaitlistEntry)(nil),
		(*models.Performance)(nil),
		(*models.Vote)(nil),
		(*models.RankingArchive)(nil),
	}
	for _, m := range tables {
		_, err := db.NewCreateTable().Model(m).IfNotExists().Exec(ctx)
		if err != nil {
			log.Fatalf("Failed to create table for %T: %v", m, err)
		}
	}
}

func seedData(ctx context.Context, db *bun.DB) {
	instance := models.EventInstance{
		ID:        uuid.NewString(),
		Name:      "Friday Night Karaoke",
		Status:    models.InstanceOpen,
		JoinCode:  "DEMO42",
		ExpiresAt: time.Now().Add(12 * time.Hour),
		CreatedAt: time.Now(),
	}
	if _, err := db.NewInsert().Model(&instance).Exec(ctx); err != nil {
		log.Printf("Failed to seed instance: %v", err)
		return
	}

	entries := []models.WaitlistEntry{
		{
			ID:         uuid.NewString(),
			InstanceID: instance.ID,
			SingerName: "Ana",
			SongTitle:  "Total Eclipse of the Heart",
			Status:     models.EntryWaiting,
			Priority:   0,
			CreatedAt:  time.Now(),
		},
		{
			ID:         uuid.NewString(),
			InstanceID: instance.ID,
			SingerName: "Bruno",
			SongTitle:  "Bohemian Rhapsody",
			Status:     models.EntryWaiting,
			Priority:   1,
			CreatedAt:  time.Now(),
		},
	}
	if _, err := db.NewInsert().Model(&entries).Exec(ctx); err != nil {
		log.Printf("Failed to seed waitlist: %v", err)
	}

	log.Printf("Seeded instance %s (join code %s)", instance.ID, instance.JoinCode)
}
