// Seeds the question catalog. Safe to re-run; existing rows are untouched.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	_ "github.com/lib/pq"

	"github.com/kassandra-app/kassandra/internal/catalog"
	"github.com/kassandra-app/kassandra/internal/config"
	"github.com/kassandra-app/kassandra/internal/database"
)

var questions = []*catalog.Question{
	{
		ID: 1, Text: "How do you handle chaos?", Category: "personality",
		Choices: []catalog.Choice{
			{ID: 101, Text: "I embrace it", Metadata: "high_openness"},
			{ID: 102, Text: "I impose order on it", Metadata: "high_conscientiousness"},
			{ID: 103, Text: "I wait for it to pass", Metadata: "low_neuroticism"},
		},
	},
	{
		ID: 2, Text: "A free evening appears in your schedule. You...", Category: "personality",
		Choices: []catalog.Choice{
			{ID: 201, Text: "Call friends", Metadata: "high_extraversion"},
			{ID: 202, Text: "Read alone", Metadata: "low_extraversion"},
			{ID: 203, Text: "Finish what you started earlier", Metadata: "high_conscientiousness"},
		},
	},
	{
		ID: 3, Text: "Money is best understood as...", Category: "socio-economic",
		Choices: []catalog.Choice{
			{ID: 301, Text: "Security", Metadata: "security_oriented"},
			{ID: 302, Text: "Freedom", Metadata: "autonomy_oriented"},
			{ID: 303, Text: "A scoreboard", Metadata: "status_oriented"},
		},
	},
	{
		ID: 4, Text: "Change in society should come...", Category: "political",
		Choices: []catalog.Choice{
			{ID: 401, Text: "Gradually, preserving what works", Metadata: "incrementalist"},
			{ID: 402, Text: "Boldly, when the old ways fail", Metadata: "reformist"},
		},
	},
	{
		ID: 5, Text: "When advice contradicts your instinct, you...", Category: "general",
		Choices: []catalog.Choice{
			{ID: 501, Text: "Trust the instinct", Metadata: "intuition_led"},
			{ID: 502, Text: "Follow the advice", Metadata: "deliberation_led"},
			{ID: 503, Text: "Seek a third opinion", Metadata: "consensus_led"},
		},
	},
}

func main() {
	if err := run(); err != nil {
		log.Fatalf("Seed error: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	sqlDB, err := sql.Open("postgres", cfg.Database.ConnectionString())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer sqlDB.Close()

	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	db := database.NewBunDB(sqlDB)
	ctx := context.Background()

	if err := database.CreateTables(ctx, db); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}

	repo := catalog.NewRepository(db)
	if err := repo.Seed(ctx, questions); err != nil {
		return fmt.Errorf("failed to seed catalog: %w", err)
	}

	log.Printf("Seeded %d questions", len(questions))
	return nil
}
