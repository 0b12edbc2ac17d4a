package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"time"

	"storyhub/internal/composition"
	"storyhub/internal/story"
	"storyhub/pkg/database"
	"storyhub/pkg/models"
)

// Reconstructs a story from a composition JSON dump, writing to the
// database directly. The story and every scene and clip get fresh ids;
// the dump's ordering, transitions and audio settings are preserved.
func main() {
	var (
		in = flag.String("in", "", "composition JSON path")
	)
	flag.Parse()

	if *in == "" {
		log.Fatal("-in is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db := database.MustOpen(database.DefaultConfig())
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatalf("db migrate failed: %v", err)
	}

	data, err := os.ReadFile(*in)
	if err != nil {
		log.Fatalf("read %s: %v", *in, err)
	}
	var comp models.StoryComposition
	if err := json.Unmarshal(data, &comp); err != nil {
		log.Fatalf("parse %s: %v", *in, err)
	}

	repo := story.NewRepo(db, composition.NewLocks())
	imported, err := repo.ImportComposition(ctx, &comp)
	if err != nil {
		log.Fatalf("import composition failed: %v", err)
	}

	log.Printf("✅ imported %s as story %s (%d scenes, %d transitions)",
		*in, imported.ID, len(imported.Scenes), len(imported.Transitions))
}
