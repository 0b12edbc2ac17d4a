package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"path/filepath"
	"time"

	"storyhub/internal/composition"
	"storyhub/internal/story"
	"storyhub/pkg/database"
)

// Dumps a story's full composition tree to a JSON file, reading the
// database directly. Useful for backups and for moving a storyboard
// between machines without a running API server.
func main() {
	var (
		storyID = flag.String("story", "", "story id to export")
		out     = flag.String("out", "", "output JSON path (defaults to <story>.json)")
	)
	flag.Parse()

	if *storyID == "" {
		log.Fatal("-story is required")
	}
	outPath := *out
	if outPath == "" {
		outPath = *storyID + ".json"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db := database.MustOpen(database.DefaultConfig())
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatalf("db migrate failed: %v", err)
	}

	repo := story.NewRepo(db, composition.NewLocks())
	comp, err := repo.LoadComposition(ctx, *storyID)
	if err != nil {
		log.Fatalf("load composition failed: %v", err)
	}
	if comp == nil {
		log.Fatalf("story %s not found", *storyID)
	}

	if dir := filepath.Dir(outPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Fatalf("create output dir: %v", err)
		}
	}
	data, err := json.MarshalIndent(comp, "", "  ")
	if err != nil {
		log.Fatalf("marshal composition: %v", err)
	}
	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		log.Fatalf("write %s: %v", outPath, err)
	}

	log.Printf("✅ exported story %s (%d scenes, %d transitions) to %s",
		comp.ID, len(comp.Scenes), len(comp.Transitions), outPath)
}
