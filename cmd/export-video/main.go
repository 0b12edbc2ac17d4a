package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"gopkg.in/yaml.v3"

	"storyhub/internal/composition"
	"storyhub/internal/export"
	"storyhub/internal/story"
	"storyhub/pkg/database"
	"storyhub/pkg/utils"
)

// Config tunes the encoder without requiring a running API server.
type Config struct {
	FFmpegBin  string `yaml:"ffmpeg_bin"`
	FFprobeBin string `yaml:"ffprobe_bin"`
	FPS        int    `yaml:"fps"`
	WorkDir    string `yaml:"work_dir"`
	OutDir     string `yaml:"out_dir"`
	KeepTemp   bool   `yaml:"keep_temp"`
}

func loadConfig(path string) (Config, error) {
	srvCfg := utils.LoadServerConfig()
	cfg := Config{
		FFmpegBin:  "ffmpeg",
		FFprobeBin: "ffprobe",
		FPS:        30,
		WorkDir:    filepath.Join(srvCfg.ExportDir, "work"),
		OutDir:     srvCfg.ExportDir,
	}
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func main() {
	var (
		storyID = flag.String("story", "", "story id to export")
		cfgPath = flag.String("config", "", "yaml config path (optional)")
	)
	flag.Parse()

	if *storyID == "" {
		log.Fatal("-story is required")
	}

	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	db := database.MustOpen(database.DefaultConfig())
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatalf("db migrate failed: %v", err)
	}

	// ctrl-c cancels between clips, leaving no partial artifact
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo := story.NewRepo(db, composition.NewLocks())
	renderer := &export.FFmpegRenderer{
		FFmpegBin:  cfg.FFmpegBin,
		FFprobeBin: cfg.FFprobeBin,
		WorkDir:    cfg.WorkDir,
		FPS:        cfg.FPS,
		KeepTemp:   cfg.KeepTemp,
	}
	orchestrator := export.NewOrchestrator(repo, renderer, cfg.OutDir, nil)

	artifact, err := orchestrator.Export(ctx, *storyID)
	switch {
	case errors.Is(err, export.ErrExportCancelled):
		log.Fatal("export cancelled")
	case errors.Is(err, export.ErrEmptyStory):
		log.Fatal("story has no clips to export")
	case err != nil:
		log.Fatalf("export failed: %v", err)
	case artifact == nil:
		log.Fatalf("story %s not found", *storyID)
	}

	log.Printf("✅ exported story %s to %s (%d segments, %dms)",
		*storyID, artifact.Path, artifact.Segments, artifact.DurationMs)
}
