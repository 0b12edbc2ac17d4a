package utils

import (
	"os"
	"path/filepath"
)

type ServerConfig struct {
	Addr       string // HTTP listen address
	EventAddr  string // TCP event fanout address
	NotifyAddr string // UDP export notification address
	AssetDir   string // root of the local media library
	ExportDir  string // where finished video artifacts land
}

func LoadServerConfig() ServerConfig {
	addr := os.Getenv("STORYHUB_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	eventAddr := os.Getenv("STORYHUB_EVENT_ADDR")
	if eventAddr == "" {
		eventAddr = ":7070"
	}

	notifyAddr := os.Getenv("STORYHUB_NOTIFY_ADDR")
	if notifyAddr == "" {
		notifyAddr = ":9090"
	}

	assetDir := os.Getenv("STORYHUB_ASSET_DIR")
	if assetDir == "" {
		assetDir = defaultDir("assets")
	}

	exportDir := os.Getenv("STORYHUB_EXPORT_DIR")
	if exportDir == "" {
		exportDir = defaultDir("exports")
	}

	return ServerConfig{
		Addr:       addr,
		EventAddr:  eventAddr,
		NotifyAddr: notifyAddr,
		AssetDir:   assetDir,
		ExportDir:  exportDir,
	}
}

func defaultDir(name string) string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		home = "."
	}
	return filepath.Join(home, ".storyhub", name)
}
