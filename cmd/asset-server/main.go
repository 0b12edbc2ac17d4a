package main

import (
	"flag"
	"log"
	"net/http"
	"os"

	"storyhub/pkg/utils"
)

// Serves the local media library over plain HTTP so asset locators
// resolve for preview players and remote render workers.
func main() {
	cfg := utils.LoadServerConfig()

	addr := flag.String("addr", ":9000", "listen address")
	dir := flag.String("dir", cfg.AssetDir, "asset directory to serve")
	flag.Parse()

	if _, err := os.Stat(*dir); err != nil {
		log.Fatalf("asset dir %s: %v", *dir, err)
	}

	http.Handle("/assets/", http.StripPrefix("/assets/", http.FileServer(http.Dir(*dir))))

	log.Printf("asset-server serving %s on http://localhost%s/assets/", *dir, *addr)
	log.Fatal(http.ListenAndServe(*addr, nil))
}
