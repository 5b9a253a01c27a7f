package main

import (
	"fmt"
	"log"
	"net/http"

	"draw-relay/internal/config"
	"draw-relay/internal/server"
	"draw-relay/internal/storage"
	"draw-relay/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	st, err := store.Open(cfg.DataDir)
	if err != nil {
		log.Fatalf("Failed to open submission store: %v", err)
	}

	// Moderation still works without the audit log, it just goes
	// unrecorded.
	audit, err := storage.OpenAudit(cfg.AuditDB)
	if err != nil {
		log.Printf("Warning: audit log unavailable: %v", err)
	} else {
		defer audit.Close()
	}

	srv := server.New(st, audit)

	addr := fmt.Sprintf(":%d", cfg.Port)
	log.Printf("Server listening on port %d", cfg.Port)
	log.Fatal(http.ListenAndServe(addr, srv.Routes()))
}
