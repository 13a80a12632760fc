package main

import (
	"log"
	"net/http"

	"github.com/aaronzipp/survival-island/internal/config"
	"github.com/aaronzipp/survival-island/internal/handlers"
	"github.com/aaronzipp/survival-island/internal/session"
	"github.com/aaronzipp/survival-island/internal/store"
	"github.com/aaronzipp/survival-island/internal/transport"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("loading config: ", err)
	}

	var st store.Store = store.Nop{}
	if cfg.DBPath != "" {
		sqlite, err := store.NewSQLite(cfg.DBPath)
		if err != nil {
			// Persistence is best-effort; the game runs fine without.
			log.Printf("database unavailable, running in memory-only mode: %v", err)
		} else {
			st = sqlite
			defer sqlite.Close()
			log.Printf("game history persisted to %s", cfg.DBPath)
		}
	} else {
		log.Println("no DB_PATH set, running in memory-only mode")
	}

	hub := transport.NewHub()
	registry := session.NewRegistry(cfg, st, hub)
	registry.OnRemove = hub.DropRoom

	router := handlers.NewRouter(&handlers.Context{
		Cfg:      cfg,
		Registry: registry,
		Hub:      hub,
	})

	log.Printf("server starting on %s", cfg.Addr)
	log.Fatal(http.ListenAndServe(cfg.Addr, router))
}
