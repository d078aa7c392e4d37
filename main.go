package main

import (
	log "github.com/sirupsen/logrus"

	"github.com/mrlokans/chronicle/internal/entrypoint"
)

func main() {
	if err := entrypoint.Run(); err != nil {
		log.Fatalf("startup failed: %v", err)
	}
}
