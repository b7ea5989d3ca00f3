package main

import (
	"context"
	"flag"
	"log"

	"punchgrounds/server/internal/app"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "config.yaml", "path to the YAML config file")
	flag.Parse()

	if err := app.Run(context.Background(), configPath); err != nil {
		log.Fatalf("%v", err)
	}
}
