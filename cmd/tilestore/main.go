package main

import (
	"log"

	"github.com/mmalewski/kartotherian/internal/app"
	"github.com/mmalewski/kartotherian/pkg/config"
)

func main() {
	cfg, err := config.New()
	if err != nil {
		log.Fatalln("failed to load config: ", err)
	}

	app.Run(cfg)
}
