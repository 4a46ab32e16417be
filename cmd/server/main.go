package main

import (
	"context"
	"log"
	"os"

	"github.com/vserve-ph/arta-backend/internal/buildinfo"
	"github.com/vserve-ph/arta-backend/internal/server"
	"github.com/vserve-ph/arta-backend/internal/server/config"
)

func main() {

	buildinfo.PrintBuildData(os.Stdout)

	ctx := context.Background()
	cfg := config.LoadConfig()
	app, err := server.NewApp(cfg)

	if err != nil {
		log.Printf("%v", err)
		return
	}

	app.Run(ctx)

}
