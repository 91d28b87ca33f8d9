package main

import (
	"context"
	"log"

	"github.com/daybookhq/accounts-go/internal/accounts/cli"
	"github.com/daybookhq/accounts-go/internal/accounts/config"
)

func main() {

	cfg := config.LoadConfig()
	app, err := cli.NewApp(cfg, nil)

	if err != nil {
		log.Fatalf("%v", err)
		return
	}

	app.Run(context.Background())

}
