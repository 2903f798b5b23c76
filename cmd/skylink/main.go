package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"skylink/internal/app"
)

func main() {
	connect := flag.Bool("connect", false, "establish the tunnel session")
	disconnect := flag.Bool("disconnect", false, "tear down the tunnel session")
	status := flag.Bool("status", false, "print the current session status")
	watch := flag.Bool("watch", false, "run the connection reconciler until interrupted")
	flag.Parse()

	if !*connect && !*disconnect && !*status && !*watch {
		log.Fatal("no action selected; pass one or more of --connect --disconnect --status --watch")
	}

	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.ConfigFromEnv()
	if err != nil {
		log.Fatal(err)
	}
	a, err := app.New(cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer a.Close()

	if *connect {
		if err := a.Startup(ctx); err != nil {
			log.Fatal(err)
		}
		if err := a.Session.Connect(ctx); err != nil {
			log.Fatal(err)
		}
	}
	if *disconnect {
		if err := a.Session.Disconnect(ctx); err != nil {
			log.Fatal(err)
		}
	}
	if *status {
		fmt.Println(a.Status(ctx))
	}
	if *watch {
		if err := a.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Fatal(err)
		}
	}
}
