package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"sportsroz.org/internal/migrate"
	"sportsroz.org/internal/obs"
	"sportsroz.org/internal/store/pg"
)

func main() {
	var (
		dsn           = flag.String("dsn", os.Getenv("SPORTSROZ_PG_DSN"), "postgres connection string")
		migrationsDir = flag.String("migrations", "migrations", "directory with .up.sql/.down.sql files")
		seedsDir      = flag.String("seeds", "seeds", "directory with seed .sql files")
		timeout       = flag.Duration("timeout", 2*time.Minute, "overall command timeout")
	)
	flag.Usage = usage
	flag.Parse()

	cmd := flag.Arg(0)
	if cmd == "" {
		usage()
		os.Exit(2)
	}
	if *dsn == "" {
		fmt.Fprintln(os.Stderr, "missing -dsn (or SPORTSROZ_PG_DSN)")
		os.Exit(2)
	}

	store, err := pg.Open(*dsn)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	mgr := migrate.NewManager(store.DB(), os.DirFS(*migrationsDir), os.DirFS(*seedsDir))

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	switch cmd {
	case "up":
		err = mgr.Up(ctx)
	case "down":
		err = mgr.Down(ctx)
	case "seed":
		err = mgr.Seed(ctx)
	case "status":
		var applied []string
		applied, err = mgr.Status(ctx)
		if err == nil {
			if len(applied) == 0 {
				fmt.Println("no migrations applied")
			}
			for _, name := range applied {
				fmt.Println(name)
			}
		}
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", cmd)
		usage()
		os.Exit(2)
	}
	if err != nil {
		obs.Error("migrate command failed", map[string]any{"cmd": cmd, "err": err.Error()})
		os.Exit(1)
	}
	obs.Info("migrate command complete", map[string]any{"cmd": cmd})
}

func usage() {
	fmt.Fprintf(os.Stderr, `usage: migrate [flags] <command>

commands:
  up       apply pending migrations
  down     roll back the most recent migration
  seed     apply seed files
  status   list applied migrations

flags:
`)
	flag.PrintDefaults()
}
