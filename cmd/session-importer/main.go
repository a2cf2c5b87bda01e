package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"tg-autoreply-userbot/internal/adapters/mtproto"
	"tg-autoreply-userbot/internal/adapters/repo"
	"tg-autoreply-userbot/internal/infra/config"
	"tg-autoreply-userbot/internal/infra/db"
)

func main() {
	var (
		filePath    string
		sessionName string
	)
	flag.StringVar(&filePath, "file", "", "Path to MTProto session file (gotd JSON, Telethon JSON or string session)")
	flag.StringVar(&sessionName, "name", "default", "Name of the MTProto session")
	flag.Parse()

	if filePath == "" {
		log.Fatal().Msg("session-importer: path to session file is required (-file)")
	}

	raw, err := os.ReadFile(filePath)
	if err != nil {
		log.Fatal().Err(err).Msg("session-importer: failed to read session file")
	}
	sessionData, converted, err := mtproto.NormalizeSessionBytes(raw)
	if err != nil {
		log.Fatal().Err(err).Msg("session-importer: unsupported session format")
	}

	cfg := config.Load()
	if cfg.PGDSN == "" {
		log.Fatal().Msg("session-importer: PG_DSN environment variable is required")
	}

	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("session-importer: failed to connect to database")
	}
	defer pool.Close()

	repoAdapter := repo.NewPostgres(pool)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := repoAdapter.EnsureSchema(ctx); err != nil {
		log.Fatal().Err(err).Msg("session-importer: failed to prepare schema")
	}
	if err := repoAdapter.StoreMTProtoSession(ctx, sessionName, sessionData); err != nil {
		log.Fatal().Err(err).Msg("session-importer: failed to store session in database")
	}

	if converted {
		fmt.Println("Session was converted to gotd JSON format before storing")
	}
	fmt.Printf("Stored MTProto session %q (%d bytes) in database\n", sessionName, len(sessionData))
}
