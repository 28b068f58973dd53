// File: cmd/devtoken/main.go
//
// devtoken mints a bearer token for local development. It reads the same
// configuration as the server, records the profile in its database and signs
// with JWT_SECRET_KEY, so the token works against a locally running server.
//
//	go run ./cmd/devtoken -sub alice -email alice@example.com
package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/iyunix/go-chat/internal/auth"
	"github.com/iyunix/go-chat/internal/config"
	"github.com/iyunix/go-chat/internal/database"
	"github.com/iyunix/go-chat/internal/repository/user"
	"github.com/iyunix/go-chat/internal/services"
)

func main() {
	sub := flag.String("sub", "dev-user", "principal id (token subject)")
	email := flag.String("email", "", "profile email")
	name := flag.String("name", "", "profile display name")
	picture := flag.String("picture", "", "profile avatar url")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	services.SetupLogging(cfg.Log.Level, false)

	if cfg.Auth.JWTSecret == "" {
		log.Fatal().Msg("JWT_SECRET_KEY is not set")
	}

	database.Configure(cfg.DB.Driver, cfg.DB.DSN)
	db, err := database.Connection()
	if err != nil {
		log.Fatal().Err(err).Msg("opening database")
	}
	defer database.Close()

	users := services.NewUserService(user.NewGormUserRepository(db), cfg.Auth.JWTSecret, *ttl)
	token, err := users.IssueToken(context.Background(), auth.Principal{
		UserID:  *sub,
		Email:   *email,
		Name:    *name,
		Picture: *picture,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("issuing token")
	}
	fmt.Println(token)
}
