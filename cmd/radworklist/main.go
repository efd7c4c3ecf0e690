package main

import (
	"context"
	"log"
	"os"
	"radworklist/external/dicom"
	"radworklist/external/nostr"
	"radworklist/internal/core"
	"radworklist/internal/database"
	"radworklist/internal/routes"
	"radworklist/internal/utils"
	"strconv"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	ctx := context.Background()

	_ = godotenv.Load()

	homeDir, err := utils.GetWorklistHomeDirectory()
	if err != nil {
		log.Panicf(`utils.GetWorklistHomeDirectory(). %+v`, err)
	}

	log.Println("Current home dir: ", homeDir)

	sqlite, err := database.DatabaseSetup(ctx, homeDir, database.EmbedMigrations)
	if err != nil {
		log.Panicf(`database.DatabaseSetup(ctx, homeDir, database.EmbedMigrations). %+v`, err)
	}
	defer sqlite.Db.Close()

	opts := routes.Options{}

	opts.AuthDisabled, _ = strconv.ParseBool(os.Getenv(utils.AUTH_DISABLED))
	if opts.AuthDisabled {
		log.Println("WARNING: nostr auth is disabled, the api is open to anyone")
	} else {
		opts.AuthorizedKeys, err = nostr.DecodePubkeys(os.Getenv(utils.AUTHORIZED_KEYS))
		if err != nil {
			log.Panicf("nostr.DecodePubkeys(AUTHORIZED_KEYS). %+v", err)
		}
		if len(opts.AuthorizedKeys) == 0 {
			log.Println("no AUTHORIZED_KEYS set, any valid nostr signature is accepted")
		}
	}

	maxUploadMB := uint64(utils.DefaultMaxUploadMB)
	if v := os.Getenv(utils.MAX_UPLOAD_MB); v != "" {
		maxUploadMB, err = strconv.ParseUint(v, 10, 32)
		if err != nil {
			log.Panicf(`Could not convert max upload size %+v`, err)
		}
	}
	opts.MaxUploadBytes = int64(maxUploadMB) << 20

	port := os.Getenv(utils.PORT)
	if port == "" {
		port = utils.DefaultPort
	}

	server := core.NewWorklistServer(sqlite, dicom.GrailReader{})
	server.PublicURL = strings.TrimSuffix(os.Getenv(utils.PUBLIC_URL), "/")

	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowAllOrigins:  true,
		AllowMethods:     []string{"GET", "HEAD", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "If-None-Match"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition", "ETag"},
		AllowCredentials: true,
	}))

	routes.RootRoutes(r, server, opts)

	log.Printf("radworklist started in port %s", port)
	err = r.Run("0.0.0.0:" + port)
	if err != nil {
		log.Panicf("r.Run(). %+v", err)
	}
}
