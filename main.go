package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"runtime"
	"strconv"
	"time"

	"warehouse/config"
	"warehouse/orm"
	"warehouse/repoindex"
	"warehouse/storage"
	"warehouse/warehouse"
	"warehouse/web"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	configDir := os.Getenv("WAREHOUSE_CONFIG_DIR")
	if configDir == "" {
		configDir = "config"
	}

	cfg, err := config.Load(configDir)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	setupLogger(&cfg.Log)

	log.Info().
		Int("pid", os.Getpid()).
		Str("data_dir", cfg.Storage.DataDir).
		Msg("starting warehouse")

	if cfg.Server.Workers > 0 {
		runtime.GOMAXPROCS(cfg.Server.Workers)
	}

	db := orm.InitDB(&cfg.Database)
	ensureRepositories(db, cfg.Storage.Repositories)

	store, err := storage.New(cfg.Storage.DataDir)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize storage")
	}

	wh := warehouse.New(
		db,
		store,
		repoindex.New(cfg.Index.AddCommand, cfg.Index.RemoveCommand),
		initMirror(cfg),
	)

	if !cfg.Log.HumanReadable {
		gin.SetMode(gin.ReleaseMode)
	}
	router := web.NewRouter(cfg, db, wh, store)

	address := net.JoinHostPort(cfg.Server.Address, strconv.Itoa(cfg.Server.Port))
	log.Info().Str("address", address).Msg("starting server")

	server := &http.Server{
		Addr:              address,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	if err := server.ListenAndServe(); err != nil {
		log.Fatal().Err(err).Msg("server terminated")
	}
}

func setupLogger(cfg *config.LogConfig) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.HumanReadable {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

// ensureRepositories seeds the configured repositories; existing rows are
// left untouched. Repositories are reference data for the ingestion
// pipeline, managed here rather than through the UI.
func ensureRepositories(db orm.DB, repositories map[string]string) {
	ctx := context.Background()

	for name, extension := range repositories {
		existing, err := db.FindRepositoryByName(ctx, name)
		if err != nil {
			log.Fatal().Err(err).Str("repository", name).Msg("failed to look up repository")
		}
		if existing != nil {
			continue
		}

		err = db.CreateRepository(ctx, &orm.Repository{
			ID:        uuid.NewString(),
			Name:      name,
			Extension: extension,
		})
		if err != nil {
			log.Fatal().Err(err).Str("repository", name).Msg("failed to create repository")
		}
		log.Info().
			Str("repository", name).
			Str("extension", extension).
			Msg("repository created")
	}
}

func initMirror(cfg *config.Config) *storage.Mirror {
	if !cfg.Storage.S3.Enabled() {
		return nil
	}

	mirror, err := storage.NewMirror(cfg.Storage.S3)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize s3 mirror")
	}
	log.Info().
		Str("bucket", cfg.Storage.S3.Bucket).
		Msg(fmt.Sprintf("s3 mirror enabled via %s", cfg.Storage.S3.Endpoint))

	return mirror
}
