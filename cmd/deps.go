package cmd

import (
	"context"

	errors "github.com/Laisky/errors/v2"
	gconfig "github.com/Laisky/go-config/v2"
	goRedis "github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/papyr-app/papyr-api/internal/catalog"
	"github.com/papyr-app/papyr-api/internal/chat"
	"github.com/papyr-app/papyr-api/internal/ingest"
	"github.com/papyr-app/papyr-api/internal/library/llm"
	"github.com/papyr-app/papyr-api/library/db/postgres"
	"github.com/papyr-app/papyr-api/library/db/redis"
	"github.com/papyr-app/papyr-api/library/log"
	"github.com/papyr-app/papyr-api/library/storage"
)

// services bundles every wired domain service for one process.
type services struct {
	db    *gorm.DB
	docs  *ingest.Service
	chats *chat.Service
}

// buildServices opens every external dependency named in the configuration
// and wires the domain services over them.
func buildServices(ctx context.Context) (*services, error) {
	db, err := postgres.NewDB(ctx, postgres.DialInfo{
		Addr:   gconfig.Shared.GetString("settings.db.addr"),
		DBName: gconfig.Shared.GetString("settings.db.dbname"),
		User:   gconfig.Shared.GetString("settings.db.user"),
		Pwd:    gconfig.Shared.GetString("settings.db.pwd"),
	})
	if err != nil {
		return nil, errors.Wrap(err, "open postgres")
	}

	queue := redis.NewDB(&goRedis.Options{
		Addr:     gconfig.Shared.GetString("settings.redis.addr"),
		DB:       gconfig.Shared.GetInt("settings.redis.db"),
		Password: gconfig.Shared.GetString("settings.redis.pwd"),
	})

	store, err := storage.NewMinioStore(ctx, storage.Options{
		Endpoint:  gconfig.Shared.GetString("settings.storage.endpoint"),
		AccessKey: gconfig.Shared.GetString("settings.storage.access_key"),
		SecretKey: gconfig.Shared.GetString("settings.storage.secret_key"),
		Bucket:    gconfig.Shared.GetString("settings.storage.bucket"),
		Secure:    gconfig.Shared.GetBool("settings.storage.secure"),
	})
	if err != nil {
		return nil, errors.Wrap(err, "open blob store")
	}

	embedder := llm.NewOpenAIEmbedder(
		gconfig.Shared.GetString("settings.llm.base_url"),
		gconfig.Shared.GetString("settings.llm.api_key"),
		gconfig.Shared.GetString("settings.llm.embed_model"),
		nil,
	)
	completer := llm.NewOpenAIChatCompleter(
		gconfig.Shared.GetString("settings.llm.base_url"),
		gconfig.Shared.GetString("settings.llm.api_key"),
		gconfig.Shared.GetString("settings.llm.chat_model"),
		nil,
	)

	dao := catalog.NewDao(db)
	if err = dao.Migrate(ctx); err != nil {
		return nil, errors.Wrap(err, "migrate catalog schema")
	}

	docs, err := ingest.NewService(db, store, queue, embedder, dao,
		ingest.LoadSettingsFromConfig(), log.Logger.Named("ingest"))
	if err != nil {
		return nil, errors.Wrap(err, "build ingest service")
	}

	chats, err := chat.NewService(db, docs, dao, embedder, completer,
		chat.LoadSettingsFromConfig(), log.Logger.Named("chat"))
	if err != nil {
		return nil, errors.Wrap(err, "build chat service")
	}

	return &services{db: db, docs: docs, chats: chats}, nil
}
