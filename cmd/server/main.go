// Package main 是应用程序的入口点。
package main

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"qgr-retrieval-go/internal/config"
	"qgr-retrieval-go/internal/datastore"
	"qgr-retrieval-go/internal/datastore/es"
	"qgr-retrieval-go/internal/handler"
	"qgr-retrieval-go/internal/middleware"
	"qgr-retrieval-go/internal/model"
	"qgr-retrieval-go/internal/pipeline"
	"qgr-retrieval-go/internal/processing"
	"qgr-retrieval-go/internal/repository"
	"qgr-retrieval-go/internal/service"
	"qgr-retrieval-go/pkg/database"
	"qgr-retrieval-go/pkg/embedding"
	"qgr-retrieval-go/pkg/kafka"
	"qgr-retrieval-go/pkg/log"
	"qgr-retrieval-go/pkg/storage"
	"qgr-retrieval-go/pkg/tika"

	"github.com/gin-gonic/gin"
)

func main() {
	// 1. 初始化配置
	config.Init("./configs/config.yaml")
	cfg := config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync() // 确保在程序退出时刷新所有缓冲的日志条目
	log.Info("日志记录器初始化成功")

	// 3. 初始化数据库、Redis 与对象存储
	database.InitMySQL(cfg.Database.MySQL.DSN)
	if err := database.DB.AutoMigrate(&model.DocumentRecord{}); err != nil {
		log.Fatal("document_records 表迁移失败", err)
	}
	database.InitRedis(cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB)
	storage.InitMinIO(cfg.MinIO)

	// 4. 初始化向量后端
	esStore, err := es.NewStore(cfg.Elasticsearch, cfg.Datastore, cfg.Embedding.Dimensions)
	if err != nil {
		log.Errorf("es 初始化失败 %s", err)
		return
	}
	kafka.InitProducer(cfg.Kafka)

	// 5. 初始化 Repository
	recordRepo := repository.NewDocumentRecordRepository(database.DB)
	rawStore := repository.NewRawDocumentStore(database.RDB)

	// 6. 初始化 Service 与向量库门面 (依赖注入)
	tikaClient := tika.NewClient(cfg.Tika)
	embeddingClient := embedding.NewClient(cfg.Embedding)
	assembler := processing.NewAssembler(
		embeddingClient,
		cfg.Datastore.DefaultCollection,
		model.Partition(cfg.Datastore.DefaultPartition),
	)
	shaper := datastore.NewShaper(rand.New(rand.NewSource(time.Now().UnixNano())))
	store := datastore.New(esStore, embeddingClient, assembler, shaper)
	documentService := service.NewDocumentService(recordRepo, rawStore, cfg.MinIO, cfg.Datastore)

	// 7. 初始化文档入库管道 (Processor) 并启动后台 Kafka 消费者
	processor := pipeline.NewProcessor(
		tikaClient,
		store,
		cfg.MinIO,
		cfg.Datastore.ChunkTokenSize,
		recordRepo,
		rawStore,
	)
	go kafka.StartConsumer(cfg.Kafka, processor)

	// 8. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.New() // 使用 New() 创建一个不带默认中间件的引擎
	r.Use(middleware.RequestLogger(), gin.Recovery())

	// 9. 注册路由，检索 API 统一走静态 Bearer Token 认证
	datastoreHandler := handler.NewDatastoreHandler(store, documentService, cfg.Datastore.ChunkTokenSize)
	documentHandler := handler.NewDocumentHandler(documentService)

	api := r.Group("/")
	api.Use(middleware.BearerAuthMiddleware(cfg.Auth.BearerToken))
	{
		api.POST("/upsert", datastoreHandler.Upsert)
		api.POST("/query", datastoreHandler.Query)
		api.DELETE("/delete/:documentIds", datastoreHandler.Delete)

		documents := api.Group("/documents")
		{
			documents.POST("/url", documentHandler.SaveURLDocuments)
			documents.GET("/:documentId", documentHandler.GetDocumentContent)
		}
	}

	// 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	// 等待中断信号以实现优雅停机
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	// 设置一个5秒的超时上下文
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// 关闭 HTTP 服务器
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("HTTP 服务器关闭失败: %v", err)
	}

	log.Info("服务已优雅关闭")
}
