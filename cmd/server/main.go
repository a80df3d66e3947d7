package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"coinmarket/internal/config"
	"coinmarket/internal/handler"
	"coinmarket/internal/infrastructure/cache"
	"coinmarket/internal/infrastructure/database"
	"coinmarket/internal/infrastructure/lock"
	"coinmarket/internal/infrastructure/logging"
	"coinmarket/internal/infrastructure/mq"
	"coinmarket/internal/job"
	"coinmarket/internal/service"
	"coinmarket/pkg/idgen"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "coinmarket",
		Short:         "金币账本与结算服务",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "config/config.yaml", "配置文件路径，为空时只读取环境变量")

	root.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "创建或更新数据表",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				return err
			}
			log, err := logging.New(cfg.Log)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			cfg.Database.AutoMigrate = false
			db, err := database.Open(&cfg.Database, log)
			if err != nil {
				return err
			}
			defer func() { _ = database.Close(db) }()
			if err := database.Migrate(db); err != nil {
				return err
			}
			log.Info("数据表迁移完成", zap.String("driver", cfg.Database.Driver))
			return nil
		},
	})

	var (
		tokenUser string
		tokenRole string
		tokenTTL  time.Duration
	)
	tokenCmd := &cobra.Command{
		Use:   "token",
		Short: "签发调试用的访问令牌",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				return err
			}
			tok, err := handler.IssueToken(cfg.Auth, tokenUser, tokenRole, tokenTTL)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	tokenCmd.Flags().StringVar(&tokenUser, "user", "", "用户 ID")
	tokenCmd.Flags().StringVar(&tokenRole, "role", "", "角色，管理员为 admin")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "有效期")
	_ = tokenCmd.MarkFlagRequired("user")
	root.AddCommand(tokenCmd)

	return root
}

func serve(parent context.Context, cfg *config.Config) error {
	log, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	if err := idgen.Init(1); err != nil {
		return err
	}

	db, err := database.Open(&cfg.Database, log)
	if err != nil {
		return err
	}
	defer func() { _ = database.Close(db) }()

	deps := service.Deps{
		DB:       db,
		Business: cfg.Business,
		Logger:   log,
	}

	if cfg.Redis.Enabled {
		redisClient, err := cache.InitRedis(&cfg.Redis)
		if err != nil {
			return err
		}
		defer func() { _ = redisClient.Close() }()
		deps.Locker = lock.NewRedisLocker(redisClient, cfg.Business.LockTTL, cfg.Business.LockRetries)
		deps.Views = cache.NewRedisViewCache(redisClient, cfg.Redis.ViewTTL)
		log.Info("Redis 连接成功", zap.String("host", cfg.Redis.Host))
	}

	var publisher interface {
		job.Publisher
		Close() error
	}
	if cfg.Kafka.Enabled {
		kafka, err := mq.NewKafkaPublisher(&cfg.Kafka)
		if err != nil {
			return err
		}
		publisher = kafka
		log.Info("Kafka 生产者创建成功", zap.Strings("brokers", cfg.Kafka.Brokers))
	} else {
		publisher = mq.NewLogPublisher(log)
	}
	defer func() { _ = publisher.Close() }()

	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	outboxSender := job.NewOutboxSender(db, publisher, &cfg.Business, log)
	go outboxSender.Start(ctx)

	gin.SetMode(gin.ReleaseMode)
	if cfg.Log.Development {
		gin.SetMode(gin.DebugMode)
	}
	router := handler.SetupRouter(service.NewServices(deps), cfg, log)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("服务启动", zap.Int("port", cfg.Server.Port), zap.String("driver", cfg.Database.Driver))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("服务启动失败: %w", err)
	}

	log.Info("正在关闭服务...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("服务关闭异常", zap.Error(err))
	}
	log.Info("服务已关闭")
	return nil
}
