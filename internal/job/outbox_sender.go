package job

import (
	"context"
	"time"

	"coinmarket/internal/config"
	"coinmarket/internal/infrastructure/mq"
	"coinmarket/internal/model"
	"coinmarket/internal/repository"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Publisher 把事件投递到消息队列
type Publisher interface {
	Publish(ctx context.Context, event mq.Event) error
}

// OutboxSender 轮询消息表，投递成功标记 SENT，超过重试上限标记 FAILED
type OutboxSender struct {
	outboxRepo *repository.OutboxRepository
	publisher  Publisher
	log        *zap.Logger
	stopCh     chan struct{}
	interval   time.Duration
	batchSize  int
	maxRetry   int
}

func NewOutboxSender(db *gorm.DB, publisher Publisher, cfg *config.BusinessConfig, log *zap.Logger) *OutboxSender {
	return &OutboxSender{
		outboxRepo: repository.NewOutboxRepository(db),
		publisher:  publisher,
		log:        log.Named("outbox"),
		stopCh:     make(chan struct{}),
		interval:   cfg.OutboxInterval,
		batchSize:  cfg.OutboxBatchSize,
		maxRetry:   cfg.MaxRetryCount,
	}
}

func (s *OutboxSender) Start(ctx context.Context) {
	s.log.Info("消息发送任务启动", zap.Duration("interval", s.interval))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("收到停止信号，任务退出")
			return
		case <-s.stopCh:
			s.log.Info("任务停止")
			return
		case <-ticker.C:
			s.processPendingMessages(ctx)
		}
	}
}

func (s *OutboxSender) Stop() {
	close(s.stopCh)
}

func (s *OutboxSender) processPendingMessages(ctx context.Context) {
	messages, err := s.outboxRepo.GetPendingMessages(ctx, s.batchSize)
	if err != nil {
		s.log.Error("查询待发送消息失败", zap.Error(err))
		return
	}

	for _, msg := range messages {
		s.sendMessage(ctx, msg)
	}
}

func (s *OutboxSender) sendMessage(ctx context.Context, msg *model.OutboxMessage) {
	event := mq.Event{
		Type:    msg.EventType,
		Key:     msg.MessageKey,
		Payload: []byte(msg.Payload),
	}
	fields := []zap.Field{
		zap.Int64("id", msg.ID),
		zap.String("event_type", msg.EventType),
		zap.String("key", msg.MessageKey),
	}

	err := s.publisher.Publish(ctx, event)
	if err == nil {
		if err := s.outboxRepo.MarkSent(ctx, msg.ID); err != nil {
			s.log.Error("更新消息状态失败", append(fields, zap.Error(err))...)
			return
		}
		s.log.Debug("消息发送成功", fields...)
		return
	}

	s.log.Warn("消息发送失败", append(fields, zap.Int("retry_count", msg.RetryCount), zap.Error(err))...)

	if err := s.outboxRepo.IncrementRetryCount(ctx, msg.ID); err != nil {
		s.log.Error("增加重试次数失败", append(fields, zap.Error(err))...)
	}

	if msg.RetryCount+1 >= s.maxRetry {
		if err := s.outboxRepo.MarkAsFailed(ctx, msg.ID); err != nil {
			s.log.Error("标记消息失败状态失败", append(fields, zap.Error(err))...)
			return
		}
		s.log.Error("消息超过最大重试次数，标记为失败", fields...)
	}
}
