package mq

import (
	"context"
	"fmt"

	"coinmarket/internal/config"

	"github.com/IBM/sarama"
	"go.uber.org/zap"
)

const headerEventType = "event_type"

// Event 待投递的领域事件
type Event struct {
	Type    string
	Key     string
	Payload []byte
}

type KafkaPublisher struct {
	producer sarama.SyncProducer
	topic    string
}

// NewKafkaPublisher 创建同步生产者，等待所有副本确认
func NewKafkaPublisher(cfg *config.KafkaConfig) (*KafkaPublisher, error) {
	kafkaConfig := sarama.NewConfig()
	kafkaConfig.Producer.RequiredAcks = sarama.WaitForAll
	kafkaConfig.Producer.Retry.Max = 3
	kafkaConfig.Producer.Return.Successes = true

	producer, err := sarama.NewSyncProducer(cfg.Brokers, kafkaConfig)
	if err != nil {
		return nil, fmt.Errorf("创建 Kafka 生产者失败: %w", err)
	}
	return NewKafkaPublisherWithProducer(producer, cfg.Topic), nil
}

func NewKafkaPublisherWithProducer(producer sarama.SyncProducer, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

// Publish 以业务主键作为消息 key，同一订单/用户的事件落在同一分区
func (p *KafkaPublisher) Publish(_ context.Context, event Event) error {
	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(event.Key),
		Value: sarama.ByteEncoder(event.Payload),
		Headers: []sarama.RecordHeader{
			{Key: []byte(headerEventType), Value: []byte(event.Type)},
		},
	}
	_, _, err := p.producer.SendMessage(msg)
	return err
}

func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}

// LogPublisher 未启用 Kafka 时把事件写入日志，保证消息表仍能正常流转
type LogPublisher struct {
	log *zap.Logger
}

func NewLogPublisher(log *zap.Logger) *LogPublisher {
	return &LogPublisher{log: log}
}

func (p *LogPublisher) Publish(_ context.Context, event Event) error {
	p.log.Info("领域事件",
		zap.String("event_type", event.Type),
		zap.String("key", event.Key),
		zap.ByteString("payload", event.Payload),
	)
	return nil
}

func (p *LogPublisher) Close() error { return nil }
