package brokers

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/url"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// RabbitMQ реализует Notifier для RabbitMQ
type RabbitMQ struct {
	config  Config
	conn    *amqp.Connection
	channel *amqp.Channel
}

// NewRabbitMQ создает новый RabbitMQ notifier
func NewRabbitMQ(cfg Config) (*RabbitMQ, error) {
	if cfg.Queue == "" && cfg.Exchange == "" {
		return nil, fmt.Errorf("queue or exchange name is required for RabbitMQ")
	}
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		if cfg.UseTLS {
			cfg.Port = 5671 // amqps default
		} else {
			cfg.Port = 5672 // amqp default
		}
	}
	if cfg.VHost == "" {
		cfg.VHost = "/"
	}
	return &RabbitMQ{config: cfg}, nil
}

// URL строка подключения amqp(s)://user:password@host:port/vhost
func (r *RabbitMQ) URL() string {
	scheme := "amqp"
	if r.config.UseTLS {
		scheme = "amqps"
	}
	u := url.URL{
		Scheme:  scheme,
		User:    url.UserPassword(r.config.User, r.config.Password),
		Host:    fmt.Sprintf("%s:%d", r.config.Host, r.config.Port),
		Path:    "/" + r.config.VHost,
		RawPath: "/" + url.PathEscape(r.config.VHost),
	}
	return u.String()
}

// routingKey ключ маршрутизации; по умолчанию имя очереди
func (r *RabbitMQ) routingKey() string {
	if r.config.RoutingKey != "" {
		return r.config.RoutingKey
	}
	return r.config.Queue
}

// Connect устанавливает соединение с RabbitMQ
func (r *RabbitMQ) Connect(ctx context.Context) error {
	var err error
	if r.config.UseTLS {
		tlsConfig := &tls.Config{
			ServerName: r.config.Host,
			MinVersion: tls.VersionTLS12,
		}
		r.conn, err = amqp.DialTLS(r.URL(), tlsConfig)
	} else {
		r.conn, err = amqp.Dial(r.URL())
	}
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	r.channel, err = r.conn.Channel()
	if err != nil {
		r.conn.Close()
		return fmt.Errorf("failed to open channel: %w", err)
	}

	// очередь объявляется только при публикации в default exchange
	// ВАЖНО: Параметры должны совпадать с существующей очередью!
	if r.config.Queue != "" && r.config.Exchange == "" {
		_, err = r.channel.QueueDeclare(
			r.config.Queue,
			r.config.Durable,
			r.config.AutoDelete,
			r.config.Exclusive,
			false, // no-wait
			nil,
		)
		if err != nil {
			r.channel.Close()
			r.conn.Close()
			return fmt.Errorf("failed to declare queue: %w", err)
		}
	}
	return nil
}

// Close закрывает соединение с RabbitMQ
func (r *RabbitMQ) Close() error {
	if r.channel != nil {
		if err := r.channel.Close(); err != nil {
			return fmt.Errorf("failed to close channel: %w", err)
		}
	}
	if r.conn != nil {
		if err := r.conn.Close(); err != nil {
			return fmt.Errorf("failed to close connection: %w", err)
		}
	}
	return nil
}

// Send публикует сообщение; key становится MessageId
func (r *RabbitMQ) Send(ctx context.Context, key string, message []byte) error {
	if r.channel == nil {
		return fmt.Errorf("not connected to RabbitMQ")
	}

	err := r.channel.PublishWithContext(
		ctx,
		r.config.Exchange,
		r.routingKey(),
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  ContentType,
			MessageId:    key,
			Body:         message,
			DeliveryMode: amqp.Persistent, // Сообщения сохраняются на диск
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}
	return nil
}

// Ping проверяет доступность RabbitMQ
func (r *RabbitMQ) Ping(ctx context.Context) error {
	if r.conn == nil || r.conn.IsClosed() {
		return fmt.Errorf("not connected to RabbitMQ")
	}
	if r.channel == nil {
		return fmt.Errorf("channel not open")
	}
	return nil
}

// Type возвращает тип брокера
func (r *RabbitMQ) Type() string {
	return "rabbitmq"
}
