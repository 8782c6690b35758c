// Package brokers отправляет события о завершении заданий в очереди
// сообщений (Kafka, RabbitMQ), чтобы downstream-системы узнавали о новом
// дампе или перезагрузке без опроса.
package brokers

import (
	"context"
	"fmt"
	"strings"

	"github.com/ruslano69/tdtp-dbengine/pkg/report"
)

// ContentType тип содержимого сообщений
const ContentType = "application/json"

// Notifier представляет универсальный интерфейс для отправки событий в брокер
type Notifier interface {
	// Connect устанавливает соединение с брокером
	Connect(ctx context.Context) error

	// Close закрывает соединение с брокером
	Close() error

	// Send отправляет сообщение; key используется брокерами с партиционированием
	Send(ctx context.Context, key string, message []byte) error

	// Ping проверяет доступность брокера
	Ping(ctx context.Context) error

	// Type возвращает тип брокера (rabbitmq, kafka)
	Type() string
}

// Config содержит параметры подключения к message broker
type Config struct {
	Type       string `yaml:"type"`        // rabbitmq, kafka
	Host       string `yaml:"host"`        // Хост (для RabbitMQ)
	Port       int    `yaml:"port"`        // Порт (для RabbitMQ)
	User       string `yaml:"user"`        // Пользователь (для RabbitMQ)
	Password   string `yaml:"password"`    // Пароль (для RabbitMQ)
	Queue      string `yaml:"queue"`       // Имя очереди (для RabbitMQ)
	VHost      string `yaml:"vhost"`       // Virtual host (для RabbitMQ, по умолчанию "/")
	UseTLS     bool   `yaml:"use_tls"`     // Использовать TLS/SSL (amqps://) для RabbitMQ
	Exchange   string `yaml:"exchange"`    // RabbitMQ exchange (пустая строка = default exchange)
	RoutingKey string `yaml:"routing_key"` // RabbitMQ routing key (если пустой, используется имя очереди)

	// RabbitMQ параметры очереди (ВАЖНО: должны совпадать с существующей очередью!)
	Durable    bool `yaml:"durable"`
	AutoDelete bool `yaml:"auto_delete"`
	Exclusive  bool `yaml:"exclusive"`

	// Kafka специфичные параметры
	Brokers []string `yaml:"brokers"` // Список Kafka brokers (например: ["localhost:9092"])
	Topic   string   `yaml:"topic"`   // Имя Kafka topic
}

// New создает новый Notifier на основе конфигурации
func New(cfg Config) (Notifier, error) {
	switch strings.ToLower(cfg.Type) {
	case "rabbitmq":
		return NewRabbitMQ(cfg)
	case "kafka":
		return NewKafka(cfg)
	default:
		return nil, fmt.Errorf("unsupported broker type: %s (supported: rabbitmq, kafka)", cfg.Type)
	}
}

// Notify отправляет событие о завершении задания. Ключ сообщения это
// идентификатор задания.
func Notify(ctx context.Context, n Notifier, summary *report.Summary) error {
	ev := summary.Event()
	payload, err := ev.Marshal()
	if err != nil {
		return fmt.Errorf("failed to marshal job event: %w", err)
	}
	if err := n.Send(ctx, ev.JobID, payload); err != nil {
		return fmt.Errorf("%s notification failed: %w", n.Type(), err)
	}
	return nil
}
