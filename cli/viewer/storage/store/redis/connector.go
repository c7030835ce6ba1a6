package redis

/*
Плагин для Redis: хранит последний снимок каждого объекта по ключу <prefix><address>.
Каждое сохранение перезаписывает предыдущее значение, история не ведется.

Настройки, которые могут быть в конфиге для подключения хранилища:

storage:
  redis:
    host: "localhost"
    port: "6379"
    password: ""
    db: "0"
    prefix: "aircraft:"
    ttl_sec: "600"
*/

import (
	"context"
	"fmt"
	"time"

	"github.com/daniil11ru/airtrack/cli/viewer/storage/store"
	"github.com/go-redis/redis/v8"
)

const opTimeout = 5 * time.Second

type Connector struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func (c *Connector) Init(cfg map[string]string) error {
	if cfg == nil {
		return fmt.Errorf("некорректная ссылка на конфигурацию")
	}

	db, err := store.IntOption("db", 0, cfg)
	if err != nil {
		return fmt.Errorf("не удалось получить db: %v", err)
	}
	ttl, err := store.IntOption("ttl_sec", 600, cfg)
	if err != nil {
		return fmt.Errorf("не удалось получить ttl_sec: %v", err)
	}

	c.prefix = store.OptionValue("prefix", "aircraft:", cfg)
	c.ttl = time.Duration(ttl) * time.Second
	c.client = redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", store.OptionValue("host", "localhost", cfg), store.OptionValue("port", "6379", cfg)),
		Password: cfg["password"],
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	if err := c.client.Ping(ctx).Err(); err != nil {
		_ = c.client.Close()
		c.client = nil
		return fmt.Errorf("Redis недоступен: %w", err)
	}
	return nil
}

// Key возвращает ключ Redis для объекта
func (c *Connector) Key(id string) string {
	return c.prefix + id
}

func (c *Connector) Save(msg interface {
	Key() string
	ToBytes() ([]byte, error)
}) error {
	if msg == nil {
		return fmt.Errorf("некорректная ссылка на запись")
	}

	data, err := msg.ToBytes()
	if err != nil {
		return fmt.Errorf("ошибка сериализации записи: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	if err := c.client.Set(ctx, c.Key(msg.Key()), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("не удалось записать ключ %s: %w", c.Key(msg.Key()), err)
	}
	return nil
}

func (c *Connector) Close() error {
	if c.client == nil {
		return nil
	}
	return c.client.Close()
}
