package nats

/*
Плагин для NATS: публикует каждый снимок объекта в тему <subject>.<address>.

Настройки, которые могут быть в конфиге для подключения хранилища:

storage:
  nats:
    servers: "nats://localhost:4222"
    subject: "aircraft"
    format: "json" # или msgpack
*/

import (
	"encoding/json"
	"fmt"

	"github.com/daniil11ru/airtrack/cli/viewer/storage/store"
	"github.com/nats-io/nats.go"
	"gopkg.in/vmihailenco/msgpack.v2"
)

const (
	FormatJSON    = "json"
	FormatMsgpack = "msgpack"
)

type Connector struct {
	conn    *nats.Conn
	subject string
	format  string
}

func (c *Connector) Init(cfg map[string]string) error {
	if cfg == nil {
		return fmt.Errorf("некорректная ссылка на конфигурацию")
	}

	c.subject = store.OptionValue("subject", "aircraft", cfg)
	c.format = store.OptionValue("format", FormatJSON, cfg)
	if c.format != FormatJSON && c.format != FormatMsgpack {
		return fmt.Errorf("неизвестный формат данных %q", c.format)
	}

	var err error
	c.conn, err = nats.Connect(store.OptionValue("servers", nats.DefaultURL, cfg), nats.Name("airtrack-viewer"))
	if err != nil {
		return fmt.Errorf("не удалось подключиться к NATS: %w", err)
	}
	return nil
}

// Subject возвращает тему, в которую публикуется запись с данным ключом
func (c *Connector) Subject(key string) string {
	return c.subject + "." + store.Token(key)
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

	if c.format == FormatMsgpack {
		if data, err = toMsgpack(data); err != nil {
			return fmt.Errorf("ошибка кодирования msgpack: %v", err)
		}
	}

	if err := c.conn.Publish(c.Subject(msg.Key()), data); err != nil {
		return fmt.Errorf("не удалось отправить сообщение: %w", err)
	}
	return nil
}

func toMsgpack(data []byte) ([]byte, error) {
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return msgpack.Marshal(v)
}

func (c *Connector) Close() error {
	if c.conn == nil {
		return nil
	}
	if err := c.conn.Flush(); err != nil {
		c.conn.Close()
		return err
	}
	c.conn.Close()
	return nil
}
