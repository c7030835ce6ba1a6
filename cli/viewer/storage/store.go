package storage

import (
	"errors"
	"fmt"

	"github.com/daniil11ru/airtrack/cli/viewer/storage/store/nats"
	"github.com/daniil11ru/airtrack/cli/viewer/storage/store/redis"
)

var ErrInvalidStorage = errors.New("хранилище не найдено")
var ErrUnknownStorage = errors.New("хранилище пока не поддерживается")

// Record снимок объекта, передаваемый в хранилища
type Record = interface {
	Key() string
	ToBytes() ([]byte, error)
}

type Store interface {
	Connector
	Saver
}

// Saver интерфейс для записи во внешние хранилища
type Saver interface {
	Save(Record) error
}

// Connector интерфейс для подключения внешних хранилищ
type Connector interface {
	// Init подключается по разделу настроек хранилища из конфига
	Init(map[string]string) error

	Close() error
}

// Repository набор выходных хранилищ
type Repository struct {
	storages []Saver
	closers  []Connector
}

func NewRepository() *Repository {
	return &Repository{}
}

// AddStore добавляет хранилище для сохранения данных
func (r *Repository) AddStore(s Saver) {
	r.storages = append(r.storages, s)
	if c, ok := s.(Connector); ok {
		r.closers = append(r.closers, c)
	}
}

// Save сохраняет данные во все установленные хранилища, останавливаясь на первой ошибке
func (r *Repository) Save(m Record) error {
	for _, store := range r.storages {
		if err := store.Save(m); err != nil {
			return err
		}
	}
	return nil
}

// Len возвращает количество хранилищ
func (r *Repository) Len() int {
	return len(r.storages)
}

// LoadStorages загружает хранилища из структуры конфига
func (r *Repository) LoadStorages(storages map[string]map[string]string) error {
	if len(storages) == 0 {
		return ErrInvalidStorage
	}

	for name, params := range storages {
		var db Store
		switch name {
		case "redis":
			db = &redis.Connector{}
		case "nats":
			db = &nats.Connector{}
		default:
			return fmt.Errorf("%w: %s", ErrUnknownStorage, name)
		}

		if err := db.Init(params); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}

		r.AddStore(db)
	}
	return nil
}

// Close закрывает все подключения и возвращает первую ошибку
func (r *Repository) Close() error {
	var first error
	for _, c := range r.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
