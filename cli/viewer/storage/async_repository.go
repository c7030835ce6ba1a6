package storage

import (
	"errors"
	"runtime"
	"sync"

	"github.com/daniil11ru/airtrack/cli/viewer/observability"
	log "github.com/sirupsen/logrus"
)

var (
	ErrQueueFull = errors.New("очередь публикации переполнена")
	ErrClosed    = errors.New("асинхронный репозиторий закрыт")
)

// AsyncRepository сохраняет записи пулом обработчиков, вызывающий не ждет
// хранилище. Записи, не поместившиеся в буфер, отбрасываются.
type AsyncRepository struct {
	repo Saver
	ch   chan Record
	wg   sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

func NewAsyncRepository(repo Saver, buffer, workers int) *AsyncRepository {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	ar := &AsyncRepository{
		repo: repo,
		ch:   make(chan Record, buffer),
	}
	for i := 0; i < workers; i++ {
		ar.wg.Add(1)
		go ar.worker()
	}
	return ar
}

func (a *AsyncRepository) worker() {
	defer a.wg.Done()
	for msg := range a.ch {
		if err := a.repo.Save(msg); err != nil {
			log.WithFields(log.Fields{"key": msg.Key(), "err": err}).Error("Не удалось сохранить снимок объекта")
		}
	}
}

func (a *AsyncRepository) Save(m Record) error {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.closed {
		return ErrClosed
	}
	select {
	case a.ch <- m:
		return nil
	default:
		observability.PublishDropped.Inc()
		return ErrQueueFull
	}
}

// Close перестает принимать записи и ждет сохранения уже поставленных в очередь
func (a *AsyncRepository) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	close(a.ch)
	a.mu.Unlock()

	a.wg.Wait()
}
