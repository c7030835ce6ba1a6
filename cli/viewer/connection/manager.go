package connection

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"time"

	"github.com/daniil11ru/airtrack/cli/viewer/observability"
	"github.com/daniil11ru/airtrack/cli/viewer/telemetry"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

const (
	defaultHandshakeTimeout = 45 * time.Second
	maxBackoff              = 10 * time.Minute
)

var ErrAlreadyStarted = errors.New("менеджер соединения уже запущен")

// ReportHandler consumes decoded reports. It is called from the receive loop,
// one report at a time.
type ReportHandler interface {
	ApplyReport(telemetry.Report)
}

// Hooks are optional lifecycle callbacks.
type Hooks struct {
	OnOpen    func()
	OnError   func(error)
	OnClose   func()
	OnMessage func(telemetry.Report)
}

// RetryPolicy bounds reconnection after the connection closes or fails.
// The zero value never reconnects.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

func (p RetryPolicy) Enabled() bool {
	return p.MaxAttempts > 0
}

// Backoff returns the delay before retry number attempt (starting at 0).
// A zero MaxBackoff caps the delay at ten minutes.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	limit := p.MaxBackoff
	if limit <= 0 {
		limit = maxBackoff
	}

	d := p.InitialBackoff
	if d <= 0 {
		return 0
	}
	for i := 0; i < attempt; i++ {
		if d > limit/2 {
			return limit
		}
		d *= 2
	}
	if d > limit {
		return limit
	}
	return d
}

type Options struct {
	Endpoint string
	Dialer   Dialer
	Retry    RetryPolicy
	Hooks    Hooks
}

// Manager owns the single telemetry stream connection.
type Manager struct {
	endpoint string
	dialer   Dialer
	retry    RetryPolicy
	hooks    Hooks
	handler  ReportHandler
	machine  *Machine
	started  atomic.Bool
}

func NewManager(opts Options, handler ReportHandler) *Manager {
	if opts.Dialer == nil {
		opts.Dialer = WebsocketDialer{HandshakeTimeout: defaultHandshakeTimeout}
	}

	m := &Manager{
		endpoint: opts.Endpoint,
		dialer:   opts.Dialer,
		retry:    opts.Retry,
		hooks:    opts.Hooks,
		handler:  handler,
		machine:  NewMachine(),
	}
	m.machine.OnTransition(func(from, to State, ev Event) {
		observability.ConnectionState.Set(float64(to))
		log.WithFields(log.Fields{"from": from, "to": to, "event": ev}).Debug("Состояние соединения изменилось")
	})
	return m
}

func (m *Manager) State() State {
	return m.machine.State()
}

// Connect dials the endpoint and runs the receive loop until the connection
// ends or ctx is cancelled. Without a retry policy it returns after the first
// session; the returned error is nil for a clean close. A manager connects
// only once.
func (m *Manager) Connect(ctx context.Context) error {
	if !m.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	attempt := 0
	for {
		opened, err := m.session(ctx)
		if errors.Is(err, ErrInvalidTransition) {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if opened {
			attempt = 0
		}
		if !m.retry.Enabled() || attempt >= m.retry.MaxAttempts {
			return err
		}

		delay := m.retry.Backoff(attempt)
		attempt++
		log.WithFields(log.Fields{"attempt": attempt, "delay": delay}).Info("Повторное подключение к источнику телеметрии")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (m *Manager) session(ctx context.Context) (bool, error) {
	if _, err := m.machine.Fire(EventDial); err != nil {
		return false, err
	}
	log.WithField("endpoint", m.endpoint).Info("Подключение к источнику телеметрии")

	conn, err := m.dialer.Dial(ctx, m.endpoint)
	if err != nil {
		if ctx.Err() != nil {
			m.onClose()
			return false, nil
		}
		m.onError(err)
		return false, err
	}
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	m.onOpen()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || isCleanClose(err) {
				m.onClose()
				return true, nil
			}
			m.onError(err)
			return true, err
		}
		m.onMessage(payload)
	}
}

func isCleanClose(err error) bool {
	return errors.Is(err, io.EOF) ||
		websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway)
}

func (m *Manager) onOpen() {
	if _, err := m.machine.Fire(EventOpened); err != nil {
		log.WithField("err", err).Error("Неожиданное событие открытия")
		return
	}
	log.WithField("endpoint", m.endpoint).Info("Соединение с источником телеметрии открыто")
	if m.hooks.OnOpen != nil {
		m.hooks.OnOpen()
	}
}

func (m *Manager) onError(err error) {
	if _, ferr := m.machine.Fire(EventFailed); ferr != nil {
		log.WithField("err", ferr).Error("Неожиданное событие ошибки")
	}
	log.WithFields(log.Fields{"endpoint": m.endpoint, "err": err}).Error("Ошибка соединения с источником телеметрии")
	if m.hooks.OnError != nil {
		m.hooks.OnError(err)
	}
}

func (m *Manager) onClose() {
	if _, err := m.machine.Fire(EventClosed); err != nil {
		log.WithField("err", err).Error("Неожиданное событие закрытия")
	}
	log.WithField("endpoint", m.endpoint).Info("Соединение с источником телеметрии закрыто")
	if m.hooks.OnClose != nil {
		m.hooks.OnClose()
	}
}

// onMessage decodes one frame and hands the report to the handler. Frames that
// arrive outside the open state or fail to decode are dropped.
func (m *Manager) onMessage(payload []byte) {
	observability.MessagesReceived.Inc()

	if state := m.machine.State(); state != Open {
		log.WithField("state", state).Warn("Сообщение получено вне открытого состояния и пропущено")
		return
	}

	report, err := telemetry.Decode(payload)
	if err != nil {
		reason := "malformed"
		if errors.Is(err, telemetry.ErrMissingID) {
			reason = "missing_address"
		}
		observability.DecodeErrors.WithLabelValues(reason).Inc()
		log.WithFields(log.Fields{"err": err, "payload": string(payload)}).Warn("Не удалось разобрать сообщение телеметрии, пропущено")
		return
	}

	log.WithFields(log.Fields{
		"address":    report.ID,
		"located":    report.HasLocation(),
		"attributes": report.AttributeNames(),
	}).Debug("Принят отчет телеметрии")
	m.handler.ApplyReport(report)
	if m.hooks.OnMessage != nil {
		m.hooks.OnMessage(report)
	}
}
