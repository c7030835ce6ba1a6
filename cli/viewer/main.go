package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/daniil11ru/airtrack/cli/viewer/config"
	"github.com/daniil11ru/airtrack/cli/viewer/connection"
	"github.com/daniil11ru/airtrack/cli/viewer/observability"
	"github.com/daniil11ru/airtrack/cli/viewer/storage"
	"github.com/daniil11ru/airtrack/cli/viewer/surface"
	"github.com/daniil11ru/airtrack/cli/viewer/tracker"

	"github.com/rifflock/lfshook"
	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

const shutdownTimeout = 5 * time.Second

var errNoConfigPath = errors.New("не задан путь до конфига")

func main() {
	configFilePath := ""
	flag.StringVar(&configFilePath, "c", "", "path to the YAML config")
	flag.Parse()

	conf, err := getConfig(configFilePath)
	if err != nil {
		log.Fatalf("Не удалось получить конфиг: %v", err)
	}

	configureLogging(conf)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, conf); err != nil {
		log.Fatal(err)
	}
}

func getConfig(configFilePath string) (config.Settings, error) {
	var c config.Settings

	if configFilePath == "" {
		return c, errNoConfigPath
	}

	c, err := config.New(configFilePath)
	if err != nil {
		return c, fmt.Errorf("ошибка парсинга конфига: %w", err)
	}

	return c, nil
}

func configureLogging(conf config.Settings) {
	log.SetLevel(conf.GetLogLevel())

	consoleFmt := &log.TextFormatter{ForceColors: true, FullTimestamp: false}
	log.SetFormatter(consoleFmt)
	log.SetOutput(os.Stdout)

	if conf.LogFilePath != "" {
		logDir := filepath.Dir(conf.LogFilePath)
		if _, err := os.Stat(logDir); os.IsNotExist(err) {
			if err := os.MkdirAll(logDir, os.ModePerm); err != nil {
				log.Fatalf("Не получилось создать директорию для логов: %v", err)
			}
		}

		lumberjackLogger := &lumberjack.Logger{
			Filename:   conf.LogFilePath,
			MaxSize:    100,
			MaxBackups: 366,
			MaxAge:     conf.LogMaxAgeDays,
			Compress:   true,
		}

		fileFmt := &log.TextFormatter{DisableColors: true, FullTimestamp: true}
		hook := lfshook.NewHook(lfshook.WriterMap{
			log.PanicLevel: lumberjackLogger,
			log.FatalLevel: lumberjackLogger,
			log.ErrorLevel: lumberjackLogger,
			log.WarnLevel:  lumberjackLogger,
			log.InfoLevel:  lumberjackLogger,
			log.DebugLevel: lumberjackLogger,
			log.TraceLevel: lumberjackLogger,
		}, fileFmt)

		log.AddHook(hook)
	}
}

// publisher собирает хранилища из конфига. Если хранилищ нет, возвращает
// nil и пустую функцию закрытия.
func publisher(conf config.Settings) (tracker.Publisher, func(), error) {
	if len(conf.Store) == 0 {
		return nil, func() {}, nil
	}

	repo := storage.NewRepository()
	if err := repo.LoadStorages(conf.Store); err != nil {
		_ = repo.Close()
		return nil, nil, err
	}
	async := storage.NewAsyncRepository(repo, conf.PublishBuffer, conf.PublishWorkers)

	closer := func() {
		async.Close()
		if err := repo.Close(); err != nil {
			log.WithField("err", err).Warn("Не удалось закрыть хранилища")
		}
	}
	return async, closer, nil
}

func run(ctx context.Context, conf config.Settings) error {
	layer := surface.NewLayer()
	hub := surface.NewHub(layer)
	layer.SetBroadcaster(hub)
	defer hub.Close()

	pub, closePublisher, err := publisher(conf)
	if err != nil {
		return fmt.Errorf("ошибка инициализации хранилищ: %w", err)
	}
	defer closePublisher()

	t := tracker.New(layer, conf.Map.Icon, pub)

	manager := connection.NewManager(connection.Options{
		Endpoint: conf.Endpoint,
		Retry: connection.RetryPolicy{
			MaxAttempts:    conf.Reconnect.MaxAttempts,
			InitialBackoff: conf.GetInitialBackoff(),
			MaxBackoff:     conf.GetMaxBackoff(),
		},
		Hooks: connection.Hooks{
			OnOpen: func() {
				log.WithField("endpoint", conf.Endpoint).Info("Поток телеметрии подключен")
			},
			OnClose: func() {
				log.WithField("endpoint", conf.Endpoint).Info("Поток телеметрии отключен")
			},
		},
	}, t)

	status, err := newStatusReporter(conf.StatusSchedule, layer, hub, manager)
	if err != nil {
		return err
	}
	status.Start()
	defer status.Stop()

	servers := []*http.Server{
		{Addr: conf.Map.Listen, Handler: newMapRouter(layer, hub)},
	}
	if conf.MetricsAddr != "" {
		servers = append(servers, observability.NewMetricsServer(conf.MetricsAddr))
	}
	for _, srv := range servers {
		go func(s *http.Server) {
			log.WithField("addr", s.Addr).Info("HTTP-сервер запущен")
			if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.WithFields(log.Fields{"addr": s.Addr, "err": err}).Error("HTTP-сервер остановлен")
			}
		}(srv)
	}

	done := make(chan error, 1)
	go func() {
		done <- manager.Connect(ctx)
	}()

	select {
	case <-ctx.Done():
		log.Info("Завершение работы")
		<-done
		logTrackingSummary(t)
	case err := <-done:
		if err != nil {
			log.WithField("err", err).Warn("Поток телеметрии завершился")
		}
		logTrackingSummary(t)
		log.Info("Поток телеметрии закрыт, карта доступна до завершения работы")
		<-ctx.Done()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	for _, srv := range servers {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.WithFields(log.Fields{"addr": srv.Addr, "err": err}).Warn("Не удалось остановить HTTP-сервер")
		}
	}

	return nil
}
