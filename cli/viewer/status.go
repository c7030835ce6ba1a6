package main

import (
	"fmt"

	"github.com/daniil11ru/airtrack/cli/viewer/connection"
	"github.com/daniil11ru/airtrack/cli/viewer/surface"
	"github.com/daniil11ru/airtrack/cli/viewer/tracker"
	cron "github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
)

type statusSource struct {
	layer   *surface.Layer
	hub     *surface.Hub
	manager *connection.Manager
}

func (s statusSource) fields() log.Fields {
	return log.Fields{
		"markers":     len(s.layer.Markers()),
		"subscribers": s.hub.Count(),
		"connection":  s.manager.State(),
	}
}

// newStatusReporter планирует периодический вывод состояния. Трекер принадлежит
// циклу приема, поэтому здесь читаются только компоненты под мьютексом.
func newStatusReporter(schedule string, layer *surface.Layer, hub *surface.Hub, manager *connection.Manager) (*cron.Cron, error) {
	src := statusSource{layer: layer, hub: hub, manager: manager}

	c := cron.New()
	if _, err := c.AddFunc(schedule, func() {
		log.WithFields(src.fields()).Info("Состояние просмотрщика")
	}); err != nil {
		return nil, fmt.Errorf("некорректное расписание статуса %q: %w", schedule, err)
	}
	return c, nil
}

// logTrackingSummary выводит отслеживаемые объекты. Вызывать только после
// завершения цикла приема.
func logTrackingSummary(t *tracker.Tracker) {
	entities := t.Entities()
	located := 0
	for _, e := range entities {
		if e.HasMarker {
			located++
		}
		log.WithFields(tracker.ReportFields(e.Report)).
			WithField("updated_at", e.UpdatedAt).
			Debug("Отслеживаемый объект")
	}
	log.WithFields(log.Fields{"entities": t.Len(), "located": located}).Info("Итог по отслеживаемым объектам")
}
