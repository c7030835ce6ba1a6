package tracker

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/daniil11ru/airtrack/cli/viewer/observability"
	"github.com/daniil11ru/airtrack/cli/viewer/storage"
	"github.com/daniil11ru/airtrack/cli/viewer/surface"
	"github.com/daniil11ru/airtrack/cli/viewer/telemetry"
	log "github.com/sirupsen/logrus"
)

var now = time.Now

// Surface карта, на которой отображаются маркеры
type Surface interface {
	CreateMarkerAt(lat, lon float64, icon surface.Icon) surface.Handle
	SetMarkerPosition(h surface.Handle, lat, lon float64)
	BindLabel(h surface.Handle, text string)
	AddMarkerToSurface(h surface.Handle)
}

// Publisher получает снимок объекта после применения каждого отчета
type Publisher interface {
	Save(storage.Record) error
}

type trackedEntity struct {
	report    telemetry.Report
	marker    *surface.Handle
	position  telemetry.Location
	updatedAt time.Time
}

// Tracker сводит отчеты телеметрии в набор отслеживаемых объектов и держит по
// одному маркеру на каждый объект с координатами. Не потокобезопасен: отчеты
// применяются только из цикла приема соединения.
type Tracker struct {
	surface   Surface
	icon      surface.Icon
	publisher Publisher
	entities  map[telemetry.EntityID]*trackedEntity
}

// New создает пустой трекер. publisher может быть nil.
func New(s Surface, icon surface.Icon, publisher Publisher) *Tracker {
	return &Tracker{
		surface:   s,
		icon:      icon,
		publisher: publisher,
		entities:  make(map[telemetry.EntityID]*trackedEntity),
	}
}

// Label текст всплывающей подписи маркера
func Label(id telemetry.EntityID) string {
	return fmt.Sprintf("addr: %s", id)
}

// ApplyReport сохраняет отчет как последнее состояние объекта, целиком заменяя
// предыдущее, и создает или перемещает маркер, если в отчете есть координаты.
func (t *Tracker) ApplyReport(report telemetry.Report) {
	if report.ID == "" {
		log.Warn("Отчет без адреса пропущен")
		return
	}

	entity, ok := t.entities[report.ID]
	if !ok {
		entity = &trackedEntity{}
		t.entities[report.ID] = entity
		observability.TrackedEntities.Set(float64(t.Len()))
		log.WithFields(ReportFields(report)).Info("Новый объект на сопровождении")
	}
	entity.report = report
	entity.updatedAt = now()

	if loc := report.Location; loc != nil {
		if entity.marker == nil {
			h := t.surface.CreateMarkerAt(loc.Latitude, loc.Longitude, t.icon)
			t.surface.AddMarkerToSurface(h)
			t.surface.BindLabel(h, Label(report.ID))
			entity.marker = &h
			observability.MarkersCreated.Inc()
			log.WithFields(ReportFields(report)).Debug("Маркер создан")
		} else {
			t.surface.SetMarkerPosition(*entity.marker, loc.Latitude, loc.Longitude)
			observability.MarkersMoved.Inc()
			log.WithFields(ReportFields(report)).
				WithField("meters", entity.position.DistanceTo(*loc)).
				Debug("Маркер перемещен")
		}
		entity.position = *loc
	}

	observability.ReportsApplied.Inc()
	t.publish(report.ID)
}

func (t *Tracker) publish(id telemetry.EntityID) {
	if t.publisher == nil {
		return
	}
	e, ok := t.Entity(id)
	if !ok {
		return
	}
	if err := t.publisher.Save(e); err != nil {
		log.WithFields(log.Fields{"address": id, "err": err}).Warn("Снимок объекта не опубликован")
	}
}

// ReportFields поля лога для отчета: адрес, координаты и известные атрибуты
func ReportFields(report telemetry.Report) log.Fields {
	fields := log.Fields{"address": report.ID}
	if loc := report.Location; loc != nil {
		fields["lat"] = loc.Latitude
		fields["lon"] = loc.Longitude
	}
	if ident, ok := report.Identification(); ok {
		fields["identification"] = ident
	}
	if alt, ok := report.Altitude(); ok {
		fields["altitude"] = alt
	}
	if speed, ok := report.AirSpeed(); ok {
		fields["air_speed"] = speed
	}
	if rate, ok := report.VerticalRate(); ok {
		fields["vertical_rate"] = rate
	}
	return fields
}

// Len возвращает количество отслеживаемых объектов
func (t *Tracker) Len() int {
	return len(t.entities)
}

// Entity возвращает снимок одного объекта
func (t *Tracker) Entity(id telemetry.EntityID) (Entity, bool) {
	entity, ok := t.entities[id]
	if !ok {
		return Entity{}, false
	}
	return snapshot(id, entity), true
}

// Entities возвращает снимки всех объектов, упорядоченные по адресу
func (t *Tracker) Entities() []Entity {
	out := make([]Entity, 0, len(t.entities))
	for id, entity := range t.entities {
		out = append(out, snapshot(id, entity))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Entity снимок отслеживаемого объекта только для чтения
type Entity struct {
	ID        telemetry.EntityID
	Report    telemetry.Report
	Marker    surface.Handle
	HasMarker bool
	UpdatedAt time.Time
}

func snapshot(id telemetry.EntityID, entity *trackedEntity) Entity {
	e := Entity{ID: id, Report: entity.report, UpdatedAt: entity.updatedAt}
	if entity.marker != nil {
		e.Marker = *entity.marker
		e.HasMarker = true
	}
	return e
}

func (e Entity) Key() string {
	return string(e.ID)
}

type entityJSON struct {
	Address   string           `json:"address"`
	HasMarker bool             `json:"has_marker"`
	UpdatedAt time.Time        `json:"updated_at"`
	Report    telemetry.Report `json:"report"`
}

func (e Entity) ToBytes() ([]byte, error) {
	return json.Marshal(entityJSON{
		Address:   string(e.ID),
		HasMarker: e.HasMarker,
		UpdatedAt: e.UpdatedAt.UTC(),
		Report:    e.Report,
	})
}
