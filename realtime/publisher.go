package realtime

import (
	"context"
	"time"

	"coursehub/logger"
)

// Publisher turns row writes into changes on the bus.
type Publisher struct {
	bus Bus
	hub *Hub
	log *logger.Logger
	now func() time.Time
}

func NewPublisher(hub *Hub, bus Bus, log *logger.Logger) *Publisher {
	if log == nil {
		log = logger.Nop()
	}
	if bus == nil {
		bus = NewMemoryBus()
	}
	return &Publisher{bus: bus, hub: hub, log: log.With("service", "ChangePublisher"), now: time.Now}
}

// Start forwards bus traffic into the local hub until ctx is done.
func (p *Publisher) Start(ctx context.Context) error {
	if p.hub == nil {
		return nil
	}
	return p.bus.StartForwarder(ctx, p.hub.Broadcast)
}

func (p *Publisher) Publish(ctx context.Context, ch Change) {
	if ch.CommitTimestamp.IsZero() {
		ch.CommitTimestamp = p.now().UTC()
	}
	if err := p.bus.Publish(ctx, ch); err != nil {
		p.log.Error("publish change failed", "table", ch.Table, "type", ch.Type, "error", err)
	}
}

// Emit publishes a change for row. Deletes only carry the primary key.
func (p *Publisher) Emit(table string, typ ChangeType, row interface{}) {
	rec, err := RowMap(row)
	if err != nil {
		p.log.Error("encode change row failed", "table", table, "error", err)
		return
	}
	ch := Change{Table: table, Type: typ}
	if typ == Delete {
		ch.OldRecord = map[string]interface{}{"id": rec["id"]}
	} else {
		ch.Record = rec
	}
	p.Publish(context.Background(), ch)
}

func (p *Publisher) Close() error {
	return p.bus.Close()
}

// Default is the process-wide publisher used by controllers. Nil disables publishing.
var Default *Publisher

// Emit publishes through Default.
func Emit(table string, typ ChangeType, row interface{}) {
	if Default == nil {
		return
	}
	Default.Emit(table, typ, row)
}
