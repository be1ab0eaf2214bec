// Package display drives the four-region status panel. The drawing itself is
// delegated to a Renderer; this package only decides what each region gets.
package display

import (
	"context"
	"log"
	"time"

	"github.com/LeonardoBeccarini/canbus_hub/internal/model"
	"github.com/LeonardoBeccarini/canbus_hub/internal/state"
)

// Renderer paints independent screen regions. Implementations must not
// derive connectivity themselves; every flag is passed in precomputed.
type Renderer interface {
	DrawHeader(title string)
	DrawNode1(temp float64, oilFull bool, connected bool)
	DrawNode2(doorOpen bool, load, lat, lon float64, doorConnected, gpsConnected bool)
	DrawLinkStatus(busOK bool)
}

// Flusher is implemented by renderers that buffer regions and present them
// together (the terminal renderer). Direct-to-panel renderers don't need it.
type Flusher interface {
	Flush() error
}

type Presenter struct {
	renderer Renderer
	title    string
}

func NewPresenter(r Renderer, title string) *Presenter {
	return &Presenter{renderer: r, title: title}
}

// Render paints one snapshot. Each region only sees its own fields.
func (p *Presenter) Render(s model.Snapshot) error {
	p.renderer.DrawHeader(p.title)
	p.renderer.DrawNode1(s.Node1.Temp, s.Node1.OilFull, s.IsConnected(model.Node1))
	p.renderer.DrawNode2(s.Node2.DoorOpen, s.Node2.LoadWeight, s.Node3.Latitude, s.Node3.Longitude,
		s.IsConnected(model.Node2), s.IsConnected(model.Node3))
	p.renderer.DrawLinkStatus(s.BusOK)

	if f, ok := p.renderer.(Flusher); ok {
		return f.Flush()
	}
	return nil
}

// Run redraws every refresh interval until ctx is cancelled.
func (p *Presenter) Run(ctx context.Context, source state.SnapshotSource, refresh time.Duration) {
	ticker := time.NewTicker(refresh)
	defer ticker.Stop()

	for {
		if err := p.Render(source.Read()); err != nil {
			log.Printf("display: render error: %v", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
