// Package realtime fans caja events out to websocket subscribers of a store,
// so open terminals see sessions, movements and orders change without polling.
package realtime

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Event types published by the services.
const (
	SesionAbierta        = "sesion.abierta"
	SesionCerrada        = "sesion.cerrada"
	MovimientoRegistrado = "movimiento.registrado"
	OrdenCreada          = "orden.creada"
	OrdenActualizada     = "orden.actualizada"
	OrdenPagada          = "orden.pagada"
	OrdenCancelada       = "orden.cancelada"
)

type Evento struct {
	Tipo     string    `json:"tipo"`
	TiendaID string    `json:"tienda_id"`
	Data     any       `json:"data"`
	Fecha    time.Time `json:"fecha"`
}

// Hub is an in-process broadcaster keyed by store. Publish never blocks:
// a subscriber whose buffer is full misses the event.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[*Suscripcion]struct{}
	buffer int
}

func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 32
	}
	return &Hub{subs: make(map[string]map[*Suscripcion]struct{}), buffer: buffer}
}

// Suscripcion receives the events of one store on C until Cancelar.
type Suscripcion struct {
	C      <-chan Evento
	ch     chan Evento
	tienda string
	hub    *Hub
	once   sync.Once
}

func (h *Hub) Suscribir(tiendaID string) *Suscripcion {
	ch := make(chan Evento, h.buffer)
	s := &Suscripcion{C: ch, ch: ch, tienda: tiendaID, hub: h}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[tiendaID] == nil {
		h.subs[tiendaID] = make(map[*Suscripcion]struct{})
	}
	h.subs[tiendaID][s] = struct{}{}
	return s
}

// Cancelar removes the subscription and closes C. Safe to call twice.
func (s *Suscripcion) Cancelar() {
	s.once.Do(func() {
		h := s.hub
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.subs[s.tienda], s)
		if len(h.subs[s.tienda]) == 0 {
			delete(h.subs, s.tienda)
		}
		close(s.ch)
	})
}

// Publish delivers ev to every subscriber of ev.TiendaID.
func (h *Hub) Publish(ev Evento) {
	if ev.Fecha.IsZero() {
		ev.Fecha = time.Now().UTC()
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.subs[ev.TiendaID] {
		select {
		case s.ch <- ev:
		default:
			log.Warn().Str("tienda_id", ev.TiendaID).Str("tipo", ev.Tipo).
				Msg("realtime: subscriber buffer full, event dropped")
		}
	}
}

func (h *Hub) Suscriptores(tiendaID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[tiendaID])
}
