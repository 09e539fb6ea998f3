package stream

import (
	"context"
	"sync"
	"sync/atomic"
)

// Session es el manejador de una petición de stream en vuelo. Cancel es
// cooperativo e idempotente: puede llamarse varias veces y después de la
// terminación natural sin efecto alguno. Done se cierra siempre, sea por
// éxito, falla o cancelación, así que esperar la sesión nunca cuelga.
type Session struct {
	cancel    context.CancelFunc
	cancelled atomic.Bool
	timedOut  atomic.Bool
	done      chan struct{}
	doneOnce  sync.Once
}

// Cancel deja de leer frames y libera el transporte. Tras observarse la
// cancelación no se despacha ningún callback más.
func (s *Session) Cancel() {
	if s == nil {
		return
	}
	s.cancelled.Store(true)
	s.cancel()
}

// Done devuelve la señal de terminación de la sesión.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Wait bloquea hasta que la sesión termina.
func (s *Session) Wait() {
	<-s.done
}

func (s *Session) finish() {
	s.doneOnce.Do(func() { close(s.done) })
}
