package turn

// Events son avisos inyectables hacia la capa de presentación. Sustituyen
// a las difusiones globales: quien arma el controlador decide quién
// escucha, sin depender de ningún ambiente compartido. Cualquier campo
// puede ser nil.
type Events struct {
	// StreamStarted avisa que un chat entró en modo "escribiendo".
	StreamStarted func(chatID string)

	// Delta entrega el contenido acumulado del mensaje en curso tras
	// cada fragmento recibido.
	Delta func(chatID, localID, content string)

	// IndicatorChanged avisa el cambio del indicador de actividad
	// ("tool", "presentation" o vacío).
	IndicatorChanged func(chatID, indicator string)

	// StreamEnded avisa que la sesión del chat terminó, por éxito,
	// falla o cancelación.
	StreamEnded func(chatID string)
}

func (e Events) streamStarted(chatID string) {
	if e.StreamStarted != nil {
		e.StreamStarted(chatID)
	}
}

func (e Events) delta(chatID, localID, content string) {
	if e.Delta != nil {
		e.Delta(chatID, localID, content)
	}
}

func (e Events) indicatorChanged(chatID, indicator string) {
	if e.IndicatorChanged != nil {
		e.IndicatorChanged(chatID, indicator)
	}
}

func (e Events) streamEnded(chatID string) {
	if e.StreamEnded != nil {
		e.StreamEnded(chatID)
	}
}
