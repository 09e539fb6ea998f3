package sse

import "strings"

// Decoder acumula texto que llega en trozos arbitrarios y lo corta en
// frames completos del protocolo de streaming. Un frame es una o más
// líneas con prefijo "data:" terminadas por una línea en blanco; varias
// líneas "data:" dentro del mismo frame se unen con saltos de línea.
//
// El decodificador es puramente incremental: nunca retiene más que el
// resto sin delimitar y conserva el orden de llegada exacto.
type Decoder struct {
	pending strings.Builder
}

// NewDecoder crea un decodificador vacío.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Feed agrega un trozo recibido y devuelve los payloads de todos los
// frames que quedaron completos con esta entrega, en orden. Un frame sin
// líneas "data:" se descarta sin emitir nada.
func (d *Decoder) Feed(chunk string) []string {
	if chunk == "" {
		return nil
	}
	d.pending.WriteString(chunk)

	buf := d.pending.String()
	// Normalizamos CRLF antes de detectar límites de frame.
	buf = strings.ReplaceAll(buf, "\r\n", "\n")

	var frames []string
	for {
		idx := strings.Index(buf, "\n\n")
		if idx < 0 {
			break
		}
		raw := buf[:idx]
		buf = buf[idx+2:]
		if payload, ok := joinDataLines(raw); ok {
			frames = append(frames, payload)
		}
	}

	d.pending.Reset()
	d.pending.WriteString(buf)
	return frames
}

// Flush entrega el resto sin delimitar al cierre del stream como un
// último frame de mejor esfuerzo, en lugar de descartarlo en silencio.
func (d *Decoder) Flush() (string, bool) {
	raw := strings.ReplaceAll(d.pending.String(), "\r\n", "\n")
	d.pending.Reset()
	if raw == "" {
		return "", false
	}
	return joinDataLines(raw)
}

// joinDataLines extrae las líneas "data:" de un frame crudo y las une
// con "\n". ok es false cuando el frame no contiene ninguna.
func joinDataLines(raw string) (string, bool) {
	var parts []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimRight(line, "\r")
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		parts = append(parts, strings.TrimSpace(line[len("data:"):]))
	}
	if len(parts) == 0 {
		return "", false
	}
	return strings.Join(parts, "\n"), true
}
