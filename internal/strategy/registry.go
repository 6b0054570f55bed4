package strategy

import (
	"github.com/alejandrodnm/stratlab/internal/ports"
)

// Registry mantiene las estrategias disponibles indexadas por nombre.
type Registry map[string]ports.Strategy

// NewRegistry crea un registry con las estrategias de referencia.
func NewRegistry() Registry {
	r := make(Registry)
	r.Register(NewEMACross())
	r.Register(NewRSIReversion())
	return r
}

// Register añade una estrategia al registry.
func (r Registry) Register(s ports.Strategy) {
	r[s.Name()] = s
}

// Get devuelve la estrategia por nombre.
func (r Registry) Get(name string) (ports.Strategy, bool) {
	s, ok := r[name]
	return s, ok
}

// Names devuelve los nombres registrados.
func (r Registry) Names() []string {
	names := make([]string, 0, len(r))
	for name := range r {
		names = append(names, name)
	}
	return names
}

func param(params map[string]float64, name string, def float64) float64 {
	if v, ok := params[name]; ok && v > 0 {
		return v
	}
	return def
}
