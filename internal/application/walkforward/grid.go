package walkforward

// grid.go — generación de la grilla de parámetros.
//
// Producto cartesiano completo si cabe bajo el cap; si no, muestreo
// aleatorio deduplicado sobre el lattice de steps, sembrado siempre con
// el candidato de punto medio para que la búsqueda tenga un ancla
// determinística.

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"

	"github.com/alejandrodnm/stratlab/internal/domain"
)

// GenerateGrid materializa los candidatos de la búsqueda. Falla rápido
// ante rangos inválidos (no finito, step<=0, min>=max).
func GenerateGrid(ranges []domain.ParameterRange, limit int, seed int64) ([]map[string]float64, error) {
	for _, r := range ranges {
		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("walkforward.GenerateGrid: %w", err)
		}
	}
	if len(ranges) == 0 {
		return []map[string]float64{{}}, nil
	}
	if limit <= 0 {
		limit = defaultGridCap
	}

	total := 1
	for _, r := range ranges {
		total *= r.Count()
		if total > 1<<20 { // evita overflow en grillas absurdas
			total = 1 << 20
			break
		}
	}

	if total <= limit {
		return cartesian(ranges), nil
	}
	return sampled(ranges, limit, seed), nil
}

func cartesian(ranges []domain.ParameterRange) []map[string]float64 {
	grid := []map[string]float64{{}}
	for _, r := range ranges {
		next := make([]map[string]float64, 0, len(grid)*r.Count())
		for _, base := range grid {
			for _, v := range r.Values() {
				c := make(map[string]float64, len(base)+1)
				for k, bv := range base {
					c[k] = bv
				}
				c[r.Name] = v
				next = append(next, c)
			}
		}
		grid = next
	}
	return grid
}

func sampled(ranges []domain.ParameterRange, limit int, seed int64) []map[string]float64 {
	rng := rand.New(rand.NewSource(seed))
	seen := make(map[string]struct{}, limit)
	grid := make([]map[string]float64, 0, limit)

	add := func(c map[string]float64) {
		key := candidateKey(c)
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		grid = append(grid, c)
	}

	// Ancla determinística: el punto medio de cada rango.
	mid := make(map[string]float64, len(ranges))
	for _, r := range ranges {
		mid[r.Name] = r.Round((r.Min + r.Max) / 2)
	}
	add(mid)

	// Muestreo sobre el lattice, con tope de intentos para no ciclar
	// si el espacio deduplicado es más chico que el tope.
	for attempts := 0; len(grid) < limit && attempts < limit*20; attempts++ {
		c := make(map[string]float64, len(ranges))
		for _, r := range ranges {
			c[r.Name] = r.Min + float64(rng.Intn(r.Count()))*r.Step
		}
		add(c)
	}
	return grid
}

// candidateKey produce una clave estable para deduplicar candidatos.
func candidateKey(c map[string]float64) string {
	names := make([]string, 0, len(c))
	for k := range c {
		names = append(names, k)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, k := range names {
		fmt.Fprintf(&b, "%s=%.10g;", k, c[k])
	}
	return b.String()
}
