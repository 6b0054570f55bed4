package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// TimeKind identifica la codificación original de un TimeValue.
type TimeKind int

const (
	// TimeEpoch es un timestamp en segundos unix.
	TimeEpoch TimeKind = iota
	// TimeDate es una fecha "2006-01-02".
	TimeDate
	// TimeYMD es una estructura {año, mes, día}.
	TimeYMD
)

// TimeValue es la unión etiquetada de las tres codificaciones de tiempo
// que aceptan las barras y señales. Toda comparación y derivación de claves
// pasa por aquí — nunca por branching ad hoc en los call sites.
type TimeValue struct {
	kind  TimeKind
	epoch int64
	date  string
	year  int
	month int
	day   int
}

// TimeFromEpoch crea un TimeValue desde segundos unix.
func TimeFromEpoch(secs int64) TimeValue {
	return TimeValue{kind: TimeEpoch, epoch: secs}
}

// TimeFromDate crea un TimeValue desde una fecha "2006-01-02".
// Una fecha no parseable produce un valor con clave 0 (ordena primero).
func TimeFromDate(date string) TimeValue {
	return TimeValue{kind: TimeDate, date: date}
}

// TimeFromYMD crea un TimeValue desde año/mes/día.
func TimeFromYMD(year, month, day int) TimeValue {
	return TimeValue{kind: TimeYMD, year: year, month: month, day: day}
}

// Key devuelve la clave canónica (segundos unix, fechas a medianoche UTC).
// Es la única base válida para ordenar y para lookups por tiempo.
func (t TimeValue) Key() int64 {
	switch t.kind {
	case TimeEpoch:
		return t.epoch
	case TimeDate:
		parsed, err := time.Parse("2006-01-02", t.date)
		if err != nil {
			return 0
		}
		return parsed.Unix()
	case TimeYMD:
		return time.Date(t.year, time.Month(t.month), t.day, 0, 0, 0, 0, time.UTC).Unix()
	}
	return 0
}

// Compare devuelve -1, 0 o +1 según el orden cronológico canónico.
// Las tres codificaciones son mutuamente comparables.
func (t TimeValue) Compare(o TimeValue) int {
	a, b := t.Key(), o.Key()
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// Time devuelve el valor como time.Time en UTC.
func (t TimeValue) Time() time.Time {
	return time.Unix(t.Key(), 0).UTC()
}

// IsZero devuelve true si el valor no fue inicializado.
func (t TimeValue) IsZero() bool {
	return t == TimeValue{}
}

// MarshalJSON emite la codificación original: número de epoch, string de
// fecha o el objeto {year, month, day}.
func (t TimeValue) MarshalJSON() ([]byte, error) {
	switch t.kind {
	case TimeDate:
		return json.Marshal(t.date)
	case TimeYMD:
		return json.Marshal(ymdJSON{Year: t.year, Month: t.month, Day: t.day})
	}
	return json.Marshal(t.epoch)
}

// UnmarshalJSON acepta las tres codificaciones del wire.
func (t *TimeValue) UnmarshalJSON(data []byte) error {
	var epoch int64
	if err := json.Unmarshal(data, &epoch); err == nil {
		*t = TimeFromEpoch(epoch)
		return nil
	}
	var date string
	if err := json.Unmarshal(data, &date); err == nil {
		*t = TimeFromDate(date)
		return nil
	}
	var ymd ymdJSON
	if err := json.Unmarshal(data, &ymd); err == nil {
		*t = TimeFromYMD(ymd.Year, ymd.Month, ymd.Day)
		return nil
	}
	return fmt.Errorf("domain.TimeValue: codificación de tiempo no reconocida: %s", data)
}

type ymdJSON struct {
	Year  int `json:"year"`
	Month int `json:"month"`
	Day   int `json:"day"`
}

// String implementa fmt.Stringer para logging.
func (t TimeValue) String() string {
	switch t.kind {
	case TimeDate:
		return t.date
	case TimeYMD:
		return fmt.Sprintf("%04d-%02d-%02d", t.year, t.month, t.day)
	}
	return t.Time().Format("2006-01-02 15:04:05")
}
