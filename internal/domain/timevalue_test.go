package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeValue_CompareAcrossEncodings(t *testing.T) {
	epoch := TimeFromEpoch(time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC).Unix())
	date := TimeFromDate("2024-03-15")
	ymd := TimeFromYMD(2024, 3, 15)

	// Las tres codificaciones de la misma fecha son equivalentes.
	assert.Equal(t, 0, epoch.Compare(date))
	assert.Equal(t, 0, date.Compare(ymd))
	assert.Equal(t, 0, ymd.Compare(epoch))
}

func TestTimeValue_Ordering(t *testing.T) {
	early := TimeFromDate("2024-01-01")
	late := TimeFromYMD(2024, 6, 1)

	assert.Equal(t, -1, early.Compare(late))
	assert.Equal(t, 1, late.Compare(early))
}

func TestTimeValue_UnparseableDateSortsFirst(t *testing.T) {
	bad := TimeFromDate("no-es-fecha")
	assert.Equal(t, int64(0), bad.Key())
	assert.Equal(t, -1, bad.Compare(TimeFromDate("2024-01-01")))
}

func TestTimeValue_IntradayEpochPreserved(t *testing.T) {
	a := TimeFromEpoch(1700000000)
	b := TimeFromEpoch(1700000060)
	assert.Equal(t, -1, a.Compare(b))
	assert.Equal(t, int64(1700000000), a.Key())
}

func TestTimeValue_JSONPreservesEncoding(t *testing.T) {
	cases := []struct {
		tv   TimeValue
		wire string
	}{
		{TimeFromEpoch(1700000000), `1700000000`},
		{TimeFromDate("2024-03-15"), `"2024-03-15"`},
		{TimeFromYMD(2024, 3, 15), `{"year":2024,"month":3,"day":15}`},
	}

	for _, c := range cases {
		data, err := json.Marshal(c.tv)
		require.NoError(t, err)
		assert.JSONEq(t, c.wire, string(data))

		var back TimeValue
		require.NoError(t, json.Unmarshal(data, &back))
		assert.Equal(t, c.tv, back)
	}
}

func TestTimeValue_JSONRejectsUnknownShape(t *testing.T) {
	var tv TimeValue
	assert.Error(t, json.Unmarshal([]byte(`[1,2,3]`), &tv))
}

func TestFindBarIndex(t *testing.T) {
	bars := []Bar{
		{Time: TimeFromEpoch(100)},
		{Time: TimeFromEpoch(200)},
		{Time: TimeFromEpoch(300)},
	}

	assert.Equal(t, 1, FindBarIndex(bars, TimeFromEpoch(200)))
	assert.Equal(t, 1, FindBarIndex(bars, TimeFromEpoch(150))) // primera barra >= target
	assert.Equal(t, 0, FindBarIndex(bars, TimeFromEpoch(50)))
	assert.Equal(t, -1, FindBarIndex(bars, TimeFromEpoch(400)))
}
