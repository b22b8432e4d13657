package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"db-merge/internal/schema"
)

func TestColumnMeaning(t *testing.T) {
	cases := map[string]string{
		"cust_nm":    "name",
		"user_email": "email",
		"tel_no":     "phone",
		"home_addr":  "address",
		"use_yn":     "yesno",
		"lat":        "latitude",
		"lng":        "longitude",
		"reg_dt":     "registered date",
		"zip":        "zipcode",
		"passwd":     "password",
	}
	for col, want := range cases {
		assert.Equal(t, want, ColumnMeaning(col), col)
	}
}

func TestTypeLength(t *testing.T) {
	assert.Equal(t, 40, typeLength("character varying(40)"))
	assert.Equal(t, 8, typeLength("numeric(8,2)"))
	assert.Equal(t, 0, typeLength("nvarchar(max)"))
	assert.Equal(t, 0, typeLength("text"))
}

func TestGeneratorRespectsLength(t *testing.T) {
	g := newGenerator(7)
	col := &schema.Column{Name: "description", DataType: "character varying(5)"}
	for i := 0; i < 50; i++ {
		v, ok := g.Value(col).(string)
		assert.True(t, ok)
		assert.LessOrEqual(t, len([]rune(v)), 5)
	}
}

func TestGeneratorIsSeeded(t *testing.T) {
	cols := []*schema.Column{
		{Name: "email", DataType: "text"},
		{Name: "qty", DataType: "integer"},
		{Name: "price", DataType: "numeric(10,2)"},
		{Name: "active", DataType: "boolean"},
	}
	a, b := newGenerator(42), newGenerator(42)
	b.now = a.now
	for i := 0; i < 20; i++ {
		for _, c := range cols {
			assert.Equal(t, a.Value(c), b.Value(c), c.Name)
		}
	}
}

func TestGeneratorTypes(t *testing.T) {
	g := newGenerator(1)

	d, ok := g.Value(&schema.Column{Name: "born", DataType: "date"}).(string)
	assert.True(t, ok)
	_, err := time.Parse("2006-01-02", d)
	assert.NoError(t, err)

	ts, _ := g.Value(&schema.Column{Name: "created_at", DataType: "timestamp without time zone"}).(string)
	_, err = time.Parse("2006-01-02 15:04:05", ts)
	assert.NoError(t, err)

	n, ok := g.Value(&schema.Column{Name: "flag_yn", DataType: "smallint"}).(int)
	assert.True(t, ok)
	assert.Contains(t, []int{0, 1}, n)

	lat, ok := g.Value(&schema.Column{Name: "lat", DataType: "double precision"}).(float64)
	assert.True(t, ok)
	assert.InDelta(t, 0, lat, 90)

	small, ok := g.Value(&schema.Column{Name: "ratio", DataType: "numeric(3,2)"}).(float64)
	assert.True(t, ok)
	assert.Less(t, small, 1.0)

	assert.IsType(t, []byte{}, g.Value(&schema.Column{Name: "blob", DataType: "bytea"}))
	assert.Nil(t, g.Value(&schema.Column{Name: "shape", DataType: "geometry"}))
}
