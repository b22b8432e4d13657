package engine

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v6"

	"db-merge/internal/schema"
)

// generator produces plausible column values for the seeder. A fixed seed
// gives the same rows on every run.
type generator struct {
	faker *gofakeit.Faker
	now   time.Time
}

func newGenerator(seed int64) *generator {
	return &generator{faker: gofakeit.New(seed), now: time.Now()}
}

var typeArgs = regexp.MustCompile(`\((\d+|max)(?:\s*,\s*(\d+))?\)`)

// typeLength returns the declared length or precision of a type such as
// character varying(40) or numeric(8,2); 0 when none or max.
func typeLength(dataType string) int {
	m := typeArgs.FindStringSubmatch(dataType)
	if m == nil || m[1] == "max" {
		return 0
	}
	n, _ := strconv.Atoi(m[1])
	return n
}

func truncate(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) > limit {
		return string(runes[:limit])
	}
	return s
}

// Value generates a random value based on the column definition.
func (g *generator) Value(col *schema.Column) any {
	dataType := strings.ToLower(col.DataType)
	meaning := ColumnMeaning(col.Name)
	length := typeLength(dataType)
	f := g.faker

	// 1. Text types, where the column meaning decides the content
	if strings.Contains(dataType, "char") || strings.Contains(dataType, "text") ||
		strings.Contains(dataType, "string") || dataType == "citext" {
		var v string
		switch meaning {
		case "email":
			v = f.Email()
		case "phone":
			v = f.Phone()
		case "zipcode":
			v = f.Zip()
		case "ip":
			v = f.IPv4Address()
		case "address":
			v = f.Street()
		case "city":
			v = f.City()
		case "country":
			v = f.Country()
		case "url":
			v = f.URL()
		case "uuid":
			v = f.UUID()
		case "password":
			v = f.Password(true, true, true, false, false, 12)
		case "company":
			v = f.Company()
		case "username":
			v = f.Username()
		case "name":
			v = f.Name()
		case "title":
			v = f.Sentence(3)
		case "yesno":
			v = "N"
			if f.Bool() {
				v = "Y"
			}
		case "year":
			v = strconv.Itoa(f.Number(2000, g.now.Year()))
		case "description":
			v = f.Sentence(10)
		default:
			if length > 0 && length < 20 {
				v = f.Word()
			} else {
				v = f.Sentence(5)
			}
		}
		return truncate(v, length)
	}

	// 2. Everything else is driven by the type alone
	switch {
	case dataType == "uuid" || dataType == "uniqueidentifier":
		return f.UUID()

	case strings.Contains(dataType, "json"):
		return `{"note": "` + f.Word() + `"}`

	case strings.Contains(dataType, "date") || strings.Contains(dataType, "time"):
		val := f.DateRange(g.now.AddDate(-1, 0, 0), g.now)
		switch {
		case dataType == "date":
			return val.Format("2006-01-02")
		case strings.HasPrefix(dataType, "time") && !strings.HasPrefix(dataType, "timestamp"):
			return val.Format("15:04:05")
		}
		return val.Format("2006-01-02 15:04:05")

	case strings.Contains(dataType, "int"):
		if meaning == "yesno" {
			return f.Number(0, 1)
		}
		if meaning == "year" {
			return f.Number(2000, g.now.Year())
		}
		switch {
		case strings.Contains(dataType, "tinyint"):
			return f.Number(0, 127)
		case strings.Contains(dataType, "smallint"):
			return f.Number(1, 30000)
		}
		return f.Number(1, 50000)

	case strings.Contains(dataType, "numeric") || strings.Contains(dataType, "decimal") || strings.Contains(dataType, "money"):
		// keep within numeric(p,s): at most p-s integer digits
		p := typeLength(dataType)
		if m := typeArgs.FindStringSubmatch(dataType); m != nil && m[2] != "" {
			s, _ := strconv.Atoi(m[2])
			p -= s
		}
		if p > 0 && p < 3 {
			return f.Price(0, 0.99)
		}
		return f.Price(0.99, 99.99)

	case strings.Contains(dataType, "float") || strings.Contains(dataType, "double") || strings.Contains(dataType, "real"):
		switch meaning {
		case "latitude":
			return f.Latitude()
		case "longitude":
			return f.Longitude()
		}
		return f.Float64Range(0, 1000)

	case strings.Contains(dataType, "bool") || dataType == "bit":
		return f.Bool()

	case strings.Contains(dataType, "bytea") || strings.Contains(dataType, "binary") || strings.Contains(dataType, "blob"):
		return []byte(f.Word())
	}

	return nil
}
