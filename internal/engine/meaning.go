package engine

import "strings"

var abbreviations = map[string]string{
	"nm": "name", "dt": "date", "no": "number", "cd": "code",
	"desc": "description", "amt": "amount", "cnt": "count", "qty": "quantity",
	"addr": "address", "tel": "phone", "ph": "phone", "mob": "phone",
	"pwd": "password", "passwd": "password", "pw": "password",
	"img": "image", "url": "url", "ip": "ip", "zip": "zipcode",
	"msg": "message", "txt": "text", "tit": "title", "subj": "subject",
	"usr": "user", "emp": "employee", "dept": "department", "cat": "category",
	"lat": "latitude", "lng": "longitude", "lon": "longitude",
	"st": "street", "bal": "balance", "avg": "average",
	"reg": "registered", "mod": "modified", "upd": "updated", "cre": "created",
	"yn": "yesno", "flg": "flag", "stat": "status", "sts": "status",
	"seq": "sequence", "ord": "order",
}

// meaningRules are checked in order against the expanded column name.
var meaningRules = []struct {
	meaning  string
	keywords []string
}{
	{"email", []string{"email", "mail"}},
	{"phone", []string{"phone", "mobile", "fax"}},
	{"zipcode", []string{"zipcode", "postal"}},
	{"ip", []string{"ip"}},
	{"address", []string{"address", "street"}},
	{"city", []string{"city"}},
	{"country", []string{"country"}},
	{"url", []string{"url", "website", "homepage", "image"}},
	{"uuid", []string{"uuid", "guid"}},
	{"password", []string{"password"}},
	{"company", []string{"company", "organization", "vendor"}},
	{"username", []string{"username", "login"}},
	{"name", []string{"name", "first", "last"}},
	{"title", []string{"title", "subject"}},
	{"description", []string{"description", "comment", "message", "text", "content", "note"}},
	{"price", []string{"price", "amount", "cost", "balance"}},
	{"count", []string{"count", "quantity"}},
	{"year", []string{"year"}},
	{"yesno", []string{"yesno", "flag", "active", "enabled", "is"}},
	{"latitude", []string{"latitude"}},
	{"longitude", []string{"longitude"}},
}

// ColumnMeaning guesses what a column holds from its name, expanding common
// abbreviations first (cust_nm -> "cust name" -> name).
func ColumnMeaning(colName string) string {
	parts := strings.FieldsFunc(strings.ToLower(colName), func(r rune) bool {
		return r == '_' || r == '-' || r == ' '
	})
	for i, p := range parts {
		if full, ok := abbreviations[p]; ok {
			parts[i] = full
		}
	}

	for _, rule := range meaningRules {
		for _, kw := range rule.keywords {
			for _, p := range parts {
				if p == kw || (len(kw) > 3 && strings.Contains(p, kw)) {
					return rule.meaning
				}
			}
		}
	}
	return strings.Join(parts, " ")
}
