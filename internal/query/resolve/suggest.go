package resolve

import (
	"strings"

	"github.com/jinzhu/inflection"

	"github.com/arkilian/roomsql/internal/schema"
)

// Suggest returns the name of a table that name probably meant: a different
// spelling of case, or the singular or plural form. It returns "" when
// nothing is close.
func Suggest(s *schema.Schema, name string) string {
	if s == nil || name == "" {
		return ""
	}

	candidates := []string{
		name,
		inflection.Singular(name),
		inflection.Plural(name),
	}
	for _, candidate := range candidates {
		for _, t := range s.Tables {
			if t.Name != name && strings.EqualFold(t.Name, candidate) {
				return t.Name
			}
		}
	}
	return ""
}
