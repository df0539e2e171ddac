package tabular

import "strings"

// FieldResolver maps logical field names (e.g. "price") to values in a raw
// row. When the caller supplied an explicit column mapping it is authoritative
// for the fields it names; everything else degrades through a fixed chain of
// header-normalization heuristics so loosely-matching uploads work without a
// mapping.
type FieldResolver struct {
	headers []string
	mapping map[string]string
}

// NewFieldResolver builds a resolver over the table's ordered headers.
// mapping associates logical field name to source column name; nil means no
// explicit mapping was supplied.
func NewFieldResolver(headers []string, mapping map[string]string) *FieldResolver {
	return &FieldResolver{headers: headers, mapping: mapping}
}

// Resolve returns the value for the logical field in row and whether it was
// found.
//
// When the mapping names the field, the mapped source column is looked up
// directly; an absent mapped column yields an absent value, never a fallback.
// Otherwise the chain is: verbatim header, case-insensitive header,
// case-insensitive after stripping underscores and spaces from both sides,
// then case-insensitive after normalizing underscores to spaces. The first
// header that matches, in table order, wins.
func (r *FieldResolver) Resolve(row map[string]string, field string) (string, bool) {
	if r.mapping != nil {
		if col, ok := r.mapping[field]; ok {
			v, present := row[col]
			return v, present
		}
	}

	if v, ok := row[field]; ok {
		return v, true
	}

	lowered := strings.ToLower(field)
	for _, h := range r.headers {
		if strings.ToLower(h) == lowered {
			return row[h], true
		}
	}

	stripped := stripSeparators(lowered)
	for _, h := range r.headers {
		if stripSeparators(strings.ToLower(h)) == stripped {
			return row[h], true
		}
	}

	spaced := strings.ReplaceAll(lowered, "_", " ")
	for _, h := range r.headers {
		if strings.ReplaceAll(strings.ToLower(h), "_", " ") == spaced {
			return row[h], true
		}
	}

	return "", false
}

// Value is Resolve without the presence flag; absent fields read as "".
func (r *FieldResolver) Value(row map[string]string, field string) string {
	v, _ := r.Resolve(row, field)
	return v
}

func stripSeparators(s string) string {
	s = strings.ReplaceAll(s, "_", "")
	return strings.ReplaceAll(s, " ", "")
}
