package core

import (
	"strings"

	"github.com/cockroachdb/errors"
)

// roleKeywords are matched as lowercase substrings of header labels.
var roleKeywords = map[Role][]string{
	RoleName:     {"product", "name", "item", "particulars"},
	RoleQuantity: {"quantity", "qty", "stock", "closing"},
	RoleUnit:     {"unit"},
	RoleCategory: {"category", "group"},
}

// ResolveColumns binds roles to headers. Roles are resolved in a fixed order
// (name, quantity, unit, category); each takes the first header, left to
// right, that contains one of its keywords and is not already bound to an
// earlier role. Name and quantity are mandatory.
func ResolveColumns(headers []string) (ColumnRoleMap, error) {
	lowered := make([]string, len(headers))
	for i, h := range headers {
		lowered[i] = strings.ToLower(strings.TrimSpace(h))
	}

	claimed := make(map[int]bool, len(headers))
	refs := make(map[Role]ColumnRef, len(roleOrder))

	for _, role := range roleOrder {
		for i, h := range lowered {
			if claimed[i] || h == "" {
				continue
			}
			if containsAny(h, roleKeywords[role]) {
				refs[role] = ColumnRef{Label: headers[i], Index: i}
				claimed[i] = true
				break
			}
		}
	}

	var missing []string
	for _, role := range []Role{RoleName, RoleQuantity} {
		if _, ok := refs[role]; !ok {
			missing = append(missing, string(role))
		}
	}
	if len(missing) > 0 {
		err := errors.Wrapf(ErrUnresolvableColumns, "missing %s in headers %q",
			strings.Join(missing, ", "), headers)
		return ColumnRoleMap{}, errors.WithHintf(err,
			"No %s column found; expected a header containing e.g. %q",
			strings.Join(missing, " or "), exampleKeywords(missing))
	}

	return ColumnRoleMap{refs: refs}, nil
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

func exampleKeywords(roles []string) []string {
	out := make([]string, 0, len(roles))
	for _, r := range roles {
		if kw := roleKeywords[Role(r)]; len(kw) > 0 {
			out = append(out, kw[0])
		}
	}
	return out
}
