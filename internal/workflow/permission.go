package workflow

import "strings"

const (
	// PermissionAdmin gates the administration area.
	PermissionAdmin = "AdminAccess"
	// PermissionStatistics gates the statistics pages.
	PermissionStatistics = "StatistiquesAccess"

	servicePermissionSuffix = "Ticket"
)

// ServicePermission returns the permission tag required to act on tickets
// handled by the named service intervenant. Accents, spaces and punctuation
// are dropped: "Économat" yields "EconomatTicket".
func ServicePermission(serviceName string) string {
	return canonicalServiceName(serviceName) + servicePermissionSuffix
}

func canonicalServiceName(name string) string {
	words := strings.FieldsFunc(name, func(r rune) bool {
		return r == ' ' || r == '-' || r == '_' || r == '\'' || r == '/'
	})
	var b strings.Builder
	for _, w := range words {
		f := Fold(w)
		if f == "" {
			continue
		}
		r := []rune(f)
		b.WriteString(strings.ToUpper(string(r[0])))
		b.WriteString(string(r[1:]))
	}
	return b.String()
}

// IsServicePermission reports whether p names a per-service ticket permission.
func IsServicePermission(p string) bool {
	return strings.HasSuffix(p, servicePermissionSuffix) && len(p) > len(servicePermissionSuffix)
}

// HasPermission reports whether perms contains p. The comparison is accent
// and case insensitive so that legacy tags such as "ÉconomatTicket" still
// match "EconomatTicket".
func HasPermission(perms []string, p string) bool {
	want := Fold(p)
	if want == "" {
		return false
	}
	for _, have := range perms {
		if Fold(have) == want {
			return true
		}
	}
	return false
}

// HasAnyPermission reports whether perms contains at least one of wanted.
func HasAnyPermission(perms []string, wanted []string) bool {
	for _, p := range wanted {
		if HasPermission(perms, p) {
			return true
		}
	}
	return false
}

// HasServicePermission reports whether perms allow acting on tickets of the
// named service intervenant.
func HasServicePermission(perms []string, serviceName string) bool {
	if strings.TrimSpace(serviceName) == "" {
		return false
	}
	return HasPermission(perms, ServicePermission(serviceName))
}

// CanManageTickets reports whether perms grant access to at least one
// service queue.
func CanManageTickets(perms []string) bool {
	for _, p := range perms {
		if IsServicePermission(p) {
			return true
		}
	}
	return false
}
