package domain

// RoleLibrarian is the role granting catalog management.
const RoleLibrarian = "librarian"

// IsLibrarian reports whether role grants catalog management.
// The comparison is exact: "Librarian" is not a librarian.
func IsLibrarian(role string) bool {
	return role == RoleLibrarian
}
