package local

import (
	"slices"

	"github.com/librarydesk/librarian/internal/domain"
)

type columnKind int

const (
	kindText columnKind = iota
	kindInt
	kindTime
)

type column struct {
	name string
	kind columnKind
}

// access describes who may touch a table.
type access int

const (
	// accessCatalog: anyone reads, librarians write.
	accessCatalog access = iota
	// accessOwned: only the owner reads and writes, matched on ownerColumn.
	accessOwned
)

type table struct {
	name        string
	columns     []column
	access      access
	ownerColumn string
	// generated columns are filled on insert; updatedAt is refreshed on update.
	hasID        bool
	hasCreatedAt bool
	hasUpdatedAt bool
}

func (t *table) column(name string) (column, bool) {
	i := slices.IndexFunc(t.columns, func(c column) bool { return c.name == name })
	if i < 0 {
		return column{}, false
	}
	return t.columns[i], true
}

func (t *table) columnNames() []string {
	names := make([]string, len(t.columns))
	for i, c := range t.columns {
		names[i] = c.name
	}
	return names
}

var tables = map[string]*table{
	domain.TableBooks: {
		name: domain.TableBooks,
		columns: []column{
			{"id", kindText},
			{"title", kindText},
			{"isbn", kindText},
			{"publication_year", kindInt},
			{"description", kindText},
			{"cover_image_url", kindText},
			{"total_copies", kindInt},
			{"available_copies", kindInt},
			{"created_at", kindTime},
			{"updated_at", kindTime},
		},
		access:       accessCatalog,
		hasID:        true,
		hasCreatedAt: true,
		hasUpdatedAt: true,
	},
	domain.TableCategories: {
		name: domain.TableCategories,
		columns: []column{
			{"id", kindText},
			{"name", kindText},
			{"description", kindText},
			{"created_at", kindTime},
		},
		access:       accessCatalog,
		hasID:        true,
		hasCreatedAt: true,
	},
	domain.TableAuthors: {
		name: domain.TableAuthors,
		columns: []column{
			{"id", kindText},
			{"name", kindText},
			{"biography", kindText},
			{"created_at", kindTime},
		},
		access:       accessCatalog,
		hasID:        true,
		hasCreatedAt: true,
	},
	domain.TableBookAuthors: {
		name:    domain.TableBookAuthors,
		columns: []column{{"book_id", kindText}, {"author_id", kindText}},
		access:  accessCatalog,
	},
	domain.TableBookCategories: {
		name:    domain.TableBookCategories,
		columns: []column{{"book_id", kindText}, {"category_id", kindText}},
		access:  accessCatalog,
	},
	domain.TableTasks: {
		name: domain.TableTasks,
		columns: []column{
			{"id", kindText},
			{"title", kindText},
			{"description", kindText},
			{"user_id", kindText},
			{"created_at", kindTime},
		},
		access:       accessOwned,
		ownerColumn:  "user_id",
		hasID:        true,
		hasCreatedAt: true,
	},
}
