package local

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/librarydesk/librarian/internal/backend"
	"github.com/librarydesk/librarian/internal/domain"
	domainerrors "github.com/librarydesk/librarian/internal/errors"
	"github.com/librarydesk/librarian/internal/id"
)

// caller is the identity behind a request; zero value is anonymous.
type caller struct {
	userID string
	role   string
}

func (c caller) anonymous() bool { return c.userID == "" }

// Execute implements backend.Transport.
func (b *Backend) Execute(ctx context.Context, req backend.Request) (json.RawMessage, error) {
	t, ok := tables[req.Table]
	if !ok {
		return nil, domainerrors.NotFoundf("relation %q does not exist", req.Table)
	}

	who, err := b.caller(ctx, req.AccessToken)
	if err != nil {
		return nil, err
	}

	cols, err := selectColumns(t, req.Columns)
	if err != nil {
		return nil, err
	}

	switch req.Method {
	case backend.MethodSelect:
		return b.selectRows(ctx, t, who, cols, req)
	case backend.MethodInsert:
		return b.insertRows(ctx, t, who, cols, req)
	case backend.MethodUpdate:
		return b.updateRows(ctx, t, who, cols, req)
	case backend.MethodDelete:
		return b.deleteRows(ctx, t, who, cols, req)
	default:
		return nil, domainerrors.Validationf("unsupported method %q", req.Method)
	}
}

// caller resolves the access token. The role is read from the database so
// role changes apply without waiting for a new token.
func (b *Backend) caller(ctx context.Context, token string) (caller, error) {
	if token == "" {
		return caller{}, nil
	}
	claims, err := b.tokens.VerifyAccessToken(token)
	if err != nil {
		return caller{}, domainerrors.Wrap(err, domainerrors.CodeUnauthorized, "invalid access token")
	}
	var role string
	err = b.db.QueryRowContext(ctx, `SELECT role FROM users WHERE id = ?`, claims.Subject).Scan(&role)
	if err == sql.ErrNoRows {
		return caller{}, domainerrors.Unauthorized("user no longer exists")
	}
	if err != nil {
		return caller{}, fmt.Errorf("load caller: %w", err)
	}
	return caller{userID: claims.Subject, role: role}, nil
}

func selectColumns(t *table, raw string) ([]string, error) {
	if raw == "" || raw == "*" {
		return t.columnNames(), nil
	}
	var cols []string
	for _, name := range strings.Split(raw, ",") {
		name = strings.TrimSpace(name)
		if _, ok := t.column(name); !ok {
			return nil, domainerrors.Validationf("column %s.%s does not exist", t.name, name)
		}
		cols = append(cols, name)
	}
	return cols, nil
}

// where renders filters plus the owner scope for owned tables.
func where(t *table, who caller, filters []backend.Filter) (string, []any, error) {
	var (
		clauses []string
		args    []any
	)
	for _, f := range filters {
		c, ok := t.column(f.Column)
		if !ok {
			return "", nil, domainerrors.Validationf("column %s.%s does not exist", t.name, f.Column)
		}
		v, err := toSQL(c, f.Value)
		if err != nil {
			return "", nil, err
		}
		clauses = append(clauses, quote(c.name)+" = ?")
		args = append(args, v)
	}
	if t.access == accessOwned {
		clauses = append(clauses, quote(t.ownerColumn)+" = ?")
		args = append(args, who.userID)
	}
	if len(clauses) == 0 {
		return "", nil, nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args, nil
}

func orderBy(t *table, orders []backend.Ordering) (string, error) {
	if len(orders) == 0 {
		return "", nil
	}
	parts := make([]string, 0, len(orders))
	for _, o := range orders {
		if _, ok := t.column(o.Column); !ok {
			return "", domainerrors.Validationf("column %s.%s does not exist", t.name, o.Column)
		}
		dir := "DESC"
		if o.Ascending {
			dir = "ASC"
		}
		parts = append(parts, quote(o.Column)+" "+dir)
	}
	return " ORDER BY " + strings.Join(parts, ", "), nil
}

func (b *Backend) selectRows(ctx context.Context, t *table, who caller, cols []string, req backend.Request) (json.RawMessage, error) {
	if t.access == accessOwned && who.anonymous() {
		return nil, domainerrors.Unauthorized("authentication required")
	}

	clause, args, err := where(t, who, req.Filters)
	if err != nil {
		return nil, err
	}
	order, err := orderBy(t, req.Orders)
	if err != nil {
		return nil, err
	}

	query := "SELECT " + quoteAll(cols) + " FROM " + quote(t.name) + clause + order
	return b.query(ctx, t, cols, query, args...)
}

func (b *Backend) insertRows(ctx context.Context, t *table, who caller, cols []string, req backend.Request) (json.RawMessage, error) {
	if err := authorizeWrite(t, who); err != nil {
		return nil, err
	}

	var rows []map[string]any
	if err := decodeBody(req.Body, &rows); err != nil {
		return nil, err
	}

	now := b.timestamp()
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin insert: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	var out []map[string]any
	for _, row := range rows {
		if t.hasID {
			if _, ok := row["id"]; !ok {
				row["id"] = id.Row()
			}
		}
		if t.hasCreatedAt {
			row["created_at"] = now
		}
		if t.hasUpdatedAt {
			row["updated_at"] = now
		}
		if t.access == accessOwned {
			if owner, _ := row[t.ownerColumn].(string); owner != who.userID {
				return nil, domainerrors.Forbidden("new row violates row-level security policy for table " + t.name)
			}
		}

		names, values, err := assignments(t, row)
		if err != nil {
			return nil, err
		}
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(names)), ", ")
		query := "INSERT INTO " + quote(t.name) + " (" + quoteAll(names) + ") VALUES (" + placeholders + ")" +
			" RETURNING " + quoteAll(cols)

		inserted, err := scanRows(ctx, tx, t, cols, query, values...)
		if err != nil {
			return nil, err
		}
		out = append(out, inserted...)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit insert: %w", err)
	}
	return returning(req, out)
}

func (b *Backend) updateRows(ctx context.Context, t *table, who caller, cols []string, req backend.Request) (json.RawMessage, error) {
	if t.access == accessOwned && who.anonymous() {
		return nil, domainerrors.Unauthorized("authentication required")
	}
	if t.access == accessCatalog && !domain.IsLibrarian(who.role) {
		// Rows hidden by policy are simply not updated.
		return returning(req, nil)
	}

	var patch map[string]any
	if err := decodeBody(req.Body, &patch); err != nil {
		return nil, err
	}
	if t.access == accessOwned {
		if owner, ok := patch[t.ownerColumn]; ok && owner != who.userID {
			return nil, domainerrors.Forbidden("new row violates row-level security policy for table " + t.name)
		}
	}
	delete(patch, "id")
	delete(patch, "created_at")
	if t.hasUpdatedAt {
		patch["updated_at"] = b.timestamp()
	}
	if len(patch) == 0 {
		return nil, domainerrors.Validation("empty update")
	}

	names, values, err := assignments(t, patch)
	if err != nil {
		return nil, err
	}
	sets := make([]string, len(names))
	for i, n := range names {
		sets[i] = quote(n) + " = ?"
	}

	clause, args, err := where(t, who, req.Filters)
	if err != nil {
		return nil, err
	}

	query := "UPDATE " + quote(t.name) + " SET " + strings.Join(sets, ", ") + clause + " RETURNING " + quoteAll(cols)
	rows, err := scanRows(ctx, b.db, t, cols, query, append(values, args...)...)
	if err != nil {
		return nil, err
	}
	return returning(req, rows)
}

func (b *Backend) deleteRows(ctx context.Context, t *table, who caller, cols []string, req backend.Request) (json.RawMessage, error) {
	if t.access == accessOwned && who.anonymous() {
		return nil, domainerrors.Unauthorized("authentication required")
	}
	if t.access == accessCatalog && !domain.IsLibrarian(who.role) {
		return returning(req, nil)
	}

	clause, args, err := where(t, who, req.Filters)
	if err != nil {
		return nil, err
	}

	query := "DELETE FROM " + quote(t.name) + clause + " RETURNING " + quoteAll(cols)
	rows, err := scanRows(ctx, b.db, t, cols, query, args...)
	if err != nil {
		return nil, err
	}
	return returning(req, rows)
}

func authorizeWrite(t *table, who caller) error {
	if who.anonymous() {
		return domainerrors.Unauthorized("authentication required")
	}
	if t.access == accessCatalog && !domain.IsLibrarian(who.role) {
		return domainerrors.Forbidden("new row violates row-level security policy for table " + t.name)
	}
	return nil
}

func (b *Backend) query(ctx context.Context, t *table, cols []string, query string, args ...any) (json.RawMessage, error) {
	rows, err := scanRows(ctx, b.db, t, cols, query, args...)
	if err != nil {
		return nil, err
	}
	return marshalRows(rows)
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func scanRows(ctx context.Context, q querier, t *table, cols []string, query string, args ...any) ([]map[string]any, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, translate(err, t.name)
	}
	defer rows.Close()

	var out []map[string]any
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan %s: %w", t.name, err)
		}
		row := make(map[string]any, len(cols))
		for i, name := range cols {
			row[name] = fromSQL(values[i])
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, translate(err, t.name)
	}
	return out, nil
}

func returning(req backend.Request, rows []map[string]any) (json.RawMessage, error) {
	if !req.Returning {
		return json.RawMessage("[]"), nil
	}
	return marshalRows(rows)
}

func marshalRows(rows []map[string]any) (json.RawMessage, error) {
	if rows == nil {
		rows = []map[string]any{}
	}
	data, err := json.Marshal(rows)
	if err != nil {
		return nil, fmt.Errorf("marshal rows: %w", err)
	}
	return data, nil
}

func decodeBody(body json.RawMessage, dst any) error {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(dst); err != nil {
		return domainerrors.Validationf("invalid body: %v", err)
	}
	return nil
}

// assignments returns column names in table order with their SQL values.
func assignments(t *table, row map[string]any) ([]string, []any, error) {
	for name := range row {
		if _, ok := t.column(name); !ok {
			return nil, nil, domainerrors.Validationf("column %s.%s does not exist", t.name, name)
		}
	}
	var (
		names  []string
		values []any
	)
	for _, c := range t.columns {
		raw, ok := row[c.name]
		if !ok {
			continue
		}
		v, err := toSQL(c, raw)
		if err != nil {
			return nil, nil, err
		}
		names = append(names, c.name)
		values = append(values, v)
	}
	return names, values, nil
}

func toSQL(c column, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch c.kind {
	case kindInt:
		switch n := v.(type) {
		case json.Number:
			i, err := n.Int64()
			if err != nil {
				return nil, domainerrors.Validationf("%s: invalid integer %q", c.name, n.String())
			}
			return i, nil
		case int:
			return int64(n), nil
		case int64:
			return n, nil
		case string:
			i, err := strconv.ParseInt(n, 10, 64)
			if err != nil {
				return nil, domainerrors.Validationf("%s: invalid integer %q", c.name, n)
			}
			return i, nil
		}
		return nil, domainerrors.Validationf("%s: expected integer", c.name)
	case kindTime:
		s, ok := v.(string)
		if !ok {
			return nil, domainerrors.Validationf("%s: expected timestamp", c.name)
		}
		t, err := parseTime(s)
		if err != nil {
			return nil, domainerrors.Validationf("%s: invalid timestamp %q", c.name, s)
		}
		return formatTime(t), nil
	default:
		switch s := v.(type) {
		case string:
			return s, nil
		case json.Number:
			return s.String(), nil
		default:
			return fmt.Sprint(s), nil
		}
	}
}

func fromSQL(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

func translate(err error, table string) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "NOT NULL constraint failed"):
		return domainerrors.Wrapf(err, domainerrors.CodeValidation, "%s: missing required value", table)
	case strings.Contains(msg, "UNIQUE constraint failed"), strings.Contains(msg, "PRIMARY KEY"):
		return domainerrors.Wrapf(err, domainerrors.CodeConflict, "%s: duplicate row", table)
	case strings.Contains(msg, "FOREIGN KEY constraint failed"):
		return domainerrors.Wrapf(err, domainerrors.CodeValidation, "%s: referenced row does not exist", table)
	}
	return fmt.Errorf("%s: %w", table, err)
}

func quote(name string) string {
	return `"` + name + `"`
}

func quoteAll(names []string) string {
	q := make([]string, len(names))
	for i, n := range names {
		q[i] = quote(n)
	}
	return strings.Join(q, ", ")
}
