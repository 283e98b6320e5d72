package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	domainerrors "github.com/librarydesk/librarian/internal/errors"
)

// Method is a table operation.
type Method string

// Table operations.
const (
	MethodSelect Method = "select"
	MethodInsert Method = "insert"
	MethodUpdate Method = "update"
	MethodDelete Method = "delete"
)

// Filter restricts rows to Column = Value.
type Filter struct {
	Column string
	Value  any
}

// Ordering sorts rows by Column.
type Ordering struct {
	Column    string
	Ascending bool
}

// Request is a fully built table operation handed to a Transport.
type Request struct {
	Table   string
	Method  Method
	Columns string
	// Body is a JSON array of rows for inserts and a JSON object for updates.
	Body    json.RawMessage
	Filters []Filter
	Orders  []Ordering
	// Returning asks mutations to return the affected rows.
	Returning   bool
	AccessToken string
}

// Query builds a table operation. Methods mutate and return the receiver so
// calls chain:
//
//	client.From("books").Select("*").Order("created_at", false).Scan(ctx, &books)
type Query struct {
	client *Client
	req    Request
	err    error
}

// From starts a query against table.
func (c *Client) From(table string) *Query {
	return &Query{client: c, req: Request{Table: table, Method: MethodSelect}}
}

// Select sets the returned columns. On a mutation it also asks for the
// affected rows to be returned.
func (q *Query) Select(columns string) *Query {
	if columns == "" {
		columns = "*"
	}
	q.req.Columns = columns
	if q.req.Method != MethodSelect {
		q.req.Returning = true
	}
	return q
}

// Insert turns the query into an insert of rows. Each row is marshalled to
// a JSON object.
func (q *Query) Insert(rows ...any) *Query {
	q.setMethod(MethodInsert)
	if len(rows) == 0 {
		q.fail(fmt.Errorf("insert into %s: no rows", q.req.Table))
		return q
	}
	body, err := json.Marshal(rows)
	if err != nil {
		q.fail(fmt.Errorf("insert into %s: %w", q.req.Table, err))
		return q
	}
	q.req.Body = body
	return q
}

// Update turns the query into an update applying patch.
func (q *Query) Update(patch any) *Query {
	q.setMethod(MethodUpdate)
	body, err := json.Marshal(patch)
	if err != nil {
		q.fail(fmt.Errorf("update %s: %w", q.req.Table, err))
		return q
	}
	if !bytes.HasPrefix(bytes.TrimSpace(body), []byte("{")) {
		q.fail(fmt.Errorf("update %s: patch must be an object", q.req.Table))
		return q
	}
	q.req.Body = body
	return q
}

// Delete turns the query into a delete.
func (q *Query) Delete() *Query {
	q.setMethod(MethodDelete)
	return q
}

// Eq adds an equality filter.
func (q *Query) Eq(column string, value any) *Query {
	q.req.Filters = append(q.req.Filters, Filter{Column: column, Value: value})
	return q
}

// Order adds a sort key.
func (q *Query) Order(column string, ascending bool) *Query {
	q.req.Orders = append(q.req.Orders, Ordering{Column: column, Ascending: ascending})
	return q
}

// Request returns the operation built so far.
func (q *Query) Request() Request {
	return q.req
}

func (q *Query) setMethod(m Method) {
	if q.req.Method != MethodSelect && q.req.Method != m {
		q.fail(fmt.Errorf("%s: cannot combine %s with %s", q.req.Table, q.req.Method, m))
		return
	}
	q.req.Method = m
	if q.req.Columns != "" {
		q.req.Returning = true
	}
}

func (q *Query) fail(err error) {
	if q.err == nil {
		q.err = err
	}
}

// Execute runs the query as the caller identified by the context's access
// token and returns the rows as a JSON array.
func (q *Query) Execute(ctx context.Context) (json.RawMessage, error) {
	if q.err != nil {
		return nil, domainerrors.Wrap(q.err, domainerrors.CodeInternal, "invalid query")
	}
	if q.req.Method == MethodSelect && q.req.Columns == "" {
		q.req.Columns = "*"
	}
	if (q.req.Method == MethodUpdate || q.req.Method == MethodDelete) && len(q.req.Filters) == 0 {
		return nil, domainerrors.Internal(fmt.Sprintf("%s %s without filters", q.req.Method, q.req.Table))
	}
	q.req.AccessToken = AccessToken(ctx)

	c := q.client
	ctx, cancel := c.bound(ctx)
	defer cancel()

	start := time.Now()
	data, err := c.transport.Execute(ctx, q.req)
	c.logger.Debug("backend query",
		"table", q.req.Table,
		"method", string(q.req.Method),
		"filters", len(q.req.Filters),
		"duration", time.Since(start),
		"ok", err == nil,
	)
	if err != nil {
		var de *domainerrors.Error
		if domainerrors.As(err, &de) {
			return nil, err
		}
		return nil, domainerrors.Wrapf(err, domainerrors.CodeBackend, "%s %s", q.req.Method, q.req.Table)
	}
	if len(data) == 0 {
		data = json.RawMessage("[]")
	}
	return data, nil
}

// Scan executes the query and decodes the rows into dst, normally a
// pointer to a slice.
func (q *Query) Scan(ctx context.Context, dst any) error {
	data, err := q.Execute(ctx)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return domainerrors.Wrapf(err, domainerrors.CodeBackend, "decode %s rows", q.req.Table)
	}
	return nil
}

// One executes a mutation returning rows and decodes the first into dst.
// It fails with NOT_FOUND when no row came back.
func (q *Query) One(ctx context.Context, dst any) error {
	var rows []json.RawMessage
	if err := q.Scan(ctx, &rows); err != nil {
		return err
	}
	if len(rows) == 0 {
		return domainerrors.NotFoundf("%s: no row returned", q.req.Table)
	}
	if err := json.Unmarshal(rows[0], dst); err != nil {
		return domainerrors.Wrapf(err, domainerrors.CodeBackend, "decode %s row", q.req.Table)
	}
	return nil
}
