package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// Open connects to Postgres and verifies the connection.
func Open(ctx context.Context, databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetMaxIdleConns(10)
	db.SetMaxOpenConns(20)

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return db, nil
}

// PostgresGateway stores every collection in one documents table with a
// JSONB field map. Field updates are applied in a single UPDATE statement,
// so one UpdateFields call is atomic.
type PostgresGateway struct {
	db *sql.DB
}

func NewPostgresGateway(db *sql.DB) *PostgresGateway {
	return &PostgresGateway{db: db}
}

func (g *PostgresGateway) Ping(ctx context.Context) error {
	return g.db.PingContext(ctx)
}

func (g *PostgresGateway) GetDocument(ctx context.Context, collection, id string) (Document, error) {
	var raw []byte
	err := g.db.QueryRowContext(ctx,
		`SELECT fields FROM documents WHERE collection=$1 AND id=$2`, collection, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, &NetworkError{Op: "get " + collection + "/" + id, Err: err}
	}
	fields := map[string]any{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Document{}, fmt.Errorf("decode document %s/%s: %w", collection, id, err)
	}
	return Document{ID: id, Fields: fields}, nil
}

func (g *PostgresGateway) CreateDocument(ctx context.Context, collection string, fields map[string]any) (string, error) {
	id := uuid.NewString()
	raw, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("encode document: %w", err)
	}
	_, err = g.db.ExecContext(ctx,
		`INSERT INTO documents (collection, id, fields) VALUES ($1, $2, $3)`, collection, id, raw)
	if err != nil {
		return "", &NetworkError{Op: "create " + collection, Err: err}
	}
	return id, nil
}

func (g *PostgresGateway) UpdateFields(ctx context.Context, collection, id string, updates ...FieldUpdate) error {
	if len(updates) == 0 {
		return nil
	}

	args := []any{collection, id}
	expr := "fields"
	for _, u := range updates {
		path := pgPath(u.Field)
		switch u.op {
		case opSet:
			raw, err := json.Marshal(u.value)
			if err != nil {
				return fmt.Errorf("encode field %s: %w", u.Field, err)
			}
			args = append(args, path, string(raw))
			expr = fmt.Sprintf("jsonb_set(%s, $%d::text[], $%d::jsonb, true)",
				expr, len(args)-1, len(args))
		case opIncrement:
			args = append(args, path, u.delta)
			expr = fmt.Sprintf(
				"jsonb_set(%s, $%d::text[], to_jsonb(COALESCE((%s #>> $%d::text[])::bigint, 0) + $%d), true)",
				expr, len(args)-1, expr, len(args)-1, len(args))
		case opArrayUnion:
			raw, err := json.Marshal([]any{u.value})
			if err != nil {
				return fmt.Errorf("encode field %s: %w", u.Field, err)
			}
			args = append(args, path, string(raw))
			arr := fmt.Sprintf("COALESCE(%s #> $%d::text[], '[]'::jsonb)", expr, len(args)-1)
			expr = fmt.Sprintf(
				"jsonb_set(%s, $%d::text[], CASE WHEN %s @> $%d::jsonb THEN %s ELSE %s || $%d::jsonb END, true)",
				expr, len(args)-1, arr, len(args), arr, arr, len(args))
		case opArrayRemove:
			value, ok := u.value.(string)
			if !ok {
				return fmt.Errorf("array remove on %s: value must be a string", u.Field)
			}
			args = append(args, path, value)
			expr = fmt.Sprintf(
				"jsonb_set(%s, $%d::text[], COALESCE(%s #> $%d::text[], '[]'::jsonb) - $%d::text, true)",
				expr, len(args)-1, expr, len(args)-1, len(args))
		}
	}

	query := fmt.Sprintf(`UPDATE documents SET fields = %s WHERE collection=$1 AND id=$2`, expr)
	result, err := g.db.ExecContext(ctx, query, args...)
	if err != nil {
		return &NetworkError{Op: "update " + collection + "/" + id, Err: err}
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return &NetworkError{Op: "update " + collection + "/" + id, Err: err}
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (g *PostgresGateway) DeleteDocument(ctx context.Context, collection, id string) error {
	_, err := g.db.ExecContext(ctx,
		`DELETE FROM documents WHERE collection=$1 AND id=$2`, collection, id)
	if err != nil {
		return &NetworkError{Op: "delete " + collection + "/" + id, Err: err}
	}
	return nil
}

func (g *PostgresGateway) QueryByField(ctx context.Context, collection string, q Query) ([]Document, error) {
	args := []any{collection}
	where := ""
	if q.Field != "" {
		args = append(args, pgPath(q.Field))
		if q.ArrayContains {
			args = append(args, fmt.Sprintf("%v", q.Value))
			where = fmt.Sprintf(" AND COALESCE(fields #> $%d::text[], '[]'::jsonb) @> to_jsonb($%d::text)",
				len(args)-1, len(args))
		} else {
			args = append(args, fmt.Sprintf("%v", q.Value))
			where = fmt.Sprintf(" AND fields #>> $%d::text[] = $%d", len(args)-1, len(args))
		}
	}

	order := ""
	if q.OrderBy != "" {
		args = append(args, pgPath(q.OrderBy))
		direction := "ASC"
		if q.Descending {
			direction = "DESC"
		}
		order = fmt.Sprintf(" ORDER BY fields #>> $%d::text[] %s", len(args), direction)
	}

	limit := ""
	if q.Limit > 0 {
		args = append(args, q.Limit)
		limit = fmt.Sprintf(" LIMIT $%d", len(args))
	}

	query := `SELECT id, fields FROM documents WHERE collection=$1` + where + order + limit
	rows, err := g.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &NetworkError{Op: "query " + collection, Err: err}
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var id string
		var raw []byte
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, &NetworkError{Op: "query " + collection, Err: err}
		}
		fields := map[string]any{}
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, fmt.Errorf("decode document %s/%s: %w", collection, id, err)
		}
		docs = append(docs, Document{ID: id, Fields: fields})
	}
	if err := rows.Err(); err != nil {
		return nil, &NetworkError{Op: "query " + collection, Err: err}
	}
	return docs, nil
}

// pgPath converts a dotted field path into a Postgres text[] literal.
func pgPath(field string) string {
	return "{" + strings.Join(strings.Split(field, "."), ",") + "}"
}
