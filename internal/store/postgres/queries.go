package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/alfredjeanlab/portal/internal/model"
	"github.com/alfredjeanlab/portal/internal/store"
)

// substringMatch is a case-insensitive substring test of a JSONB field
// against a pattern escaped with escapeLike.
const substringMatch = `data->>%s ILIKE '%%' || %s || '%%' ESCAPE '\'`

// likeEscaper makes LIKE wildcards in user input match literally.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string { return likeEscaper.Replace(s) }

// executor is the interface satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func queryCreateRecord(ctx context.Context, db executor, res *model.Resource, rec model.Record) error {
	id := rec.ID(res.IDField)
	if id == "" {
		return fmt.Errorf("create %s: missing %s", res.Name, res.IDField)
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	now := time.Now().UTC()
	_, err = db.ExecContext(ctx, `
		INSERT INTO records (resource, id, data, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)`,
		res.Name,
		id,
		data,
		recordTime(rec, "created_at", now),
		recordTime(rec, "updated_at", now),
	)
	return err
}

func queryGetRecord(ctx context.Context, db executor, res *model.Resource, id string) (model.Record, error) {
	row := db.QueryRowContext(ctx, `SELECT data FROM records WHERE resource = $1 AND id = $2`, res.Name, id)
	var data []byte
	if err := row.Scan(&data); err != nil {
		return nil, err
	}
	return decodeRecord(data)
}

// queryUpdateRecord merges fields into the stored document in one statement.
// The identifier field is never overwritten.
func queryUpdateRecord(ctx context.Context, db executor, res *model.Resource, id string, fields map[string]any) (model.Record, error) {
	patch := make(map[string]any, len(fields))
	for k, v := range fields {
		if k != res.IDField {
			patch[k] = v
		}
	}
	data, err := json.Marshal(patch)
	if err != nil {
		return nil, fmt.Errorf("encode fields: %w", err)
	}
	row := db.QueryRowContext(ctx, `
		UPDATE records SET data = data || $3::jsonb, updated_at = $4
		WHERE resource = $1 AND id = $2
		RETURNING data`,
		res.Name, id, data, recordTime(patch, "updated_at", time.Now().UTC()),
	)
	var out []byte
	if err := row.Scan(&out); err != nil {
		return nil, err
	}
	return decodeRecord(out)
}

func queryDeleteRecord(ctx context.Context, db executor, res *model.Resource, id string) error {
	result, err := db.ExecContext(ctx, `DELETE FROM records WHERE resource = $1 AND id = $2`, res.Name, id)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func queryListRecords(ctx context.Context, db executor, res *model.Resource, q store.Query) ([]model.Record, int, error) {
	var (
		whereClauses []string
		args         []any
		argIdx       int
	)

	nextArg := func() string {
		argIdx++
		return fmt.Sprintf("$%d", argIdx)
	}

	whereClauses = append(whereClauses, "resource = "+nextArg())
	args = append(args, res.Name)

	if search := strings.TrimSpace(q.Criteria.Search); search != "" && len(res.SearchFields) > 0 {
		sp := nextArg()
		args = append(args, escapeLike(search))
		ors := make([]string, len(res.SearchFields))
		for i, f := range res.SearchFields {
			fp := nextArg()
			args = append(args, f)
			ors[i] = fmt.Sprintf(substringMatch, fp, sp)
		}
		whereClauses = append(whereClauses, "("+strings.Join(ors, " OR ")+")")
	}

	active := q.Criteria.Active()
	keys := make([]string, 0, len(active))
	for k := range active {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, key := range keys {
		kp := nextArg()
		vp := nextArg()
		if res.IsCategorical(key) {
			whereClauses = append(whereClauses, fmt.Sprintf("data->>%s = %s", kp, vp))
		} else {
			whereClauses = append(whereClauses, fmt.Sprintf(substringMatch, kp, vp))
			args = append(args, key, escapeLike(active[key]))
			continue
		}
		args = append(args, key, active[key])
	}

	whereSQL := " WHERE " + strings.Join(whereClauses, " AND ")
	filterArgs := slices.Clone(args)

	orderSQL, sortArg := parseSortClause(res, q.Sort)
	if sortArg != "" {
		orderSQL = fmt.Sprintf(orderSQL, nextArg())
		args = append(args, sortArg)
	}

	// Single query with COUNT(*) OVER() to get total and rows atomically.
	dataQuery := "SELECT COUNT(*) OVER() AS total_count, data FROM records" + whereSQL + " ORDER BY " + orderSQL

	if q.Criteria.Limit > 0 {
		dataQuery += " LIMIT " + nextArg()
		args = append(args, q.Criteria.Limit)
	}
	if offset := q.Offset(); offset > 0 {
		dataQuery += " OFFSET " + nextArg()
		args = append(args, offset)
	}

	rows, err := db.QueryContext(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list %s: %w", res.Name, err)
	}
	defer rows.Close()

	records := []model.Record{}
	var total int
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&total, &data); err != nil {
			return nil, 0, fmt.Errorf("scan %s: %w", res.Name, err)
		}
		rec, err := decodeRecord(data)
		if err != nil {
			return nil, 0, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate %s: %w", res.Name, err)
	}

	// A page past the end returns no rows and so no window count.
	if len(records) == 0 && q.Offset() > 0 {
		row := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM records"+whereSQL, filterArgs...)
		if err := row.Scan(&total); err != nil {
			return nil, 0, fmt.Errorf("count %s: %w", res.Name, err)
		}
	}
	return records, total, nil
}

func queryRecordStats(ctx context.Context, db executor, res *model.Resource) (*model.Stats, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT COALESCE(status, ''), COALESCE(category, ''), COUNT(*)
		FROM records WHERE resource = $1
		GROUP BY 1, 2`, res.Name)
	if err != nil {
		return nil, fmt.Errorf("stats %s: %w", res.Name, err)
	}
	defer rows.Close()

	st := &model.Stats{ByStatus: map[string]int{}, ByCategory: map[string]int{}}
	for rows.Next() {
		var status, category string
		var n int
		if err := rows.Scan(&status, &category, &n); err != nil {
			return nil, fmt.Errorf("scan stats: %w", err)
		}
		st.Total += n
		if status != "" {
			st.ByStatus[status] += n
		}
		if category != "" {
			st.ByCategory[category] += n
		}
	}
	return st, rows.Err()
}

// parseSortClause maps a sort spec to an ORDER BY clause. Timestamp keys use
// their columns; any other key the resource displays or edits sorts on the
// jsonb value, whose ordering compares numbers numerically. The returned
// clause then contains a %s placeholder for the key argument. Unknown keys
// fall back to newest first.
func parseSortClause(res *model.Resource, spec model.SortSpec) (string, string) {
	dir := " ASC"
	if spec.Desc() {
		dir = " DESC"
	}
	switch spec.Key {
	case "":
		return "created_at DESC, id", ""
	case "created_at", "updated_at":
		return spec.Key + dir + ", id", ""
	}
	_, editable := res.Field(spec.Key)
	if !editable && !slices.Contains(res.Columns, spec.Key) {
		return "created_at DESC, id", ""
	}
	return "data->%s" + dir + ", id", spec.Key
}

func decodeRecord(data []byte) (model.Record, error) {
	var rec model.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	if rec == nil {
		rec = model.Record{}
	}
	return rec, nil
}

// recordTime reads an RFC 3339 timestamp field, falling back to def.
func recordTime(rec map[string]any, field string, def time.Time) time.Time {
	s, ok := rec[field].(string)
	if !ok {
		return def
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return def
	}
	return t
}
