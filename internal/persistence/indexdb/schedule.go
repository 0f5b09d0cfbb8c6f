package indexdb

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"morphvox.dev/internal/sim/mathx"
	"morphvox.dev/internal/sim/sched"
)

// ScheduleTable is a durable sched.Table. Rows hold due times in unix
// microseconds.
type ScheduleTable struct {
	db    *sql.DB
	table string
}

var _ sched.Table = (*ScheduleTable)(nil)

func (t *ScheduleTable) Insert(e sched.Entry) (bool, error) {
	res, err := t.db.Exec(
		fmt.Sprintf(`INSERT OR IGNORE INTO %s(x,y,z,due_at) VALUES(?,?,?,?)`, t.table),
		e.Pos.X, e.Pos.Y, e.Pos.Z, e.Due.UnixMicro(),
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (t *ScheduleTable) Take(now time.Time, limit int) ([]sched.Entry, error) {
	if limit <= 0 {
		return nil, nil
	}
	tx, err := t.db.BeginTx(context.Background(), nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.Query(
		fmt.Sprintf(`SELECT x,y,z,due_at FROM %s WHERE due_at <= ? ORDER BY due_at,y,z,x LIMIT ?`, t.table),
		now.UnixMicro(), limit,
	)
	if err != nil {
		return nil, err
	}
	var out []sched.Entry
	for rows.Next() {
		var (
			x, y, z int
			due     int64
		)
		if err := rows.Scan(&x, &y, &z, &due); err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, sched.Entry{Pos: mathx.V3(x, y, z), Due: time.UnixMicro(due)})
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	if len(out) == 0 {
		return nil, nil
	}
	del, err := tx.Prepare(fmt.Sprintf(`DELETE FROM %s WHERE x=? AND y=? AND z=?`, t.table))
	if err != nil {
		return nil, err
	}
	defer del.Close()
	for _, e := range out {
		if _, err := del.Exec(e.Pos.X, e.Pos.Y, e.Pos.Z); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return out, nil
}

func (t *ScheduleTable) Len() (int, error) {
	var n int
	err := t.db.QueryRow(fmt.Sprintf(`SELECT COUNT(*) FROM %s`, t.table)).Scan(&n)
	return n, err
}
