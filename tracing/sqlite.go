// Package tracing records coherence transitions and bus transactions through
// Akita hooks.
package tracing

import (
	"database/sql"
	"fmt"
	"os"

	// Need to use SQLite connections.
	_ "github.com/mattn/go-sqlite3"

	"github.com/rs/xid"
	"github.com/sarchlab/akita/v4/sim"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/snoopsim/coherence"
	"github.com/sarchlab/snoopsim/timing/bus"
)

// SQLiteTracer writes every hook item it receives to a SQLite database.
type SQLiteTracer struct {
	*sql.DB
	transitionStatement  *sql.Stmt
	transactionStatement *sql.Stmt

	dbName       string
	transitions  []coherence.TransitionRecord
	transactions []bus.Transaction
	batchSize    int
}

// NewSQLiteTracer creates a tracer that writes to path.sqlite3. An empty path
// picks a unique snoopsim_trace_<xid> name. Buffered rows are flushed when
// the program exits through atexit.
func NewSQLiteTracer(path string) *SQLiteTracer {
	t := &SQLiteTracer{
		dbName:    path,
		batchSize: 10000,
	}

	atexit.Register(func() { _ = t.Flush() })

	return t
}

// Init creates the database and its tables.
func (t *SQLiteTracer) Init() error {
	if t.dbName == "" {
		t.dbName = "snoopsim_trace_" + xid.New().String()
	}

	filename := t.FileName()
	if _, err := os.Stat(filename); err == nil {
		return fmt.Errorf("file %s already exists", filename)
	}

	db, err := sql.Open("sqlite3", filename)
	if err != nil {
		return fmt.Errorf("failed to open trace database: %w", err)
	}
	t.DB = db

	if err := t.createTables(); err != nil {
		return err
	}

	return t.prepareStatements()
}

// FileName returns the database file name.
func (t *SQLiteTracer) FileName() string {
	return t.dbName + ".sqlite3"
}

func (t *SQLiteTracer) createTables() error {
	tables := []string{
		`CREATE TABLE transitions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			family TEXT,
			module INTEGER,
			addr INTEGER,
			side TEXT,
			kind TEXT,
			src INTEGER,
			txn TEXT,
			from_state TEXT,
			to_state TEXT,
			actions TEXT
		)`,
		`CREATE TABLE transactions (
			id TEXT PRIMARY KEY,
			kind TEXT,
			addr INTEGER,
			requester INTEGER,
			supplier INTEGER,
			shared INTEGER,
			value INTEGER,
			issue_cycle INTEGER,
			broadcast_cycle INTEGER,
			data_cycle INTEGER
		)`,
		`CREATE INDEX transitions_addr ON transitions (addr)`,
	}

	for _, stmt := range tables {
		if _, err := t.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create trace table: %w", err)
		}
	}

	return nil
}

func (t *SQLiteTracer) prepareStatements() error {
	var err error

	t.transitionStatement, err = t.Prepare(`INSERT INTO transitions
		(family, module, addr, side, kind, src, txn, from_state, to_state, actions)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}

	t.transactionStatement, err = t.Prepare(`INSERT INTO transactions
		(id, kind, addr, requester, supplier, shared, value,
		 issue_cycle, broadcast_cycle, data_cycle)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}

	return nil
}

// Func buffers the hook item and flushes once a batch is full.
func (t *SQLiteTracer) Func(ctx sim.HookCtx) {
	switch item := ctx.Item.(type) {
	case coherence.TransitionRecord:
		t.transitions = append(t.transitions, item)
	case bus.Transaction:
		t.transactions = append(t.transactions, item)
	default:
		return
	}

	if len(t.transitions)+len(t.transactions) >= t.batchSize {
		if err := t.Flush(); err != nil {
			panic(err)
		}
	}
}

// Flush writes all buffered rows.
func (t *SQLiteTracer) Flush() error {
	if t.DB == nil || len(t.transitions)+len(t.transactions) == 0 {
		return nil
	}

	tx, err := t.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin trace transaction: %w", err)
	}

	if err := t.writeRows(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit trace: %w", err)
	}

	t.transitions = nil
	t.transactions = nil

	return nil
}

func (t *SQLiteTracer) writeRows(tx *sql.Tx) error {
	transitions := tx.Stmt(t.transitionStatement)
	for _, r := range t.transitions {
		_, err := transitions.Exec(
			r.Family,
			int(r.Module),
			int64(r.Addr),
			r.Side,
			r.Msg.Kind.String(),
			int(r.Msg.Src),
			r.Msg.TxnID,
			r.From.String(),
			r.To.String(),
			r.Actions.String(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert transition: %w", err)
		}
	}

	transactions := tx.Stmt(t.transactionStatement)
	for _, txn := range t.transactions {
		_, err := transactions.Exec(
			txn.ID,
			txn.Kind.String(),
			int64(txn.Addr),
			int(txn.Requester),
			int(txn.Supplier),
			txn.Shared,
			int64(txn.Value),
			int64(txn.IssueCycle),
			int64(txn.BroadcastCycle),
			int64(txn.DataCycle),
		)
		if err != nil {
			return fmt.Errorf("failed to insert transaction: %w", err)
		}
	}

	return nil
}

// Close flushes the remaining rows and closes the database.
func (t *SQLiteTracer) Close() error {
	if t.DB == nil {
		return nil
	}

	if err := t.Flush(); err != nil {
		return err
	}

	return t.DB.Close()
}
