// Package tracing records simulation events for offline analysis.
package tracing

import (
	"database/sql"
	"errors"
	"fmt"
	"os"

	// Need to use SQLite connections.
	_ "github.com/mattn/go-sqlite3"

	"github.com/rs/xid"
	"github.com/sirupsen/logrus"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/rvsim/insts"
	"github.com/sarchlab/rvsim/timing/pipeline"
)

// DefaultBatchSize is the number of buffered rows that triggers a flush.
const DefaultBatchSize = 10000

type retirement struct {
	cycle  uint64
	pc     uint32
	op     string
	disasm string
	word   uint32
}

type hazard struct {
	cycle uint64
	kind  pipeline.HazardKind
	pc    uint32
}

// Option configures a SQLiteTraceWriter.
type Option func(*SQLiteTraceWriter)

// WithBatchSize sets the number of buffered rows that triggers a flush.
func WithBatchSize(n int) Option {
	return func(w *SQLiteTraceWriter) {
		w.batchSize = n
	}
}

// WithLogger sets the logger that reports write failures.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(w *SQLiteTraceWriter) {
		w.logger = logger
	}
}

// SQLiteTraceWriter writes retired instructions and hazards to a SQLite
// database. It implements pipeline.Tracer. Rows are buffered and written in
// one transaction per batch; whatever is left is written at process exit or
// on Close.
type SQLiteTraceWriter struct {
	db              *sql.DB
	retireStatement *sql.Stmt
	hazardStatement *sql.Stmt

	path        string
	retirements []retirement
	hazards     []hazard
	batchSize   int
	err         error
	closed      bool
	logger      logrus.FieldLogger
}

// NewSQLiteTraceWriter creates the database at path, or at a unique
// rvsim_trace_<xid>.sqlite3 in the working directory if path is empty. The
// file must not exist yet.
func NewSQLiteTraceWriter(path string, opts ...Option) (*SQLiteTraceWriter, error) {
	if path == "" {
		path = "rvsim_trace_" + xid.New().String() + ".sqlite3"
	}

	w := &SQLiteTraceWriter{
		path:      path,
		batchSize: DefaultBatchSize,
		logger:    logrus.StandardLogger(),
	}

	for _, opt := range opts {
		opt(w)
	}

	if err := w.createDatabase(); err != nil {
		return nil, err
	}

	atexit.Register(func() { _ = w.Flush() })

	return w, nil
}

// Path returns the database file.
func (w *SQLiteTraceWriter) Path() string {
	return w.path
}

func (w *SQLiteTraceWriter) createDatabase() error {
	if _, err := os.Stat(w.path); err == nil {
		return fmt.Errorf("trace file %s already exists", w.path)
	}

	db, err := sql.Open("sqlite3", w.path)
	if err != nil {
		return fmt.Errorf("failed to open trace database: %w", err)
	}
	w.db = db

	schema := []string{
		`CREATE TABLE retirement
		(
			cycle  INTEGER NOT NULL,
			pc     INTEGER NOT NULL,
			op     VARCHAR(16) NOT NULL,
			disasm VARCHAR(64) NOT NULL,
			word   INTEGER NOT NULL
		);`,
		`CREATE INDEX retirement_cycle_index ON retirement (cycle);`,
		`CREATE INDEX retirement_pc_index ON retirement (pc);`,
		`CREATE TABLE hazard
		(
			cycle INTEGER NOT NULL,
			kind  VARCHAR(16) NOT NULL,
			pc    INTEGER NOT NULL
		);`,
		`CREATE INDEX hazard_kind_index ON hazard (kind);`,
	}

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return fmt.Errorf("failed to create trace schema: %w", err)
		}
	}

	w.retireStatement, err = db.Prepare(
		`INSERT INTO retirement (cycle, pc, op, disasm, word) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to prepare retirement statement: %w", err)
	}

	w.hazardStatement, err = db.Prepare(
		`INSERT INTO hazard (cycle, kind, pc) VALUES (?, ?, ?)`)
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to prepare hazard statement: %w", err)
	}

	return nil
}

// InstructionRetired buffers a retirement row.
func (w *SQLiteTraceWriter) InstructionRetired(cycle uint64, pc uint32, inst *insts.Instruction) {
	w.retirements = append(w.retirements, retirement{
		cycle:  cycle,
		pc:     pc,
		op:     inst.Op.String(),
		disasm: inst.String(),
		word:   inst.Word,
	})
	w.flushIfFull()
}

// HazardDetected buffers a hazard row.
func (w *SQLiteTraceWriter) HazardDetected(cycle uint64, kind pipeline.HazardKind, pc uint32) {
	w.hazards = append(w.hazards, hazard{cycle: cycle, kind: kind, pc: pc})
	w.flushIfFull()
}

func (w *SQLiteTraceWriter) flushIfFull() {
	if len(w.retirements)+len(w.hazards) < w.batchSize {
		return
	}

	if err := w.Flush(); err != nil {
		w.logger.WithError(err).WithField("path", w.path).Error("trace flush failed")
	}
}

// Err returns the first write error.
func (w *SQLiteTraceWriter) Err() error {
	return w.err
}

// Flush writes all buffered rows in one transaction.
func (w *SQLiteTraceWriter) Flush() error {
	if len(w.retirements) == 0 && len(w.hazards) == 0 {
		return nil
	}
	if w.closed {
		return errors.New("trace writer is closed")
	}

	err := w.writeBatch()
	if err != nil && w.err == nil {
		w.err = err
	}

	w.retirements = nil
	w.hazards = nil

	return err
}

func (w *SQLiteTraceWriter) writeBatch() error {
	tx, err := w.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin trace transaction: %w", err)
	}

	retire := tx.Stmt(w.retireStatement)
	for _, r := range w.retirements {
		if _, err := retire.Exec(r.cycle, r.pc, r.op, r.disasm, r.word); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to insert retirement at cycle %d: %w", r.cycle, err)
		}
	}

	haz := tx.Stmt(w.hazardStatement)
	for _, h := range w.hazards {
		if _, err := haz.Exec(h.cycle, h.kind.String(), h.pc); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to insert hazard at cycle %d: %w", h.cycle, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit trace transaction: %w", err)
	}

	return nil
}

// Close flushes the remaining rows and closes the database.
func (w *SQLiteTraceWriter) Close() error {
	if w.closed {
		return nil
	}

	err := w.Flush()
	w.closed = true

	_ = w.retireStatement.Close()
	_ = w.hazardStatement.Close()
	if cerr := w.db.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("failed to close trace database: %w", cerr)
	}

	return err
}
