// Package dataset loads the raw listing rows the catalog and the estimator
// are built from.
package dataset

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"propfinder/server/internal/cleaning"
)

// Source yields a cleaned dataset.
type Source interface {
	Load(ctx context.Context) (*cleaning.Dataset, error)
	String() string
}

// CSVSource reads the dataset file.
type CSVSource struct {
	Path   string
	Logger *logrus.Logger
}

func (s *CSVSource) Load(ctx context.Context) (*cleaning.Dataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return cleaning.LoadFile(s.Path, s.Logger)
}

func (s *CSVSource) String() string {
	return "csv:" + s.Path
}

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// SQLSource reads the raw dataset columns from a table. Every column is read
// as text so the same parsers apply as for the CSV.
type SQLSource struct {
	db     *sqlx.DB
	table  string
	logger *logrus.Logger
}

// NewPostgresSource connects to PostgreSQL through lib/pq.
func NewPostgresSource(dsn, table string, logger *logrus.Logger) (*SQLSource, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to dataset database: %w", err)
	}
	source, err := NewSQLSource(db, table, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	return source, nil
}

// NewSQLSource wraps an open connection. table may be schema-qualified.
func NewSQLSource(db *sqlx.DB, table string, logger *logrus.Logger) (*SQLSource, error) {
	if !identifier.MatchString(table) {
		return nil, fmt.Errorf("invalid dataset table name %q", table)
	}
	return &SQLSource{db: db, table: table, logger: logger}, nil
}

var columns = []string{
	"property_name",
	"city_name",
	"property_type",
	"no_of_bhk",
	"size",
	"price",
	"locality_name",
	"property_status",
	"latitude",
	"longitude",
}

func (s *SQLSource) query() string {
	selects := make([]string, len(columns))
	for i, c := range columns {
		selects[i] = fmt.Sprintf("COALESCE(CAST(%s AS TEXT), '') AS %s", c, c)
	}
	return fmt.Sprintf("SELECT %s FROM %s", strings.Join(selects, ", "), s.table)
}

func (s *SQLSource) Load(ctx context.Context) (*cleaning.Dataset, error) {
	var rows []cleaning.RawRow
	if err := s.db.SelectContext(ctx, &rows, s.query()); err != nil {
		return nil, fmt.Errorf("failed to query dataset table %s: %w", s.table, err)
	}
	return cleaning.FromRows(rows, s.logger), nil
}

func (s *SQLSource) String() string {
	return s.db.DriverName() + ":" + s.table
}

func (s *SQLSource) Close() error {
	return s.db.Close()
}
