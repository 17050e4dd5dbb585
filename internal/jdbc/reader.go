package jdbc

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/fsdh/datahub-samples/internal/frame"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Option keys understood by Reader. Keys are case-insensitive.
const (
	OptionDriver          = "driver"
	OptionURL             = "url"
	OptionDBTable         = "dbtable"
	OptionQuery           = "query"
	OptionUser            = "user"
	OptionPassword        = "password"
	OptionPartitionColumn = "partitioncolumn"
	OptionLowerBound      = "lowerbound"
	OptionUpperBound      = "upperbound"
	OptionNumPartitions   = "numpartitions"
	OptionQueryTimeout    = "querytimeout"
)

// FormatJDBC is the only format Reader loads
const FormatJDBC = "jdbc"

// OpenFunc opens a database handle for a driver name and DSN
type OpenFunc func(driverName, dsn string) (*sql.DB, error)

// Reader loads a table into a frame. It is configured like a data frame reader:
//
//	jdbc.NewReader(logger).Format("jdbc").
//		Option("url", url).Option("dbtable", "celestial_bodies").Load(ctx)
type Reader struct {
	format  string
	options map[string]string
	open    OpenFunc
	logger  *zap.Logger
}

// NewReader creates a reader with no options set
func NewReader(logger *zap.Logger) *Reader {
	return &Reader{
		options: make(map[string]string),
		open:    sql.Open,
		logger:  logger,
	}
}

// WithOpener replaces how database handles are opened
func (r *Reader) WithOpener(open OpenFunc) *Reader {
	r.open = open
	return r
}

// Format sets the source format
func (r *Reader) Format(format string) *Reader {
	r.format = strings.ToLower(format)
	return r
}

// Option sets a single option
func (r *Reader) Option(key, value string) *Reader {
	r.options[strings.ToLower(key)] = value
	return r
}

// Options sets several options
func (r *Reader) Options(options map[string]string) *Reader {
	for k, v := range options {
		r.Option(k, v)
	}
	return r
}

type loadPlan struct {
	url        *URL
	driverName string
	dsn        string
	table      string
	predicates []string
	timeout    time.Duration
}

func (r *Reader) plan() (*loadPlan, error) {
	if r.format != FormatJDBC {
		return nil, fmt.Errorf("unsupported format %q", r.format)
	}

	rawURL := r.options[OptionURL]
	if rawURL == "" {
		return nil, fmt.Errorf("option %q is required", OptionURL)
	}
	u, err := ParseURL(rawURL)
	if err != nil {
		return nil, err
	}
	if err := checkDriver(r.options[OptionDriver], u); err != nil {
		return nil, err
	}

	table, err := r.table()
	if err != nil {
		return nil, err
	}

	predicates, err := r.predicates()
	if err != nil {
		return nil, err
	}

	driverName, dsn, err := u.DataSource(r.options[OptionUser], r.options[OptionPassword])
	if err != nil {
		return nil, err
	}

	plan := &loadPlan{
		url:        u,
		driverName: driverName,
		dsn:        dsn,
		table:      table,
		predicates: predicates,
	}
	if v := r.options[OptionQueryTimeout]; v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil || seconds < 0 {
			return nil, fmt.Errorf("option %q must be a non-negative integer", OptionQueryTimeout)
		}
		plan.timeout = time.Duration(seconds) * time.Second
	}
	return plan, nil
}

func (r *Reader) table() (string, error) {
	table, query := r.options[OptionDBTable], r.options[OptionQuery]
	switch {
	case table != "" && query != "":
		return "", fmt.Errorf("options %q and %q cannot both be set", OptionDBTable, OptionQuery)
	case query != "":
		if _, ok := r.options[OptionPartitionColumn]; ok {
			return "", fmt.Errorf("option %q cannot be combined with %q", OptionQuery, OptionPartitionColumn)
		}
		return "(" + strings.TrimSuffix(strings.TrimSpace(query), ";") + ") jdbc_subquery", nil
	case table != "":
		if !validTable(table) {
			return "", fmt.Errorf("invalid %s %q", OptionDBTable, table)
		}
		return table, nil
	default:
		return "", fmt.Errorf("option %q or %q is required", OptionDBTable, OptionQuery)
	}
}

func (r *Reader) predicates() ([]string, error) {
	keys := []string{OptionPartitionColumn, OptionLowerBound, OptionUpperBound, OptionNumPartitions}
	set := 0
	for _, k := range keys {
		if _, ok := r.options[k]; ok {
			set++
		}
	}
	if _, ok := r.options[OptionPartitionColumn]; !ok {
		// numPartitions alone only caps parallelism
		if set > 1 || (set == 1 && r.options[OptionNumPartitions] == "") {
			return nil, fmt.Errorf("options %s, %s and %s require %s",
				OptionLowerBound, OptionUpperBound, OptionNumPartitions, OptionPartitionColumn)
		}
		return nil, nil
	}
	if set != len(keys) {
		return nil, fmt.Errorf("option %s requires %s, %s and %s",
			OptionPartitionColumn, OptionLowerBound, OptionUpperBound, OptionNumPartitions)
	}

	lower, err := strconv.ParseInt(r.options[OptionLowerBound], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("option %s must be an integer: %w", OptionLowerBound, err)
	}
	upper, err := strconv.ParseInt(r.options[OptionUpperBound], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("option %s must be an integer: %w", OptionUpperBound, err)
	}
	count, err := strconv.Atoi(r.options[OptionNumPartitions])
	if err != nil || count < 1 {
		return nil, fmt.Errorf("option %s must be a positive integer", OptionNumPartitions)
	}

	return Partitioning{
		Column:     r.options[OptionPartitionColumn],
		LowerBound: lower,
		UpperBound: upper,
		Count:      count,
	}.Predicates()
}

// Queries returns the statements Load would run, one per partition
func (r *Reader) Queries() ([]string, error) {
	plan, err := r.plan()
	if err != nil {
		return nil, err
	}
	return plan.queries(), nil
}

func (p *loadPlan) queries() []string {
	base := "SELECT * FROM " + p.table
	if len(p.predicates) == 0 {
		return []string{base}
	}
	queries := make([]string, len(p.predicates))
	for i, pred := range p.predicates {
		queries[i] = base + " WHERE " + pred
	}
	return queries
}

// Load reads the table. Partitions are queried concurrently, one connection
// each, and their rows are concatenated in partition order.
func (r *Reader) Load(ctx context.Context) (*frame.Frame, error) {
	plan, err := r.plan()
	if err != nil {
		return nil, err
	}
	queries := plan.queries()

	db, err := r.open(plan.driverName, plan.dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s connection: %w", plan.url.Subprotocol, err)
	}
	defer db.Close()
	db.SetMaxOpenConns(len(queries))

	r.logger.Info("Loading table",
		zap.String("subprotocol", plan.url.Subprotocol),
		zap.String("host", plan.url.Host),
		zap.String("database", plan.url.Database),
		zap.String("table", plan.table),
		zap.Int("partitions", len(queries)),
	)

	start := time.Now()
	parts := make([]*frame.Frame, len(queries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(len(queries))
	for i, query := range queries {
		i, query := i, query
		g.Go(func() error {
			qctx := gctx
			if plan.timeout > 0 {
				var cancel context.CancelFunc
				qctx, cancel = context.WithTimeout(gctx, plan.timeout)
				defer cancel()
			}

			rows, err := db.QueryContext(qctx, query)
			if err != nil {
				return fmt.Errorf("partition %d: %w", i, err)
			}
			part, err := frame.FromRows(rows)
			if err != nil {
				return fmt.Errorf("partition %d: %w", i, err)
			}
			parts[i] = part

			r.logger.Debug("Partition loaded",
				zap.Int("partition", i),
				zap.Int("rows", part.Len()),
			)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", plan.table, err)
	}

	result := &frame.Frame{Columns: parts[0].Columns}
	for _, part := range parts {
		if err := result.Append(part); err != nil {
			return nil, fmt.Errorf("failed to combine partitions: %w", err)
		}
	}

	r.logger.Info("Table loaded",
		zap.String("table", plan.table),
		zap.Int("rows", result.Len()),
		zap.Duration("duration", time.Since(start)),
	)
	return result, nil
}
