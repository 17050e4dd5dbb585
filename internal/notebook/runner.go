// Package notebook runs the data hub walkthrough: reading blob storage
// directly and through a mount, then reading and writing the sample table.
package notebook

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/fsdh/datahub-samples/internal/config"
	"github.com/fsdh/datahub-samples/internal/database"
	"github.com/fsdh/datahub-samples/internal/domain"
	"github.com/fsdh/datahub-samples/internal/frame"
	"github.com/fsdh/datahub-samples/internal/jdbc"
	"github.com/fsdh/datahub-samples/internal/logger"
	"github.com/fsdh/datahub-samples/internal/repository"
	"github.com/fsdh/datahub-samples/internal/storage"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Step names in walkthrough order
const (
	StepStorage  = "storage"
	StepMount    = "mount"
	StepDatabase = "db"
	StepRead     = "read"
)

// Steps lists every step in the order Run executes them
var Steps = []string{StepStorage, StepMount, StepDatabase, StepRead}

// SecretGetter resolves a secret by scope and key
type SecretGetter interface {
	GetScoped(ctx context.Context, scope, key string) (string, error)
}

// ConnectFunc opens the sample database
type ConnectFunc func(ctx context.Context) (*gorm.DB, error)

// Runner executes walkthrough steps and writes their output to Out
type Runner struct {
	cfg     *config.Config
	fs      *storage.FileSystem
	secrets SecretGetter
	connect ConnectFunc
	reader  func() *jdbc.Reader
	out     io.Writer
	logger  *zap.Logger
}

// Options holds the collaborators of a Runner
type Options struct {
	Config     *config.Config
	FileSystem *storage.FileSystem
	Secrets    SecretGetter
	// Connect defaults to database.NewDatabase with the configured database
	Connect ConnectFunc
	// NewReader defaults to jdbc.NewReader
	NewReader func() *jdbc.Reader
	Out       io.Writer
	Logger    *zap.Logger
}

// NewRunner creates a walkthrough runner
func NewRunner(opts Options) *Runner {
	r := &Runner{
		cfg:     opts.Config,
		fs:      opts.FileSystem,
		secrets: opts.Secrets,
		connect: opts.Connect,
		reader:  opts.NewReader,
		out:     opts.Out,
		logger:  opts.Logger,
	}
	if r.connect == nil {
		r.connect = func(ctx context.Context) (*gorm.DB, error) {
			return database.NewDatabase(&r.cfg.Database, r.logger)
		}
	}
	if r.reader == nil {
		r.reader = func() *jdbc.Reader { return jdbc.NewReader(r.logger) }
	}
	return r
}

// Run executes the named steps in walkthrough order. No names runs every step.
// The first failing step stops the run.
func (r *Runner) Run(ctx context.Context, steps ...string) error {
	selected := make(map[string]bool, len(steps))
	for _, s := range steps {
		if !isStep(s) {
			return fmt.Errorf("unknown step %q", s)
		}
		selected[s] = true
	}

	for _, step := range Steps {
		if len(selected) > 0 && !selected[step] {
			continue
		}
		if err := r.runStep(ctx, step); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) runStep(ctx context.Context, step string) error {
	log := logger.WithStep(r.logger, step)
	log.Info("Running step")
	start := time.Now()

	var err error
	switch step {
	case StepStorage:
		err = r.StorageDirect(ctx)
	case StepMount:
		err = r.StorageMount(ctx)
	case StepDatabase:
		err = r.DatabaseReadWrite(ctx)
	case StepRead:
		err = r.DatabaseRead(ctx)
	}
	if err != nil {
		log.Error("Step failed", zap.Error(err), zap.Duration("duration", time.Since(start)))
		return fmt.Errorf("step %s: %w", step, err)
	}

	log.Info("Step completed", zap.Duration("duration", time.Since(start)))
	return nil
}

func isStep(name string) bool {
	for _, s := range Steps {
		if s == name {
			return true
		}
	}
	return false
}

// StorageDirect lists the abfss location and shows the head of the sample file
func (r *Runner) StorageDirect(ctx context.Context) error {
	if r.cfg.Storage.AbfssURI == "" {
		return fmt.Errorf("storage.abfssUri is not configured")
	}
	loc, err := storage.ParseURI(r.cfg.Storage.AbfssURI)
	if err != nil {
		return err
	}

	if err := r.ls(ctx, loc.String()); err != nil {
		return err
	}
	return r.showCSV(ctx, loc.Join(r.cfg.Storage.SampleFile).String())
}

// StorageMount remounts the wasbs source with the account key from the
// secret scope, then lists it and shows the head of the sample file
func (r *Runner) StorageMount(ctx context.Context) error {
	if err := r.MountStorage(ctx); err != nil {
		return err
	}

	sc := r.cfg.Storage
	if err := r.ls(ctx, sc.MountPoint); err != nil {
		return err
	}
	return r.showCSV(ctx, sc.MountPoint+"/"+sc.SampleFile)
}

// MountStorage mounts the wasbs source at the mount point, replacing an
// existing mount there. The account key comes from the secret scope.
func (r *Runner) MountStorage(ctx context.Context) error {
	sc := r.cfg.Storage
	if sc.WasbsURI == "" {
		return fmt.Errorf("storage.wasbsUri is not configured")
	}
	if sc.AccountName == "" {
		return fmt.Errorf("storage.accountName is not configured")
	}

	if r.fs.IsMounted(sc.MountPoint) {
		if err := r.fs.Unmount(sc.MountPoint); err != nil {
			return err
		}
	}

	key, err := r.secrets.GetScoped(ctx, sc.SecretScope, sc.SecretKey)
	if err != nil {
		return fmt.Errorf("failed to get storage key: %w", err)
	}

	extraConfigs := map[string]string{
		storage.AccountKeyConfig(sc.AccountName): key,
	}
	return r.fs.Mount(ctx, sc.WasbsURI, sc.MountPoint, extraConfigs)
}

// DatabaseReadWrite creates the sample table, inserts the sample rows,
// prints them back and displays them as a table
func (r *Runner) DatabaseReadWrite(ctx context.Context) (err error) {
	db, err := r.connect(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := database.Close(db); cerr != nil && err == nil {
			err = cerr
		}
	}()

	repo := repository.NewCelestialBodyRepository(db)
	if err := repo.CreateTable(ctx); err != nil {
		return err
	}
	if err := repo.InsertMany(ctx, domain.SampleBodies()); err != nil {
		return err
	}

	bodies, err := repo.SelectAll(ctx)
	if err != nil {
		return err
	}
	for _, b := range bodies {
		fmt.Fprintln(r.out, b.Tuple())
	}

	f, err := repo.SelectFrame(ctx)
	if err != nil {
		return err
	}
	f.Display(r.out)
	return nil
}

// DatabaseRead loads the sample table through the JDBC reader and displays it
func (r *Runner) DatabaseRead(ctx context.Context) error {
	reader, err := r.NewTableReader()
	if err != nil {
		return err
	}
	f, err := reader.Load(ctx)
	if err != nil {
		return err
	}
	f.Display(r.out)
	return nil
}

// NewTableReader returns a JDBC reader configured for the sample table
func (r *Runner) NewTableReader() (*jdbc.Reader, error) {
	url, err := JDBCURL(&r.cfg.Database)
	if err != nil {
		return nil, err
	}

	rc := r.cfg.Reader
	driver := rc.Driver
	if driver == "" {
		sub := jdbc.SubprotocolPostgres
		if r.cfg.Database.Driver == "sqlite" {
			sub = jdbc.SubprotocolSQLite
		}
		if driver, err = jdbc.DriverClass(sub); err != nil {
			return nil, err
		}
	}

	reader := r.reader().Format(jdbc.FormatJDBC).
		Option(jdbc.OptionDriver, driver).
		Option(jdbc.OptionURL, url).
		Option(jdbc.OptionDBTable, rc.Table).
		Option(jdbc.OptionUser, r.cfg.Database.User).
		Option(jdbc.OptionPassword, r.cfg.Database.Password)

	if rc.PartitionColumn != "" {
		reader.Option(jdbc.OptionPartitionColumn, rc.PartitionColumn).
			Option(jdbc.OptionLowerBound, strconv.FormatInt(rc.LowerBound, 10)).
			Option(jdbc.OptionUpperBound, strconv.FormatInt(rc.UpperBound, 10)).
			Option(jdbc.OptionNumPartitions, strconv.Itoa(rc.NumPartitions))
	}
	if rc.QueryTimeout > 0 {
		reader.Option(jdbc.OptionQueryTimeout, strconv.Itoa(rc.QueryTimeout))
	}
	return reader, nil
}

// JDBCURL formats the JDBC URL of the configured database
func JDBCURL(cfg *config.DatabaseConfig) (string, error) {
	if cfg.Driver == "sqlite" {
		return jdbc.FormatURL(jdbc.SubprotocolSQLite, "", 0, cfg.Path)
	}
	return jdbc.FormatURL(jdbc.SubprotocolPostgres, cfg.Host, cfg.Port, cfg.Name)
}

func (r *Runner) ls(ctx context.Context, p string) error {
	files, err := r.fs.Ls(ctx, p)
	if err != nil {
		return fmt.Errorf("failed to list %s: %w", p, err)
	}
	f := frame.New("path", "name", "size", "modificationTime")
	for _, fi := range files {
		var modified int64
		if !fi.ModTime.IsZero() {
			modified = fi.ModTime.UnixMilli()
		}
		f.Rows = append(f.Rows, frame.Row{fi.Path, fi.Name, fi.Size, modified})
	}
	f.Display(r.out)
	return nil
}

func (r *Runner) showCSV(ctx context.Context, p string) error {
	rc, err := r.fs.Open(ctx, p)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", p, err)
	}
	defer rc.Close()

	f, err := frame.ReadCSV(rc, frame.CSVOptions{Header: true})
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", p, err)
	}
	f.Show(r.out, r.cfg.Storage.ShowRows)
	return nil
}
