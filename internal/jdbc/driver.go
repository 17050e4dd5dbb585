package jdbc

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"  // registers the pgx database/sql driver
	_ "github.com/mattn/go-sqlite3"     // registers the sqlite3 database/sql driver
	_ "github.com/microsoft/go-mssqldb" // registers the sqlserver database/sql driver
)

// Driver classes accepted in the driver option
const (
	DriverPostgres  = "org.postgresql.Driver"
	DriverSQLServer = "com.microsoft.sqlserver.jdbc.SQLServerDriver"
	DriverSQLite    = "org.sqlite.JDBC"
)

var driverSubprotocols = map[string]string{
	DriverPostgres:  SubprotocolPostgres,
	DriverSQLServer: SubprotocolSQLServer,
	DriverSQLite:    SubprotocolSQLite,
}

// database/sql driver names per subprotocol
var sqlDrivers = map[string]string{
	SubprotocolPostgres:  "pgx",
	SubprotocolSQLServer: "sqlserver",
	SubprotocolSQLite:    "sqlite3",
}

// DriverClass returns the default driver class for a subprotocol
func DriverClass(subprotocol string) (string, error) {
	for class, sub := range driverSubprotocols {
		if sub == subprotocol {
			return class, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedDriver, subprotocol)
}

// checkDriver verifies that a driver class can serve the URL
func checkDriver(driverClass string, u *URL) error {
	if driverClass == "" {
		return nil
	}
	sub, ok := driverSubprotocols[driverClass]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedDriver, driverClass)
	}
	if sub != u.Subprotocol {
		return fmt.Errorf("%w: driver %s cannot open jdbc:%s URLs", ErrUnsupportedDriver, driverClass, u.Subprotocol)
	}
	return nil
}

// DataSource returns the database/sql driver name and a read-only DSN for the URL
func (u *URL) DataSource(user, password string) (string, string, error) {
	driverName, ok := sqlDrivers[u.Subprotocol]
	if !ok {
		return "", "", fmt.Errorf("%w: %s", ErrUnsupportedDriver, u.Subprotocol)
	}

	switch u.Subprotocol {
	case SubprotocolPostgres:
		q := url.Values{}
		for key, value := range u.Params {
			switch strings.ToLower(key) {
			case "sslmode":
				q.Set("sslmode", value)
			case "ssl":
				if strings.EqualFold(value, "true") {
					q.Set("sslmode", "require")
				}
			case "applicationname":
				q.Set("application_name", value)
			case "currentschema":
				q.Set("search_path", value)
			case "connecttimeout":
				q.Set("connect_timeout", value)
			}
		}
		q.Set("default_transaction_read_only", "on")
		dsn := &url.URL{
			Scheme:   "postgres",
			Host:     net.JoinHostPort(u.Host, strconv.Itoa(u.Port)),
			Path:     "/" + u.Database,
			RawQuery: q.Encode(),
		}
		if user != "" {
			dsn.User = url.UserPassword(user, password)
		}
		return driverName, dsn.String(), nil

	case SubprotocolSQLServer:
		q := url.Values{}
		for key, value := range u.Params {
			switch strings.ToLower(key) {
			case "encrypt":
				q.Set("encrypt", value)
			case "trustservercertificate":
				q.Set("TrustServerCertificate", value)
			case "logintimeout":
				q.Set("connection timeout", value)
			case "applicationname":
				q.Set("app name", value)
			}
		}
		if u.Database != "" {
			q.Set("database", u.Database)
		}
		q.Set("ApplicationIntent", "ReadOnly")
		dsn := &url.URL{
			Scheme:   "sqlserver",
			Host:     net.JoinHostPort(u.Host, strconv.Itoa(u.Port)),
			RawQuery: q.Encode(),
		}
		if user != "" {
			dsn.User = url.UserPassword(user, password)
		}
		return driverName, dsn.String(), nil

	case SubprotocolSQLite:
		if u.Database == ":memory:" {
			return driverName, u.Database, nil
		}
		return driverName, "file:" + u.Database + "?mode=ro", nil
	}

	return "", "", fmt.Errorf("%w: %s", ErrUnsupportedDriver, u.Subprotocol)
}
