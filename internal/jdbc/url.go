// Package jdbc reads database tables through JDBC style URLs and options,
// splitting the read into concurrent partitions over a numeric column.
package jdbc

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// Supported JDBC subprotocols
const (
	SubprotocolPostgres  = "postgresql"
	SubprotocolSQLServer = "sqlserver"
	SubprotocolSQLite    = "sqlite"
)

var (
	// ErrInvalidURL is returned for malformed JDBC URLs
	ErrInvalidURL = errors.New("invalid JDBC URL")

	// ErrUnsupportedDriver is returned for subprotocols or driver classes without a Go driver
	ErrUnsupportedDriver = errors.New("unsupported JDBC driver")
)

var defaultPorts = map[string]int{
	SubprotocolPostgres:  5432,
	SubprotocolSQLServer: 1433,
}

// URL is a parsed JDBC URL
type URL struct {
	Subprotocol string
	Host        string
	Port        int
	// Database is the database name, or the file path for sqlite
	Database string
	Params   map[string]string
}

// FormatURL builds a JDBC URL, e.g. jdbc:postgresql://my_host:5432/my_database
func FormatURL(subprotocol, host string, port int, database string) (string, error) {
	switch subprotocol {
	case SubprotocolPostgres:
		return fmt.Sprintf("jdbc:postgresql://%s/%s", net.JoinHostPort(host, strconv.Itoa(port)), database), nil
	case SubprotocolSQLServer:
		return fmt.Sprintf("jdbc:sqlserver://%s;databaseName=%s", net.JoinHostPort(host, strconv.Itoa(port)), database), nil
	case SubprotocolSQLite:
		return "jdbc:sqlite:" + database, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedDriver, subprotocol)
	}
}

// ParseURL parses a postgresql, sqlserver or sqlite JDBC URL
func ParseURL(raw string) (*URL, error) {
	if !strings.HasPrefix(raw, "jdbc:") {
		return nil, fmt.Errorf("%w: %s: missing jdbc: prefix", ErrInvalidURL, raw)
	}
	rest := strings.TrimPrefix(raw, "jdbc:")
	subprotocol, remainder, ok := strings.Cut(rest, ":")
	if !ok || subprotocol == "" {
		return nil, fmt.Errorf("%w: %s: missing subprotocol", ErrInvalidURL, raw)
	}

	switch subprotocol {
	case SubprotocolPostgres:
		return parsePostgres(raw, remainder)
	case SubprotocolSQLServer:
		return parseSQLServer(raw, remainder)
	case SubprotocolSQLite:
		if remainder == "" {
			return nil, fmt.Errorf("%w: %s: missing database path", ErrInvalidURL, raw)
		}
		return &URL{Subprotocol: subprotocol, Database: remainder, Params: map[string]string{}}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDriver, subprotocol)
	}
}

// jdbc:postgresql://host:port/database?key=value
func parsePostgres(raw, remainder string) (*URL, error) {
	if !strings.HasPrefix(remainder, "//") {
		return nil, fmt.Errorf("%w: %s: expected //host", ErrInvalidURL, raw)
	}
	u, err := url.Parse("postgresql:" + remainder)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidURL, raw, err)
	}

	parsed := &URL{
		Subprotocol: SubprotocolPostgres,
		Host:        u.Hostname(),
		Port:        defaultPorts[SubprotocolPostgres],
		Database:    strings.TrimPrefix(u.Path, "/"),
		Params:      map[string]string{},
	}
	if parsed.Host == "" {
		parsed.Host = "localhost"
	}
	if p := u.Port(); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: bad port %q", ErrInvalidURL, raw, p)
		}
		parsed.Port = port
	}
	for key, values := range u.Query() {
		if len(values) > 0 {
			parsed.Params[key] = values[len(values)-1]
		}
	}
	return parsed, nil
}

// jdbc:sqlserver://host:port;databaseName=db;encrypt=true
func parseSQLServer(raw, remainder string) (*URL, error) {
	if !strings.HasPrefix(remainder, "//") {
		return nil, fmt.Errorf("%w: %s: expected //host", ErrInvalidURL, raw)
	}
	parts := strings.Split(strings.TrimPrefix(remainder, "//"), ";")

	parsed := &URL{
		Subprotocol: SubprotocolSQLServer,
		Port:        defaultPorts[SubprotocolSQLServer],
		Params:      map[string]string{},
	}

	hostPort := parts[0]
	host, port, err := net.SplitHostPort(hostPort)
	if err != nil {
		host = hostPort
		port = ""
	}
	parsed.Host = host
	if parsed.Host == "" {
		parsed.Host = "localhost"
	}
	if port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: bad port %q", ErrInvalidURL, raw, port)
		}
		parsed.Port = p
	}

	for _, prop := range parts[1:] {
		if prop == "" {
			continue
		}
		key, value, ok := strings.Cut(prop, "=")
		if !ok {
			return nil, fmt.Errorf("%w: %s: bad property %q", ErrInvalidURL, raw, prop)
		}
		switch strings.ToLower(key) {
		case "databasename", "database":
			parsed.Database = value
		default:
			parsed.Params[key] = value
		}
	}
	return parsed, nil
}

// String formats the URL back to JDBC form
func (u *URL) String() string {
	s, err := FormatURL(u.Subprotocol, u.Host, u.Port, u.Database)
	if err != nil {
		return ""
	}
	if len(u.Params) == 0 {
		return s
	}

	keys := make([]string, 0, len(u.Params))
	for k := range u.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	switch u.Subprotocol {
	case SubprotocolSQLServer:
		for _, k := range keys {
			s += ";" + k + "=" + u.Params[k]
		}
	case SubprotocolPostgres:
		q := url.Values{}
		for _, k := range keys {
			q.Set(k, u.Params[k])
		}
		s += "?" + q.Encode()
	}
	return s
}
