// Package connector turns a live database into an introspection document
// that can seed a canvas. Only Postgres is supported.
package connector

import (
	"context"
	"errors"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/faucetdb/sketch/internal/model"
)

// DriverPostgres is the only driver the introspector understands.
const DriverPostgres = "postgres"

var (
	// ErrUnsupportedDriver is returned for connection strings that are not
	// Postgres URLs or Postgres key=value DSNs.
	ErrUnsupportedDriver = errors.New("unsupported connection string: only Postgres is supported")

	// ErrEmptySchema is returned when introspection finds no user tables.
	ErrEmptySchema = errors.New("database has no tables outside system schemas")
)

// ConnectionConfig holds database connection parameters for introspection.
type ConnectionConfig struct {
	Driver string
	DSN    string

	// Schemas restricts introspection to these namespaces. Empty means every
	// non-system namespace.
	Schemas []string
	// ExcludeSchemas are skipped in addition to the system namespaces.
	ExcludeSchemas []string

	ConnectTimeout  time.Duration
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

// Introspector reads a database catalog into a Document.
type Introspector interface {
	Introspect(ctx context.Context, cfg ConnectionConfig) (model.Document, error)
}

// DetectDriver identifies the driver for a connection string. URL DSNs with a
// postgres:// or postgresql:// scheme and key=value DSNs naming a host or
// dbname are Postgres; anything else is ErrUnsupportedDriver.
func DetectDriver(dsn string) (string, error) {
	s := strings.TrimSpace(dsn)
	lower := strings.ToLower(s)

	switch {
	case s == "":
		return "", ErrUnsupportedDriver
	case strings.HasPrefix(lower, "postgres://"), strings.HasPrefix(lower, "postgresql://"):
		return DriverPostgres, nil
	case strings.Contains(lower, "://"):
		return "", ErrUnsupportedDriver
	}

	for _, field := range strings.Fields(lower) {
		if strings.HasPrefix(field, "host=") || strings.HasPrefix(field, "dbname=") {
			return DriverPostgres, nil
		}
	}
	return "", ErrUnsupportedDriver
}

// SanitizeDSN ensures that URL-style DSNs have their userinfo (especially
// the password) properly percent-encoded. Raw passwords containing @, #, %
// or other URL-special characters otherwise make the URL parser mis-split the
// authority component. Key=value DSNs are returned unchanged.
func SanitizeDSN(driver, dsn string) string {
	if driver != DriverPostgres {
		return dsn
	}
	return sanitizeURLDSN(dsn)
}

// sanitizeURLDSN parses a DSN that begins with a scheme (e.g.
// postgres://user:p@ss#word@host/db) and re-encodes the credentials.
func sanitizeURLDSN(dsn string) string {
	schemeEnd := strings.Index(dsn, "://")
	if schemeEnd < 0 {
		return dsn
	}

	scheme := dsn[:schemeEnd]
	rest := dsn[schemeEnd+3:]

	query := ""
	if qi := strings.IndexByte(rest, '?'); qi >= 0 {
		query = rest[qi:]
		rest = rest[:qi]
	}

	// The LAST '@' separates userinfo from host+path.
	atIdx := strings.LastIndex(rest, "@")
	if atIdx < 0 {
		return dsn
	}

	userinfo := rest[:atIdx]
	hostpath := rest[atIdx+1:]

	user := userinfo
	pass := ""
	hasPass := false
	if ci := strings.IndexByte(userinfo, ':'); ci >= 0 {
		user = userinfo[:ci]
		pass = userinfo[ci+1:]
		hasPass = true
	}

	// Already-encoded credentials must not be encoded twice.
	if u, err := url.PathUnescape(user); err == nil {
		user = u
	}
	if p, err := url.PathUnescape(pass); err == nil {
		pass = p
	}

	ui := url.User(user)
	if hasPass {
		ui = url.UserPassword(user, pass)
	}
	return scheme + "://" + ui.String() + "@" + hostpath + query
}

var kvPassword = regexp.MustCompile(`(?i)password=\S+`)

// RedactDSN hides the password in a DSN for logging.
func RedactDSN(dsn string) string {
	if !strings.Contains(dsn, "://") {
		return kvPassword.ReplaceAllString(dsn, "password=xxxxx")
	}
	u, err := url.Parse(SanitizeDSN(DriverPostgres, dsn))
	if err != nil || u.User == nil {
		return dsn
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "xxxxx")
	}
	return u.String()
}

var systemSchemas = map[string]bool{
	"pg_catalog":         true,
	"information_schema": true,
}

// IsSystemSchema reports whether a namespace belongs to Postgres itself or
// is listed in extra.
func IsSystemSchema(name string, extra []string) bool {
	if systemSchemas[name] || strings.HasPrefix(name, "pg_toast") || strings.HasPrefix(name, "pg_temp") {
		return true
	}
	for _, e := range extra {
		if e == name {
			return true
		}
	}
	return false
}

// IncludeSchema reports whether introspection should read a namespace under
// cfg.
func (cfg ConnectionConfig) IncludeSchema(name string) bool {
	if IsSystemSchema(name, cfg.ExcludeSchemas) {
		return false
	}
	if len(cfg.Schemas) == 0 {
		return true
	}
	for _, s := range cfg.Schemas {
		if s == name {
			return true
		}
	}
	return false
}

// TableKey returns the canvas identifier for a table: the bare name in the
// public schema, schema.table otherwise.
func TableKey(schema, table string) string {
	if schema == "" || schema == "public" {
		return table
	}
	return schema + "." + table
}
