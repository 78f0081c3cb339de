// Package database provides the SQL connection and migration plumbing shared
// by the history DB, plus the meddler converters for the repo's custom
// column types.
package database

import (
	"database/sql"
	"fmt"
	"math/big"
	"os"
	"reflect"
	"strconv"
	"strings"

	"tokamak-group-rollup/common"
	"tokamak-group-rollup/log"

	"github.com/gobuffalo/packr/v2"
	"github.com/jmoiron/sqlx"
	"github.com/russross/meddler"

	// driver for postgres DB
	_ "github.com/lib/pq"
	migrate "github.com/rubenv/sql-migrate"
)

func init() {
	meddler.Default = meddler.PostgreSQL
	meddler.Register("bigint", BigIntMeddler{})
}

var migrations = &migrate.PackrMigrationSource{
	Box: packr.New("group-rollup-db-migrations", "./migrations"),
}

// InitSQLDB runs migrations and registers meddlers
func InitSQLDB(port int, host, user, password, name string) (*sqlx.DB, error) {
	psqlconn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, name,
	)
	db, err := sqlx.Connect("postgres", psqlconn)
	if err != nil {
		return nil, common.Wrap(err)
	}
	if err := MigrationsUp(db.DB); err != nil {
		return nil, common.Wrap(err)
	}
	return db, nil
}

// InitTestSQLDB connects to the test DB from the POSTGRES_* env vars, wiping
// and re-running the migrations first
func InitTestSQLDB() (*sqlx.DB, error) {
	host := os.Getenv("POSTGRES_HOST")
	if host == "" {
		host = "localhost"
	}
	port := 5432
	if p := os.Getenv("POSTGRES_PORT"); p != "" {
		var err error
		port, err = strconv.Atoi(p)
		if err != nil {
			return nil, common.Wrap(err)
		}
	}
	user := os.Getenv("POSTGRES_USER")
	if user == "" {
		user = "hermez"
	}
	pass := os.Getenv("POSTGRES_PASS")
	if pass == "" {
		return nil, common.Wrap(fmt.Errorf("POSTGRES_PASS env var must be set"))
	}
	name := os.Getenv("POSTGRES_NAME")
	if name == "" {
		name = "hermez"
	}
	return InitSQLDB(port, host, user, pass, name)
}

// MigrationsUp runs the migrations up
func MigrationsUp(db *sql.DB) error {
	nMigrations, err := migrate.Exec(db, "postgres", migrations, migrate.Up)
	if err != nil {
		return common.Wrap(err)
	}
	log.Infow("successfully ran database migrations", "nMigrations", nMigrations)
	return nil
}

// MigrationsDown runs the migrations down, until only nMigrations are left
func MigrationsDown(db *sql.DB, nMigrations uint) error {
	nDowned, err := migrate.ExecMax(db, "postgres", migrations, migrate.Down,
		int(nMigrations))
	if err != nil {
		return common.Wrap(err)
	}
	log.Infow("successfully downed database migrations", "nMigrations", nDowned)
	return nil
}

// Rollback an sql transaction, and log the error if it's not nil
func Rollback(txn *sqlx.Tx) {
	if err := txn.Rollback(); err != nil {
		log.Errorw("Rollback", "err", err)
	}
}

// BulkInsert performs a bulk insert with a single statement into the
// specified table.  Example: BulkInsert(db, "INSERT INTO table (a, b) VALUES
// %s", values[:]).  Note that all the columns must be specified in the
// query, and they must be in the same order as in the table.
func BulkInsert(db meddler.DB, q string, args interface{}) error {
	arrayValue := reflect.ValueOf(args)
	arrayLen := arrayValue.Len()
	valueStrings := make([]string, 0, arrayLen)
	var arglist = make([]interface{}, 0)
	for i := 0; i < arrayLen; i++ {
		arg := arrayValue.Index(i).Addr().Interface()
		elemArglist, err := meddler.Default.Values(arg, true)
		if err != nil {
			return common.Wrap(err)
		}
		arglist = append(arglist, elemArglist...)
		value := "("
		for j := 0; j < len(elemArglist); j++ {
			value += fmt.Sprintf("$%d, ", i*len(elemArglist)+j+1)
		}
		value = value[:len(value)-2] + ")"
		valueStrings = append(valueStrings, value)
	}
	stmt := fmt.Sprintf(q, strings.Join(valueStrings, ","))
	_, err := db.Exec(stmt, arglist...)
	return common.Wrap(err)
}

// SlicePtrsToSlice converts any []*T to []T
func SlicePtrsToSlice(slice interface{}) interface{} {
	v := reflect.ValueOf(slice)
	vSlice := reflect.MakeSlice(reflect.SliceOf(v.Type().Elem().Elem()), v.Len(), v.Cap())
	for i := 0; i < v.Len(); i++ {
		vSlice.Index(i).Set(v.Index(i).Elem())
	}
	return vSlice.Interface()
}

// BigIntMeddler encodes or decodes the field value to or from string
type BigIntMeddler struct{}

// PreRead is called before a Scan operation for fields that have the
// BigIntMeddler
func (b BigIntMeddler) PreRead(fieldAddr interface{}) (scanTarget interface{}, err error) {
	// give a pointer to a byte buffer to grab the raw data
	return new(string), nil
}

// PostRead is called after a Scan operation for fields that have the
// BigIntMeddler
func (b BigIntMeddler) PostRead(fieldPtr, scanTarget interface{}) error {
	ptr := scanTarget.(*string)
	if ptr == nil {
		return common.Wrap(fmt.Errorf("BigIntMeddler.PostRead: nil pointer"))
	}
	field := fieldPtr.(**big.Int)
	var ok bool
	*field, ok = new(big.Int).SetString(*ptr, 10)
	if !ok {
		return common.Wrap(fmt.Errorf("big.Int.SetString failed on \"%v\"", *ptr))
	}
	return nil
}

// PreWrite is called before an Insert or Update operation for fields that
// have the BigIntMeddler
func (b BigIntMeddler) PreWrite(fieldPtr interface{}) (saveValue interface{}, err error) {
	field := fieldPtr.(*big.Int)
	return field.String(), nil
}
