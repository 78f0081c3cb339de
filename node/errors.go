package node

import "errors"

var (
	errReadDBHost = errors.New(
		"PostgreSQL.HostRead must be different than PostgreSQL.HostWrite.  " +
			"Leave HostRead empty to use the write server for reads")
	errConfigCopy = errors.New("unexpected type copying the configuration")
)
