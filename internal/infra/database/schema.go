package database

import _ "embed"

// Schema is the bootstrap DDL applied by cmd/initdb.
//
//go:embed schema.sql
var Schema string
