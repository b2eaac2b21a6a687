package sql

import (
	"github.com/bsv-blockchain/escrowledger/errors"
	"github.com/bsv-blockchain/escrowledger/util/usql"
)

// Amounts are decimal strings: NUMERIC(78,0) holds any uint256 on postgres, sqlite keeps them as TEXT.
// Nonces are 32 byte big-endian blobs so byte order equals numeric order on both engines.

func createPostgresSchema(db *usql.DB) error {
	statements := []struct {
		name string
		sql  string
	}{
		{"accounts", `
		CREATE TABLE IF NOT EXISTS accounts (
			 address    BYTEA PRIMARY KEY
			,balance    NUMERIC(78,0) NOT NULL DEFAULT 0
			,reserved   NUMERIC(78,0) NOT NULL DEFAULT 0
			,updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
			,CHECK (reserved <= balance)
		);`},
		{"reservations", `
		CREATE TABLE IF NOT EXISTS reservations (
			 owner         BYTEA NOT NULL
			,nonce         BYTEA NOT NULL
			,recipient     BYTEA NOT NULL
			,executor      BYTEA NOT NULL
			,amount        NUMERIC(78,0) NOT NULL
			,fee           NUMERIC(78,0) NOT NULL
			,expiry_block  NUMERIC(20,0) NOT NULL
			,created_block NUMERIC(20,0) NOT NULL
			,status        SMALLINT NOT NULL
			,inserted_at   TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
			,PRIMARY KEY (owner, nonce)
		);`},
		{"transfer_nonces", `
		CREATE TABLE IF NOT EXISTS transfer_nonces (
			 owner       BYTEA NOT NULL
			,nonce       BYTEA NOT NULL
			,inserted_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
			,PRIMARY KEY (owner, nonce)
		);`},
		{"ledger_meta", `
		CREATE TABLE IF NOT EXISTS ledger_meta (
			 key   TEXT PRIMARY KEY
			,value TEXT NOT NULL
		);`},
		{"idx_reservations_status", `CREATE INDEX IF NOT EXISTS idx_reservations_status ON reservations (status) WHERE status = 1;`},
	}

	for _, stmt := range statements {
		if _, err := db.Exec(stmt.sql); err != nil {
			_ = db.Close()
			return errors.NewStorageError("could not create %s", stmt.name, err)
		}
	}

	return nil
}

func createSqliteSchema(db *usql.DB) error {
	statements := []struct {
		name string
		sql  string
	}{
		{"accounts", `
		CREATE TABLE IF NOT EXISTS accounts (
			 address    BLOB PRIMARY KEY
			,balance    TEXT NOT NULL DEFAULT '0'
			,reserved   TEXT NOT NULL DEFAULT '0'
			,updated_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
		);`},
		{"reservations", `
		CREATE TABLE IF NOT EXISTS reservations (
			 owner         BLOB NOT NULL
			,nonce         BLOB NOT NULL
			,recipient     BLOB NOT NULL
			,executor      BLOB NOT NULL
			,amount        TEXT NOT NULL
			,fee           TEXT NOT NULL
			,expiry_block  TEXT NOT NULL
			,created_block TEXT NOT NULL
			,status        INTEGER NOT NULL
			,inserted_at   TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
			,PRIMARY KEY (owner, nonce)
		);`},
		{"transfer_nonces", `
		CREATE TABLE IF NOT EXISTS transfer_nonces (
			 owner       BLOB NOT NULL
			,nonce       BLOB NOT NULL
			,inserted_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
			,PRIMARY KEY (owner, nonce)
		);`},
		{"ledger_meta", `
		CREATE TABLE IF NOT EXISTS ledger_meta (
			 key   TEXT PRIMARY KEY
			,value TEXT NOT NULL
		);`},
	}

	for _, stmt := range statements {
		if _, err := db.Exec(stmt.sql); err != nil {
			_ = db.Close()
			return errors.NewStorageError("could not create %s", stmt.name, err)
		}
	}

	return nil
}
