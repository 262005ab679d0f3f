package server

import (
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteDataStore is a persistent DataStore backed by a SQLite database: a
// one-row-per-address table per space, so a server's holding registers and
// coils survive a restart. It behaves like SequentialDataStore on reads
// (addresses outside the configured size still validate and read as
// zero/false) but durably stores every write.
type SQLiteDataStore struct {
	mu sync.Mutex
	db *sql.DB

	sizes map[AddressSpace]uint16
}

// OpenSQLiteDataStore opens (creating if needed) a SQLite database at path
// and prepares one table per address space, sized per sizes.
func OpenSQLiteDataStore(path string, sizes map[AddressSpace]uint16) (*SQLiteDataStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("modbus/server: open sqlite datastore: %w", err)
	}
	s := &SQLiteDataStore{db: db, sizes: sizes}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteDataStore) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS coils (address INTEGER PRIMARY KEY, value INTEGER NOT NULL)`,
		`CREATE TABLE IF NOT EXISTS discrete_inputs (address INTEGER PRIMARY KEY, value INTEGER NOT NULL)`,
		`CREATE TABLE IF NOT EXISTS holding_registers (address INTEGER PRIMARY KEY, value INTEGER NOT NULL)`,
		`CREATE TABLE IF NOT EXISTS input_registers (address INTEGER PRIMARY KEY, value INTEGER NOT NULL)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("modbus/server: migrate sqlite datastore: %w", err)
		}
	}
	return nil
}

// Close releases the underlying database handle.
func (s *SQLiteDataStore) Close() error { return s.db.Close() }

func (s *SQLiteDataStore) table(space AddressSpace) (string, bool) {
	switch space {
	case Coils:
		return "coils", true
	case DiscreteInputs:
		return "discrete_inputs", true
	case HoldingRegisters:
		return "holding_registers", true
	case InputRegisters:
		return "input_registers", true
	default:
		return "", false
	}
}

func (s *SQLiteDataStore) Validate(space AddressSpace, addr, count uint16) bool {
	if count == 0 {
		return false
	}
	if _, ok := s.table(space); !ok {
		return false
	}
	n, ok := s.sizes[space]
	if !ok {
		return true
	}
	return int(addr)+int(count) <= int(n)
}

func (s *SQLiteDataStore) AddressBounds(space AddressSpace) (uint16, uint16) {
	n, ok := s.sizes[space]
	if !ok || n == 0 {
		return 0, 0
	}
	return 0, n - 1
}

func (s *SQLiteDataStore) GetBits(space AddressSpace, addr, count uint16) ([]bool, error) {
	table, ok := s.table(space)
	if !ok || (space != Coils && space != DiscreteInputs) {
		return nil, dataStoreErrorf("space %v is not bit-valued", space)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]bool, count)
	for i := uint16(0); i < count; i++ {
		var v int
		err := s.db.QueryRow(fmt.Sprintf("SELECT value FROM %s WHERE address = ?", table), int(addr)+int(i)).Scan(&v)
		if err != nil && err != sql.ErrNoRows {
			return nil, fmt.Errorf("modbus/server: read %s[%d]: %w", table, addr+i, err)
		}
		out[i] = v != 0
	}
	return out, nil
}

func (s *SQLiteDataStore) SetBits(space AddressSpace, addr uint16, values []bool) error {
	if space != Coils {
		return dataStoreErrorf("space %v is not writable", space)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, v := range values {
		iv := 0
		if v {
			iv = 1
		}
		if _, err := s.db.Exec(`INSERT INTO coils(address, value) VALUES (?, ?) ON CONFLICT(address) DO UPDATE SET value = excluded.value`, int(addr)+i, iv); err != nil {
			return fmt.Errorf("modbus/server: write coils[%d]: %w", addr+uint16(i), err)
		}
	}
	return nil
}

func (s *SQLiteDataStore) GetRegisters(space AddressSpace, addr, count uint16) ([]uint16, error) {
	table, ok := s.table(space)
	if !ok || (space != HoldingRegisters && space != InputRegisters) {
		return nil, dataStoreErrorf("space %v is not register-valued", space)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]uint16, count)
	for i := uint16(0); i < count; i++ {
		var v int
		err := s.db.QueryRow(fmt.Sprintf("SELECT value FROM %s WHERE address = ?", table), int(addr)+int(i)).Scan(&v)
		if err != nil && err != sql.ErrNoRows {
			return nil, fmt.Errorf("modbus/server: read %s[%d]: %w", table, addr+i, err)
		}
		out[i] = uint16(v)
	}
	return out, nil
}

func (s *SQLiteDataStore) SetRegisters(space AddressSpace, addr uint16, values []uint16) error {
	if space != HoldingRegisters {
		return dataStoreErrorf("space %v is not writable", space)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, v := range values {
		if _, err := s.db.Exec(`INSERT INTO holding_registers(address, value) VALUES (?, ?) ON CONFLICT(address) DO UPDATE SET value = excluded.value`, int(addr)+i, int(v)); err != nil {
			return fmt.Errorf("modbus/server: write holding_registers[%d]: %w", addr+uint16(i), err)
		}
	}
	return nil
}
