package basic

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/andrebq/chainmail/principal"
	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/crypto/argon2"
)

type (
	PlainText []byte

	// Store keeps logins, salts and stretched passwords. The password
	// itself is never written anywhere.
	Store struct {
		db *sql.DB
	}

	UserNotFound struct {
		Login string
	}

	// kdf holds the argon2id cost used to stretch a password. It is stored
	// next to each hash, a stored hash is only reproducible with the exact
	// same values.
	kdf struct {
		Time    uint32
		Memory  uint32
		Threads uint8
	}
)

const (
	saltSize = 16
	keySize  = 32
)

var (
	ErrInvalidCredentials = errors.New("basic: invalid credentials")

	// 7 passes over 10 MB, close enough to 1 pass over 64 MB
	defaultKDF = kdf{Time: 7, Memory: 10 * 1024, Threads: 4}
)

func (u UserNotFound) Error() string {
	return fmt.Sprintf("user %v not found", u.Login)
}

func (p PlainText) Zero() {
	for i := range p {
		p[i] = 0
	}
}

// Open opens (creating it when needed) the user database stored under dir.
func Open(ctx context.Context, dir string) (*Store, error) {
	err := os.MkdirAll(dir, 0755)
	if err != nil {
		return nil, fmt.Errorf("unable to create directory %v to store users, cause %w", dir, err)
	}
	file := filepath.Join(dir, "users.db")
	conn, err := sql.Open("sqlite3", fmt.Sprintf("file:%v?_writable_schema=false&_journal=wal&mode=rwc", file))
	if err != nil {
		return nil, fmt.Errorf("unable to open %v, cause %v", file, err)
	}
	err = conn.PingContext(ctx)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("unable to ping user database %v, cause %v", file, err)
	}
	s := &Store{db: conn}
	err = s.Setup(ctx)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

// Setup creates the tables used by the store, it is safe to call many times
func (s *Store) Setup(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `create table if not exists users(user_id integer primary key autoincrement,
		login text not null unique,
		display_name text not null default '',
		roles text not null default '',
		salt blob not null,
		password blob not null,
		kdf_time integer not null,
		kdf_memory integer not null,
		kdf_threads integer not null)`)
	if err != nil {
		return fmt.Errorf("unable to create users table, cause %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Register adds a new user. entropy is used to generate the salt, when nil
// crypto/rand is used.
func (s *Store) Register(ctx context.Context, p principal.Principal, passwd PlainText, entropy io.Reader) error {
	if entropy == nil {
		entropy = rand.Reader
	}
	if p.Subject == "" || len(passwd) == 0 {
		return errors.New("basic: login and password are required")
	}
	salt := make([]byte, saltSize)
	_, err := io.ReadFull(entropy, salt)
	if err != nil {
		return fmt.Errorf("unable to generate salt, cause %w", err)
	}
	return s.insert(ctx, p, salt, defaultKDF, defaultKDF.stretch(passwd, salt))
}

func (s *Store) insert(ctx context.Context, p principal.Principal, salt []byte, params kdf, hash []byte) error {
	_, err := s.db.ExecContext(ctx, `insert into users(login, display_name, roles, salt, password, kdf_time, kdf_memory, kdf_threads)
		values (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.Subject, p.Name, strings.Join(p.Roles, ","), salt, hash, params.Time, params.Memory, params.Threads)
	if err != nil {
		return fmt.Errorf("unable to register user %v, cause %w", p.Subject, err)
	}
	return nil
}

// Verify checks passwd against the stored one. Unknown users and wrong
// passwords both give ErrInvalidCredentials.
func (s *Store) Verify(ctx context.Context, login string, passwd PlainText) (principal.Principal, error) {
	var p principal.Principal
	var roles string
	var salt, stored []byte
	var params kdf
	err := s.db.QueryRowContext(ctx, `select login, display_name, roles, salt, password, kdf_time, kdf_memory, kdf_threads
		from users where login = ?`, login).
		Scan(&p.Subject, &p.Name, &roles, &salt, &stored, &params.Time, &params.Memory, &params.Threads)
	if errors.Is(err, sql.ErrNoRows) {
		// burn the same amount of cpu as a real check
		defaultKDF.stretch(passwd, make([]byte, saltSize))
		return principal.Principal{}, ErrInvalidCredentials
	} else if err != nil {
		return principal.Principal{}, fmt.Errorf("unable to load user %v, cause %w", login, err)
	}
	if subtle.ConstantTimeCompare(params.stretch(passwd, salt), stored) != 1 {
		return principal.Principal{}, ErrInvalidCredentials
	}
	if roles != "" {
		p.Roles = strings.Split(roles, ",")
	}
	return p, nil
}

func (s *Store) Lookup(ctx context.Context, login string) (principal.Principal, error) {
	var p principal.Principal
	var roles string
	err := s.db.QueryRowContext(ctx, `select login, display_name, roles from users where login = ?`, login).
		Scan(&p.Subject, &p.Name, &roles)
	if errors.Is(err, sql.ErrNoRows) {
		return p, UserNotFound{Login: login}
	} else if err != nil {
		return p, fmt.Errorf("unable to load user %v, cause %w", login, err)
	}
	if roles != "" {
		p.Roles = strings.Split(roles, ",")
	}
	return p, nil
}

func (k kdf) stretch(passwd PlainText, salt []byte) []byte {
	return argon2.IDKey(passwd, salt, k.Time, k.Memory, k.Threads, keySize)
}
