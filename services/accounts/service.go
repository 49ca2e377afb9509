package accounts

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/base64"
	"fmt"
	"time"

	_ "embed"

	"hobbyhub-backend/services/shiftkeys"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	_ "modernc.org/sqlite"
)

var tracer = otel.Tracer("services/accounts")

//go:embed schema.sql
var schema string

// Service stores rewards-site accounts with the password encrypted at
// rest. GetAccountsForUse hands out decrypted credentials, everything
// else only ever sees ciphertext.
type Service struct {
	db   *sql.DB
	aead cipher.AEAD
}

func NewService(database *sql.DB, secret string) (Service, error) {
	if secret == "" {
		return Service{}, fmt.Errorf("accounts: encryption secret must not be empty")
	}

	key := sha256.Sum256([]byte(secret))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return Service{}, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return Service{}, err
	}

	_, err = database.Exec(schema)
	if err != nil {
		return Service{}, err
	}

	return Service{db: database, aead: aead}, nil
}

func (s Service) encrypt(plaintext string) (string, error) {
	nonce := make([]byte, s.aead.NonceSize())
	_, err := rand.Read(nonce)
	if err != nil {
		return "", err
	}
	sealed := s.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (s Service) decrypt(encoded string) (string, error) {
	sealed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", err
	}
	if len(sealed) < s.aead.NonceSize() {
		return "", fmt.Errorf("accounts: ciphertext shorter than nonce")
	}
	nonce, ciphertext := sealed[:s.aead.NonceSize()], sealed[s.aead.NonceSize():]
	plaintext, err := s.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

func (s Service) AddAccount(ctx context.Context, email, password, service string) (int64, error) {
	ctx, span := tracer.Start(ctx, "AddAccount")
	defer span.End()

	encrypted, err := s.encrypt(password)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to encrypt password")
		return 0, err
	}

	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO shift_accounts (email, encrypted_password, service, created_at) VALUES (?, ?, ?, ?)`,
		email, encrypted, service, time.Now().UTC().Unix(),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to insert account")
		return 0, err
	}
	return res.LastInsertId()
}

func (s Service) RemoveAccount(ctx context.Context, id int64) error {
	ctx, span := tracer.Start(ctx, "RemoveAccount")
	defer span.End()

	res, err := s.db.ExecContext(ctx, `DELETE FROM shift_accounts WHERE id = ?`, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to delete account")
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("accounts: no account with id %d", id)
	}
	return nil
}

// ListAccounts returns accounts without their passwords, for display.
func (s Service) ListAccounts(ctx context.Context) ([]shiftkeys.Account, error) {
	ctx, span := tracer.Start(ctx, "ListAccounts")
	defer span.End()

	return s.queryAccounts(ctx, false)
}

// GetAccountsForUse returns every account with its password
// decrypted, in insertion order. Callers must not hold onto the
// result beyond one redemption attempt.
func (s Service) GetAccountsForUse(ctx context.Context) ([]shiftkeys.Account, error) {
	ctx, span := tracer.Start(ctx, "GetAccountsForUse")
	defer span.End()

	return s.queryAccounts(ctx, true)
}

func (s Service) queryAccounts(ctx context.Context, decrypt bool) ([]shiftkeys.Account, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, email, encrypted_password, service FROM shift_accounts ORDER BY id ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []shiftkeys.Account
	for rows.Next() {
		var account shiftkeys.Account
		var encrypted string
		err := rows.Scan(&account.Id, &account.Email, &encrypted, &account.Service)
		if err != nil {
			return nil, err
		}
		if decrypt {
			account.Password, err = s.decrypt(encrypted)
			if err != nil {
				return nil, fmt.Errorf("accounts: decrypt password for id %d: %w", account.Id, err)
			}
		}
		out = append(out, account)
	}
	return out, rows.Err()
}
