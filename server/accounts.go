package server

import (
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	_ "github.com/lib/pq"
	"golang.org/x/crypto/nacl/secretbox"

	"github.com/Zenodotos/nowezdrowie/ewus"
)

// ErrAccountNotFound means that no operator account exists for the user
var ErrAccountNotFound = errors.New("no account for user")

// AccountStore keeps per-user eWUŚ operator credentials in a PostgreSQL
// database. Unlike a user password, the operator password cannot be stored as
// a hash: it has to be replayed into login envelopes, so it is encrypted at
// rest with a symmetric key derived from the configured secret.
type AccountStore struct {
	db  *sql.DB
	key [32]byte
}

// NewAccountStore opens the account database using the given connection
// string, deriving the encryption key from secret
func NewAccountStore(connStr string, secret string) (*AccountStore, error) {
	if secret == "" {
		return nil, errors.New("accounts: no secret configured for password encryption")
	}
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("accounts: error opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("accounts: error connecting to database: %w", err)
	}
	return &AccountStore{
		db:  db,
		key: sha256.Sum256([]byte(secret)),
	}, nil
}

// Close closes the underlying database
func (st *AccountStore) Close() error {
	return st.db.Close()
}

// Credentials returns the operator credentials stored for the given user,
// with the password decrypted
func (st *AccountStore) Credentials(username string) (ewus.Credentials, error) {
	row := st.db.QueryRow(
		`SELECT domain_code, ewus_login, ewus_password, operator_type, clinician_id, provider_id
		 FROM ewus_accounts WHERE username=$1`, username)
	var c ewus.Credentials
	var encrypted string
	var operatorType, clinicianID, providerID sql.NullString
	err := row.Scan(&c.Domain, &c.Login, &encrypted, &operatorType, &clinicianID, &providerID)
	if err == sql.ErrNoRows {
		return ewus.Credentials{}, ErrAccountNotFound
	}
	if err != nil {
		return ewus.Credentials{}, fmt.Errorf("accounts: %w", err)
	}
	c.Password, err = st.decrypt(encrypted)
	if err != nil {
		return ewus.Credentials{}, fmt.Errorf("accounts: could not decrypt password for %s: %w", username, err)
	}
	if operatorType.Valid {
		c.Type = ewus.OperatorType(operatorType.String)
	}
	if clinicianID.Valid {
		c.ClinicianID = clinicianID.String
	}
	if providerID.Valid {
		c.ProviderID = providerID.String
	}
	return c, nil
}

// SaveCredentials stores the operator credentials for the given user,
// replacing any existing record
func (st *AccountStore) SaveCredentials(username string, c ewus.Credentials) error {
	encrypted, err := st.encrypt(c.Password)
	if err != nil {
		return fmt.Errorf("accounts: could not encrypt password: %w", err)
	}
	_, err = st.db.Exec(
		`INSERT INTO ewus_accounts (username, domain_code, ewus_login, ewus_password, operator_type, clinician_id, provider_id)
		 VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), NULLIF($7, ''))
		 ON CONFLICT (username) DO UPDATE SET
		   domain_code=EXCLUDED.domain_code, ewus_login=EXCLUDED.ewus_login,
		   ewus_password=EXCLUDED.ewus_password, operator_type=EXCLUDED.operator_type,
		   clinician_id=EXCLUDED.clinician_id, provider_id=EXCLUDED.provider_id`,
		username, c.Domain, c.Login, encrypted, string(c.Type), c.ClinicianID, c.ProviderID)
	if err != nil {
		return fmt.Errorf("accounts: %w", err)
	}
	return nil
}

func (st *AccountStore) encrypt(plaintext string) (string, error) {
	var nonce [24]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", err
	}
	box := secretbox.Seal(nonce[:], []byte(plaintext), &nonce, &st.key)
	return base64.StdEncoding.EncodeToString(box), nil
}

func (st *AccountStore) decrypt(encoded string) (string, error) {
	box, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", err
	}
	if len(box) < 24 {
		return "", errors.New("ciphertext too short")
	}
	var nonce [24]byte
	copy(nonce[:], box[:24])
	plaintext, ok := secretbox.Open(nil, box[24:], &nonce, &st.key)
	if !ok {
		return "", errors.New("could not decrypt: wrong secret or corrupt record")
	}
	return string(plaintext), nil
}
