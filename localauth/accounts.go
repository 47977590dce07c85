package localauth

import (
	"fmt"
	"os"
	"strings"

	"github.com/jrsteele09/portal-guard/roles"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
)

// Account is one administrative credential, bound to exactly one elevated role
type Account struct {
	Identifier string         `yaml:"identifier"`
	SecretHash string         `yaml:"secret_hash"` // bcrypt hash, never the secret itself
	Role       roles.RoleType `yaml:"role"`
}

type accountsFile struct {
	Accounts []Account `yaml:"accounts"`
}

// LoadAccounts reads the account table from a YAML file
func LoadAccounts(path string) ([]Account, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("[localauth.LoadAccounts] read %s: %w", path, err)
	}
	return ParseAccounts(data)
}

// ParseAccounts decodes and validates a YAML account table
func ParseAccounts(data []byte) ([]Account, error) {
	var file accountsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("[localauth.ParseAccounts] decode: %w", err)
	}
	return normaliseAccounts(file.Accounts)
}

// normaliseAccounts validates the table and returns a copy holding the
// normalised identifiers and canonical roles.
func normaliseAccounts(accounts []Account) ([]Account, error) {
	seen := make(map[string]struct{}, len(accounts))
	normalised := make([]Account, 0, len(accounts))
	for i, a := range accounts {
		id := normaliseIdentifier(a.Identifier)
		if id == "" {
			return nil, fmt.Errorf("[localauth] account %d: identifier is required", i)
		}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("[localauth] account %q: duplicate identifier", id)
		}
		seen[id] = struct{}{}

		role, err := roles.ParseRole(string(a.Role))
		if err != nil {
			return nil, fmt.Errorf("[localauth] account %q: %w", id, err)
		}
		if !role.IsAdministrative() {
			return nil, fmt.Errorf("[localauth] account %q: role %s is not administrative", id, role)
		}
		if _, err := bcrypt.Cost([]byte(a.SecretHash)); err != nil {
			return nil, fmt.Errorf("[localauth] account %q: secret_hash is not a bcrypt hash: %w", id, err)
		}
		normalised = append(normalised, Account{Identifier: id, SecretHash: a.SecretHash, Role: role})
	}
	return normalised, nil
}

// HashSecret produces the secret_hash value for an account table entry
func HashSecret(secret string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	return string(bytes), err
}

func checkSecret(secret, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret))
	return err == nil
}

func normaliseIdentifier(identifier string) string {
	return strings.ToLower(strings.TrimSpace(identifier))
}
