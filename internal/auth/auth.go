// Package auth guards the question endpoints with static API keys. Keys are
// configured as "key:subject:role|role" entries separated by commas.
package auth

import (
	"context"
	"fmt"
	"slices"
	"strings"
)

// RoleAsker may ask questions and read the schema and example catalog.
const RoleAsker = "asker"

// Identity is the caller behind an accepted API key.
type Identity struct {
	Subject string
	Roles   []string
}

func (i Identity) HasRole(role string) bool {
	return slices.Contains(i.Roles, role)
}

type APIKeyValidator interface {
	Validate(ctx context.Context, apiKey string) (Identity, bool)
}

// StaticAPIKeyValidator holds the keys read from SUPPLYSQL_AUTH_STATIC_KEYS.
type StaticAPIKeyValidator struct {
	keys map[string]Identity
}

func NewStaticAPIKeyValidator(keyList string) (*StaticAPIKeyValidator, error) {
	validator := &StaticAPIKeyValidator{keys: map[string]Identity{}}
	for _, entry := range strings.Split(keyList, ",") {
		if strings.TrimSpace(entry) == "" {
			continue
		}
		key, identity, err := parseKeyEntry(entry)
		if err != nil {
			return nil, err
		}
		if _, dup := validator.keys[key]; dup {
			return nil, fmt.Errorf("api key for %q is configured twice", identity.Subject)
		}
		validator.keys[key] = identity
	}
	return validator, nil
}

func (v *StaticAPIKeyValidator) Validate(_ context.Context, apiKey string) (Identity, bool) {
	identity, ok := v.keys[apiKey]
	return identity, ok
}

func parseKeyEntry(entry string) (string, Identity, error) {
	fields := strings.Split(strings.TrimSpace(entry), ":")
	if len(fields) != 3 {
		return "", Identity{}, fmt.Errorf("api key entry %q: want key:subject:role|role", entry)
	}
	key, subject := strings.TrimSpace(fields[0]), strings.TrimSpace(fields[1])
	if key == "" || subject == "" {
		return "", Identity{}, fmt.Errorf("api key entry %q: key and subject must not be empty", entry)
	}

	var roles []string
	for _, role := range strings.Split(fields[2], "|") {
		if role = strings.TrimSpace(role); role != "" && !slices.Contains(roles, role) {
			roles = append(roles, role)
		}
	}
	if len(roles) == 0 {
		return "", Identity{}, fmt.Errorf("api key entry %q: at least one role is required", entry)
	}
	slices.Sort(roles)
	return key, Identity{Subject: subject, Roles: roles}, nil
}
