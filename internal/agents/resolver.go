package agents

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"fleetd/internal/db"
)

// deviceTokenBytes is the entropy behind each device token.
const deviceTokenBytes = 32

// Resolver maps an agent GUID onto its durable identity.
type Resolver struct {
	now      func() time.Time
	newToken func() (string, error)
}

// NewResolver creates a resolver using the wall clock and crypto/rand tokens.
func NewResolver() *Resolver {
	return &Resolver{
		now:      func() time.Time { return time.Now().UTC() },
		newToken: NewDeviceToken,
	}
}

// ResolveOrCreate returns the identity for reg.GUID, updating its
// descriptive fields when it already exists and creating it otherwise.
// Exactly one write is issued through q; the caller owns the transaction.
//
// An insert that loses a race with a concurrent first registration fails
// with db.ErrUniqueViolation; rerunning the call resolves to the winner's
// row and updates it.
func (r *Resolver) ResolveOrCreate(ctx context.Context, q db.Querier, reg Registration) (*Identity, bool, error) {
	now := r.now()

	existing, err := GetIdentityByGUID(ctx, q, reg.GUID)
	if err != nil {
		return nil, false, fmt.Errorf("lookup agent %q: %w", reg.GUID, err)
	}

	if existing != nil {
		if err := UpdateRegistration(ctx, q, existing.ID, reg, now); err != nil {
			return nil, false, err
		}
		existing.Hostname = reg.Hostname
		existing.SerialNumber = reg.Serial
		existing.Domain = reg.Domain
		existing.SiteCode = reg.SiteCode
		existing.AgentVersion = reg.Version
		existing.UpdatedAt = now.Truncate(time.Second)
		return existing, false, nil
	}

	token, err := r.newToken()
	if err != nil {
		return nil, false, fmt.Errorf("mint device token: %w", err)
	}

	a := &Identity{
		GUID:         reg.GUID,
		Hostname:     reg.Hostname,
		SerialNumber: reg.Serial,
		Domain:       reg.Domain,
		SiteCode:     reg.SiteCode,
		DeviceToken:  token,
		AgentVersion: reg.Version,
		Status:       StatusActive,
		IsOnline:     true,
		CreatedAt:    now.Truncate(time.Second),
		UpdatedAt:    now.Truncate(time.Second),
	}
	if err := InsertIdentity(ctx, q, a); err != nil {
		return nil, false, err
	}
	return a, true, nil
}

// NewDeviceToken returns 32 random bytes, base64url-encoded without padding.
func NewDeviceToken() (string, error) {
	raw := make([]byte, deviceTokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}
