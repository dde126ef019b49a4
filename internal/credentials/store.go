package credentials

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
)

const (
	DefaultLeaseTTL = 7200 * time.Second

	credentialsSource = "ZoneOrchestratorLease"
)

var (
	ErrDisabled = errors.New("endpoint is disabled when using assumed roles")
	ErrNotSet   = errors.New("aws credentials not set")
)

type Secrets struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
}

func (s Secrets) complete() bool {
	return s.AccessKeyID != "" && s.SecretAccessKey != "" && s.SessionToken != ""
}

type Lease struct {
	Secrets
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Store holds the single active credential lease shared by every workflow.
//
// Each lease schedules its own expiry when installed. A newer lease does not
// cancel the older expiry, so the older schedule still clears whatever lease
// is current when it fires.
type Store struct {
	mu           sync.RWMutex
	lease        *Lease
	ttl          time.Duration
	assumedRoles bool
	timers       map[uint64]*time.Timer
	timerSeq     uint64
	now          func() time.Time
}

func NewStore(ttl time.Duration, useAssumedRoles bool) *Store {
	if ttl <= 0 {
		ttl = DefaultLeaseTTL
	}
	return &Store{
		ttl:          ttl,
		assumedRoles: useAssumedRoles,
		timers:       make(map[uint64]*time.Timer),
		now:          time.Now,
	}
}

// AssumedRoles reports whether credentials come from per-tenant role assumption.
func (s *Store) AssumedRoles() bool {
	return s.assumedRoles
}

// Set installs caller-supplied secrets. It returns immediately; expiry runs in
// the background after the configured lease duration.
func (s *Store) Set(secrets Secrets) error {
	if s.assumedRoles {
		slog.Error("Credential endpoint is disabled due to assumed roles being enabled")
		return ErrDisabled
	}
	if !secrets.complete() {
		return errors.New("access key, secret key and session token are required")
	}

	lease := s.install(secrets, s.ttl)
	slog.Info("AWS credentials set", "expires_at", lease.ExpiresAt)
	return nil
}

func (s *Store) install(secrets Secrets, ttl time.Duration) Lease {
	now := s.now()
	lease := &Lease{
		Secrets:   secrets,
		IssuedAt:  now,
		ExpiresAt: now.Add(ttl),
	}

	s.mu.Lock()
	s.lease = lease
	s.timerSeq++
	id := s.timerSeq
	s.timers[id] = time.AfterFunc(ttl, func() { s.expire(id) })
	s.mu.Unlock()

	return *lease
}

// expire runs when the timer registered under id fires. It forgets the timer
// and clears whichever lease is current.
func (s *Store) expire(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.timers, id)
	if s.lease == nil {
		return
	}
	s.lease = nil
	slog.Info("AWS credentials expired and removed")
}

// Check fails with ErrNotSet when no complete, unexpired lease is held.
func (s *Store) Check() error {
	_, err := s.Current()
	return err
}

func (s *Store) Current() (Lease, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.lease == nil || !s.lease.complete() {
		return Lease{}, ErrNotSet
	}
	if !s.now().Before(s.lease.ExpiresAt) {
		return Lease{}, ErrNotSet
	}
	return *s.lease, nil
}

// Retrieve implements aws.CredentialsProvider so SDK clients read the active lease.
func (s *Store) Retrieve(ctx context.Context) (aws.Credentials, error) {
	lease, err := s.Current()
	if err != nil {
		return aws.Credentials{}, err
	}
	return aws.Credentials{
		AccessKeyID:     lease.AccessKeyID,
		SecretAccessKey: lease.SecretAccessKey,
		SessionToken:    lease.SessionToken,
		Source:          credentialsSource,
		CanExpire:       true,
		Expires:         lease.ExpiresAt,
	}, nil
}

// Close stops pending expiry timers. The current lease is left in place.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range s.timers {
		t.Stop()
	}
	clear(s.timers)
}
