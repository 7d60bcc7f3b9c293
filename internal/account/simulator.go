// Package account holds the effect collaborators of the signup wizard.
package account

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wolfman30/career-journal-signup/internal/signup"
	"github.com/wolfman30/career-journal-signup/pkg/logging"
)

// ErrSimulatedFailure is returned when failure injection fires.
var ErrSimulatedFailure = errors.New("account: simulated failure")

const (
	OpCreateAccount = "create_account"
	OpUpdateProfile = "update_profile"
)

// SimulatorConfig configures a Simulator.
type SimulatorConfig struct {
	CreateLatency  time.Duration
	ProfileLatency time.Duration
	// FailureRate is the probability in [0,1] that an operation fails.
	FailureRate float64
	Logger      *logging.Logger
}

// Simulator stands in for the account backend. Each operation waits for its
// configured latency, logs the payload summary and succeeds unless a failure
// was injected.
type Simulator struct {
	createLatency  time.Duration
	profileLatency time.Duration
	failureRate    float64
	logger         *logging.Logger

	mu       sync.Mutex
	failNext int
	failWhen func(op string) bool

	creates atomic.Int64
	updates atomic.Int64
}

// NewSimulator creates a simulator. Negative latencies are treated as zero.
func NewSimulator(cfg SimulatorConfig) *Simulator {
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	return &Simulator{
		createLatency:  max(cfg.CreateLatency, 0),
		profileLatency: max(cfg.ProfileLatency, 0),
		failureRate:    min(max(cfg.FailureRate, 0), 1),
		logger:         cfg.Logger.Component("account"),
	}
}

// FailNext makes the next n operations fail.
func (s *Simulator) FailNext(n int) {
	s.mu.Lock()
	s.failNext = n
	s.mu.Unlock()
}

// FailWhen installs a predicate consulted on every operation. Nil clears it.
func (s *Simulator) FailWhen(fn func(op string) bool) {
	s.mu.Lock()
	s.failWhen = fn
	s.mu.Unlock()
}

// CreateAccount simulates registering the visitor.
func (s *Simulator) CreateAccount(ctx context.Context, data signup.UserSignupData) error {
	s.creates.Add(1)
	acct := data.Account
	if acct == nil {
		return fmt.Errorf("account: create account: no account data")
	}
	if err := s.run(ctx, OpCreateAccount, s.createLatency); err != nil {
		return err
	}
	s.logger.Info("account created",
		"signup_method", acct.Method,
		"send_reminder", acct.SendReminder,
		"utm_source", data.UTM.Source,
	)
	return nil
}

// UpdateProfile simulates saving the optional profile.
func (s *Simulator) UpdateProfile(ctx context.Context, data signup.UserSignupData) error {
	s.updates.Add(1)
	if err := s.run(ctx, OpUpdateProfile, s.profileLatency); err != nil {
		return err
	}
	var hasTitle, hasGoal bool
	if p := data.Profile; p != nil {
		hasTitle = p.JobTitle != nil
		hasGoal = p.CareerGoal != nil
	}
	s.logger.Info("profile updated", "has_job_title", hasTitle, "has_career_goal", hasGoal)
	return nil
}

// CreateCalls returns how many times CreateAccount was invoked.
func (s *Simulator) CreateCalls() int { return int(s.creates.Load()) }

// UpdateCalls returns how many times UpdateProfile was invoked.
func (s *Simulator) UpdateCalls() int { return int(s.updates.Load()) }

func (s *Simulator) run(ctx context.Context, op string, latency time.Duration) error {
	if latency > 0 {
		timer := time.NewTimer(latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return fmt.Errorf("account: %s: %w", op, ctx.Err())
		case <-timer.C:
		}
	}
	if s.shouldFail(op) {
		s.logger.Warn("simulated failure injected", "op", op)
		return fmt.Errorf("account: %s: %w", op, ErrSimulatedFailure)
	}
	return nil
}

func (s *Simulator) shouldFail(op string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNext > 0 {
		s.failNext--
		return true
	}
	if s.failWhen != nil && s.failWhen(op) {
		return true
	}
	return s.failureRate > 0 && rand.Float64() < s.failureRate
}

var _ signup.AccountService = (*Simulator)(nil)
