package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/autoprint/print-service/internal/domain"
	"github.com/autoprint/print-service/internal/session"
	"github.com/autoprint/print-service/internal/store"
)

type loginRepoStub struct {
	store.Repository

	account *domain.Account
}

func (s *loginRepoStub) FindAccountByStudentID(ctx context.Context, studentID string) (*domain.Account, error) {
	if s.account == nil || s.account.StudentID != studentID {
		return nil, store.ErrAccountNotFound
	}
	return s.account, nil
}

func operatorAccount(t *testing.T, password string) *domain.Account {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}
	return &domain.Account{
		ID:           uuid.New(),
		StudentID:    "OP-1001",
		FullName:     "Counter Operator",
		Role:         "admin",
		IsActive:     true,
		PasswordHash: string(hash),
	}
}

func TestLogin_OpensResolvableSession(t *testing.T) {
	account := operatorAccount(t, "correct horse")
	repo := &loginRepoStub{account: account}
	sessions := session.NewMemoryStore(time.Hour)
	svc := NewService(repo, sessions, nil, 200, "BDT", time.Hour)

	token, got, err := svc.Login(context.Background(), domain.OperatorLoginRequest{StudentID: "OP-1001", Password: "correct horse"})
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	if got.ID != account.ID {
		t.Fatalf("expected account %s, got %s", account.ID, got.ID)
	}

	operatorID, err := svc.ResolveOperator(context.Background(), token)
	if err != nil {
		t.Fatalf("ResolveOperator returned error: %v", err)
	}
	if operatorID != account.ID {
		t.Fatalf("expected session to resolve to %s, got %s", account.ID, operatorID)
	}

	if err := svc.Logout(context.Background(), token); err != nil {
		t.Fatalf("Logout returned error: %v", err)
	}
	if _, err := svc.ResolveOperator(context.Background(), token); !errors.Is(err, session.ErrSessionNotFound) {
		t.Fatalf("expected session to be destroyed, got %v", err)
	}
}

func TestLogin_Rejections(t *testing.T) {
	account := operatorAccount(t, "correct horse")

	tests := []struct {
		name    string
		mutate  func(a *domain.Account)
		req     domain.OperatorLoginRequest
		wantErr error
	}{
		{
			name:    "wrong password",
			req:     domain.OperatorLoginRequest{StudentID: "OP-1001", Password: "battery staple"},
			wantErr: ErrInvalidCredentials,
		},
		{
			name:    "unknown student id",
			req:     domain.OperatorLoginRequest{StudentID: "OP-9999", Password: "correct horse"},
			wantErr: ErrInvalidCredentials,
		},
		{
			name:    "student role is not an operator",
			mutate:  func(a *domain.Account) { a.Role = "student" },
			req:     domain.OperatorLoginRequest{StudentID: "OP-1001", Password: "correct horse"},
			wantErr: ErrNotOperator,
		},
		{
			name:    "deactivated operator",
			mutate:  func(a *domain.Account) { a.IsActive = false },
			req:     domain.OperatorLoginRequest{StudentID: "OP-1001", Password: "correct horse"},
			wantErr: ErrNotOperator,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			candidate := *account
			if tt.mutate != nil {
				tt.mutate(&candidate)
			}
			repo := &loginRepoStub{account: &candidate}
			svc := NewService(repo, session.NewMemoryStore(time.Hour), nil, 200, "BDT", time.Hour)

			_, _, err := svc.Login(context.Background(), tt.req)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}
