package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/congresoumg/portal-gateway/internal/domain/auth"
	mocks "github.com/congresoumg/portal-gateway/internal/mocks/auth"
	"github.com/congresoumg/portal-gateway/internal/ports"
	"github.com/congresoumg/portal-gateway/internal/testutil"
)

func newTestSSOService(t *testing.T, provider *mocks.MockSSOProvider, store *mocks.MemorySessionStore) *SSOService {
	t.Helper()
	sessions, err := NewSessionService(SessionServiceOptions{
		Backend:  mocks.NewMockBackendClient(),
		Sessions: store,
		Claims:   &mocks.MockClaimsMapper{},
		Now:      testutil.FixedTimeFunc(testutil.TestTime()),
	})
	require.NoError(t, err)

	svc, err := NewSSOService(SSOServiceOptions{Provider: provider, Sessions: sessions})
	require.NoError(t, err)
	return svc
}

func TestNewSSOService_RequiresDependencies(t *testing.T) {
	_, err := NewSSOService(SSOServiceOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SSOProvider is required")

	_, err = NewSSOService(SSOServiceOptions{Provider: mocks.NewMockSSOProvider()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SessionService is required")
}

func TestSSOService_BeginLogin(t *testing.T) {
	provider := mocks.NewMockSSOProvider()
	svc := newTestSSOService(t, provider, mocks.NewMemorySessionStore())

	result, err := svc.BeginLogin(context.Background(), "https://congreso.umg.edu.gt/auth/sso/callback")

	require.NoError(t, err)
	assert.Equal(t, "https://mock-idp/auth", result.AuthURL)
	assert.Equal(t, "state-1", result.State)
	assert.Equal(t, "nonce-1", result.Nonce)
}

func TestSSOService_BeginLogin_FreshStatePerFlow(t *testing.T) {
	provider := mocks.NewMockSSOProvider()
	svc := newTestSSOService(t, provider, mocks.NewMemorySessionStore())

	first, err := svc.BeginLogin(context.Background(), "https://congreso.umg.edu.gt/auth/sso/callback")
	require.NoError(t, err)
	second, err := svc.BeginLogin(context.Background(), "https://congreso.umg.edu.gt/auth/sso/callback")
	require.NoError(t, err)

	assert.NotEqual(t, first.State, second.State)
	assert.NotEqual(t, first.Nonce, second.Nonce)
}

func TestSSOService_BeginLogin_RequiresRedirectURL(t *testing.T) {
	svc := newTestSSOService(t, mocks.NewMockSSOProvider(), mocks.NewMemorySessionStore())

	_, err := svc.BeginLogin(context.Background(), "")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "redirect URL is required")
}

func TestSSOService_CompleteLogin(t *testing.T) {
	provider := mocks.NewMockSSOProvider()
	store := mocks.NewMemorySessionStore()
	svc := newTestSSOService(t, provider, store)

	sess, err := svc.CompleteLogin(context.Background(), CompleteLoginInput{
		Code:  "auth-code-1",
		State: "state-1",
		Nonce: "nonce-1",
	})

	require.NoError(t, err)
	assert.Equal(t, "staff-1", sess.Profile.ID)
	assert.Equal(t, "docente@umg.edu.gt", sess.Profile.Email)
	assert.Equal(t, domainauth.LevelStaff, sess.Profile.RoleLevel)
	assert.Equal(t, domainauth.ProfileStaff, sess.Profile.ProfileType)
	assert.Empty(t, sess.BackendToken)
	assert.Equal(t, 1, store.Len())
}

func TestSSOService_CompleteLogin_MissingParameters(t *testing.T) {
	svc := newTestSSOService(t, mocks.NewMockSSOProvider(), mocks.NewMemorySessionStore())

	_, err := svc.CompleteLogin(context.Background(), CompleteLoginInput{State: "s", Nonce: "n"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "authorization code is required")

	_, err = svc.CompleteLogin(context.Background(), CompleteLoginInput{Code: "c", Nonce: "n"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "state parameter is required")

	_, err = svc.CompleteLogin(context.Background(), CompleteLoginInput{Code: "c", State: "s"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nonce parameter is required")
}

func TestSSOService_CompleteLogin_ExchangeFailure(t *testing.T) {
	provider := mocks.NewMockSSOProvider()
	provider.ExchangeFunc = func(_ context.Context, _ ports.ExchangeInput) (ports.Identity, error) {
		return ports.Identity{}, errors.New("state mismatch")
	}
	store := mocks.NewMemorySessionStore()
	svc := newTestSSOService(t, provider, store)

	_, err := svc.CompleteLogin(context.Background(), CompleteLoginInput{
		Code:  "auth-code-1",
		State: "tampered",
		Nonce: "nonce-1",
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "exchange authorization code")
	assert.Equal(t, 0, store.Len())
}
