package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/samuvale95/swift-study-box-be/internal/domain/repository"
	"github.com/samuvale95/swift-study-box-be/internal/jwt"
	storemem "github.com/samuvale95/swift-study-box-be/internal/store/memory"
)

func newTestService() (*Service, *storemem.UserRepository) {
	users := storemem.NewUserRepository()
	return NewService(Deps{
		Users:  users,
		Issuer: jwt.NewIssuer("test-secret", 30*time.Minute, 7*24*time.Hour),
	}), users
}

func TestRegisterAndLogin(t *testing.T) {
	svc, _ := newTestService()

	res, err := svc.Register(context.Background(), "mario@example.com", "Mario", "correct horse")
	require.NoError(t, err)
	require.NotEmpty(t, res.Pair.AccessToken)
	require.Equal(t, "mario@example.com", res.User.Email)
	require.True(t, res.User.IsActive)
	require.False(t, res.User.IsVerified)
	require.Equal(t, "it", res.User.Preferences.Language)

	login, err := svc.Login(context.Background(), "mario@example.com", "correct horse")
	require.NoError(t, err)
	require.Equal(t, res.User.ID, login.User.ID)
	require.NotNil(t, login.User.LastLoginAt)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.Register(context.Background(), "mario@example.com", "Mario", "password-1")
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), "mario@example.com", "Other", "password-2")
	require.ErrorIs(t, err, ErrEmailTaken)
}

func TestLoginWrongPassword(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.Register(context.Background(), "mario@example.com", "Mario", "correct horse")
	require.NoError(t, err)

	_, err = svc.Login(context.Background(), "mario@example.com", "wrong horse")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginUnknownEmail(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.Login(context.Background(), "nobody@example.com", "whatever")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginOAuthOnlyAccount(t *testing.T) {
	svc, users := newTestService()

	provider, subject := "google", "sub-1"
	_, err := users.Create(context.Background(), repository.CreateUserInput{
		Email:          "mario@gmail.com",
		Name:           "Mario",
		IsActive:       true,
		IsVerified:     true,
		OAuthProvider:  &provider,
		OAuthSubjectID: &subject,
	})
	require.NoError(t, err)

	_, err = svc.Login(context.Background(), "mario@gmail.com", "any password")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRefresh(t *testing.T) {
	svc, _ := newTestService()

	res, err := svc.Register(context.Background(), "mario@example.com", "Mario", "correct horse")
	require.NoError(t, err)

	next, err := svc.Refresh(context.Background(), res.Pair.RefreshToken)
	require.NoError(t, err)
	require.NotEmpty(t, next.Pair.AccessToken)
	require.Equal(t, res.User.ID, next.User.ID)
}

func TestRefreshRejectsAccessToken(t *testing.T) {
	svc, _ := newTestService()

	res, err := svc.Register(context.Background(), "mario@example.com", "Mario", "correct horse")
	require.NoError(t, err)

	_, err = svc.Refresh(context.Background(), res.Pair.AccessToken)
	require.ErrorIs(t, err, jwt.ErrInvalidToken)
}

func TestRefreshRejectsDeletedUser(t *testing.T) {
	issuer := jwt.NewIssuer("test-secret", time.Minute, time.Hour)
	svc := NewService(Deps{Users: storemem.NewUserRepository(), Issuer: issuer})

	// Token for a subject that does not exist in the store
	pair, err := issuer.IssuePair("ghost-user", "ghost@example.com")
	require.NoError(t, err)

	_, err = svc.Refresh(context.Background(), pair.RefreshToken)
	require.ErrorIs(t, err, jwt.ErrInvalidToken)
}
