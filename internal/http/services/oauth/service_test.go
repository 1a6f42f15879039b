package oauth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	cachemem "github.com/samuvale95/swift-study-box-be/internal/cache/memory"
	"github.com/samuvale95/swift-study-box-be/internal/jwt"
	"github.com/samuvale95/swift-study-box-be/internal/oauth/providers"
	storemem "github.com/samuvale95/swift-study-box-be/internal/store/memory"
)

// fakeProvider scripts the provider behavior for orchestrator tests.
type fakeProvider struct {
	name        string
	exchangeErr error
	resolveErr  error
	identity    *providers.Identity

	exchanged []string
}

func (f *fakeProvider) Name() string        { return f.name }
func (f *fakeProvider) DisplayName() string { return f.name }
func (f *fakeProvider) IconURL() string     { return "" }
func (f *fakeProvider) AuthorizeURL(state string) string {
	return "https://provider.test/authorize?state=" + state
}

func (f *fakeProvider) Exchange(_ context.Context, code string) (*providers.TokenSet, error) {
	f.exchanged = append(f.exchanged, code)
	if f.exchangeErr != nil {
		return nil, f.exchangeErr
	}
	return &providers.TokenSet{AccessToken: "at"}, nil
}

func (f *fakeProvider) ResolveIdentity(context.Context, *providers.TokenSet) (*providers.Identity, error) {
	if f.resolveErr != nil {
		return nil, f.resolveErr
	}
	return f.identity, nil
}

func newTestService(t *testing.T, p *fakeProvider, requireState bool) (*Service, *storemem.UserRepository) {
	t.Helper()
	users := storemem.NewUserRepository()
	return NewService(Deps{
		Registry:     providers.NewRegistry(p),
		States:       NewStateStore(cachemem.New(time.Minute)),
		Resolver:     NewResolver(users),
		Users:        users,
		Issuer:       jwt.NewIssuer("test-secret", 30*time.Minute, 7*24*time.Hour),
		RequireState: requireState,
	}), users
}

func defaultIdentity() *providers.Identity {
	return &providers.Identity{
		Provider: "google", Subject: "sub-1",
		Email: "mario@gmail.com", EmailVerified: true, Name: "Mario Rossi",
	}
}

func TestStartUnknownProvider(t *testing.T) {
	svc, _ := newTestService(t, &fakeProvider{name: "google", identity: defaultIdentity()}, true)

	_, err := svc.Start(context.Background(), "facebook", "")
	require.ErrorIs(t, err, providers.ErrUnknownProvider)
}

func TestStartBuildsRedirect(t *testing.T) {
	svc, _ := newTestService(t, &fakeProvider{name: "google", identity: defaultIdentity()}, true)

	res, err := svc.Start(context.Background(), "google", "")
	require.NoError(t, err)
	require.NotEmpty(t, res.State)
	require.Equal(t, "https://provider.test/authorize?state="+res.State, res.AuthorizeURL)
}

func TestCallbackHappyPath(t *testing.T) {
	p := &fakeProvider{name: "google", identity: defaultIdentity()}
	svc, users := newTestService(t, p, true)

	start, err := svc.Start(context.Background(), "google", "")
	require.NoError(t, err)

	res, err := svc.Callback(context.Background(), CallbackRequest{
		Provider: "google", Code: "the-code", State: start.State,
	})
	require.NoError(t, err)
	require.NotEmpty(t, res.Pair.AccessToken)
	require.NotEmpty(t, res.Pair.RefreshToken)
	require.Equal(t, "mario@gmail.com", res.User.Email)
	require.Equal(t, []string{"the-code"}, p.exchanged)

	// Login is recorded
	u, err := users.GetByID(context.Background(), res.User.ID)
	require.NoError(t, err)
	require.NotNil(t, u.LastLoginAt)
}

func TestCallbackProviderDeniedWinsOverEverything(t *testing.T) {
	p := &fakeProvider{name: "google", identity: defaultIdentity()}
	svc, _ := newTestService(t, p, true)

	start, err := svc.Start(context.Background(), "google", "")
	require.NoError(t, err)

	_, err = svc.Callback(context.Background(), CallbackRequest{
		Provider: "google", Code: "the-code", State: start.State, Error: "access_denied",
	})
	require.ErrorIs(t, err, ErrProviderDenied)
	// The exchange never ran
	require.Empty(t, p.exchanged)
}

func TestCallbackUnknownProvider(t *testing.T) {
	svc, _ := newTestService(t, &fakeProvider{name: "google", identity: defaultIdentity()}, true)

	_, err := svc.Callback(context.Background(), CallbackRequest{
		Provider: "facebook", Code: "c", State: "s",
	})
	require.ErrorIs(t, err, providers.ErrUnknownProvider)
}

func TestCallbackMissingStateStrict(t *testing.T) {
	svc, _ := newTestService(t, &fakeProvider{name: "google", identity: defaultIdentity()}, true)

	_, err := svc.Callback(context.Background(), CallbackRequest{
		Provider: "google", Code: "the-code",
	})
	require.ErrorIs(t, err, ErrInvalidState)
}

func TestCallbackMissingStateRelaxed(t *testing.T) {
	svc, _ := newTestService(t, &fakeProvider{name: "google", identity: defaultIdentity()}, false)

	res, err := svc.Callback(context.Background(), CallbackRequest{
		Provider: "google", Code: "the-code",
	})
	require.NoError(t, err)
	require.NotEmpty(t, res.Pair.AccessToken)
}

func TestCallbackReplayedState(t *testing.T) {
	svc, _ := newTestService(t, &fakeProvider{name: "google", identity: defaultIdentity()}, true)

	start, err := svc.Start(context.Background(), "google", "")
	require.NoError(t, err)

	req := CallbackRequest{Provider: "google", Code: "the-code", State: start.State}
	_, err = svc.Callback(context.Background(), req)
	require.NoError(t, err)

	_, err = svc.Callback(context.Background(), req)
	require.ErrorIs(t, err, ErrInvalidState)
}

func TestCallbackStateBoundToOtherProvider(t *testing.T) {
	google := &fakeProvider{name: "google", identity: defaultIdentity()}
	apple := &fakeProvider{name: "apple", identity: defaultIdentity()}
	users := storemem.NewUserRepository()
	svc := NewService(Deps{
		Registry:     providers.NewRegistry(google, apple),
		States:       NewStateStore(cachemem.New(time.Minute)),
		Resolver:     NewResolver(users),
		Users:        users,
		Issuer:       jwt.NewIssuer("test-secret", time.Minute, time.Hour),
		RequireState: true,
	})

	start, err := svc.Start(context.Background(), "apple", "")
	require.NoError(t, err)

	_, err = svc.Callback(context.Background(), CallbackRequest{
		Provider: "google", Code: "c", State: start.State,
	})
	require.ErrorIs(t, err, ErrInvalidState)
}

func TestCallbackExchangeFailureSurfaces(t *testing.T) {
	p := &fakeProvider{
		name:        "google",
		exchangeErr: providers.ErrTokenExchangeFailed,
	}
	svc, _ := newTestService(t, p, true)

	start, err := svc.Start(context.Background(), "google", "")
	require.NoError(t, err)

	_, err = svc.Callback(context.Background(), CallbackRequest{
		Provider: "google", Code: "bad-code", State: start.State,
	})
	require.ErrorIs(t, err, providers.ErrTokenExchangeFailed)
}

func TestCallbackFailedExchangeConsumesState(t *testing.T) {
	p := &fakeProvider{name: "google", exchangeErr: errors.New("boom")}
	svc, _ := newTestService(t, p, true)

	start, err := svc.Start(context.Background(), "google", "")
	require.NoError(t, err)

	req := CallbackRequest{Provider: "google", Code: "c", State: start.State}
	_, err = svc.Callback(context.Background(), req)
	require.Error(t, err)

	// No automatic restart: the state is spent even though the flow failed
	p.exchangeErr = nil
	p.identity = defaultIdentity()
	_, err = svc.Callback(context.Background(), req)
	require.ErrorIs(t, err, ErrInvalidState)
}

func TestCallbackMissingCode(t *testing.T) {
	svc, _ := newTestService(t, &fakeProvider{name: "google", identity: defaultIdentity()}, true)

	start, err := svc.Start(context.Background(), "google", "")
	require.NoError(t, err)

	// No code means the provider was never contacted: the caller botched
	// the request, so the error must not look like an exchange failure.
	_, err = svc.Callback(context.Background(), CallbackRequest{
		Provider: "google", State: start.State,
	})
	require.ErrorIs(t, err, ErrMissingCode)
	require.NotErrorIs(t, err, providers.ErrTokenExchangeFailed)
}
