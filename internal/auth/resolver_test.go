package auth

import (
	"context"
	"testing"
	"time"

	"ripple/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-that-is-long-enough-for-hs256"

type mockUsers struct {
	mock.Mock
}

func (m *mockUsers) GetByID(ctx context.Context, id uint) (*models.User, error) {
	args := m.Called(ctx, id)
	if u, ok := args.Get(0).(*models.User); ok {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

func newResolver(t *testing.T) (*Resolver, *mockUsers, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	users := &mockUsers{}
	return NewResolver(NewTokens(testSecret, time.Hour), users, rdb), users, mr
}

func TestResolve(t *testing.T) {
	r, users, _ := newResolver(t)
	alice := &models.User{ID: 1, Username: "alice"}
	users.On("GetByID", mock.Anything, uint(1)).Return(alice, nil)
	users.On("GetByID", mock.Anything, uint(2)).Return(nil, models.NewNotFoundError("User", 2))

	token, _, err := r.Tokens().Issue(1, "alice")
	require.NoError(t, err)
	ghost, _, err := r.Tokens().Issue(2, "ghost")
	require.NoError(t, err)

	otherSecret, _, err := NewTokens("another-secret-that-is-long-enough", time.Hour).Issue(1, "alice")
	require.NoError(t, err)
	expired, _, err := NewTokens(testSecret, -time.Minute).Issue(1, "alice")
	require.NoError(t, err)

	tests := []struct {
		name       string
		credential string
		wantUser   *models.User
	}{
		{"bare token", token, alice},
		{"bearer header", "Bearer " + token, alice},
		{"empty", "", nil},
		{"garbage", "not-a-jwt", nil},
		{"wrong secret", otherSecret, nil},
		{"expired", expired, nil},
		{"deleted user", ghost, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, err := r.Resolve(context.Background(), tt.credential)
			if tt.wantUser == nil {
				assert.True(t, models.IsCode(err, models.CodeUnauthorized), "got %v", err)
				assert.Nil(t, user)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantUser.ID, user.ID)
		})
	}
}

func TestParse_RejectsForeignIssuerAndNoneAlg(t *testing.T) {
	tokens := NewTokens(testSecret, time.Hour)

	foreign := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "1",
		"iss": "someone-else",
		"aud": Audience,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	raw, err := foreign.SignedString([]byte(testSecret))
	require.NoError(t, err)
	_, err = tokens.Parse(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"sub": "1",
		"iss": Issuer,
		"aud": Audience,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	raw, err = none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = tokens.Parse(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRevoke(t *testing.T) {
	r, users, mr := newResolver(t)
	users.On("GetByID", mock.Anything, uint(1)).Return(&models.User{ID: 1}, nil)

	token, claims, err := r.Tokens().Issue(1, "alice")
	require.NoError(t, err)

	_, got, err := r.Authenticate(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, claims.JTI, got.JTI)

	require.NoError(t, r.Revoke(context.Background(), got))
	assert.True(t, mr.Exists("blacklist:"+claims.JTI))

	_, err = r.Resolve(context.Background(), token)
	assert.True(t, models.IsCode(err, models.CodeUnauthorized))
}

func TestTickets_SingleUse(t *testing.T) {
	r, users, mr := newResolver(t)
	users.On("GetByID", mock.Anything, uint(5)).Return(&models.User{ID: 5, Username: "eve"}, nil)

	ticket, err := r.IssueTicket(context.Background(), 5)
	require.NoError(t, err)
	assert.True(t, mr.TTL("ws_ticket:"+ticket) > 0)

	user, err := r.RedeemTicket(context.Background(), ticket)
	require.NoError(t, err)
	assert.Equal(t, uint(5), user.ID)

	_, err = r.RedeemTicket(context.Background(), ticket)
	assert.True(t, models.IsCode(err, models.CodeUnauthorized))
}

func TestTickets_ExpireAndRequireRedis(t *testing.T) {
	r, _, mr := newResolver(t)
	ticket, err := r.IssueTicket(context.Background(), 5)
	require.NoError(t, err)
	mr.FastForward(TicketTTL + time.Second)
	_, err = r.RedeemTicket(context.Background(), ticket)
	assert.True(t, models.IsCode(err, models.CodeUnauthorized))

	noRedis := NewResolver(NewTokens(testSecret, time.Hour), &mockUsers{}, nil)
	_, err = noRedis.IssueTicket(context.Background(), 5)
	assert.ErrorIs(t, err, ErrTicketsUnavailable)
}
