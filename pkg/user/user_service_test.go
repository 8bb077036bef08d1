package user

import (
	"context"
	"testing"

	"github.com/agendazk/agendazk/internal/event_bus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupServiceTest(t *testing.T) (*UserServiceImpl, *StubUserRepository, *event_bus.EventBus) {
	t.Helper()
	repo := NewStubUserRepository()
	bus := event_bus.NewEventBus()
	return NewUserService(repo, bus), repo, bus
}

func TestUserService_Register(t *testing.T) {
	t.Run("should create user and publish event", func(t *testing.T) {
		// given
		service, _, bus := setupServiceTest(t)
		var published []event_bus.UserCreated
		event_bus.SubscribeTyped[event_bus.UserCreated](bus, event_bus.UserCreatedType, func(e event_bus.EventT[event_bus.UserCreated]) error {
			published = append(published, e.Data)
			return nil
		})

		// when
		created, err := service.Register(context.Background(), "device_abc", "  Zoe ")

		// then
		require.NoError(t, err)
		assert.Equal(t, "device_abc", created.Uid)
		assert.Equal(t, "Zoe", created.Username)
		assert.NotZero(t, created.Id)
		assert.Equal(t, []event_bus.UserCreated{{Uid: "device_abc", Username: "Zoe"}}, published)
	})

	t.Run("should rename an already registered device without publishing", func(t *testing.T) {
		// given
		service, _, bus := setupServiceTest(t)
		_, err := service.Register(context.Background(), "device_abc", "Zoe")
		require.NoError(t, err)
		publishedAgain := false
		bus.Subscribe(event_bus.UserCreatedType, func(event_bus.Event) error {
			publishedAgain = true
			return nil
		})

		// when
		renamed, err := service.Register(context.Background(), "device_abc", "Kim")

		// then
		require.NoError(t, err)
		assert.Equal(t, "Kim", renamed.Username)
		assert.False(t, publishedAgain)
		all, err := service.GetAllUsers(context.Background())
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})

	t.Run("should reject empty username", func(t *testing.T) {
		service, _, _ := setupServiceTest(t)

		_, err := service.Register(context.Background(), "device_abc", "   ")

		assert.ErrorIs(t, err, ErrInvalidUsername)
	})

	t.Run("should reject empty device id", func(t *testing.T) {
		service, _, _ := setupServiceTest(t)

		_, err := service.Register(context.Background(), " ", "Zoe")

		assert.ErrorIs(t, err, ErrInvalidUid)
	})

	t.Run("should reject username taken by another device ignoring case", func(t *testing.T) {
		service, _, _ := setupServiceTest(t)
		_, err := service.Register(context.Background(), "device_1", "Zoe")
		require.NoError(t, err)

		_, err = service.Register(context.Background(), "device_2", "zOE")

		assert.ErrorIs(t, err, ErrUsernameTaken)
	})
}

func TestUserService_CurrentUserOperations(t *testing.T) {
	service, _, _ := setupServiceTest(t)
	zoe, err := service.Register(context.Background(), "device_1", "Zoe")
	require.NoError(t, err)
	_, err = service.Register(context.Background(), "device_2", "Kim")
	require.NoError(t, err)
	ctx := WithUser(context.Background(), zoe)

	t.Run("GetCurrentUser", func(t *testing.T) {
		current, err := service.GetCurrentUser(ctx)
		require.NoError(t, err)
		assert.Equal(t, zoe.Uid, current.Uid)
	})

	t.Run("GetCurrentUser without user in context", func(t *testing.T) {
		_, err := service.GetCurrentUser(context.Background())
		assert.ErrorIs(t, err, ErrNoUser)
	})

	t.Run("UpdateUsername keeps own name available", func(t *testing.T) {
		updated, err := service.UpdateUsername(ctx, "ZOE")
		require.NoError(t, err)
		assert.Equal(t, "ZOE", updated.Username)
	})

	t.Run("UpdateUsername rejects other user's name", func(t *testing.T) {
		_, err := service.UpdateUsername(ctx, "kim")
		assert.ErrorIs(t, err, ErrUsernameTaken)
	})

	t.Run("IsUsernameAvailable", func(t *testing.T) {
		available, err := service.IsUsernameAvailable(ctx, "Kim")
		require.NoError(t, err)
		assert.False(t, available)

		available, err = service.IsUsernameAvailable(ctx, "Alex")
		require.NoError(t, err)
		assert.True(t, available)
	})

	t.Run("TouchLastActive", func(t *testing.T) {
		touched, err := service.TouchLastActive(ctx)
		require.NoError(t, err)
		assert.False(t, touched.LastActive.Before(zoe.LastActive))
	})

	t.Run("GetUserByUid unknown", func(t *testing.T) {
		_, err := service.GetUserByUid(context.Background(), "device_unknown")
		assert.ErrorIs(t, err, ErrUserNotFound)
	})
}
