package repositories

import (
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"

	"task-chat/errors"
)

func Test_Create_And_Get_User(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)

	repository := NewUserRepository(db)
	id, err := repository.CreateUser("alice@example.com", "hashed-secret", "Alice")
	req.NoError(err)
	req.NotEmpty(id)

	user, err := repository.GetUserByEmail("alice@example.com")
	req.NoError(err)
	req.Equal(id, user.ID)
	req.Equal("Alice", user.DisplayName)
	req.Equal("hashed-secret", user.PasswordHash)
	req.Equal([]string{"user"}, user.Roles)
}

func Test_Create_User_Twice(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)

	repository := NewUserRepository(db)
	_, err := repository.CreateUser("alice@example.com", "hash-1", "Alice")
	req.NoError(err)

	_, err = repository.CreateUser("alice@example.com", "hash-2", "Alice again")
	req.ErrorIs(err, errors.ErrUserAlreadyExists)
}

func Test_Get_Unknown_User(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)

	repository := NewUserRepository(db)
	_, err := repository.GetUserByEmail("ghost@example.com")
	req.ErrorIs(err, badger.ErrKeyNotFound)
}
