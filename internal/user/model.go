package user

import (
	"errors"
	"strconv"

	"github.com/nekogravitycat/record-console/internal/record"
	"github.com/nekogravitycat/record-console/internal/role"
)

var (
	ErrNotFound           = errors.New("user not found")
	ErrUsernameTaken      = errors.New("username already used")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrWrongPassword      = errors.New("current password is incorrect")
	ErrPasswordTooShort   = errors.New("password is too short")
	ErrManagerExists      = errors.New("a manager account already exists")
)

// Account is a users record seen from the authentication side.
type Account struct {
	ID           int64
	Username     string
	Name         string
	Surname      string
	Role         role.Role
	PasswordHash string
}

// NewAccount is the input for creating an account. Password is plain text.
type NewAccount struct {
	Username string
	Name     string
	Surname  string
	Role     string
	Password string
}

func (a NewAccount) fields(hash string) record.Fields {
	return record.Fields{
		"username":      a.Username,
		"name":          a.Name,
		"surname":       a.Surname,
		"role":          a.Role,
		"password_hash": hash,
	}
}

func accountFromRow(r record.Row) Account {
	return Account{
		ID:           r.ID,
		Username:     r.Fields["username"],
		Name:         r.Fields["name"],
		Surname:      r.Fields["surname"],
		Role:         role.Role(r.Fields["role"]),
		PasswordHash: r.Fields["password_hash"],
	}
}

func (a Account) String() string {
	return a.Username + "#" + strconv.FormatInt(a.ID, 10)
}
