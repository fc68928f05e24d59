package kransite

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials distinguishes a wrong email/password from an
// unexpected backend failure; the login form shows different messages
// for the two.
var ErrInvalidCredentials = errors.New("invalid email or password")

// authenticate verifies an admin's credentials against the stored
// bcrypt hash and records the sign-in time. Verification is delegated
// entirely to bcrypt; there is no secondary credential store.
func (a *App) authenticate(email, password string) (AdminUser, error) {
	user, err := a.Store.GetUserByEmail(normalizeEmail(email))
	if err != nil {
		if err == sql.ErrNoRows {
			return AdminUser{}, ErrInvalidCredentials
		}
		return AdminUser{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return AdminUser{}, ErrInvalidCredentials
	}
	if err := a.Store.TouchUserLogin(user.ID); err != nil {
		// Not worth failing the sign-in over.
		a.Echo.Logger.Warnf("touch last_login for %s: %v", user.Email, err)
	}
	return user, nil
}

// ensureAdminUser seeds the bootstrap admin account on first run.
// Existing deployments are left alone.
func (a *App) ensureAdminUser() error {
	n, err := a.Store.CountUsers()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	if a.Config.AdminPassword == "" {
		return fmt.Errorf("kransite: ADMIN_PASSWORD is required to create the first admin account")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(a.Config.AdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	user := AdminUser{
		Email:        normalizeEmail(a.Config.AdminEmail),
		PasswordHash: string(hash),
	}
	return a.Store.CreateUser(&user)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
