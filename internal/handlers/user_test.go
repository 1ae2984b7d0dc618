package handlers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/calcboard/internal/repository/memory"
)

func Test_UserHandlers(t *testing.T) {
	t.Run("me requires session", func(t *testing.T) {
		srv := newTestServer(t, memory.NewStorage(), Options{})

		for _, opt := range []requestOption{
			withHeader("X-Nothing", "1"),
			withAccess("not-a-token"),
			withHeader("Authorization", "Basic bms6cGFzcw=="),
		} {
			resp := do(t, srv, http.MethodGet, "/api/users/me", "", opt)

			require.Equalf(t, http.StatusUnauthorized, resp.code, "not expected code. Body: %s", resp.body)
			require.JSONEq(t, invalidSession, resp.body)
		}
	})

	t.Run("me ok", func(t *testing.T) {
		srv := newTestServer(t, memory.NewStorage(), Options{})
		access, _ := register(t, srv, "nk")

		resp := do(t, srv, http.MethodGet, "/api/users/me", "", withAccess(access))

		require.Equalf(t, http.StatusOK, resp.code, "not expected code. Body: %s", resp.body)
		data := resp.json(t)
		require.Equal(t, "nk", data["username"])
		require.Equal(t, "Flow", data["first_name"])
		require.Equal(t, "Tester", data["last_name"])
	})

	t.Run("refresh token is not a session", func(t *testing.T) {
		srv := newTestServer(t, memory.NewStorage(), Options{})
		_, refresh := register(t, srv, "nk")

		resp := do(t, srv, http.MethodGet, "/api/users/me", "", withAccess(refresh.Value))

		require.Equal(t, http.StatusUnauthorized, resp.code)
		require.JSONEq(t, invalidSession, resp.body)
	})

	t.Run("update profile", func(t *testing.T) {
		srv := newTestServer(t, memory.NewStorage(), Options{})
		access, _ := register(t, srv, "nk")
		register(t, srv, "other")

		resp := do(t, srv, http.MethodPut, "/api/users/me", `{"first_name": "Updated", "email": "new@example.com"}`, withAccess(access))

		require.Equalf(t, http.StatusOK, resp.code, "not expected code. Body: %s", resp.body)
		data := resp.json(t)
		require.Equal(t, "Updated", data["first_name"])
		require.Equal(t, "Tester", data["last_name"], "missing field should keep its value")
		require.Equal(t, "new@example.com", data["email"])

		taken := do(t, srv, http.MethodPut, "/api/users/me", `{"email": "other@example.com"}`, withAccess(access))
		require.Equalf(t, http.StatusConflict, taken.code, "email of other user can't be taken. Body: %s", taken.body)

		invalid := do(t, srv, http.MethodPut, "/api/users/me", `{"email": "nope", "last_name": ""}`, withAccess(access))
		require.Equalf(t, http.StatusBadRequest, invalid.code, "not expected code. Body: %s", invalid.body)
		require.JSONEq(t, `{
			"error": "validation_failed",
			"message": "Request validation failed",
			"fields": {
				"email": "Enter a valid email address",
				"last_name": "Value is too short (minimum 1)"
			}
		}`, invalid.body)
	})

	t.Run("change password", func(t *testing.T) {
		srv := newTestServer(t, memory.NewStorage(), Options{})
		access, _ := register(t, srv, "nk")

		change := func(current, password, confirm string) response {
			body := `{"current_password": "` + current + `", "new_password": "` + password + `", "confirm_new_password": "` + confirm + `"}`
			return do(t, srv, http.MethodPost, "/api/users/me/password", body, withAccess(access))
		}

		resp := change("WrongPass123!", "NewerPass123!", "NewerPass123!")
		require.Equalf(t, http.StatusBadRequest, resp.code, "not expected code. Body: %s", resp.body)
		require.JSONEq(t, `{"error": "service_error", "message": "Current password is incorrect"}`, resp.body)

		resp = change(strongPassword, "Different123!", "Mismatch456!")
		require.Equalf(t, http.StatusUnprocessableEntity, resp.code, "not expected code. Body: %s", resp.body)
		require.Equal(t, []any{"New password and confirmation do not match"}, resp.json(t)["messages"])

		resp = change(strongPassword, strongPassword, strongPassword)
		require.Equalf(t, http.StatusUnprocessableEntity, resp.code, "not expected code. Body: %s", resp.body)
		require.Equal(t, []any{"New password must be different from current password"}, resp.json(t)["messages"])

		resp = change(strongPassword, "NewerPass123!", "NewerPass123!")
		require.Equalf(t, http.StatusOK, resp.code, "not expected code. Body: %s", resp.body)
		require.JSONEq(t, `{"message": "Password updated successfully"}`, resp.body)

		old := do(t, srv, http.MethodPost, "/api/auth/login", loginBody("nk", strongPassword))
		require.Equal(t, http.StatusUnauthorized, old.code, "old password must not work anymore")

		fresh := do(t, srv, http.MethodPost, "/api/auth/login", loginBody("nk", "NewerPass123!"))
		require.Equal(t, http.StatusOK, fresh.code, "new password should work")

		me := do(t, srv, http.MethodGet, "/api/users/me", "", withAccess(access))
		require.Equal(t, http.StatusOK, me.code, "tokens issued before change stay valid till expiry")
	})

	t.Run("deactivate", func(t *testing.T) {
		srv := newTestServer(t, memory.NewStorage(), Options{})
		access, refresh := register(t, srv, "nk")

		resp := do(t, srv, http.MethodDelete, "/api/users/me", "", withAccess(access))
		require.Equalf(t, http.StatusNoContent, resp.code, "not expected code. Body: %s", resp.body)

		me := do(t, srv, http.MethodGet, "/api/users/me", "", withAccess(access))
		require.Equal(t, http.StatusForbidden, me.code, "inactive principal should be forbidden")
		require.JSONEq(t, `{"error": "service_error", "message": "User account is disabled"}`, me.body)

		login := do(t, srv, http.MethodPost, "/api/auth/login", loginBody("nk", strongPassword))
		require.Equal(t, http.StatusForbidden, login.code)

		refreshed := do(t, srv, http.MethodPost, "/api/auth/refresh", "", withCookie(refresh))
		require.Equal(t, http.StatusForbidden, refreshed.code)
	})
}
