package tests

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"

	"github.com/Arsyadam/bhawikarsu-store/pkg/auth"
	"github.com/Arsyadam/bhawikarsu-store/services/auth/bootstrap"
	"github.com/Arsyadam/bhawikarsu-store/services/auth/internal/domain"
	"github.com/Arsyadam/bhawikarsu-store/services/auth/internal/repository"
	"github.com/Arsyadam/bhawikarsu-store/services/auth/internal/service"
	"go.uber.org/zap"
)

func (s *IntegrationTestSuite) TestLogin_Success() {
	tokens, err := s.AuthService.Login(s.Ctx, "Admin@B96.id", adminPassword)
	s.Require().NoError(err)
	s.NotEmpty(tokens.AccessToken)
	s.NotEmpty(tokens.RefreshToken)

	claims, err := s.Tokens.ValidateAccess(tokens.AccessToken)
	s.Require().NoError(err)
	s.Equal(s.AdminID, claims.AdminID)

	var sessions int
	s.Require().NoError(s.DbPool.QueryRow(s.Ctx, `SELECT COUNT(*) FROM sessions WHERE admin_id = $1`, s.AdminID).Scan(&sessions))
	s.Equal(1, sessions)
}

func (s *IntegrationTestSuite) TestLogin_Failure() {
	_, err := s.AuthService.Login(s.Ctx, adminEmail, "wrongpass1")
	s.ErrorIs(err, service.ErrInvalidCredentials)

	_, err = s.AuthService.Login(s.Ctx, "nobody@b96.id", adminPassword)
	s.ErrorIs(err, service.ErrInvalidCredentials)
}

func (s *IntegrationTestSuite) TestRefresh_RotatesSession() {
	first, err := s.AuthService.Login(s.Ctx, adminEmail, adminPassword)
	s.Require().NoError(err)

	second, err := s.AuthService.Refresh(s.Ctx, first.RefreshToken)
	s.Require().NoError(err)
	s.NotEqual(first.RefreshToken, second.RefreshToken)

	_, err = s.AuthService.Refresh(s.Ctx, first.RefreshToken)
	s.ErrorIs(err, service.ErrInvalidSession, "a rotated token cannot be reused")

	_, err = s.AuthService.Refresh(s.Ctx, second.AccessToken)
	s.ErrorIs(err, auth.ErrInvalidToken, "access tokens are not refresh tokens")
}

func (s *IntegrationTestSuite) TestLogout_RevokesSession() {
	tokens, err := s.AuthService.Login(s.Ctx, adminEmail, adminPassword)
	s.Require().NoError(err)

	s.Require().NoError(s.AuthService.Logout(s.Ctx, tokens.RefreshToken))

	_, err = s.AuthService.Refresh(s.Ctx, tokens.RefreshToken)
	s.ErrorIs(err, service.ErrInvalidSession)

	s.ErrorIs(s.AuthService.Logout(s.Ctx, tokens.RefreshToken), repository.ErrSessionNotFound)
}

func (s *IntegrationTestSuite) TestCreateAdmin() {
	_, err := bootstrap.CreateAdmin(s.Ctx, s.DbPool, "ADMIN@b96.id", "another123", zap.NewNop())
	s.ErrorIs(err, bootstrap.ErrAdminAlreadyExists)

	_, err = bootstrap.CreateAdmin(s.Ctx, s.DbPool, "ops@b96.id", "short", zap.NewNop())
	s.ErrorIs(err, auth.ErrPasswordTooShort)

	_, err = bootstrap.CreateAdmin(s.Ctx, s.DbPool, "ops@b96.id", "lettersonly", zap.NewNop())
	s.ErrorIs(err, auth.ErrPasswordTooWeak)

	me, err := s.AdminService.Me(s.Ctx, s.AdminID)
	s.Require().NoError(err)
	s.Equal(adminEmail, me.Email)
	s.NotEqual(adminPassword, me.PasswordHash)
}

func (s *IntegrationTestSuite) request(method, path string, body any, token string) *http.Response {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.App.Test(req, -1)
	s.Require().NoError(err)

	return resp
}

func (s *IntegrationTestSuite) TestHTTP_LoginRefreshMe() {
	resp := s.request(http.MethodPost, "/auth/login", map[string]string{"email": adminEmail, "password": "nope12345"}, "")
	s.Equal(http.StatusUnauthorized, resp.StatusCode)

	resp = s.request(http.MethodPost, "/auth/login", map[string]string{"email": "not-an-email"}, "")
	s.Equal(http.StatusBadRequest, resp.StatusCode)

	resp = s.request(http.MethodPost, "/auth/login", map[string]string{"email": adminEmail, "password": adminPassword}, "")
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	var tokens domain.Tokens
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&tokens))

	resp = s.request(http.MethodGet, "/auth/me", nil, tokens.AccessToken)
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	var me map[string]any
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&me))
	s.Equal(adminEmail, me["email"])
	s.NotContains(me, "password_hash")

	resp = s.request(http.MethodGet, "/auth/me", nil, "")
	s.Equal(http.StatusUnauthorized, resp.StatusCode)

	resp = s.request(http.MethodPost, "/auth/refresh", map[string]string{"refresh_token": tokens.RefreshToken}, "")
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	resp = s.request(http.MethodPost, "/auth/logout", map[string]string{"refresh_token": tokens.RefreshToken}, "")
	s.Equal(http.StatusUnauthorized, resp.StatusCode, "the refresh above already rotated this token")
}
