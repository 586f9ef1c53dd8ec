package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"sorsulyap/backend/config"
	"sorsulyap/backend/internal/dto"
	"sorsulyap/backend/internal/model"
	"sorsulyap/backend/pkg/jwt"
)

// ── Mock TokenBlacklister ──

type mockBlacklist struct {
	entries map[string]time.Duration
	err     error
}

func (m *mockBlacklist) BlacklistToken(_ context.Context, jti string, ttl time.Duration) error {
	if m.err != nil {
		return m.err
	}
	m.entries[jti] = ttl
	return nil
}

func setupTestAuthService() (AuthService, *mockRepos, *mockBlacklist, *jwt.Manager) {
	cfg := &config.Config{
		Auth: config.AuthConfig{
			JWTSecret:      "test-secret-key-for-unit-testing-2026",
			AccessTokenTTL: 15 * time.Minute,
		},
	}

	repo, mocks := newMockRepository()
	jwtMgr := jwt.NewManager(&cfg.Auth)
	blacklist := &mockBlacklist{entries: make(map[string]time.Duration)}

	svc := NewAuthService(cfg, repo, jwtMgr, blacklist, zap.NewNop())
	return svc, mocks, blacklist, jwtMgr
}

func createTestUser(m *mockRepos, id, role, program, password string) *model.User {
	user := m.addUser(id, role, program, true)
	hash, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	user.PasswordHash = string(hash)
	return user
}

// ── 登录测试 ──

func TestLogin_Success(t *testing.T) {
	svc, mocks, _, jwtMgr := setupTestAuthService()
	createTestUser(mocks, "s1", model.RoleStudent, "CS", "password123")

	result, err := svc.Login(context.Background(), &dto.LoginRequest{
		Email:    "s1@sorsu.edu.ph",
		Password: "password123",
	})
	if err != nil {
		t.Fatalf("Login 应成功，但返回错误: %v", err)
	}
	if result.AccessToken == "" {
		t.Error("AccessToken 不应为空")
	}
	if result.ExpiresIn != 900 {
		t.Errorf("期望 ExpiresIn=900，实际=%d", result.ExpiresIn)
	}
	if result.User.ID != "s1" {
		t.Errorf("期望 user_id=s1，实际=%s", result.User.ID)
	}

	claims, err := jwtMgr.ParseToken(result.AccessToken)
	if err != nil {
		t.Fatalf("Token 应可解析: %v", err)
	}
	if claims.Role != model.RoleStudent || claims.Program != "CS" {
		t.Errorf("Token 声明不符: role=%s program=%s", claims.Role, claims.Program)
	}
	if mocks.user.users["s1"].LastLogin == nil {
		t.Error("登录后应更新最后登录时间")
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	svc, mocks, _, _ := setupTestAuthService()
	createTestUser(mocks, "s1", model.RoleStudent, "CS", "password123")

	_, err := svc.Login(context.Background(), &dto.LoginRequest{
		Email:    "s1@sorsu.edu.ph",
		Password: "wrongpassword",
	})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("期望 ErrInvalidCredentials，实际: %v", err)
	}
}

func TestLogin_UserNotFound(t *testing.T) {
	svc, _, _, _ := setupTestAuthService()

	_, err := svc.Login(context.Background(), &dto.LoginRequest{
		Email:    "nobody@sorsu.edu.ph",
		Password: "password123",
	})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("期望 ErrInvalidCredentials，实际: %v", err)
	}
}

func TestLogin_InactiveAccount(t *testing.T) {
	svc, mocks, _, _ := setupTestAuthService()
	user := createTestUser(mocks, "s1", model.RoleStudent, "CS", "password123")
	user.IsActive = false

	_, err := svc.Login(context.Background(), &dto.LoginRequest{
		Email:    "s1@sorsu.edu.ph",
		Password: "password123",
	})
	if !errors.Is(err, ErrAccountInactive) {
		t.Errorf("期望 ErrAccountInactive，实际: %v", err)
	}
}

func TestLogin_NotApproved(t *testing.T) {
	svc, mocks, _, _ := setupTestAuthService()
	user := createTestUser(mocks, "f1", model.RoleFaculty, "", "password123")
	user.IsApproved = false

	_, err := svc.Login(context.Background(), &dto.LoginRequest{
		Email:    "f1@sorsu.edu.ph",
		Password: "password123",
	})
	if !errors.Is(err, ErrAccountNotApproved) {
		t.Errorf("期望 ErrAccountNotApproved，实际: %v", err)
	}
}

// ── 登出测试 ──

func TestLogout_BlacklistsJTI(t *testing.T) {
	svc, _, blacklist, _ := setupTestAuthService()

	if err := svc.Logout(context.Background(), "jti-1", time.Now().Add(10*time.Minute)); err != nil {
		t.Fatalf("Logout 应成功: %v", err)
	}
	ttl, ok := blacklist.entries["jti-1"]
	if !ok {
		t.Fatal("JTI 应写入黑名单")
	}
	if ttl <= 0 || ttl > 10*time.Minute {
		t.Errorf("黑名单 TTL 应为剩余有效期，实际=%v", ttl)
	}
}

func TestLogout_BlacklistFailure(t *testing.T) {
	svc, _, blacklist, _ := setupTestAuthService()
	blacklist.err = errMockStorage

	if err := svc.Logout(context.Background(), "jti-1", time.Now().Add(time.Minute)); err == nil {
		t.Error("黑名单写入失败时应返回错误")
	}
}

func TestLogout_WithoutBlacklist(t *testing.T) {
	repo, _ := newMockRepository()
	cfg := &config.AuthConfig{JWTSecret: "test-secret-key-for-unit-testing-2026", AccessTokenTTL: time.Minute}
	svc := NewAuthService(&config.Config{Auth: *cfg}, repo, jwt.NewManager(cfg), nil, zap.NewNop())

	if err := svc.Logout(context.Background(), "jti-1", time.Now().Add(time.Minute)); err != nil {
		t.Errorf("无黑名单时登出应降级成功，实际: %v", err)
	}
}

// ── 当前用户 ──

func TestMe(t *testing.T) {
	svc, mocks, _, _ := setupTestAuthService()
	createTestUser(mocks, "f1", model.RoleFaculty, "", "password123")

	user, err := svc.Me(context.Background(), "f1")
	if err != nil {
		t.Fatalf("Me 应成功: %v", err)
	}
	if user.Role != model.RoleFaculty {
		t.Errorf("期望 role=Faculty，实际=%s", user.Role)
	}

	if _, err := svc.Me(context.Background(), "missing"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("期望 ErrUserNotFound，实际: %v", err)
	}
}
