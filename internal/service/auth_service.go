package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"studyhall/config"
	"studyhall/internal/dto"
	"studyhall/internal/model"
	"studyhall/internal/repository"
	pkgerrors "studyhall/pkg/errors"
	"studyhall/pkg/jwt"
)

var (
	ErrInvalidCredentials   = errors.New("邮箱或密码错误")
	ErrUserNotFound         = errors.New("用户不存在")
	ErrUserInactive         = errors.New("账号已停用")
	ErrEmailExists          = errors.New("邮箱已被注册")
	ErrStudentLinkRequired  = errors.New("学员账号必须关联学员档案")
	ErrStudentAlreadyLinked = errors.New("该学员已绑定账号")
	ErrWrongPassword        = errors.New("原密码错误")
	ErrInvalidRefreshToken  = errors.New("Refresh Token 无效或已过期")
)

// TokenBlacklist Token 黑名单存储
type TokenBlacklist interface {
	BlacklistToken(ctx context.Context, jti string, ttl time.Duration) error
	IsBlacklisted(ctx context.Context, jti string) (bool, error)
}

// AuthService 认证业务接口
type AuthService interface {
	Register(ctx context.Context, req *dto.RegisterRequest) (*dto.TokenResponse, error)
	Login(ctx context.Context, req *dto.LoginRequest) (*dto.TokenResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*dto.TokenResponse, error)
	Logout(ctx context.Context, claims *jwt.Claims) error
	// ResolveIdentity 由认证中间件调用，按用户当前状态构造鉴权身份
	ResolveIdentity(ctx context.Context, userID string) (*model.Identity, error)
	Me(ctx context.Context, userID string) (*dto.UserResponse, error)
	UpdateProfile(ctx context.Context, userID string, req *dto.UpdateProfileRequest) (*dto.UserResponse, error)
	ChangePassword(ctx context.Context, userID string, req *dto.ChangePasswordRequest) error
}

type authService struct {
	cfg       *config.Config
	repo      *repository.Repository
	jwtMgr    *jwt.Manager
	blacklist TokenBlacklist // 可为 nil，Redis 不可用时登出仅在客户端生效
	logger    *zap.Logger
}

// NewAuthService 创建 AuthService 实例
func NewAuthService(
	cfg *config.Config,
	repo *repository.Repository,
	jwtMgr *jwt.Manager,
	blacklist TokenBlacklist,
	logger *zap.Logger,
) AuthService {
	return &authService{
		cfg:       cfg,
		repo:      repo,
		jwtMgr:    jwtMgr,
		blacklist: blacklist,
		logger:    logger,
	}
}

// ────────────────────── Register / Login ──────────────────────

func (s *authService) Register(ctx context.Context, req *dto.RegisterRequest) (*dto.TokenResponse, error) {
	email := normalizeEmail(req.Email)
	role := req.Role
	if role == "" {
		role = model.RoleStudent
	}

	if _, err := s.repo.User.GetByEmail(ctx, email); err == nil {
		return nil, ErrEmailExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Error("查询用户失败", zap.Error(err))
		return nil, err
	}

	var studentID *string
	if role == model.RoleStudent {
		if req.StudentID == "" {
			return nil, ErrStudentLinkRequired
		}
		if _, err := s.repo.Student.GetByID(ctx, req.StudentID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrStudentNotFound
			}
			s.logger.Error("查询学员失败", zap.Error(err))
			return nil, err
		}
		if _, err := s.repo.User.GetByStudentID(ctx, req.StudentID); err == nil {
			return nil, ErrStudentAlreadyLinked
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Error("查询学员账号失败", zap.Error(err))
			return nil, err
		}
		id := req.StudentID
		studentID = &id
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost())
	if err != nil {
		s.logger.Error("密码加密失败", zap.Error(err))
		return nil, err
	}

	user := &model.User{
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
		StudentID:    studentID,
		Permissions:  datatypes.NewJSONType(model.DefaultPermissions(role)),
		IsActive:     true,
	}
	if err := s.repo.User.Create(ctx, user); err != nil {
		switch {
		case pkgerrors.IsUniqueViolation(err, "uq_users_email"):
			return nil, ErrEmailExists
		case pkgerrors.IsUniqueViolation(err, "uq_users_student"):
			return nil, ErrStudentAlreadyLinked
		}
		s.logger.Error("创建用户失败", zap.Error(err))
		return nil, err
	}

	s.logger.Info("用户注册成功", zap.String("user_id", user.UserID), zap.String("role", role))
	return s.issueTokens(user)
}

func (s *authService) Login(ctx context.Context, req *dto.LoginRequest) (*dto.TokenResponse, error) {
	// 1. 查询用户
	user, err := s.repo.User.GetByEmail(ctx, normalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		s.logger.Error("查询用户失败", zap.Error(err))
		return nil, err
	}

	// 2. 验证密码 (bcrypt)
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, ErrUserInactive
	}

	// 3. 记录登录时间（失败不影响登录）
	now := time.Now()
	if err := s.repo.User.UpdateFields(ctx, user.UserID, map[string]interface{}{"last_login_at": now}); err != nil {
		s.logger.Warn("更新最后登录时间失败", zap.String("user_id", user.UserID), zap.Error(err))
	} else {
		user.LastLoginAt = &now
	}

	// 4. 生成 Token 对
	return s.issueTokens(user)
}

// ────────────────────── Refresh / Logout ──────────────────────

// Refresh 轮换 Token 对，旧 Refresh Token 加入黑名单
func (s *authService) Refresh(ctx context.Context, refreshToken string) (*dto.TokenResponse, error) {
	claims, err := s.jwtMgr.ParseTyped(refreshToken, jwt.TokenTypeRefresh)
	if err != nil {
		return nil, ErrInvalidRefreshToken
	}

	if s.blacklist != nil {
		revoked, err := s.blacklist.IsBlacklisted(ctx, claims.ID)
		if err != nil {
			s.logger.Warn("检查 Token 黑名单失败", zap.Error(err))
		} else if revoked {
			return nil, ErrInvalidRefreshToken
		}
	}

	user, err := s.repo.User.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidRefreshToken
		}
		s.logger.Error("查询用户失败", zap.Error(err))
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrUserInactive
	}

	resp, err := s.issueTokens(user)
	if err != nil {
		return nil, err
	}
	s.revoke(ctx, claims)
	return resp, nil
}

// Logout 将当前 Access Token 加入黑名单
func (s *authService) Logout(ctx context.Context, claims *jwt.Claims) error {
	if claims == nil {
		return nil
	}
	s.revoke(ctx, claims)
	return nil
}

func (s *authService) revoke(ctx context.Context, claims *jwt.Claims) {
	if s.blacklist == nil {
		return
	}
	if err := s.blacklist.BlacklistToken(ctx, claims.ID, claims.Remaining()); err != nil {
		s.logger.Warn("Token 加入黑名单失败", zap.String("jti", claims.ID), zap.Error(err))
	}
}

// ────────────────────── Identity / Profile ──────────────────────

func (s *authService) ResolveIdentity(ctx context.Context, userID string) (*model.Identity, error) {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrUserInactive
	}
	id := user.Identity()
	return &id, nil
}

func (s *authService) Me(ctx context.Context, userID string) (*dto.UserResponse, error) {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	resp := toUserResponse(user)
	return &resp, nil
}

func (s *authService) UpdateProfile(ctx context.Context, userID string, req *dto.UpdateProfileRequest) (*dto.UserResponse, error) {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	email := normalizeEmail(req.Email)
	if email != user.Email {
		if other, err := s.repo.User.GetByEmail(ctx, email); err == nil && other.UserID != user.UserID {
			return nil, ErrEmailExists
		} else if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Error("查询用户失败", zap.Error(err))
			return nil, err
		}
		if err := s.repo.User.UpdateFields(ctx, userID, map[string]interface{}{"email": email}); err != nil {
			if pkgerrors.IsUniqueViolation(err, "uq_users_email") {
				return nil, ErrEmailExists
			}
			s.logger.Error("更新邮箱失败", zap.String("user_id", userID), zap.Error(err))
			return nil, err
		}
		user.Email = email
	}

	resp := toUserResponse(user)
	return &resp, nil
}

func (s *authService) ChangePassword(ctx context.Context, userID string, req *dto.ChangePasswordRequest) error {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.OldPassword)); err != nil {
		return ErrWrongPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), s.bcryptCost())
	if err != nil {
		s.logger.Error("密码加密失败", zap.Error(err))
		return err
	}
	if err := s.repo.User.UpdateFields(ctx, userID, map[string]interface{}{"password_hash": string(hash)}); err != nil {
		s.logger.Error("更新密码失败", zap.String("user_id", userID), zap.Error(err))
		return err
	}
	return nil
}

// ── helpers ──

func (s *authService) loadUser(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.repo.User.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		s.logger.Error("查询用户失败", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}
	return user, nil
}

func (s *authService) issueTokens(user *model.User) (*dto.TokenResponse, error) {
	studentID := ""
	if user.StudentID != nil {
		studentID = *user.StudentID
	}

	accessToken, err := s.jwtMgr.GenerateAccessToken(user.UserID, user.Role, studentID)
	if err != nil {
		s.logger.Error("生成 AccessToken 失败", zap.Error(err))
		return nil, err
	}
	refreshToken, err := s.jwtMgr.GenerateRefreshToken(user.UserID, user.Role, studentID)
	if err != nil {
		s.logger.Error("生成 RefreshToken 失败", zap.Error(err))
		return nil, err
	}

	return &dto.TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int(s.jwtMgr.AccessTokenTTL().Seconds()),
		User:         toUserResponse(user),
	}, nil
}

func (s *authService) bcryptCost() int {
	if s.cfg.Auth.BcryptCost >= bcrypt.MinCost && s.cfg.Auth.BcryptCost <= bcrypt.MaxCost {
		return s.cfg.Auth.BcryptCost
	}
	return bcrypt.DefaultCost
}

// toUserResponse 脱敏后的用户信息
func toUserResponse(u *model.User) dto.UserResponse {
	resp := dto.UserResponse{
		ID:          u.UserID,
		Email:       u.Email,
		Role:        u.Role,
		StudentID:   u.StudentID,
		Permissions: u.Permissions.Data(),
		IsActive:    u.IsActive,
		CreatedAt:   u.CreatedAt.Format(time.RFC3339),
	}
	if u.Role == model.RoleSuperAdmin {
		resp.Permissions = model.DefaultPermissions(model.RoleSuperAdmin)
	}
	if u.Student != nil {
		resp.StudentName = u.Student.Name
	}
	if u.LastLoginAt != nil {
		resp.LastLoginAt = u.LastLoginAt.Format(time.RFC3339)
	}
	return resp
}
