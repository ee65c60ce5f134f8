package service

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"studyhall/config"
	"studyhall/internal/dto"
	"studyhall/internal/model"
	"studyhall/internal/repository"
	pkgerrors "studyhall/pkg/errors"
)

// ── 管理员模块业务错误 ──

var (
	ErrNoPermission           = errors.New("无权操作")
	ErrPermissionsLocked      = errors.New("学员与超级管理员的权限不可修改")
	ErrCannotModifySuperAdmin = errors.New("不能停用或删除超级管理员")
	ErrSelfOperation          = errors.New("不能对自己执行此操作")
	ErrUnknownModule          = errors.New("未知的权限模块")
)

// AdminService 账号与权限管理
type AdminService interface {
	List(ctx context.Context, req *dto.UserListRequest) (*dto.PageResult[dto.UserResponse], error)
	Stats(ctx context.Context) (*repository.UserStats, error)
	Create(ctx context.Context, caller model.Identity, req *dto.CreateUserRequest) (*dto.UserResponse, error)
	UpdatePermissions(ctx context.Context, caller model.Identity, id string, req *dto.UpdatePermissionsRequest) (*dto.UserResponse, error)
	ToggleStatus(ctx context.Context, caller model.Identity, id string) (*dto.UserResponse, error)
	Delete(ctx context.Context, caller model.Identity, id string) error
}

type adminService struct {
	cfg    *config.AuthConfig
	repo   *repository.Repository
	logger *zap.Logger
}

// NewAdminService 创建 AdminService 实例
func NewAdminService(cfg *config.AuthConfig, repo *repository.Repository, logger *zap.Logger) AdminService {
	return &adminService{cfg: cfg, repo: repo, logger: logger}
}

func (s *adminService) List(ctx context.Context, req *dto.UserListRequest) (*dto.PageResult[dto.UserResponse], error) {
	users, total, err := s.repo.User.List(ctx, repository.UserFilter{
		Role:     req.Role,
		IsActive: req.IsActive,
	}, req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("查询用户列表失败", zap.Error(err))
		return nil, err
	}

	list := make([]dto.UserResponse, 0, len(users))
	for i := range users {
		list = append(list, toUserResponse(&users[i]))
	}
	return &dto.PageResult[dto.UserResponse]{
		List:     list,
		Total:    total,
		Page:     req.GetPage(),
		PageSize: req.GetPageSize(),
	}, nil
}

func (s *adminService) Stats(ctx context.Context) (*repository.UserStats, error) {
	stats, err := s.repo.User.Stats(ctx)
	if err != nil {
		s.logger.Error("查询用户统计失败", zap.Error(err))
		return nil, err
	}
	return stats, nil
}

// Create 创建管理账号：权限矩阵取角色默认值，再合并请求中显式给出的部分
// 仅超级管理员可以创建超级管理员
func (s *adminService) Create(ctx context.Context, caller model.Identity, req *dto.CreateUserRequest) (*dto.UserResponse, error) {
	if req.Role == model.RoleSuperAdmin && caller.Role != model.RoleSuperAdmin {
		return nil, ErrNoPermission
	}
	if err := checkModules(req.Permissions); err != nil {
		return nil, err
	}

	email := normalizeEmail(req.Email)
	if _, err := s.repo.User.GetByEmail(ctx, email); err == nil {
		return nil, ErrEmailExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Error("查询用户失败", zap.Error(err))
		return nil, err
	}

	cost := s.cfg.BcryptCost
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), cost)
	if err != nil {
		s.logger.Error("密码加密失败", zap.Error(err))
		return nil, err
	}

	perms := model.DefaultPermissions(req.Role)
	if req.Role == model.RoleAdmin && len(req.Permissions) > 0 {
		perms = perms.Merge(req.Permissions)
	}

	user := &model.User{
		Email:        email,
		PasswordHash: string(hash),
		Role:         req.Role,
		Permissions:  datatypes.NewJSONType(perms),
		IsActive:     true,
	}
	if err := s.repo.User.Create(ctx, user); err != nil {
		if pkgerrors.IsUniqueViolation(err, "uq_users_email") {
			return nil, ErrEmailExists
		}
		s.logger.Error("创建管理账号失败", zap.Error(err))
		return nil, err
	}

	s.logger.Info("管理账号已创建",
		zap.String("user_id", user.UserID),
		zap.String("role", user.Role),
		zap.String("operator", caller.UserID),
	)
	resp := toUserResponse(user)
	return &resp, nil
}

// UpdatePermissions 显式合并权限矩阵
// 学员与超级管理员的矩阵固定；非超级管理员不能修改自己的权限
func (s *adminService) UpdatePermissions(ctx context.Context, caller model.Identity, id string, req *dto.UpdatePermissionsRequest) (*dto.UserResponse, error) {
	if err := checkModules(req.Permissions); err != nil {
		return nil, err
	}
	if caller.UserID == id && caller.Role != model.RoleSuperAdmin {
		return nil, ErrSelfOperation
	}

	user, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if user.Role == model.RoleStudent || user.Role == model.RoleSuperAdmin {
		return nil, ErrPermissionsLocked
	}

	merged := user.Permissions.Data().Merge(req.Permissions)
	jsonPerms := datatypes.NewJSONType(merged)
	if err := s.repo.User.UpdateFields(ctx, id, map[string]interface{}{"permissions": jsonPerms}); err != nil {
		s.logger.Error("更新权限失败", zap.String("user_id", id), zap.Error(err))
		return nil, err
	}
	user.Permissions = jsonPerms

	s.logger.Info("权限已更新", zap.String("user_id", id), zap.String("operator", caller.UserID))
	resp := toUserResponse(user)
	return &resp, nil
}

// ToggleStatus 启用/停用账号
func (s *adminService) ToggleStatus(ctx context.Context, caller model.Identity, id string) (*dto.UserResponse, error) {
	if caller.UserID == id {
		return nil, ErrSelfOperation
	}
	user, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if user.Role == model.RoleSuperAdmin {
		return nil, ErrCannotModifySuperAdmin
	}

	user.IsActive = !user.IsActive
	if err := s.repo.User.UpdateFields(ctx, id, map[string]interface{}{"is_active": user.IsActive}); err != nil {
		s.logger.Error("更新账号状态失败", zap.String("user_id", id), zap.Error(err))
		return nil, err
	}

	s.logger.Info("账号状态已切换",
		zap.String("user_id", id),
		zap.Bool("is_active", user.IsActive),
		zap.String("operator", caller.UserID),
	)
	resp := toUserResponse(user)
	return &resp, nil
}

// Delete 删除账号，仅超级管理员可调用
func (s *adminService) Delete(ctx context.Context, caller model.Identity, id string) error {
	if caller.Role != model.RoleSuperAdmin {
		return ErrNoPermission
	}
	if caller.UserID == id {
		return ErrSelfOperation
	}
	user, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if user.Role == model.RoleSuperAdmin {
		return ErrCannotModifySuperAdmin
	}

	if err := s.repo.User.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		s.logger.Error("删除账号失败", zap.String("user_id", id), zap.Error(err))
		return err
	}
	s.logger.Info("账号已删除", zap.String("user_id", id), zap.String("operator", caller.UserID))
	return nil
}

func (s *adminService) load(ctx context.Context, id string) (*model.User, error) {
	user, err := s.repo.User.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		s.logger.Error("查询用户失败", zap.String("user_id", id), zap.Error(err))
		return nil, err
	}
	return user, nil
}

func checkModules(patch map[string]model.PermissionPatch) error {
	for module := range patch {
		if !model.IsKnownModule(module) {
			return ErrUnknownModule
		}
	}
	return nil
}
