package model

// 权限模块
const (
	ModuleStudents  = "students"
	ModulePayments  = "payments"
	ModuleExpenses  = "expenses"
	ModuleSeats     = "seats"
	ModuleAlerts    = "alerts"
	ModuleDashboard = "dashboard"
	ModuleAdmin     = "admin"
)

// 权限动作
const (
	ActionCreate = "create"
	ActionRead   = "read"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

// Modules 全部可授权模块（顺序用于展示）
var Modules = []string{
	ModuleStudents, ModulePayments, ModuleExpenses, ModuleSeats,
	ModuleAlerts, ModuleDashboard, ModuleAdmin,
}

// ModulePermission 单个模块的增删改查开关
type ModulePermission struct {
	Create bool `json:"create"`
	Read   bool `json:"read"`
	Update bool `json:"update"`
	Delete bool `json:"delete"`
}

// Allows 判断是否允许指定动作
func (p ModulePermission) Allows(action string) bool {
	switch action {
	case ActionCreate:
		return p.Create
	case ActionRead:
		return p.Read
	case ActionUpdate:
		return p.Update
	case ActionDelete:
		return p.Delete
	default:
		return false
	}
}

// Permissions 权限矩阵：模块 → 动作开关
type Permissions map[string]ModulePermission

// Can 查询矩阵；dashboard 模块只有 read 动作
func (p Permissions) Can(module, action string) bool {
	if module == ModuleDashboard && action != ActionRead {
		return false
	}
	mp, ok := p[module]
	if !ok {
		return false
	}
	return mp.Allows(action)
}

var (
	allActions = ModulePermission{Create: true, Read: true, Update: true, Delete: true}
	readOnly   = ModulePermission{Read: true}
)

// studentPermissions 学员角色的固定矩阵，不随存储值变化
func studentPermissions() Permissions {
	return Permissions{
		ModuleStudents: readOnly,
		ModulePayments: readOnly,
		ModuleSeats:    readOnly,
		ModuleAlerts:   readOnly,
	}
}

// DefaultPermissions 按角色生成初始权限矩阵，仅在创建账号时使用
func DefaultPermissions(role string) Permissions {
	switch role {
	case RoleSuperAdmin:
		p := make(Permissions, len(Modules))
		for _, m := range Modules {
			p[m] = allActions
		}
		p[ModuleDashboard] = readOnly
		return p
	case RoleAdmin:
		return Permissions{
			ModuleStudents:  readOnly,
			ModulePayments:  readOnly,
			ModuleExpenses:  readOnly,
			ModuleSeats:     readOnly,
			ModuleAlerts:    readOnly,
			ModuleDashboard: readOnly,
		}
	default:
		return studentPermissions()
	}
}

// PermissionPatch 单个模块的部分更新，nil 表示保持原值
type PermissionPatch struct {
	Create *bool `json:"create"`
	Read   *bool `json:"read"`
	Update *bool `json:"update"`
	Delete *bool `json:"delete"`
}

// Merge 将部分更新合并到现有矩阵，返回新矩阵（不修改原值）
func (p Permissions) Merge(patch map[string]PermissionPatch) Permissions {
	out := make(Permissions, len(p))
	for k, v := range p {
		out[k] = v
	}
	for module, mp := range patch {
		cur := out[module]
		if mp.Create != nil {
			cur.Create = *mp.Create
		}
		if mp.Read != nil {
			cur.Read = *mp.Read
		}
		if mp.Update != nil {
			cur.Update = *mp.Update
		}
		if mp.Delete != nil {
			cur.Delete = *mp.Delete
		}
		if module == ModuleDashboard {
			cur = ModulePermission{Read: cur.Read}
		}
		out[module] = cur
	}
	return out
}

// IsKnownModule 判断模块名是否合法
func IsKnownModule(module string) bool {
	for _, m := range Modules {
		if m == module {
			return true
		}
	}
	return false
}

// Identity 已认证的调用方身份
type Identity struct {
	UserID      string
	Role        string
	StudentID   string
	Permissions Permissions
}

// Can 鉴权：超级管理员恒为 true；学员使用固定矩阵；其余角色查存储的矩阵
func (i Identity) Can(module, action string) bool {
	switch i.Role {
	case RoleSuperAdmin:
		return true
	case RoleStudent:
		return studentPermissions().Can(module, action)
	default:
		return i.Permissions.Can(module, action)
	}
}
