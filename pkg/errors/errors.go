package errors

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrOptimisticLock 乐观锁冲突：记录已被其他操作修改
var ErrOptimisticLock = errors.New("数据已被其他操作修改，请刷新后重试")

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// IsUniqueViolation 判断是否为 PostgreSQL 唯一约束冲突
// constraint 非空时仅匹配指定约束名
func IsUniqueViolation(err error, constraint string) bool {
	return isPgError(err, pgUniqueViolation, constraint)
}

// IsForeignKeyViolation 判断是否为 PostgreSQL 外键约束冲突
func IsForeignKeyViolation(err error) bool {
	return isPgError(err, pgForeignKeyViolation, "")
}

func isPgError(err error, code, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	if pgErr.Code != code {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}
