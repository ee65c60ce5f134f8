package dto

import (
	"github.com/go-playground/validator/v10"

	"studyhall/internal/model"
)

// RegisterValidators 注册业务自定义校验规则（month / seat_timing）
func RegisterValidators(v *validator.Validate) error {
	if err := v.RegisterValidation("month", func(fl validator.FieldLevel) bool {
		_, ok := model.ParseMonth(fl.Field().String())
		return ok
	}); err != nil {
		return err
	}
	return v.RegisterValidation("seat_timing", func(fl validator.FieldLevel) bool {
		return model.IsValidTiming(fl.Field().String())
	})
}
