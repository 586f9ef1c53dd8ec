package service

import (
	"errors"
	"strings"

	"sorsulyap/backend/internal/model"
	"sorsulyap/backend/internal/repository"
)

// 定向受众取值（与前端 target_audience 字段一致）
const (
	AudienceAll             = "All"
	AudienceFaculty         = "Faculty"
	AudienceStudents        = "Students"
	AudienceSpecificProgram = "Specific_Program"
)

var ErrInvalidTargetRule = errors.New("无效的通知定向规则")

// TargetRule 通知定向规则
// 不落库，每次扇出时针对当前活跃用户集合重新解析
type TargetRule struct {
	Audience string
	Program  string
}

// NewTargetRule 由请求字段构造并校验定向规则
func NewTargetRule(audience string, program *string) (TargetRule, error) {
	rule := TargetRule{Audience: audience}
	if program != nil {
		rule.Program = strings.TrimSpace(*program)
	}
	if err := rule.Validate(); err != nil {
		return TargetRule{}, err
	}
	return rule, nil
}

// Validate 校验规则；仅 Specific_Program 需要且必须携带专业
func (r TargetRule) Validate() error {
	switch r.Audience {
	case AudienceAll, AudienceFaculty, AudienceStudents:
		return nil
	case AudienceSpecificProgram:
		if r.Program == "" {
			return ErrInvalidTargetRule
		}
		return nil
	default:
		return ErrInvalidTargetRule
	}
}

// Filter 转换为仓储层的收件人过滤条件
//
//	All              → 全部活跃用户
//	Faculty          → role = Faculty
//	Students         → role = Student
//	Specific_Program → role = Student AND program = P
func (r TargetRule) Filter() repository.RecipientFilter {
	switch r.Audience {
	case AudienceFaculty:
		return repository.RecipientFilter{Role: model.RoleFaculty}
	case AudienceStudents:
		return repository.RecipientFilter{Role: model.RoleStudent}
	case AudienceSpecificProgram:
		return repository.RecipientFilter{Role: model.RoleStudent, Program: r.Program}
	default:
		return repository.RecipientFilter{}
	}
}

// ProgramPtr 专业为空时返回 nil，便于写入可空列
func (r TargetRule) ProgramPtr() *string {
	if r.Program == "" {
		return nil
	}
	p := r.Program
	return &p
}
