package service

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/contrail/internal/dto"
	"github.com/noah-isme/contrail/internal/models"
	appErrors "github.com/noah-isme/contrail/pkg/errors"
	"github.com/noah-isme/contrail/pkg/export"
)

// Import reads an .xlsx roster into departmentID. Rows whose id card or
// student number is already registered are skipped; invalid rows are
// reported and the rest are created with the last six id card characters
// as their initial password.
func (s *StudentService) Import(ctx context.Context, admin *models.Admin, departmentID int, fileName string, data []byte) (*dto.ImportResponse, error) {
	if strings.TrimSpace(fileName) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "文件名为空")
	}
	if !strings.EqualFold(filepath.Ext(fileName), ".xlsx") {
		return nil, appErrors.Clone(appErrors.ErrValidation, "不支持的文件格式，仅支持 .xlsx 文件")
	}
	if departmentID <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "缺少必需参数: department_id")
	}
	dept, err := s.department(ctx, departmentID, fmt.Sprintf("部门ID %d 不存在", departmentID))
	if err != nil {
		return nil, err
	}
	if admin.Role != models.RoleSuper {
		if len(admin.DepartmentIDs) == 0 {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "您没有管理的部门，无法导入学生")
		}
		if !admin.Manages(departmentID) {
			return nil, appErrors.Clonef(appErrors.ErrForbidden, "无权将学生导入到部门ID %d", departmentID)
		}
	}

	sheet, err := export.ReadSheet(data)
	if err != nil {
		return nil, appErrors.Clonef(appErrors.ErrValidation, "Excel 文件读取失败: %v", err)
	}
	if missing := missingColumns(sheet.Headers, ColumnStudentID, ColumnName, ColumnIDCardNo); len(missing) > 0 {
		return nil, appErrors.Clonef(appErrors.ErrValidation, "Excel 文件缺少必需的列: %s", strings.Join(missing, ", "))
	}

	studentIDs, idCards, err := s.students.Identifiers(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load identifiers")
	}

	result := dto.ImportResult{Errors: []dto.ImportError{}}
	reject := func(row int, studentID, msg string) {
		result.ErrorCount++
		if len(result.Errors) < maxImportErrors {
			result.Errors = append(result.Errors, dto.ImportError{Row: row, StudentID: studentID, Error: msg})
		}
	}

	pending := make([]*models.Student, 0, len(sheet.Rows))
	for i, row := range sheet.Rows {
		rowNum := i + 2
		studentID := strings.TrimSpace(row[ColumnStudentID])
		name := strings.TrimSpace(row[ColumnName])
		idCard := strings.ToUpper(strings.TrimSpace(row[ColumnIDCardNo]))

		switch {
		case name == "":
			reject(rowNum, studentID, "姓名为空")
			continue
		case idCard == "":
			reject(rowNum, studentID, "身份证号为空")
			continue
		case len(idCard) != 18:
			reject(rowNum, studentID, "身份证号必须为18位")
			continue
		case !validIDCard(idCard):
			reject(rowNum, studentID, "身份证号格式不正确")
			continue
		}
		if _, ok := idCards[idCard]; ok {
			result.SkipCount++
			continue
		}
		if _, ok := studentIDs[studentID]; studentID != "" && ok {
			result.SkipCount++
			continue
		}
		if studentID != "" && !allDigits(studentID) {
			reject(rowNum, studentID, "学号必须为纯数字")
			continue
		}

		baseScore := dept.BaseScore
		if raw := strings.TrimSpace(row[ColumnBaseScore]); raw != "" {
			score, err := strconv.Atoi(raw)
			if err != nil {
				reject(rowNum, studentID, "基础分必须是整数")
				continue
			}
			baseScore = score
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(idCard[len(idCard)-6:]), s.cfg.PasswordCost)
		if err != nil {
			reject(rowNum, studentID, fmt.Sprintf("处理失败: %v", err))
			continue
		}
		pending = append(pending, &models.Student{
			StudentID:     studentID,
			Name:          name,
			IDCardNo:      idCard,
			DepartmentID:  departmentID,
			BaseScore:     baseScore,
			ProcessStatus: models.NewProcessStatus(),
			CreateTime:    s.now().UTC(),
			PasswordHash:  string(hash),
		})
		if studentID != "" {
			studentIDs[studentID] = struct{}{}
		}
		idCards[idCard] = struct{}{}
	}

	if len(pending) > 0 {
		if err := s.students.Create(ctx, pending...); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "批量导入失败")
		}
		result.SuccessCount = len(pending)
		invalidateDashboard(ctx, s.cache)
	}
	s.logger.Info("students imported",
		zap.Int("department_id", departmentID),
		zap.Int("success", result.SuccessCount),
		zap.Int("skipped", result.SkipCount),
		zap.Int("failed", result.ErrorCount),
	)
	return &dto.ImportResponse{Code: 200, Message: "导入完成", Data: result}, nil
}

func missingColumns(headers []string, required ...string) []string {
	present := make(map[string]struct{}, len(headers))
	for _, h := range headers {
		present[h] = struct{}{}
	}
	missing := make([]string, 0)
	for _, col := range required {
		if _, ok := present[col]; !ok {
			missing = append(missing, col)
		}
	}
	return missing
}

// validIDCard checks 17 digits followed by a digit or X.
func validIDCard(idCard string) bool {
	if len(idCard) != 18 || !allDigits(idCard[:17]) {
		return false
	}
	last := idCard[17]
	return (last >= '0' && last <= '9') || last == 'X'
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
