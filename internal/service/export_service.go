package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"strconv"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"studyhall/internal/dto"
	"studyhall/internal/model"
	"studyhall/internal/repository"
)

// ── 导出模块业务错误 ──

var (
	ErrExportGenerateFail = errors.New("生成导出文件失败")
)

const (
	ContentTypeCSV  = "text/csv; charset=utf-8"
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	ContentTypeICS  = "text/calendar; charset=utf-8"
)

// ExportFile 导出结果，由 Handler 层设置响应头后写出
type ExportFile struct {
	Filename    string
	ContentType string
	Body        *bytes.Buffer
}

// ExportService 导出业务接口
//
//   - 缴费记录导出为 CSV 或 Excel (.xlsx)
//   - 学员未结清账期的截止日导出为 ICS 日历
type ExportService interface {
	ExportPayments(ctx context.Context, req *dto.ExportPaymentRequest) (*ExportFile, error)
	PaymentCalendar(ctx context.Context, studentID string) (*ExportFile, error)
}

type exportService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewExportService 创建 ExportService 实例
func NewExportService(repo *repository.Repository, logger *zap.Logger) ExportService {
	return &exportService{repo: repo, logger: logger}
}

var paymentExportHeader = []string{"学员", "邮箱", "月份", "年份", "金额", "状态", "支付方式", "截止日期", "缴费日期"}

// ═══════════════════════════════════════════════════════════
// ExportPayments 导出缴费记录
// ═══════════════════════════════════════════════════════════

func (s *exportService) ExportPayments(ctx context.Context, req *dto.ExportPaymentRequest) (*ExportFile, error) {
	payments, err := s.repo.Payment.ListAll(ctx, repository.PaymentFilter{
		Status: req.Status,
		Month:  req.Month,
		Year:   req.Year,
	})
	if err != nil {
		s.logger.Error("查询导出缴费记录失败", zap.Error(err))
		return nil, err
	}

	rows := make([][]string, 0, len(payments))
	for i := range payments {
		rows = append(rows, paymentRow(&payments[i]))
	}

	stamp := time.Now().Format("20060102")
	if req.Format == "xlsx" {
		buf, err := writePaymentsXLSX(rows)
		if err != nil {
			s.logger.Error("写入 Excel 失败", zap.Error(err))
			return nil, ErrExportGenerateFail
		}
		return &ExportFile{
			Filename:    fmt.Sprintf("payments_%s.xlsx", stamp),
			ContentType: ContentTypeXLSX,
			Body:        buf,
		}, nil
	}

	buf := new(bytes.Buffer)
	w := csv.NewWriter(buf)
	_ = w.Write(paymentExportHeader)
	_ = w.WriteAll(rows)
	if err := w.Error(); err != nil {
		s.logger.Error("写入 CSV 失败", zap.Error(err))
		return nil, ErrExportGenerateFail
	}
	return &ExportFile{
		Filename:    fmt.Sprintf("payments_%s.csv", stamp),
		ContentType: ContentTypeCSV,
		Body:        buf,
	}, nil
}

func paymentRow(p *model.Payment) []string {
	name, email := "", ""
	if p.Student != nil {
		name, email = p.Student.Name, p.Student.Email
	}
	method := ""
	if p.Method != nil {
		method = *p.Method
	}
	paid := ""
	if p.PaidDate != nil {
		paid = p.PaidDate.Format("2006-01-02")
	}
	return []string{
		name,
		email,
		p.Month,
		strconv.Itoa(p.Year),
		strconv.FormatFloat(p.Amount, 'f', 2, 64),
		p.Status,
		method,
		p.DueDate.Format("2006-01-02"),
		paid,
	}
}

func writePaymentsXLSX(rows [][]string) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := "缴费记录"
	idx, err := f.NewSheet(sheet)
	if err != nil {
		return nil, err
	}
	f.SetActiveSheet(idx)
	f.DeleteSheet("Sheet1")

	f.SetColWidth(sheet, "A", "B", 24)
	f.SetColWidth(sheet, "C", "I", 14)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})

	for i, h := range paymentExportHeader {
		f.SetCellValue(sheet, cellName(i, 1), h)
	}
	f.SetCellStyle(sheet, cellName(0, 1), cellName(len(paymentExportHeader)-1, 1), headerStyle)

	for r, row := range rows {
		for c, v := range row {
			// 年份与金额按数值写入，便于表格内求和
			switch c {
			case 3:
				n, _ := strconv.Atoi(v)
				f.SetCellValue(sheet, cellName(c, r+2), n)
			case 4:
				n, _ := strconv.ParseFloat(v, 64)
				f.SetCellValue(sheet, cellName(c, r+2), n)
			default:
				f.SetCellValue(sheet, cellName(c, r+2), v)
			}
		}
	}

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// ═══════════════════════════════════════════════════════════
// PaymentCalendar 未结清账期的截止日日历
// ═══════════════════════════════════════════════════════════

func (s *exportService) PaymentCalendar(ctx context.Context, studentID string) (*ExportFile, error) {
	pending, err := s.repo.Payment.ListByStudent(ctx, studentID, model.PaymentPending, 0)
	if err != nil {
		s.logger.Error("查询待缴记录失败", zap.String("student_id", studentID), zap.Error(err))
		return nil, err
	}
	overdue, err := s.repo.Payment.ListByStudent(ctx, studentID, model.PaymentOverdue, 0)
	if err != nil {
		s.logger.Error("查询逾期记录失败", zap.String("student_id", studentID), zap.Error(err))
		return nil, err
	}

	body := buildDueCalendar(append(overdue, pending...), time.Now())
	return &ExportFile{
		Filename:    "payment-due-dates.ics",
		ContentType: ContentTypeICS,
		Body:        bytes.NewBufferString(body),
	}, nil
}

func buildDueCalendar(payments []model.Payment, now time.Time) string {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//studyhall//payments//EN")

	for _, p := range payments {
		event := cal.AddEvent(p.PaymentID + "@studyhall")
		event.SetDtStampTime(now)
		event.SetAllDayStartAt(p.DueDate)
		event.SetAllDayEndAt(p.DueDate.AddDate(0, 0, 1))
		event.SetSummary(fmt.Sprintf("Fee due: %s %d", p.Month, p.Year))
		event.SetDescription(fmt.Sprintf("Amount %.2f, status %s", p.Amount, p.Status))
	}
	return cal.Serialize()
}

// ── 辅助函数 ──

func cellName(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col+1, row)
	return name
}
